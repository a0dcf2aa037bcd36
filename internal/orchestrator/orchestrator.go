package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stormsniper/engine/internal/adapters"
	"github.com/stormsniper/engine/internal/alpha"
	"github.com/stormsniper/engine/internal/execution"
	"github.com/stormsniper/engine/internal/observ"
	"github.com/stormsniper/engine/internal/portfolio"
	"github.com/stormsniper/engine/internal/risk"
	"github.com/stormsniper/engine/internal/timeseries"
	"github.com/stormsniper/engine/internal/weather"
)

// Config tunes the scan/fire/monitor loops.
type Config struct {
	Locations          []adapters.Location `yaml:"locations"`
	Keywords           []string            `yaml:"keywords"`
	BroadenKeywords    []string            `yaml:"broaden_keywords"`
	MinCandidates      int                 `yaml:"min_candidates"`
	MaxConcurrentFetch int                 `yaml:"max_concurrent_fetch"`
	DailyTradeCap      int                 `yaml:"daily_trade_cap"`
	MinPositionSize    float64             `yaml:"min_position_size"`
	MinWinRateSamples  int                 `yaml:"min_win_rate_samples"`
	MarketFilters      adapters.ListFilters
}

func (c Config) withDefaults() Config {
	if len(c.Keywords) == 0 {
		c.Keywords = []string{"rain", "snow", "temperature", "storm"}
	}
	if len(c.BroadenKeywords) == 0 {
		c.BroadenKeywords = []string{"weather", ""}
	}
	if c.MinCandidates <= 0 {
		c.MinCandidates = 5
	}
	if c.MaxConcurrentFetch <= 0 {
		c.MaxConcurrentFetch = 4
	}
	if c.DailyTradeCap <= 0 {
		c.DailyTradeCap = 10
	}
	if c.MinPositionSize <= 0 {
		c.MinPositionSize = 1
	}
	if c.MinWinRateSamples <= 0 {
		c.MinWinRateSamples = 5
	}
	return c
}

// Deps are the collaborators the orchestrator sequences.
type Deps struct {
	Weather   adapters.WeatherProvider
	MarketPv  adapters.MarketDataProvider
	Executor  adapters.OrderExecutor
	Analyzer  *weather.Analyzer
	Engine    *alpha.Engine
	Mapper    alpha.ProbabilityMapper
	VolScaler *risk.VolatilityScaler
	MCGuard   *risk.MonteCarloGuard
	Drawdown  *risk.DrawdownManager
	Book      *portfolio.Book
	Prices    *timeseries.Store
	ExitEval  *execution.ExitEvaluator
	SizerCfg  risk.SizerConfig
	EntryCfg  execution.EntryConfig
}

// Decision is the per-market outcome of one scan, with the full audit trail
// of scores and reductions behind it.
type Decision struct {
	MarketID       string                     `json:"market_id"`
	Question       string                     `json:"question"`
	Recommendation alpha.Recommendation       `json:"recommendation"`
	Reason         string                     `json:"reason"`
	Conviction     alpha.ConvictionScore      `json:"conviction"`
	Shock          alpha.ShockScore           `json:"shock"`
	Side           alpha.Side                 `json:"side"`
	Lag            *alpha.MarketLag           `json:"lag,omitempty"`
	Liquidity      *execution.LiquidityReport `json:"liquidity,omitempty"`
	Volatility     *risk.VolatilityState      `json:"volatility,omitempty"`
	MonteCarlo     *risk.MonteCarloResult     `json:"monte_carlo,omitempty"`
	Size           *risk.PositionSize         `json:"size,omitempty"`
	Entry          *execution.SniperEntry     `json:"entry,omitempty"`
}

// ScanResult is one full scan cycle: either a gate block with a reason, or
// a ranked list of per-market decisions, FIRE candidates first.
type ScanResult struct {
	ScanID      string              `json:"scan_id"`
	StartedAt   time.Time           `json:"started_at"`
	Duration    time.Duration       `json:"duration"`
	Gate        risk.DrawdownStatus `json:"gate"`
	Blocked     bool                `json:"blocked"`
	BlockReason string              `json:"block_reason,omitempty"`
	ResumeAt    time.Time           `json:"resume_at,omitempty"`
	Decisions   []Decision          `json:"decisions"`
}

// ExitOutcome is one monitored position's result for the tick.
type ExitOutcome struct {
	EntryID string                 `json:"entry_id"`
	Signal  execution.ExitSignal   `json:"signal"`
	Closed  bool                   `json:"closed"`
	Trade   *portfolio.ClosedTrade `json:"trade,omitempty"`
	Err     string                 `json:"err,omitempty"`
}

// Orchestrator sequences scan, fire, and monitor over shared portfolio
// state. Its mutex guards only the pause flag; it is never held across an
// external call.
type Orchestrator struct {
	cfg  Config
	deps Deps

	mu          sync.Mutex
	globalPause bool
}

func New(cfg Config, deps Deps) *Orchestrator {
	cfg = cfg.withDefaults()
	// The book enforces the cap at commit; Fire's own check is a fast-fail.
	deps.Book.SetDailyTradeCap(cfg.DailyTradeCap)
	return &Orchestrator{cfg: cfg, deps: deps}
}

// SetGlobalPause flips the operator kill switch. Paused scans gate to
// all-SKIP and Fire refuses submissions.
func (o *Orchestrator) SetGlobalPause(paused bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.globalPause = paused
	observ.Log("global_pause_changed", map[string]any{"paused": paused})
}

func (o *Orchestrator) paused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.globalPause
}

// Scan runs one cycle: gate, fetch, score, size. It never places orders;
// firing is a separate loop so an operator (or the caller's policy) chooses
// which candidate to submit.
func (o *Orchestrator) Scan(ctx context.Context) (ScanResult, error) {
	start := time.Now()
	result := ScanResult{
		ScanID:    uuid.NewString(),
		StartedAt: start,
	}
	defer func() {
		result.Duration = time.Since(start)
		observ.IncCounter("scans_total", nil)
		observ.Observe("scan_latency_ms", float64(result.Duration.Milliseconds()), nil)
	}()

	// Gate.
	o.deps.Book.Rollover(start)
	result.Gate = o.deps.Drawdown.Evaluate(o.deps.Book.Losses(), start)
	if blocked, reason, resumeAt := o.gateBlocked(result.Gate); blocked {
		result.Blocked = true
		result.BlockReason = reason
		result.ResumeAt = resumeAt
		observ.Log("scan_gated", map[string]any{"scan_id": result.ScanID, "reason": reason})
		return result, nil
	}

	// Fetch.
	wx := o.fetchWeather(ctx)
	markets, err := o.fetchCandidates(ctx)
	if err != nil {
		return result, fmt.Errorf("scan %s: %w", result.ScanID, err)
	}

	// Score.
	for _, market := range markets {
		result.Decisions = append(result.Decisions, o.score(ctx, market, wx))
	}
	sort.SliceStable(result.Decisions, func(i, j int) bool {
		a, b := result.Decisions[i], result.Decisions[j]
		if (a.Recommendation == alpha.Fire) != (b.Recommendation == alpha.Fire) {
			return a.Recommendation == alpha.Fire
		}
		return a.Conviction.Composite > b.Conviction.Composite
	})

	// Size the triggered candidates.
	for i := range result.Decisions {
		if result.Decisions[i].Recommendation == alpha.Fire {
			o.size(ctx, &result.Decisions[i], result.Gate)
		}
	}

	observ.Log("scan_complete", map[string]any{
		"scan_id": result.ScanID, "candidates": len(result.Decisions),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return result, nil
}

func (o *Orchestrator) gateBlocked(gate risk.DrawdownStatus) (bool, string, time.Time) {
	if o.paused() {
		return true, "globally paused by operator", time.Time{}
	}
	if gate.SizeMultiplier == 0 {
		return true, gate.Reason, gate.ResumeAt
	}
	if o.deps.Book.DailyTrades() >= o.cfg.DailyTradeCap {
		return true, fmt.Sprintf("daily trade cap %d reached", o.cfg.DailyTradeCap), time.Time{}
	}
	return false, "", time.Time{}
}

// locationContext is the weather bundle for one location this cycle. The
// previous cycle's ensemble, when one exists, feeds the market-lag check.
type locationContext struct {
	ensemble weather.EnsembleForecast
	anomaly  weather.Anomaly
	previous *weather.EnsembleForecast
}

// fetchWeather pulls ensembles for every location with bounded concurrency.
// A failed location is absent from the map and degrades its markets to
// SKIP, never the whole cycle.
func (o *Orchestrator) fetchWeather(ctx context.Context) map[string]locationContext {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]locationContext, len(o.cfg.Locations))
		sem = make(chan struct{}, o.cfg.MaxConcurrentFetch)
	)
	for _, loc := range o.cfg.Locations {
		wg.Add(1)
		sem <- struct{}{}
		go func(loc adapters.Location) {
			defer wg.Done()
			defer func() { <-sem }()

			ens, err := o.deps.Weather.FetchEnsemble(ctx, loc)
			if err != nil {
				observ.Log("weather_fetch_error", map[string]any{"location": loc.Name, "error": err.Error()})
				return
			}
			pa, err := o.deps.Weather.PressureAnomaly(ctx, loc, ens.MeanPressureHPa)
			if err != nil {
				observ.Log("pressure_analysis_error", map[string]any{"location": loc.Name, "error": err.Error()})
				pa = weather.PressureAnomaly{Location: loc.Name}
			}
			// Capture last cycle's ensemble before Analyze records this one.
			var prev *weather.EnsembleForecast
			if hist := o.deps.Analyzer.History(loc.Name); len(hist) > 0 {
				p := hist[len(hist)-1]
				prev = &p
			}
			anomaly := o.deps.Analyzer.Analyze(ens, pa)

			mu.Lock()
			out[loc.Name] = locationContext{ensemble: ens, anomaly: anomaly, previous: prev}
			mu.Unlock()
		}(loc)
	}
	wg.Wait()
	return out
}

// fetchCandidates lists markets by keyword, broadening the search when too
// few turn up.
func (o *Orchestrator) fetchCandidates(ctx context.Context) ([]adapters.Market, error) {
	seen := make(map[string]bool)
	var out []adapters.Market

	collect := func(keyword string) error {
		markets, err := o.deps.MarketPv.ListMarkets(ctx, keyword, o.cfg.MarketFilters)
		if err != nil {
			return err
		}
		for _, m := range markets {
			if !seen[m.ID] {
				seen[m.ID] = true
				out = append(out, m)
			}
		}
		return nil
	}

	var lastErr error
	for _, kw := range o.cfg.Keywords {
		if err := collect(kw); err != nil {
			lastErr = err
		}
	}
	if len(out) < o.cfg.MinCandidates {
		for _, kw := range o.cfg.BroadenKeywords {
			if err := collect(kw); err != nil {
				lastErr = err
			}
			if len(out) >= o.cfg.MinCandidates {
				break
			}
		}
	}
	if len(out) == 0 && lastErr != nil {
		return nil, fmt.Errorf("list candidate markets: %w", lastErr)
	}
	return out, nil
}

// score runs the alpha engine for one market with whatever weather and
// liquidity context is available.
func (o *Orchestrator) score(ctx context.Context, market adapters.Market, wx map[string]locationContext) Decision {
	d := Decision{MarketID: market.ID, Question: market.Question}

	price := market.YesPrice
	if price <= 0 && market.InstrumentID != "" {
		mid, err := o.deps.MarketPv.GetMidpoint(ctx, market.InstrumentID)
		if err != nil {
			observ.Log("midpoint_fetch_error", map[string]any{"market": market.ID, "error": err.Error()})
		} else {
			price = mid
		}
	}
	if price <= 0 {
		d.Recommendation = alpha.Skip
		d.Reason = "no live price available"
		return d
	}
	prevSample, hasPrevPrice := o.deps.Prices.Last(market.ID)
	o.deps.Prices.Append(market.ID, price, time.Now())

	candidate := alpha.Candidate{
		MarketID: market.ID,
		Question: market.Question,
		Price:    price,
	}

	if mq, ok := o.deps.Mapper.Map(market.Question); ok {
		if lc, found := wx[mq.Location]; found {
			ens, anom := lc.ensemble, lc.anomaly
			candidate.Ensemble = &ens
			candidate.Anomaly = &anom

			// With a prior cycle on both sides, score how far the market
			// has lagged the weather move.
			if lc.previous != nil && hasPrevPrice {
				lag := alpha.ComputeLag(market.ID,
					alpha.ImpliedProbability(mq, ens),
					alpha.ImpliedProbability(mq, *lc.previous),
					price, prevSample.Price)
				d.Lag = &lag
			}
		}
	}

	// Liquidity graded against the base size; the final size is re-checked
	// during sizing.
	baseSize := o.deps.Book.Bankroll() * o.deps.SizerCfg.BaseSizePct / 100
	if market.InstrumentID != "" {
		book, err := o.deps.MarketPv.GetOrderBook(ctx, market.InstrumentID)
		var report execution.LiquidityReport
		if err != nil {
			report = execution.NeutralLiquidity(market.InstrumentID, baseSize)
			observ.Log("orderbook_fetch_error", map[string]any{"market": market.ID, "error": err.Error()})
		} else {
			report = execution.ScoreLiquidity(book, baseSize)
		}
		d.Liquidity = &report
		candidate.LiquidityQuality = &report.Quality
	}

	assessment := o.deps.Engine.AnalyzeMarket(candidate)
	d.Conviction = assessment.Conviction
	d.Shock = assessment.Shock
	d.Side = assessment.Side
	d.Recommendation = assessment.Conviction.Recommendation
	d.Reason = assessment.Conviction.Reason
	return d
}

// size runs the risk pipeline for one FIRE candidate and attaches the entry
// it would submit. Any reduction to zero or liquidity failure downgrades
// the decision to SKIP with the reason recorded.
func (o *Orchestrator) size(ctx context.Context, d *Decision, gate risk.DrawdownStatus) {
	if o.deps.Book.HasOpenPosition(d.MarketID) {
		d.Recommendation = alpha.Skip
		d.Reason = "position already open in this market"
		return
	}

	vol := o.deps.VolScaler.Compute(d.MarketID, time.Now())
	d.Volatility = &vol

	winRate, samples := o.deps.Book.WinRate()
	if samples < o.cfg.MinWinRateSamples {
		winRate = risk.DefaultWinRate
	}
	cfg := o.deps.EntryCfg
	mc := o.deps.MCGuard.Run(winRate, cfg.TakeProfitMaxPct, cfg.StopLossPct)
	d.MonteCarlo = &mc

	size := risk.ComputeSize(o.deps.Book.Bankroll(), d.Conviction.Composite, vol.Scaler, gate.SizeMultiplier, mc.ReductionFactor, o.deps.SizerCfg)
	d.Size = &size
	if size.FinalSize < o.cfg.MinPositionSize {
		d.Recommendation = alpha.Skip
		d.Reason = fmt.Sprintf("final size %.2f below minimum %.2f", size.FinalSize, o.cfg.MinPositionSize)
		return
	}

	// Re-grade liquidity at the final size.
	instrumentID := ""
	if d.Liquidity != nil {
		instrumentID = d.Liquidity.InstrumentID
	}
	if instrumentID != "" {
		book, err := o.deps.MarketPv.GetOrderBook(ctx, instrumentID)
		var report execution.LiquidityReport
		if err != nil {
			report = execution.NeutralLiquidity(instrumentID, size.FinalSize)
		} else {
			report = execution.ScoreLiquidity(book, size.FinalSize)
		}
		d.Liquidity = &report
		if !report.Sufficient {
			d.Recommendation = alpha.Skip
			d.Reason = fmt.Sprintf("insufficient liquidity: quality %.2f, depth %.0f for size %.0f", report.Quality, report.TotalDepth, size.FinalSize)
			return
		}
	}

	entry := execution.BuildEntry(execution.BuildParams{
		MarketID:     d.MarketID,
		Title:        d.Question,
		Side:         d.Side,
		InstrumentID: instrumentID,
		Price:        d.Conviction.MarketPrice,
		Size:         size.FinalSize,
		Conviction:   d.Conviction,
		Shock:        d.Shock,
		Volatility:   vol,
	}, o.deps.EntryCfg, time.Now())
	d.Entry = &entry
}

// Fire submits one entry. Every pre-condition is re-checked at submission
// time; a violated gate or a failed submission returns an error and leaves
// portfolio state untouched.
func (o *Orchestrator) Fire(ctx context.Context, entry execution.SniperEntry) error {
	now := time.Now()
	if o.paused() {
		return fmt.Errorf("fire %s: globally paused", entry.ID)
	}
	gate := o.deps.Drawdown.Evaluate(o.deps.Book.Losses(), now)
	if gate.SizeMultiplier == 0 {
		return fmt.Errorf("fire %s: %s", entry.ID, gate.Reason)
	}
	if o.deps.Book.DailyTrades() >= o.cfg.DailyTradeCap {
		return fmt.Errorf("fire %s: daily trade cap %d reached", entry.ID, o.cfg.DailyTradeCap)
	}
	if entry.Size > o.deps.Book.AvailableBalance() {
		return fmt.Errorf("fire %s: size %.2f exceeds available balance %.2f", entry.ID, entry.Size, o.deps.Book.AvailableBalance())
	}

	orderID, err := o.deps.Executor.PlaceLimitOrder(ctx, entry.InstrumentID, entry.Side, entry.Price, entry.Size)
	if err != nil {
		return fmt.Errorf("fire %s: place order: %w", entry.ID, err)
	}
	if err := o.deps.Book.OpenPosition(entry, now); err != nil {
		// The order went out but the book refused it. Surface loudly; the
		// operator owes the venue a manual reconcile.
		observ.Log("fire_book_mismatch", map[string]any{"entry_id": entry.ID, "order_id": orderID, "error": err.Error()})
		return fmt.Errorf("fire %s: order %s placed but book update failed: %w", entry.ID, orderID, err)
	}

	observ.IncCounter("fires_total", nil)
	observ.Log("entry_fired", map[string]any{
		"entry_id": entry.ID, "order_id": orderID, "market": entry.MarketID,
		"side": string(entry.Side), "price": entry.Price, "size": entry.Size,
	})
	return nil
}

// Monitor refreshes every open position, evaluates exits, and closes what
// triggered. A failed close marks the position for retry next tick rather
// than dropping it.
func (o *Orchestrator) Monitor(ctx context.Context) []ExitOutcome {
	now := time.Now()
	var outcomes []ExitOutcome

	for _, pos := range o.deps.Book.Positions() {
		outcome := ExitOutcome{EntryID: pos.EntryID}

		price, err := o.deps.MarketPv.GetMidpoint(ctx, pos.InstrumentID)
		if err != nil {
			outcome.Err = fmt.Sprintf("price refresh: %v", err)
			outcomes = append(outcomes, outcome)
			observ.Log("monitor_price_error", map[string]any{"entry_id": pos.EntryID, "error": err.Error()})
			continue
		}
		o.deps.Prices.Append(pos.MarketID, price, now)
		o.deps.Book.MarkPrice(pos.EntryID, price)

		signal := o.deps.ExitEval.Evaluate(execution.PositionView{
			MarketID:        pos.MarketID,
			Side:            pos.Side,
			EntryPrice:      pos.EntryPrice,
			TakeProfitPrice: pos.TakeProfitPrice,
			StopLossPrice:   pos.StopLossPrice,
			MaxHold:         pos.MaxHold,
			OpenedAt:        pos.OpenedAt,
		}, price, now)
		outcome.Signal = signal

		if !signal.ShouldExit && !pos.PendingClose {
			outcomes = append(outcomes, outcome)
			continue
		}

		if err := o.closePosition(ctx, pos, price, signal, &outcome, now); err != nil {
			outcome.Err = err.Error()
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (o *Orchestrator) closePosition(ctx context.Context, pos portfolio.Position, price float64, signal execution.ExitSignal, outcome *ExitOutcome, now time.Time) error {
	closeSide := alpha.SideNo
	if pos.Side == alpha.SideNo {
		closeSide = alpha.SideYes
	}

	if _, err := o.deps.Executor.PlaceLimitOrder(ctx, pos.InstrumentID, closeSide, price, pos.Size); err != nil {
		o.deps.Book.SetPendingClose(pos.EntryID, true)
		observ.Log("close_order_failed", map[string]any{"entry_id": pos.EntryID, "error": err.Error()})
		return fmt.Errorf("close %s: %w", pos.EntryID, err)
	}

	trade, err := o.deps.Book.ClosePosition(pos.EntryID, price, now)
	if err != nil {
		return fmt.Errorf("close %s: book update: %w", pos.EntryID, err)
	}
	outcome.Closed = true
	outcome.Trade = &trade

	o.deps.Drawdown.RecordTrade(trade.Won, now)
	o.deps.Drawdown.Evaluate(o.deps.Book.Losses(), now)

	trigger := string(signal.Trigger)
	if pos.PendingClose {
		trigger = "retry"
	}
	observ.IncCounter("position_exits_total", map[string]string{"trigger": trigger})
	observ.Log("position_closed", map[string]any{
		"entry_id": pos.EntryID, "market": pos.MarketID, "trigger": trigger,
		"pnl": trade.PnL, "pnl_pct": trade.PnLPct, "won": trade.Won,
	})
	return nil
}

// Status is the operator-facing snapshot.
type Status struct {
	GlobalPause bool                `json:"global_pause"`
	Drawdown    risk.DrawdownStatus `json:"drawdown"`
	Portfolio   portfolio.State     `json:"portfolio"`
}

// CurrentStatus reports pause state, drawdown state, and the portfolio.
func (o *Orchestrator) CurrentStatus() Status {
	return Status{
		GlobalPause: o.paused(),
		Drawdown:    o.deps.Drawdown.Evaluate(o.deps.Book.Losses(), time.Now()),
		Portfolio:   o.deps.Book.Snapshot(),
	}
}
