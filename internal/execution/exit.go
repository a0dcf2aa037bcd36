package execution

import (
	"fmt"
	"time"

	"github.com/stormsniper/engine/internal/alpha"
	"github.com/stormsniper/engine/internal/timeseries"
)

// ExitTrigger names the rule that fired, or "holding" when none did.
type ExitTrigger string

const (
	TriggerTakeProfit       ExitTrigger = "take_profit"
	TriggerStopLoss         ExitTrigger = "stop_loss"
	TriggerMomentumReversal ExitTrigger = "momentum_reversal"
	TriggerTimeDecay        ExitTrigger = "time_decay"
	// TriggerForecastCollapse is defined for a weather re-evaluation check
	// that is not wired into the evaluator yet.
	TriggerForecastCollapse ExitTrigger = "forecast_collapse"
	TriggerHolding          ExitTrigger = "holding"
)

// ExitConfig tunes the momentum-reversal and time-decay rules.
type ExitConfig struct {
	MaxHold          time.Duration `yaml:"max_hold"`
	PeakGainPct      float64       `yaml:"peak_gain_pct"`
	GivebackFraction float64       `yaml:"giveback_fraction"`
}

func DefaultExitConfig() ExitConfig {
	return ExitConfig{
		MaxHold:          4 * time.Hour,
		PeakGainPct:      2.0,
		GivebackFraction: 0.5,
	}
}

// PositionView is the slice of an open position the evaluator needs.
type PositionView struct {
	MarketID        string
	Side            alpha.Side
	EntryPrice      float64
	TakeProfitPrice float64
	StopLossPrice   float64
	MaxHold         time.Duration
	OpenedAt        time.Time
}

// ExitSignal is one evaluation outcome. A non-exiting signal still carries
// current P&L and hold time for observability.
type ExitSignal struct {
	ShouldExit bool          `json:"should_exit"`
	Trigger    ExitTrigger   `json:"trigger"`
	Reason     string        `json:"reason"`
	PnLPct     float64       `json:"pnl_pct"`
	PeakPnLPct float64       `json:"peak_pnl_pct"`
	HeldFor    time.Duration `json:"held_for"`
}

// ExitEvaluator applies the exit rules in fixed priority: take-profit,
// stop-loss, momentum reversal, time decay. First match wins.
type ExitEvaluator struct {
	store *timeseries.Store
	cfg   ExitConfig
}

func NewExitEvaluator(store *timeseries.Store, cfg ExitConfig) *ExitEvaluator {
	def := DefaultExitConfig()
	if cfg.MaxHold <= 0 {
		cfg.MaxHold = def.MaxHold
	}
	if cfg.PeakGainPct <= 0 {
		cfg.PeakGainPct = def.PeakGainPct
	}
	if cfg.GivebackFraction <= 0 {
		cfg.GivebackFraction = def.GivebackFraction
	}
	return &ExitEvaluator{store: store, cfg: cfg}
}

// Evaluate runs the rule chain for one open position at the current price.
func (e *ExitEvaluator) Evaluate(pos PositionView, currentPrice float64, now time.Time) ExitSignal {
	pnl := pnlPct(pos.Side, pos.EntryPrice, currentPrice)
	peak := e.peakPnL(pos, pnl)
	held := now.Sub(pos.OpenedAt)

	sig := ExitSignal{PnLPct: pnl, PeakPnLPct: peak, HeldFor: held}

	switch {
	case takeProfitHit(pos, currentPrice):
		sig.ShouldExit = true
		sig.Trigger = TriggerTakeProfit
		sig.Reason = fmt.Sprintf("take-profit hit at %.3f (target %.3f)", currentPrice, pos.TakeProfitPrice)
	case stopLossHit(pos, currentPrice):
		sig.ShouldExit = true
		sig.Trigger = TriggerStopLoss
		sig.Reason = fmt.Sprintf("stop-loss hit at %.3f (stop %.3f)", currentPrice, pos.StopLossPrice)
	case peak > e.cfg.PeakGainPct && pnl < peak*(1-e.cfg.GivebackFraction):
		sig.ShouldExit = true
		sig.Trigger = TriggerMomentumReversal
		sig.Reason = fmt.Sprintf("gave back %.1f%% of a %.1f%% peak gain", peak-pnl, peak)
	case held > e.maxHold(pos):
		sig.ShouldExit = true
		sig.Trigger = TriggerTimeDecay
		sig.Reason = fmt.Sprintf("held %s, past the %s limit", held.Round(time.Minute), e.maxHold(pos))
	default:
		sig.Trigger = TriggerHolding
		sig.Reason = fmt.Sprintf("Holding, pnl %.2f%% after %s", pnl, held.Round(time.Minute))
	}
	return sig
}

func (e *ExitEvaluator) maxHold(pos PositionView) time.Duration {
	if pos.MaxHold > 0 {
		return pos.MaxHold
	}
	return e.cfg.MaxHold
}

// peakPnL scans the price history since entry for the best mark the
// position has seen, folding in the current reading.
func (e *ExitEvaluator) peakPnL(pos PositionView, current float64) float64 {
	peak := current
	if e.store == nil {
		return peak
	}
	for _, s := range e.store.Since(pos.MarketID, pos.OpenedAt) {
		if p := pnlPct(pos.Side, pos.EntryPrice, s.Price); p > peak {
			peak = p
		}
	}
	return peak
}

func pnlPct(side alpha.Side, entry, current float64) float64 {
	if entry == 0 {
		return 0
	}
	if side == alpha.SideNo {
		return (entry - current) / entry * 100
	}
	return (current - entry) / entry * 100
}

func takeProfitHit(pos PositionView, price float64) bool {
	if pos.Side == alpha.SideNo {
		return price <= pos.TakeProfitPrice
	}
	return price >= pos.TakeProfitPrice
}

func stopLossHit(pos PositionView, price float64) bool {
	if pos.Side == alpha.SideNo {
		return price >= pos.StopLossPrice
	}
	return price <= pos.StopLossPrice
}
