package portfolio

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/stormsniper/engine/internal/alpha"
	"github.com/stormsniper/engine/internal/execution"
	"github.com/stormsniper/engine/internal/observ"
	"github.com/stormsniper/engine/internal/risk"
)

// Position is one open sniper position.
type Position struct {
	EntryID          string        `json:"entry_id"`
	MarketID         string        `json:"market_id"`
	Title            string        `json:"title"`
	Side             alpha.Side    `json:"side"`
	InstrumentID     string        `json:"instrument_id"`
	EntryPrice       float64       `json:"entry_price"`
	Size             float64       `json:"size"`
	TakeProfitPrice  float64       `json:"take_profit_price"`
	StopLossPrice    float64       `json:"stop_loss_price"`
	MaxHold          time.Duration `json:"max_hold"`
	OpenedAt         time.Time     `json:"opened_at"`
	CurrentPrice     float64       `json:"current_price"`
	UnrealizedPnLPct float64       `json:"unrealized_pnl_pct"`
	// PendingClose marks a position whose close order failed; the monitor
	// retries it next tick instead of dropping it from tracking.
	PendingClose bool `json:"pending_close"`
}

// ClosedTrade is the realized outcome of one position.
type ClosedTrade struct {
	EntryID    string        `json:"entry_id"`
	MarketID   string        `json:"market_id"`
	Side       alpha.Side    `json:"side"`
	EntryPrice float64       `json:"entry_price"`
	ExitPrice  float64       `json:"exit_price"`
	Size       float64       `json:"size"`
	PnL        float64       `json:"pnl"`
	PnLPct     float64       `json:"pnl_pct"`
	Won        bool          `json:"won"`
	HeldFor    time.Duration `json:"held_for"`
}

// PeriodStats are the counters that reset on a day or week boundary.
type PeriodStats struct {
	Start  string  `json:"start"` // local date the period began, YYYY-MM-DD
	Trades int     `json:"trades"`
	PnL    float64 `json:"pnl"`
}

// LifetimeStats never reset.
type LifetimeStats struct {
	Trades        int     `json:"trades"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	TotalPnL      float64 `json:"total_pnl"`
	SumRiskReward float64 `json:"sum_risk_reward"`
}

// State is the persisted portfolio snapshot.
type State struct {
	Version          int64               `json:"version"`
	UpdatedAt        string              `json:"updated_at"`
	Bankroll         float64             `json:"bankroll"`
	AvailableBalance float64             `json:"available_balance"`
	Positions        map[string]Position `json:"positions"` // keyed by entry ID
	Day              PeriodStats         `json:"day"`
	Week             PeriodStats         `json:"week"`
	Lifetime         LifetimeStats       `json:"lifetime"`
	LastTradeAt      string              `json:"last_trade_at,omitempty"`
}

// Book owns portfolio state: balances, open positions, and the period
// counters the drawdown machine reads. All mutations persist atomically so
// a restart resumes from the last consistent snapshot. The invariant
// availableBalance + sum of open sizes = bankroll holds after every
// operation, up to float rounding.
type Book struct {
	mu            sync.RWMutex
	filePath      string
	loc           *time.Location
	dailyTradeCap int
	state         State
}

// NewBook creates a book backed by filePath. An empty filePath keeps state
// in memory only.
func NewBook(filePath string, bankroll float64, loc *time.Location) *Book {
	if loc == nil {
		loc = time.Local
	}
	today := time.Now().In(loc).Format("2006-01-02")
	return &Book{
		filePath: filePath,
		loc:      loc,
		state: State{
			Bankroll:         bankroll,
			AvailableBalance: bankroll,
			Positions:        make(map[string]Position),
			Day:              PeriodStats{Start: today},
			Week:             PeriodStats{Start: mondayOf(time.Now().In(loc))},
		},
	}
}

// Load reads persisted state, keeping the in-memory defaults when no file
// exists yet.
func (b *Book) Load() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.filePath == "" {
		return nil
	}
	data, err := os.ReadFile(b.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return b.saveLocked()
		}
		return fmt.Errorf("read portfolio state: %w", err)
	}
	if err := json.Unmarshal(data, &b.state); err != nil {
		return fmt.Errorf("unmarshal portfolio state: %w", err)
	}
	if b.state.Positions == nil {
		b.state.Positions = make(map[string]Position)
	}
	return nil
}

// Save persists the current state.
func (b *Book) Save() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saveLocked()
}

// saveLocked writes atomically via temp file + rename.
func (b *Book) saveLocked() error {
	if b.filePath == "" {
		return nil
	}
	b.state.Version++
	b.state.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(b.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal portfolio state: %w", err)
	}
	if dir := filepath.Dir(b.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	tempPath := b.filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("write portfolio state: %w", err)
	}
	if err := os.Rename(tempPath, b.filePath); err != nil {
		return fmt.Errorf("rename portfolio state: %w", err)
	}
	return nil
}

// Rollover resets day and week counters when a local boundary has been
// crossed since the last call. Called lazily at the start of each cycle.
func (b *Book) Rollover(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	local := now.In(b.loc)
	today := local.Format("2006-01-02")
	if b.state.Day.Start != today {
		observ.Log("portfolio_day_rollover", map[string]any{
			"prev_date": b.state.Day.Start, "prev_pnl": b.state.Day.PnL, "prev_trades": b.state.Day.Trades,
		})
		b.state.Day = PeriodStats{Start: today}
	}
	week := mondayOf(local)
	if b.state.Week.Start != week {
		observ.Log("portfolio_week_rollover", map[string]any{
			"prev_week": b.state.Week.Start, "prev_pnl": b.state.Week.PnL, "prev_trades": b.state.Week.Trades,
		})
		b.state.Week = PeriodStats{Start: week}
	}
	if err := b.saveLocked(); err != nil {
		observ.Log("portfolio_persist_error", map[string]any{"error": err.Error()})
	}
}

// SetDailyTradeCap bounds how many positions may open per local day. Zero
// means unbounded. Enforced at commit, under the book's lock, so concurrent
// opens cannot both slip past the limit.
func (b *Book) SetDailyTradeCap(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dailyTradeCap = n
}

// OpenPosition commits a fired entry: reserves balance, registers the
// position, and bumps trade counters. Balance and the daily trade cap are
// re-checked here; callers' pre-checks are advisory only.
func (b *Book) OpenPosition(entry execution.SniperEntry, now time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if entry.Size <= 0 {
		return fmt.Errorf("open position %s: non-positive size %.2f", entry.ID, entry.Size)
	}
	if entry.Size > b.state.AvailableBalance {
		return fmt.Errorf("open position %s: size %.2f exceeds available balance %.2f", entry.ID, entry.Size, b.state.AvailableBalance)
	}
	if b.dailyTradeCap > 0 && b.state.Day.Trades >= b.dailyTradeCap {
		return fmt.Errorf("open position %s: daily trade cap %d reached", entry.ID, b.dailyTradeCap)
	}

	b.state.AvailableBalance -= entry.Size
	b.state.Positions[entry.ID] = Position{
		EntryID:         entry.ID,
		MarketID:        entry.MarketID,
		Title:           entry.Title,
		Side:            entry.Side,
		InstrumentID:    entry.InstrumentID,
		EntryPrice:      entry.Price,
		Size:            entry.Size,
		TakeProfitPrice: entry.TakeProfitPrice,
		StopLossPrice:   entry.StopLossPrice,
		MaxHold:         entry.MaxHold,
		OpenedAt:        entry.CreatedAt,
		CurrentPrice:    entry.Price,
	}
	b.state.Day.Trades++
	b.state.Week.Trades++
	b.state.LastTradeAt = now.UTC().Format(time.RFC3339)

	observ.SetGauge("open_positions", float64(len(b.state.Positions)), nil)
	return b.saveLocked()
}

// ClosePosition realizes a position at the exit price, releases its
// balance, and updates the period and lifetime counters.
func (b *Book) ClosePosition(entryID string, exitPrice float64, now time.Time) (ClosedTrade, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pos, ok := b.state.Positions[entryID]
	if !ok {
		return ClosedTrade{}, fmt.Errorf("close position %s: not found", entryID)
	}

	pnlPct := sidePnLPct(pos.Side, pos.EntryPrice, exitPrice)
	pnl := pos.Size * pnlPct / 100

	trade := ClosedTrade{
		EntryID:    pos.EntryID,
		MarketID:   pos.MarketID,
		Side:       pos.Side,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		Size:       pos.Size,
		PnL:        pnl,
		PnLPct:     pnlPct,
		Won:        pnl > 0,
		HeldFor:    now.Sub(pos.OpenedAt),
	}

	delete(b.state.Positions, entryID)
	b.state.AvailableBalance += pos.Size + pnl
	b.state.Bankroll += pnl
	b.state.Day.PnL += pnl
	b.state.Week.PnL += pnl
	b.state.Lifetime.Trades++
	b.state.Lifetime.TotalPnL += pnl
	if trade.Won {
		b.state.Lifetime.Wins++
	} else {
		b.state.Lifetime.Losses++
	}
	if rr := riskReward(pos); rr > 0 {
		b.state.Lifetime.SumRiskReward += rr
	}

	observ.SetGauge("open_positions", float64(len(b.state.Positions)), nil)
	observ.SetGauge("bankroll", b.state.Bankroll, nil)
	return trade, b.saveLocked()
}

// MarkPrice refreshes the live mark on an open position.
func (b *Book) MarkPrice(entryID string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pos, ok := b.state.Positions[entryID]
	if !ok {
		return
	}
	pos.CurrentPrice = price
	pos.UnrealizedPnLPct = sidePnLPct(pos.Side, pos.EntryPrice, price)
	b.state.Positions[entryID] = pos
}

// SetPendingClose flags or clears the close-retry marker.
func (b *Book) SetPendingClose(entryID string, pending bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pos, ok := b.state.Positions[entryID]
	if !ok {
		return
	}
	pos.PendingClose = pending
	b.state.Positions[entryID] = pos
}

// Positions returns a copy of the open positions.
func (b *Book) Positions() []Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Position, 0, len(b.state.Positions))
	for _, p := range b.state.Positions {
		out = append(out, p)
	}
	return out
}

// HasOpenPosition reports whether a market already has an open position.
func (b *Book) HasOpenPosition(marketID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, p := range b.state.Positions {
		if p.MarketID == marketID {
			return true
		}
	}
	return false
}

func (b *Book) Bankroll() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state.Bankroll
}

func (b *Book) AvailableBalance() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state.AvailableBalance
}

// DailyTrades reports today's trade count for the daily cap gate.
func (b *Book) DailyTrades() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state.Day.Trades
}

// WinRate returns the lifetime win rate and the number of closed trades
// behind it. Callers substitute a default below their sample threshold.
func (b *Book) WinRate() (float64, int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.state.Lifetime.Trades == 0 {
		return 0, 0
	}
	return float64(b.state.Lifetime.Wins) / float64(b.state.Lifetime.Trades), b.state.Lifetime.Trades
}

// AvgRiskReward is the lifetime mean of take-profit distance over stop-loss
// distance at entry.
func (b *Book) AvgRiskReward() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.state.Lifetime.Trades == 0 {
		return 0
	}
	return b.state.Lifetime.SumRiskReward / float64(b.state.Lifetime.Trades)
}

// Losses reports current day and week losses as positive percentages of
// bankroll, the form the drawdown machine consumes. Profitable periods
// report zero.
func (b *Book) Losses() risk.Losses {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out risk.Losses
	if b.state.Bankroll <= 0 {
		return out
	}
	if b.state.Day.PnL < 0 {
		out.DailyLossPct = -b.state.Day.PnL / b.state.Bankroll * 100
	}
	if b.state.Week.PnL < 0 {
		out.WeeklyLossPct = -b.state.Week.PnL / b.state.Bankroll * 100
	}
	return out
}

// Snapshot returns a deep copy of the full state for status reporting.
func (b *Book) Snapshot() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := b.state
	out.Positions = make(map[string]Position, len(b.state.Positions))
	for k, v := range b.state.Positions {
		out.Positions[k] = v
	}
	return out
}

func sidePnLPct(side alpha.Side, entry, exit float64) float64 {
	if entry == 0 {
		return 0
	}
	if side == alpha.SideNo {
		return (entry - exit) / entry * 100
	}
	return (exit - entry) / entry * 100
}

func riskReward(pos Position) float64 {
	reward := math.Abs(pos.TakeProfitPrice - pos.EntryPrice)
	riskDist := math.Abs(pos.EntryPrice - pos.StopLossPrice)
	if riskDist == 0 {
		return 0
	}
	return reward / riskDist
}

// mondayOf is the local date of the Monday beginning the week containing t.
func mondayOf(t time.Time) string {
	days := (int(t.Weekday()) - int(time.Monday) + 7) % 7
	return t.AddDate(0, 0, -days).Format("2006-01-02")
}
