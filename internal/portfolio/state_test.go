package portfolio

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormsniper/engine/internal/alpha"
	"github.com/stormsniper/engine/internal/execution"
)

func testEntry(id, marketID string, side alpha.Side, price, size float64, at time.Time) execution.SniperEntry {
	return execution.SniperEntry{
		ID:              id,
		MarketID:        marketID,
		Title:           "Will it rain in Miami on Friday?",
		Side:            side,
		InstrumentID:    "inst-" + marketID,
		Price:           price,
		Size:            size,
		TakeProfitPrice: price * 1.09,
		StopLossPrice:   price * 0.97,
		MaxHold:         4 * time.Hour,
		CreatedAt:       at,
	}
}

func balanceInvariant(t *testing.T, b *Book) {
	t.Helper()
	total := b.AvailableBalance()
	for _, p := range b.Positions() {
		total += p.Size
	}
	assert.InDelta(t, b.Bankroll(), total, 1e-6)
}

func TestBookOpenAndClose(t *testing.T) {
	b := NewBook("", 1000, time.UTC)
	now := time.Now()

	require.NoError(t, b.OpenPosition(testEntry("e1", "mkt-1", alpha.SideYes, 0.50, 120, now), now))
	assert.Equal(t, 880.0, b.AvailableBalance())
	assert.True(t, b.HasOpenPosition("mkt-1"))
	assert.Equal(t, 1, b.DailyTrades())
	balanceInvariant(t, b)

	trade, err := b.ClosePosition("e1", 0.545, now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, trade.Won)
	assert.InDelta(t, 9.0, trade.PnLPct, 1e-9)
	assert.InDelta(t, 10.8, trade.PnL, 1e-9)
	assert.InDelta(t, 1010.8, b.Bankroll(), 1e-9)
	assert.False(t, b.HasOpenPosition("mkt-1"))
	balanceInvariant(t, b)

	rate, n := b.WinRate()
	assert.Equal(t, 1, n)
	assert.Equal(t, 1.0, rate)
}

func TestBookNoSidePnL(t *testing.T) {
	b := NewBook("", 1000, time.UTC)
	now := time.Now()

	require.NoError(t, b.OpenPosition(testEntry("e1", "mkt-1", alpha.SideNo, 0.50, 100, now), now))
	// YES price rose, so the NO position lost.
	trade, err := b.ClosePosition("e1", 0.55, now.Add(time.Hour))
	require.NoError(t, err)

	assert.False(t, trade.Won)
	assert.InDelta(t, -10.0, trade.PnLPct, 1e-9)
	assert.InDelta(t, 990.0, b.Bankroll(), 1e-9)
	balanceInvariant(t, b)
}

func TestBookRejectsOversizedEntry(t *testing.T) {
	b := NewBook("", 100, time.UTC)
	now := time.Now()

	err := b.OpenPosition(testEntry("e1", "mkt-1", alpha.SideYes, 0.50, 150, now), now)
	assert.ErrorContains(t, err, "exceeds available balance")
	assert.Equal(t, 100.0, b.AvailableBalance())
}

func TestBookEnforcesDailyTradeCapAtCommit(t *testing.T) {
	b := NewBook("", 1000, time.UTC)
	b.SetDailyTradeCap(1)
	now := time.Now()

	require.NoError(t, b.OpenPosition(testEntry("e1", "mkt-1", alpha.SideYes, 0.50, 100, now), now))

	err := b.OpenPosition(testEntry("e2", "mkt-2", alpha.SideYes, 0.50, 100, now), now)
	assert.ErrorContains(t, err, "daily trade cap")
	assert.Len(t, b.Positions(), 1)
	assert.Equal(t, 1, b.DailyTrades())
	balanceInvariant(t, b)

	// Closing does not refund the day's count; only rollover does.
	_, err = b.ClosePosition("e1", 0.52, now.Add(time.Hour))
	require.NoError(t, err)
	err = b.OpenPosition(testEntry("e3", "mkt-3", alpha.SideYes, 0.50, 100, now), now)
	assert.ErrorContains(t, err, "daily trade cap")

	b.Rollover(now.AddDate(0, 0, 1))
	require.NoError(t, b.OpenPosition(testEntry("e4", "mkt-4", alpha.SideYes, 0.50, 100, now), now))
}

func TestBookLosses(t *testing.T) {
	b := NewBook("", 1000, time.UTC)
	now := time.Now()

	require.NoError(t, b.OpenPosition(testEntry("e1", "mkt-1", alpha.SideYes, 0.50, 500, now), now))
	_, err := b.ClosePosition("e1", 0.44, now.Add(time.Hour))
	require.NoError(t, err)

	losses := b.Losses()
	// Lost 60 on a 940 bankroll.
	assert.InDelta(t, 60.0/940.0*100, losses.DailyLossPct, 1e-9)
	assert.Equal(t, losses.DailyLossPct, losses.WeeklyLossPct)
}

func TestBookRollover(t *testing.T) {
	b := NewBook("", 1000, time.UTC)
	now := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC) // Tuesday
	b.Rollover(now)                                      // align period starts to the test clock

	require.NoError(t, b.OpenPosition(testEntry("e1", "mkt-1", alpha.SideYes, 0.50, 100, now), now))
	_, err := b.ClosePosition("e1", 0.47, now.Add(30*time.Minute))
	require.NoError(t, err)
	require.NotZero(t, b.Losses().DailyLossPct)

	// Next day clears the daily counters but not the weekly ones.
	b.Rollover(now.Add(2 * time.Hour))
	assert.Zero(t, b.Losses().DailyLossPct)
	assert.NotZero(t, b.Losses().WeeklyLossPct)
	assert.Zero(t, b.DailyTrades())

	// The following Monday clears the weekly counters.
	b.Rollover(now.Add(6 * 24 * time.Hour))
	assert.Zero(t, b.Losses().WeeklyLossPct)
}

func TestBookPersistRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.json")
	now := time.Now()

	b := NewBook(path, 1000, time.UTC)
	require.NoError(t, b.Load())
	require.NoError(t, b.OpenPosition(testEntry("e1", "mkt-1", alpha.SideYes, 0.50, 120, now), now))

	reloaded := NewBook(path, 0, time.UTC)
	require.NoError(t, reloaded.Load())

	assert.Equal(t, 1000.0, reloaded.Bankroll())
	assert.Equal(t, 880.0, reloaded.AvailableBalance())
	require.Len(t, reloaded.Positions(), 1)
	assert.Equal(t, "mkt-1", reloaded.Positions()[0].MarketID)
	balanceInvariant(t, reloaded)
}

func TestBookPendingCloseRetained(t *testing.T) {
	b := NewBook("", 1000, time.UTC)
	now := time.Now()

	require.NoError(t, b.OpenPosition(testEntry("e1", "mkt-1", alpha.SideYes, 0.50, 100, now), now))
	b.SetPendingClose("e1", true)

	require.Len(t, b.Positions(), 1)
	assert.True(t, b.Positions()[0].PendingClose)
}
