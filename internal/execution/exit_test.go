package execution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stormsniper/engine/internal/alpha"
	"github.com/stormsniper/engine/internal/timeseries"
)

func openPosition(side alpha.Side, openedAt time.Time) PositionView {
	pos := PositionView{
		MarketID:   "mkt-1",
		Side:       side,
		EntryPrice: 0.50,
		MaxHold:    4 * time.Hour,
		OpenedAt:   openedAt,
	}
	if side == alpha.SideNo {
		pos.TakeProfitPrice = 0.455
		pos.StopLossPrice = 0.515
	} else {
		pos.TakeProfitPrice = 0.545
		pos.StopLossPrice = 0.485
	}
	return pos
}

func TestEvaluateFreshPositionHolds(t *testing.T) {
	now := time.Now()
	ev := NewExitEvaluator(timeseries.NewStore(0), DefaultExitConfig())

	sig := ev.Evaluate(openPosition(alpha.SideYes, now.Add(-10*time.Minute)), 0.505, now)

	assert.False(t, sig.ShouldExit)
	assert.Equal(t, TriggerHolding, sig.Trigger)
	assert.InDelta(t, 1.0, sig.PnLPct, 1e-9)
	assert.Equal(t, 10*time.Minute, sig.HeldFor)
	assert.Contains(t, sig.Reason, "Holding")
}

func TestEvaluateTakeProfit(t *testing.T) {
	now := time.Now()
	ev := NewExitEvaluator(timeseries.NewStore(0), DefaultExitConfig())

	sig := ev.Evaluate(openPosition(alpha.SideYes, now.Add(-time.Hour)), 0.55, now)

	assert.True(t, sig.ShouldExit)
	assert.Equal(t, TriggerTakeProfit, sig.Trigger)
}

func TestEvaluateStopLoss(t *testing.T) {
	now := time.Now()
	ev := NewExitEvaluator(timeseries.NewStore(0), DefaultExitConfig())

	sig := ev.Evaluate(openPosition(alpha.SideYes, now.Add(-time.Hour)), 0.48, now)

	assert.True(t, sig.ShouldExit)
	assert.Equal(t, TriggerStopLoss, sig.Trigger)
	assert.Less(t, sig.PnLPct, 0.0)
}

func TestEvaluateNoSideStopLoss(t *testing.T) {
	// A NO position stops out when the YES price rises.
	now := time.Now()
	ev := NewExitEvaluator(timeseries.NewStore(0), DefaultExitConfig())

	sig := ev.Evaluate(openPosition(alpha.SideNo, now.Add(-time.Hour)), 0.52, now)

	assert.True(t, sig.ShouldExit)
	assert.Equal(t, TriggerStopLoss, sig.Trigger)
}

func TestEvaluateMomentumReversal(t *testing.T) {
	now := time.Now()
	store := timeseries.NewStore(0)
	opened := now.Add(-time.Hour)
	// Ran up to +4% then faded back to +1.2%: gave back more than half.
	store.Append("mkt-1", 0.51, opened.Add(10*time.Minute))
	store.Append("mkt-1", 0.52, opened.Add(20*time.Minute))
	store.Append("mkt-1", 0.515, opened.Add(40*time.Minute))

	ev := NewExitEvaluator(store, DefaultExitConfig())
	sig := ev.Evaluate(openPosition(alpha.SideYes, opened), 0.506, now)

	assert.True(t, sig.ShouldExit)
	assert.Equal(t, TriggerMomentumReversal, sig.Trigger)
	assert.InDelta(t, 4.0, sig.PeakPnLPct, 1e-9)
}

func TestEvaluateTakeProfitBeatsMomentumReversal(t *testing.T) {
	// Price spiked through TP, faded, then recovered through TP again.
	// Take-profit outranks the reversal rule.
	now := time.Now()
	store := timeseries.NewStore(0)
	opened := now.Add(-time.Hour)
	store.Append("mkt-1", 0.56, opened.Add(10*time.Minute))
	store.Append("mkt-1", 0.51, opened.Add(30*time.Minute))

	ev := NewExitEvaluator(store, DefaultExitConfig())
	sig := ev.Evaluate(openPosition(alpha.SideYes, opened), 0.55, now)

	assert.True(t, sig.ShouldExit)
	assert.Equal(t, TriggerTakeProfit, sig.Trigger)
}

func TestEvaluateTimeDecay(t *testing.T) {
	now := time.Now()
	ev := NewExitEvaluator(timeseries.NewStore(0), DefaultExitConfig())

	sig := ev.Evaluate(openPosition(alpha.SideYes, now.Add(-5*time.Hour)), 0.505, now)

	assert.True(t, sig.ShouldExit)
	assert.Equal(t, TriggerTimeDecay, sig.Trigger)
}

func TestEvaluateSmallGainNoReversalExit(t *testing.T) {
	// Peak gain under the 2% threshold never trips the reversal rule.
	now := time.Now()
	store := timeseries.NewStore(0)
	opened := now.Add(-time.Hour)
	store.Append("mkt-1", 0.508, opened.Add(10*time.Minute))

	ev := NewExitEvaluator(store, DefaultExitConfig())
	sig := ev.Evaluate(openPosition(alpha.SideYes, opened), 0.501, now)

	assert.False(t, sig.ShouldExit)
	assert.Equal(t, TriggerHolding, sig.Trigger)
}
