package execution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormsniper/engine/internal/alpha"
	"github.com/stormsniper/engine/internal/risk"
)

func buildParams(side alpha.Side, price float64, scaler float64) BuildParams {
	return BuildParams{
		MarketID:     "mkt-1",
		Title:        "Will it rain in Miami on Friday?",
		Side:         side,
		InstrumentID: "inst-1",
		Price:        price,
		Size:         150,
		Volatility:   risk.VolatilityState{Scaler: scaler},
	}
}

func TestBuildEntryCalmMarketWidestTarget(t *testing.T) {
	now := time.Now()
	e := BuildEntry(buildParams(alpha.SideYes, 0.50, 1.0), DefaultEntryConfig(), now)

	require.NotEmpty(t, e.ID)
	assert.Equal(t, 9.0, e.TakeProfitPct)
	assert.InDelta(t, 0.545, e.TakeProfitPrice, 1e-9)
	assert.InDelta(t, 0.485, e.StopLossPrice, 1e-9)
	assert.Equal(t, 4*time.Hour, e.MaxHold)
	assert.Equal(t, now, e.CreatedAt)
}

func TestBuildEntryHotMarketTightestTarget(t *testing.T) {
	e := BuildEntry(buildParams(alpha.SideYes, 0.50, 0.5), DefaultEntryConfig(), time.Now())

	assert.Equal(t, 6.0, e.TakeProfitPct)
	assert.InDelta(t, 0.53, e.TakeProfitPrice, 1e-9)
}

func TestBuildEntryMidScalerInterpolates(t *testing.T) {
	e := BuildEntry(buildParams(alpha.SideYes, 0.50, 0.75), DefaultEntryConfig(), time.Now())
	assert.InDelta(t, 7.5, e.TakeProfitPct, 1e-9)
}

func TestBuildEntryNoSideInvertsTargets(t *testing.T) {
	e := BuildEntry(buildParams(alpha.SideNo, 0.50, 1.0), DefaultEntryConfig(), time.Now())

	// A NO position profits as the YES price falls.
	assert.InDelta(t, 0.455, e.TakeProfitPrice, 1e-9)
	assert.InDelta(t, 0.515, e.StopLossPrice, 1e-9)
	assert.Less(t, e.TakeProfitPrice, e.Price)
	assert.Greater(t, e.StopLossPrice, e.Price)
}

func TestBuildEntryClampsToValidRange(t *testing.T) {
	high := BuildEntry(buildParams(alpha.SideYes, 0.97, 1.0), DefaultEntryConfig(), time.Now())
	assert.Equal(t, 0.99, high.TakeProfitPrice)

	// 0.0105 * (1 - 9%) = 0.009555, below the floor.
	low := BuildEntry(buildParams(alpha.SideNo, 0.0105, 1.0), DefaultEntryConfig(), time.Now())
	assert.Equal(t, 0.01, low.TakeProfitPrice)
}
