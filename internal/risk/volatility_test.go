package risk

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stormsniper/engine/internal/timeseries"
)

func fillPrices(store *timeseries.Store, marketID string, now time.Time, hours int, price func(i int) float64) {
	// One sample every 10 minutes, oldest first.
	n := hours * 6
	for i := 0; i < n; i++ {
		at := now.Add(-time.Duration(n-i) * 10 * time.Minute)
		store.Append(marketID, price(i), at)
	}
}

func TestVolatilityScalerNeutralOnThinHistory(t *testing.T) {
	store := timeseries.NewStore(0)
	now := time.Now()
	store.Append("mkt", 0.5, now.Add(-time.Minute))

	state := NewVolatilityScaler(store, VolatilityConfig{}).Compute("mkt", now)

	assert.True(t, state.Neutral)
	assert.Equal(t, 1.0, state.Scaler)
	assert.Equal(t, 1.0, state.Ratio)
}

func TestVolatilityScalerCalmMarketFullSize(t *testing.T) {
	store := timeseries.NewStore(0)
	now := time.Now()
	// Steady oscillation: short window looks like the long window, ratio ~1,
	// scaler = 1.5 - 0.5 = 1.0.
	fillPrices(store, "mkt", now, 10, func(i int) float64 {
		return 0.50 + 0.005*math.Sin(float64(i))
	})

	state := NewVolatilityScaler(store, VolatilityConfig{}).Compute("mkt", now)

	assert.False(t, state.Neutral)
	assert.InDelta(t, 1.0, state.Ratio, 0.25)
	assert.InDelta(t, 1.0, state.Scaler, 0.15)
}

func TestVolatilityScalerHotMarketShrinks(t *testing.T) {
	store := timeseries.NewStore(0)
	now := time.Now()
	// Quiet for 9 hours, then violent swings in the last hour.
	fillPrices(store, "mkt", now, 10, func(i int) float64 {
		if i < 9*6 {
			return 0.50 + 0.001*math.Sin(float64(i))
		}
		if i%2 == 0 {
			return 0.60
		}
		return 0.40
	})

	state := NewVolatilityScaler(store, VolatilityConfig{}).Compute("mkt", now)

	assert.False(t, state.Neutral)
	assert.Greater(t, state.Ratio, 1.0)
	assert.Less(t, state.Scaler, 1.0)
	assert.GreaterOrEqual(t, state.Scaler, 0.5)
}

func TestVolatilityScalerBounds(t *testing.T) {
	store := timeseries.NewStore(0)
	now := time.Now()
	// Pathological swings: the clamp holds the floor at 0.5.
	fillPrices(store, "mkt", now, 10, func(i int) float64 {
		if i%2 == 0 {
			return 0.90
		}
		return 0.10
	})

	state := NewVolatilityScaler(store, VolatilityConfig{}).Compute("mkt", now)

	assert.GreaterOrEqual(t, state.Scaler, 0.5)
	assert.LessOrEqual(t, state.Scaler, 1.0)
}
