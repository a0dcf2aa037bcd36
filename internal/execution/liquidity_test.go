package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stormsniper/engine/internal/adapters"
)

func deepBook() adapters.OrderBook {
	return adapters.OrderBook{
		InstrumentID: "inst-1",
		Bids: []adapters.Level{
			{Price: 0.49, Size: 4000},
			{Price: 0.48, Size: 3000},
		},
		Asks: []adapters.Level{
			{Price: 0.50, Size: 4000},
			{Price: 0.51, Size: 3000},
		},
	}
}

func TestScoreLiquidityDeepBook(t *testing.T) {
	r := ScoreLiquidity(deepBook(), 100)

	assert.InDelta(t, 0.01, r.Spread, 1e-9)
	assert.InDelta(t, 0.8, r.SpreadScore, 1e-9)
	assert.Equal(t, 1.0, r.DepthScore)
	assert.Equal(t, 1.0, r.SizeScore)
	assert.InDelta(t, 0.92, r.Quality, 1e-9)
	assert.True(t, r.Sufficient)
	assert.False(t, r.Degraded)
}

func TestScoreLiquidityWideSpreadThinBook(t *testing.T) {
	book := adapters.OrderBook{
		InstrumentID: "inst-2",
		Bids:         []adapters.Level{{Price: 0.40, Size: 100}},
		Asks:         []adapters.Level{{Price: 0.52, Size: 100}},
	}

	r := ScoreLiquidity(book, 500)

	// Spread 0.12 blows past the band, score floors at 0.
	assert.Zero(t, r.SpreadScore)
	assert.InDelta(t, 92.0, r.TotalDepth, 1e-9)
	assert.False(t, r.Sufficient)
}

func TestScoreLiquidityDepthGateIndependentOfQuality(t *testing.T) {
	// Tight spread and decent scores, but depth under 3x the intended size.
	book := adapters.OrderBook{
		InstrumentID: "inst-3",
		Bids:         []adapters.Level{{Price: 0.49, Size: 1000}},
		Asks:         []adapters.Level{{Price: 0.50, Size: 1000}},
	}

	r := ScoreLiquidity(book, 400)

	assert.Greater(t, r.Quality, 0.4)
	assert.False(t, r.Sufficient, "depth %.0f cannot absorb 3x%.0f", r.TotalDepth, r.IntendedSize)
}

func TestScoreLiquidityEmptyBook(t *testing.T) {
	r := ScoreLiquidity(adapters.OrderBook{InstrumentID: "inst-4"}, 100)

	assert.Zero(t, r.Quality)
	assert.False(t, r.Sufficient)
}

func TestNeutralLiquidity(t *testing.T) {
	r := NeutralLiquidity("inst-5", 100)

	assert.Equal(t, 0.5, r.Quality)
	assert.True(t, r.Sufficient)
	assert.True(t, r.Degraded)
}
