package risk

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func seededGuard(seed int64) *MonteCarloGuard {
	return NewMonteCarloGuard(MonteCarloConfig{}, rand.New(rand.NewSource(seed)))
}

func TestMonteCarloHighWinRatePassesGuard(t *testing.T) {
	result := seededGuard(1).Run(0.90, 8, 3)

	assert.False(t, result.ShouldReduceSize)
	assert.Equal(t, 1.0, result.ReductionFactor)
	assert.Less(t, result.P95MaxDrawdownPct, 25.0)
	assert.Greater(t, result.MeanReturnPct, 0.0)
}

func TestMonteCarloLowWinRateTriggersReduction(t *testing.T) {
	// 10% winners with a 3x TP/SL ratio still bleeds; the p95 drawdown over
	// a 20-trade run blows through any sane limit.
	result := seededGuard(1).Run(0.10, 8, 3)

	assert.True(t, result.ShouldReduceSize)
	assert.Equal(t, 0.6, result.ReductionFactor)
	assert.Greater(t, result.P95MaxDrawdownPct, 25.0)
	assert.Less(t, result.MeanReturnPct, 0.0)
}

func TestMonteCarloSeedStability(t *testing.T) {
	// Stochastic result: different seeds should land within a few points of
	// each other at 1000 simulations.
	base := seededGuard(1).Run(0.45, 8, 3)
	for _, seed := range []int64{2, 3, 4, 5} {
		r := seededGuard(seed).Run(0.45, 8, 3)
		assert.InDelta(t, base.P95MaxDrawdownPct, r.P95MaxDrawdownPct, 3.0, "seed %d", seed)
	}
}

func TestMonteCarloInvalidWinRateFallsBack(t *testing.T) {
	result := seededGuard(1).Run(0, 8, 3)
	assert.Equal(t, DefaultWinRate, result.WinRate)

	result = seededGuard(1).Run(1.5, 8, 3)
	assert.Equal(t, DefaultWinRate, result.WinRate)
}

func TestMonteCarloConfigDefaults(t *testing.T) {
	g := NewMonteCarloGuard(MonteCarloConfig{}, rand.New(rand.NewSource(7)))
	result := g.Run(0.45, 8, 3)

	assert.Equal(t, 1000, result.Simulations)
	assert.GreaterOrEqual(t, result.P95MaxDrawdownPct, 0.0)
	assert.LessOrEqual(t, result.P95MaxDrawdownPct, 100.0)
}
