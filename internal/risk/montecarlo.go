package risk

import (
	"math/rand"
	"sort"
	"time"
)

// DefaultWinRate substitutes for the historical win rate until the
// portfolio has enough closed trades to be meaningful.
const DefaultWinRate = 0.45

// Rand is the randomness a Monte Carlo run draws from. Tests inject a
// seeded source; production uses a time-seeded one.
type Rand interface {
	Float64() float64
}

// MonteCarloConfig tunes the tail-risk simulation.
type MonteCarloConfig struct {
	Simulations     int     `yaml:"simulations"`
	TradesPerSim    int     `yaml:"trades_per_sim"`
	MaxDrawdownPct  float64 `yaml:"max_drawdown_pct"`
	ReductionFactor float64 `yaml:"reduction_factor"`
	JitterPct       float64 `yaml:"jitter_pct"`
}

func DefaultMonteCarloConfig() MonteCarloConfig {
	return MonteCarloConfig{
		Simulations:     1000,
		TradesPerSim:    20,
		MaxDrawdownPct:  25,
		ReductionFactor: 0.6,
		JitterPct:       0.20,
	}
}

// MonteCarloResult aggregates one guard run. Stochastic: repeated runs with
// different seeds move P95MaxDrawdownPct by a couple of points.
type MonteCarloResult struct {
	Simulations       int     `json:"simulations"`
	WinRate           float64 `json:"win_rate"`
	P95MaxDrawdownPct float64 `json:"p95_max_drawdown_pct"`
	MeanReturnPct     float64 `json:"mean_return_pct"`
	ShouldReduceSize  bool    `json:"should_reduce_size"`
	ReductionFactor   float64 `json:"reduction_factor"`
}

// MonteCarloGuard simulates short trade sequences at the strategy's win
// rate and take-profit/stop-loss magnitudes, then flags a size reduction
// when the simulated tail drawdown is too deep.
type MonteCarloGuard struct {
	cfg MonteCarloConfig
	rng Rand
}

// NewMonteCarloGuard creates a guard. A nil rng gets a time-seeded source;
// callers that need determinism pass their own.
func NewMonteCarloGuard(cfg MonteCarloConfig, rng Rand) *MonteCarloGuard {
	def := DefaultMonteCarloConfig()
	if cfg.Simulations <= 0 {
		cfg.Simulations = def.Simulations
	}
	if cfg.TradesPerSim <= 0 {
		cfg.TradesPerSim = def.TradesPerSim
	}
	if cfg.MaxDrawdownPct <= 0 {
		cfg.MaxDrawdownPct = def.MaxDrawdownPct
	}
	if cfg.ReductionFactor <= 0 {
		cfg.ReductionFactor = def.ReductionFactor
	}
	if cfg.JitterPct <= 0 {
		cfg.JitterPct = def.JitterPct
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &MonteCarloGuard{cfg: cfg, rng: rng}
}

// Run simulates TradesPerSim-trade sequences. Each trade is a weighted coin
// flip at winRate; win and loss magnitudes are tpPct/slPct with a uniform
// jitter of ±JitterPct applied.
func (g *MonteCarloGuard) Run(winRate, tpPct, slPct float64) MonteCarloResult {
	if winRate <= 0 || winRate >= 1 {
		winRate = DefaultWinRate
	}

	drawdowns := make([]float64, 0, g.cfg.Simulations)
	totalReturn := 0.0
	for i := 0; i < g.cfg.Simulations; i++ {
		balance, peak, maxDD := 1.0, 1.0, 0.0
		for t := 0; t < g.cfg.TradesPerSim; t++ {
			jitter := 1 + g.cfg.JitterPct*(2*g.rng.Float64()-1)
			if g.rng.Float64() < winRate {
				balance *= 1 + (tpPct/100)*jitter
			} else {
				balance *= 1 - (slPct/100)*jitter
			}
			if balance > peak {
				peak = balance
			}
			if dd := (peak - balance) / peak; dd > maxDD {
				maxDD = dd
			}
		}
		drawdowns = append(drawdowns, maxDD*100)
		totalReturn += (balance - 1) * 100
	}

	sort.Float64s(drawdowns)
	result := MonteCarloResult{
		Simulations:       g.cfg.Simulations,
		WinRate:           winRate,
		P95MaxDrawdownPct: percentileOf(drawdowns, 95),
		MeanReturnPct:     totalReturn / float64(g.cfg.Simulations),
		ReductionFactor:   1.0,
	}
	if result.P95MaxDrawdownPct > g.cfg.MaxDrawdownPct {
		result.ShouldReduceSize = true
		result.ReductionFactor = g.cfg.ReductionFactor
	}
	return result
}

// percentileOf expects sorted input.
func percentileOf(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p / 100)
	return sorted[idx]
}
