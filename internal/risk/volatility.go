package risk

import (
	"math"
	"time"

	"github.com/stormsniper/engine/internal/timeseries"
)

// VolatilityConfig tunes the short/long window comparison.
type VolatilityConfig struct {
	ShortWindow time.Duration `yaml:"short_window"`
	LongWindow  time.Duration `yaml:"long_window"`
	MinSamples  int           `yaml:"min_samples"`
}

func DefaultVolatilityConfig() VolatilityConfig {
	return VolatilityConfig{
		ShortWindow: time.Hour,
		LongWindow:  10 * time.Hour,
		MinSamples:  5,
	}
}

// VolatilityState is one market's volatility reading: log-return stdev over
// the short and long windows, their ratio, and the resulting size scaler.
type VolatilityState struct {
	MarketID string  `json:"market_id"`
	ShortVol float64 `json:"short_vol"`
	LongVol  float64 `json:"long_vol"`
	Ratio    float64 `json:"ratio"`
	Scaler   float64 `json:"scaler"` // [0.5, 1.0]
	Samples  int     `json:"samples"`
	Neutral  bool    `json:"neutral"` // true when history was too thin to measure
}

// VolatilityScaler reads recent price history and shrinks position size when
// short-term volatility runs hot relative to the longer baseline.
type VolatilityScaler struct {
	store *timeseries.Store
	cfg   VolatilityConfig
}

func NewVolatilityScaler(store *timeseries.Store, cfg VolatilityConfig) *VolatilityScaler {
	def := DefaultVolatilityConfig()
	if cfg.ShortWindow <= 0 {
		cfg.ShortWindow = def.ShortWindow
	}
	if cfg.LongWindow <= 0 {
		cfg.LongWindow = def.LongWindow
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = def.MinSamples
	}
	return &VolatilityScaler{store: store, cfg: cfg}
}

// Compute returns the volatility state for a market. Thin history is a
// neutral scaler of 1.0, never an error; a cold market should trade at full
// size, not be blocked.
func (v *VolatilityScaler) Compute(marketID string, now time.Time) VolatilityState {
	state := VolatilityState{
		MarketID: marketID,
		Ratio:    1.0,
		Scaler:   1.0,
		Neutral:  true,
	}

	long := v.store.Recent(marketID, v.cfg.LongWindow, now)
	state.Samples = len(long)
	if len(long) < v.cfg.MinSamples {
		return state
	}

	short := v.store.Recent(marketID, v.cfg.ShortWindow, now)
	shortVol := logReturnStdDev(short)
	longVol := logReturnStdDev(long)
	state.ShortVol = shortVol
	state.LongVol = longVol
	if longVol == 0 || len(short) < 2 {
		return state
	}

	state.Neutral = false
	state.Ratio = shortVol / longVol
	state.Scaler = clamp(1.5-0.5*state.Ratio, 0.5, 1.0)
	return state
}

func logReturnStdDev(samples []timeseries.Sample) float64 {
	if len(samples) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(samples)-1)
	for i := 1; i < len(samples); i++ {
		prev, cur := samples[i-1].Price, samples[i].Price
		if prev <= 0 || cur <= 0 {
			continue
		}
		returns = append(returns, math.Log(cur/prev))
	}
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns) - 1)
	return math.Sqrt(variance)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
