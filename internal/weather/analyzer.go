package weather

import (
	"math"
	"sync"
)

// AnalyzerConfig tunes how ensemble history is turned into anomaly measures.
type AnalyzerConfig struct {
	// MaxEnsembles bounds per-location ensemble history.
	MaxEnsembles int
	// MinHistory is the minimum number of past ensembles required before a
	// temperature z-score is reported; below it the z contribution is neutral.
	MinHistory int
	// AccelScaleProbPerHour is the rain-probability rate of change that maps
	// to a forecast acceleration of 1.0.
	AccelScaleProbPerHour float64
	// PressureZScale is the pressure z-score magnitude that maps to a
	// pressure anomaly contribution of 1.0.
	PressureZScale float64
}

// DefaultAnalyzerConfig returns the tuning used in production scans.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		MaxEnsembles:          96, // ~24h of 15-minute cycles
		MinHistory:            5,
		AccelScaleProbPerHour: 0.30,
		PressureZScale:        3.0,
	}
}

// Analyzer turns per-cycle ensemble forecasts into normalized anomaly
// measures. It keeps a rolling per-location history so z-scores and forecast
// acceleration compare the current cycle against the recent past. A missing
// or thin history degrades the affected component to a neutral zero instead
// of failing the scan.
type Analyzer struct {
	mu      sync.Mutex
	cfg     AnalyzerConfig
	history map[string][]EnsembleForecast
}

// NewAnalyzer creates an Analyzer. Zero-valued config fields fall back to
// the defaults.
func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	def := DefaultAnalyzerConfig()
	if cfg.MaxEnsembles <= 0 {
		cfg.MaxEnsembles = def.MaxEnsembles
	}
	if cfg.MinHistory <= 0 {
		cfg.MinHistory = def.MinHistory
	}
	if cfg.AccelScaleProbPerHour <= 0 {
		cfg.AccelScaleProbPerHour = def.AccelScaleProbPerHour
	}
	if cfg.PressureZScale <= 0 {
		cfg.PressureZScale = def.PressureZScale
	}
	return &Analyzer{
		cfg:     cfg,
		history: make(map[string][]EnsembleForecast),
	}
}

// Analyze computes the anomaly set for the given cycle's ensemble and
// pressure reading, then records the ensemble into the rolling history.
func (a *Analyzer) Analyze(ens EnsembleForecast, pa PressureAnomaly) Anomaly {
	a.mu.Lock()
	defer a.mu.Unlock()

	past := a.history[ens.Location]

	anomaly := Anomaly{
		Location:     ens.Location,
		Divergence:   ens.Divergence,
		ComputedFrom: len(past),
	}

	anomaly.ZScore = a.temperatureZ(ens, past)
	anomaly.ForecastAcceleration = a.acceleration(ens, past)
	anomaly.PressureAnomaly = a.pressureComponent(pa)

	a.record(ens)
	return anomaly
}

// temperatureZ scores the current ensemble mean temperature against the
// rolling history of mean temperatures for the location.
func (a *Analyzer) temperatureZ(ens EnsembleForecast, past []EnsembleForecast) float64 {
	if len(past) < a.cfg.MinHistory {
		return 0
	}
	temps := make([]float64, 0, len(past))
	for _, p := range past {
		temps = append(temps, p.MeanTempC)
	}
	mean, std := meanStdDev(temps)
	if std == 0 {
		return 0
	}
	return math.Abs(ens.MeanTempC-mean) / std
}

// acceleration measures how fast the ensemble rain probability is moving,
// normalized so AccelScaleProbPerHour maps to 1.0.
func (a *Analyzer) acceleration(ens EnsembleForecast, past []EnsembleForecast) float64 {
	if len(past) == 0 {
		return 0
	}
	prev := past[len(past)-1]
	hours := ens.ComputedAt.Sub(prev.ComputedAt).Hours()
	if hours <= 0 {
		return 0
	}
	rate := math.Abs(ens.MeanRainProb-prev.MeanRainProb) / hours
	return rate / a.cfg.AccelScaleProbPerHour
}

func (a *Analyzer) pressureComponent(pa PressureAnomaly) float64 {
	return math.Abs(pa.ZScore) / a.cfg.PressureZScale
}

func (a *Analyzer) record(ens EnsembleForecast) {
	history := append(a.history[ens.Location], ens)
	if len(history) > a.cfg.MaxEnsembles {
		history = history[len(history)-a.cfg.MaxEnsembles:]
	}
	a.history[ens.Location] = history
}

// History returns a copy of the stored ensembles for a location, used by
// status reporting and tests.
func (a *Analyzer) History(location string) []EnsembleForecast {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]EnsembleForecast, len(a.history[location]))
	copy(out, a.history[location])
	return out
}

// PreviousRainProb returns the last recorded ensemble rain probability for a
// location, used by the market-lag calculation. ok is false on cold start.
func (a *Analyzer) PreviousRainProb(location string) (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	past := a.history[location]
	if len(past) == 0 {
		return 0, false
	}
	return past[len(past)-1].MeanRainProb, true
}
