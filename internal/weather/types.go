package weather

import "time"

// Snapshot is a single source's reading for one location at one time.
// Immutable once fetched.
type Snapshot struct {
	Location        string    `json:"location"`
	Source          string    `json:"source"`
	TemperatureC    float64   `json:"temperature_c"`
	PressureHPa     float64   `json:"pressure_hpa"`
	HumidityPct     float64   `json:"humidity_pct"`
	WindSpeedMS     float64   `json:"wind_speed_ms"`
	PrecipMM        float64   `json:"precip_mm"`
	RainProbability float64   `json:"rain_probability"` // [0,1]
	CloudCoverPct   float64   `json:"cloud_cover_pct"`
	FetchedAt       time.Time `json:"fetched_at"`
}

// EnsembleForecast aggregates multiple source snapshots for one location.
// Recomputed every scan cycle and not persisted beyond it.
type EnsembleForecast struct {
	Location        string    `json:"location"`
	Sources         int       `json:"sources"`
	MeanTempC       float64   `json:"mean_temp_c"`
	TempStdDev      float64   `json:"temp_std_dev"`
	MeanRainProb    float64   `json:"mean_rain_prob"`
	RainStdDev      float64   `json:"rain_std_dev"`
	MeanPressureHPa float64   `json:"mean_pressure_hpa"`
	PressureStdDev  float64   `json:"pressure_std_dev"`
	Divergence      float64   `json:"divergence"` // [0,1] source disagreement
	ComputedAt      time.Time `json:"computed_at"`
}

// PressurePoint is one historical pressure observation.
type PressurePoint struct {
	HPa float64   `json:"hpa"`
	At  time.Time `json:"at"`
}

// PressureAnomaly compares current pressure against recent history.
type PressureAnomaly struct {
	Location     string  `json:"location"`
	CurrentHPa   float64 `json:"current_hpa"`
	Mean24h      float64 `json:"mean_24h"`
	Mean7d       float64 `json:"mean_7d"`
	ZScore       float64 `json:"z_score"`
	HourlyChange float64 `json:"hourly_change"`
	Anomalous    bool    `json:"anomalous"`
}

// Anomaly is the normalized measure set the alpha engine consumes. Components
// are not hard-bounded to [0,1]; extreme weather can push any of them higher.
type Anomaly struct {
	Location             string  `json:"location"`
	ZScore               float64 `json:"z_score"`
	ForecastAcceleration float64 `json:"forecast_acceleration"`
	Divergence           float64 `json:"divergence"`
	PressureAnomaly      float64 `json:"pressure_anomaly"`
	ComputedFrom         int     `json:"computed_from"` // ensembles in the history window
}
