package alpha

import "github.com/stormsniper/engine/internal/weather"

// ShockWeights blends the four anomaly components into one composite.
// Weights should sum to roughly 1 but are not renormalized; operators who
// overweight a component on purpose get exactly what they configured.
type ShockWeights struct {
	ZScore       float64 `yaml:"z_score"`
	Acceleration float64 `yaml:"acceleration"`
	Divergence   float64 `yaml:"divergence"`
	Pressure     float64 `yaml:"pressure"`
}

func DefaultShockWeights() ShockWeights {
	return ShockWeights{
		ZScore:       0.4,
		Acceleration: 0.3,
		Divergence:   0.2,
		Pressure:     0.1,
	}
}

// ShockScore is the composite weather-alpha signal for one location.
// Components are not hard-bounded to [0,1], so extreme anomalies can push
// the composite above 1.
type ShockScore struct {
	Location     string  `json:"location"`
	Composite    float64 `json:"composite"`
	ZScore       float64 `json:"z_score"`
	Acceleration float64 `json:"acceleration"`
	Divergence   float64 `json:"divergence"`
	Pressure     float64 `json:"pressure"`
	Threshold    float64 `json:"threshold"`
	Triggered    bool    `json:"triggered"`
}

// ComputeShock folds a location anomaly into a ShockScore.
func ComputeShock(anom weather.Anomaly, w ShockWeights, threshold float64) ShockScore {
	s := ShockScore{
		Location:     anom.Location,
		ZScore:       anom.ZScore,
		Acceleration: anom.ForecastAcceleration,
		Divergence:   anom.Divergence,
		Pressure:     anom.PressureAnomaly,
		Threshold:    threshold,
	}
	s.Composite = w.ZScore*anom.ZScore +
		w.Acceleration*anom.ForecastAcceleration +
		w.Divergence*anom.Divergence +
		w.Pressure*anom.PressureAnomaly
	s.Triggered = s.Composite >= threshold
	return s
}
