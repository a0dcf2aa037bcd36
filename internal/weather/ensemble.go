package weather

import (
	"fmt"
	"math"
	"time"
)

// Disagreement scales used to fold per-variable spread into one [0,1]
// divergence score. A spread at or above the scale counts as full
// disagreement for that variable.
const (
	tempDivergenceScaleC     = 3.0
	rainDivergenceScale      = 0.25
	pressureDivergenceScaleH = 8.0
)

// BuildEnsemble folds one snapshot per source into an EnsembleForecast.
// All snapshots must belong to the same location.
func BuildEnsemble(location string, snaps []Snapshot, now time.Time) (EnsembleForecast, error) {
	if len(snaps) == 0 {
		return EnsembleForecast{}, fmt.Errorf("build ensemble for %s: no source snapshots", location)
	}

	temps := make([]float64, 0, len(snaps))
	rains := make([]float64, 0, len(snaps))
	pressures := make([]float64, 0, len(snaps))
	for _, s := range snaps {
		temps = append(temps, s.TemperatureC)
		rains = append(rains, s.RainProbability)
		pressures = append(pressures, s.PressureHPa)
	}

	ens := EnsembleForecast{
		Location:   location,
		Sources:    len(snaps),
		ComputedAt: now,
	}
	ens.MeanTempC, ens.TempStdDev = meanStdDev(temps)
	ens.MeanRainProb, ens.RainStdDev = meanStdDev(rains)
	ens.MeanPressureHPa, ens.PressureStdDev = meanStdDev(pressures)
	ens.Divergence = divergence(ens.TempStdDev, ens.RainStdDev, ens.PressureStdDev)

	return ens, nil
}

// divergence blends per-variable spreads into a single 0-1 disagreement score.
// Single-source ensembles have zero spread and score 0.
func divergence(tempStd, rainStd, pressureStd float64) float64 {
	score := (clamp01(tempStd/tempDivergenceScaleC) +
		clamp01(rainStd/rainDivergenceScale) +
		clamp01(pressureStd/pressureDivergenceScaleH)) / 3.0
	return clamp01(score)
}

func meanStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if len(values) < 2 {
		return mean, 0
	}
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values) - 1)
	return mean, math.Sqrt(variance)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
