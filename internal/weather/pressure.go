package weather

import (
	"math"
	"time"
)

// Pressure z-scores at or beyond this magnitude flag an anomaly. Roughly
// two standard deviations against the trailing week.
const pressureAnomalyZ = 2.0

// AnalyzePressure compares the current reading against 24h and 7d history.
// It is a pure function; callers own the history window and its retention.
func AnalyzePressure(location string, currentHPa float64, history []PressurePoint, now time.Time) PressureAnomaly {
	pa := PressureAnomaly{
		Location:   location,
		CurrentHPa: currentHPa,
	}

	var day, week []float64
	dayCutoff := now.Add(-24 * time.Hour)
	weekCutoff := now.Add(-7 * 24 * time.Hour)
	for _, p := range history {
		if p.At.Before(weekCutoff) {
			continue
		}
		week = append(week, p.HPa)
		if !p.At.Before(dayCutoff) {
			day = append(day, p.HPa)
		}
	}

	if len(week) == 0 {
		// Cold start: nothing to compare against, report neutral.
		pa.Mean24h = currentHPa
		pa.Mean7d = currentHPa
		return pa
	}

	pa.Mean7d, _ = meanStdDev(week)
	if len(day) > 0 {
		pa.Mean24h, _ = meanStdDev(day)
	} else {
		pa.Mean24h = pa.Mean7d
	}

	_, weekStd := meanStdDev(week)
	if weekStd > 0 {
		pa.ZScore = (currentHPa - pa.Mean7d) / weekStd
	}

	pa.HourlyChange = hourlyChange(currentHPa, history, now)
	pa.Anomalous = math.Abs(pa.ZScore) >= pressureAnomalyZ

	return pa
}

// hourlyChange estimates hPa/hour from the most recent observation at least
// 30 minutes old, so sub-minute sampling noise does not dominate the rate.
func hourlyChange(currentHPa float64, history []PressurePoint, now time.Time) float64 {
	var ref *PressurePoint
	for i := range history {
		p := history[i]
		age := now.Sub(p.At)
		if age < 30*time.Minute || age > 3*time.Hour {
			continue
		}
		if ref == nil || p.At.After(ref.At) {
			ref = &history[i]
		}
	}
	if ref == nil {
		return 0
	}
	hours := now.Sub(ref.At).Hours()
	if hours <= 0 {
		return 0
	}
	return (currentHPa - ref.HPa) / hours
}
