package adapters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormsniper/engine/internal/weather"
)

type stubSource struct {
	name string
	snap weather.Snapshot
	err  error
}

func (s stubSource) Name() string { return s.name }

func (s stubSource) Fetch(ctx context.Context, loc Location) (weather.Snapshot, error) {
	if s.err != nil {
		return weather.Snapshot{}, s.err
	}
	snap := s.snap
	snap.Location = loc.Name
	snap.Source = s.name
	return snap, nil
}

var miami = Location{Name: "miami", Lat: 25.76, Lon: -80.19}

func TestFetchEnsembleToleratesPartialFailure(t *testing.T) {
	good := stubSource{name: "a", snap: weather.Snapshot{
		TemperatureC: 28, PressureHPa: 1008, RainProbability: 0.7,
	}}
	bad := stubSource{name: "b", err: NewUpstreamError("b", "miami", "status 503", nil)}

	m := NewMultiSourceWeather(WeatherConfig{}, good, bad)
	ens, err := m.FetchEnsemble(context.Background(), miami)
	require.NoError(t, err)

	assert.Equal(t, 1, ens.Sources)
	assert.Equal(t, 28.0, ens.MeanTempC)
	assert.Equal(t, 0.7, ens.MeanRainProb)
}

func TestFetchEnsembleAllSourcesFailed(t *testing.T) {
	bad1 := stubSource{name: "a", err: NewNetworkError("a", "miami", "dial", nil)}
	bad2 := stubSource{name: "b", err: NewUpstreamError("b", "miami", "status 500", nil)}

	m := NewMultiSourceWeather(WeatherConfig{}, bad1, bad2)
	_, err := m.FetchEnsemble(context.Background(), miami)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 sources failed")
}

func TestFetchEnsembleAveragesSources(t *testing.T) {
	a := stubSource{name: "a", snap: weather.Snapshot{TemperatureC: 20, PressureHPa: 1010, RainProbability: 0.4}}
	b := stubSource{name: "b", snap: weather.Snapshot{TemperatureC: 22, PressureHPa: 1014, RainProbability: 0.6}}

	m := NewMultiSourceWeather(WeatherConfig{}, a, b)
	ens, err := m.FetchEnsemble(context.Background(), miami)
	require.NoError(t, err)

	assert.Equal(t, 2, ens.Sources)
	assert.InDelta(t, 21.0, ens.MeanTempC, 1e-9)
	assert.InDelta(t, 1012.0, ens.MeanPressureHPa, 1e-9)
	assert.InDelta(t, 0.5, ens.MeanRainProb, 1e-9)
}

func TestPressureAnomalyUsesRecordedHistory(t *testing.T) {
	src := stubSource{name: "a", snap: weather.Snapshot{TemperatureC: 25, PressureHPa: 1013, RainProbability: 0.2}}
	m := NewMultiSourceWeather(WeatherConfig{}, src)

	// No history yet: the anomaly comes back neutral.
	anom, err := m.PressureAnomaly(context.Background(), miami, 1000)
	require.NoError(t, err)
	assert.False(t, anom.Anomalous)
	assert.Equal(t, 0.0, anom.ZScore)
	assert.Equal(t, 1000.0, anom.Mean7d)

	_, err = m.FetchEnsemble(context.Background(), miami)
	require.NoError(t, err)

	anom, err = m.PressureAnomaly(context.Background(), miami, 1000)
	require.NoError(t, err)
	assert.Equal(t, "miami", anom.Location)
	assert.Equal(t, 1013.0, anom.Mean7d)
}

func TestPressureHistoryBounded(t *testing.T) {
	src := stubSource{name: "a", snap: weather.Snapshot{PressureHPa: 1013}}
	m := NewMultiSourceWeather(WeatherConfig{PressureHistoryMax: 3}, src)

	for i := 0; i < 5; i++ {
		_, err := m.FetchEnsemble(context.Background(), miami)
		require.NoError(t, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Len(t, m.pressure["miami"], 3)
}
