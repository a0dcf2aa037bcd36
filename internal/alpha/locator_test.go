package alpha

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormsniper/engine/internal/weather"
)

func TestKeywordMapperMap(t *testing.T) {
	m := NewKeywordMapper([]string{"Miami", "New York"})

	tests := []struct {
		question string
		wantLoc  string
		wantKind QuestionKind
		wantOK   bool
	}{
		{"Will it rain in Miami on Friday?", "miami", KindRain, true},
		{"Heavy precipitation in New York this weekend?", "new york", KindRain, true},
		{"Will a snowstorm hit New York before March?", "new york", KindStorm, true},
		{"Hurricane landfall near Miami this season?", "miami", KindStorm, true},
		{"Will Miami reach 90 degrees on Saturday?", "miami", KindTemperature, true},
		{"Will it rain in Seattle?", "", KindUnknown, false},
		{"Will Miami host the Super Bowl?", "", KindUnknown, false},
	}
	for _, tc := range tests {
		t.Run(tc.question, func(t *testing.T) {
			mq, ok := m.Map(tc.question)
			require.Equal(t, tc.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tc.wantLoc, mq.Location)
			assert.Equal(t, tc.wantKind, mq.Kind)
		})
	}
}

func TestKeywordMapperTemperatureThreshold(t *testing.T) {
	m := NewKeywordMapper([]string{"miami"})

	mq, ok := m.Map("Will Miami's high temperature exceed 90 degrees?")
	require.True(t, ok)
	assert.True(t, mq.Above)
	// 90F in Celsius.
	assert.InDelta(t, 32.22, mq.TempThresholdC, 0.01)

	mq, ok = m.Map("Will Miami stay below 10°C on Sunday?")
	require.True(t, ok)
	assert.False(t, mq.Above)
	assert.InDelta(t, 10.0, mq.TempThresholdC, 1e-9)

	// A temperature question with no parseable number cannot be scored.
	_, ok = m.Map("Will Miami be hot this weekend?")
	assert.False(t, ok)
}

func TestImpliedProbability(t *testing.T) {
	rain := weather.EnsembleForecast{MeanRainProb: 0.65}
	assert.InDelta(t, 0.65, ImpliedProbability(MappedQuestion{Kind: KindRain}, rain), 1e-9)

	// Mean right at the threshold splits the mass evenly.
	temp := weather.EnsembleForecast{MeanTempC: 30, TempStdDev: 2}
	at := MappedQuestion{Kind: KindTemperature, TempThresholdC: 30, Above: true}
	assert.InDelta(t, 0.5, ImpliedProbability(at, temp), 1e-9)

	above := MappedQuestion{Kind: KindTemperature, TempThresholdC: 26, Above: true}
	below := MappedQuestion{Kind: KindTemperature, TempThresholdC: 26, Above: false}
	pAbove := ImpliedProbability(above, temp)
	pBelow := ImpliedProbability(below, temp)
	assert.Greater(t, pAbove, 0.9)
	assert.InDelta(t, 1.0, pAbove+pBelow, 1e-9)

	// Deep pressure deficit saturates the storm probability.
	storm := weather.EnsembleForecast{MeanPressureHPa: 980}
	assert.InDelta(t, 1.0, ImpliedProbability(MappedQuestion{Kind: KindStorm}, storm), 1e-9)
	calm := weather.EnsembleForecast{MeanPressureHPa: 1020}
	assert.Zero(t, ImpliedProbability(MappedQuestion{Kind: KindStorm}, calm))
}
