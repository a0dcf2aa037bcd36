package alpha

import "math"

// Weather moves smaller than this are treated as noise and produce no lag
// signal, since dividing by a near-zero delta would inflate the score.
const minWeatherDelta = 0.02

// MarketLag measures how much a market has under-reacted to a weather move
// over the comparison window. A lag score near 1 means the weather signal
// moved and the market barely followed.
type MarketLag struct {
	MarketID          string  `json:"market_id"`
	WeatherProb       float64 `json:"weather_prob"`
	MarketProb        float64 `json:"market_prob"`
	MarketProbEarlier float64 `json:"market_prob_earlier"`
	WeatherDelta      float64 `json:"weather_delta"`
	MarketDelta       float64 `json:"market_delta"`
	LagScore          float64 `json:"lag_score"` // [0,1]
}

// ComputeLag compares the weather and market deltas over the same window.
func ComputeLag(marketID string, weatherProb, weatherProbEarlier, marketProb, marketProbEarlier float64) MarketLag {
	lag := MarketLag{
		MarketID:          marketID,
		WeatherProb:       weatherProb,
		MarketProb:        marketProb,
		MarketProbEarlier: marketProbEarlier,
		WeatherDelta:      weatherProb - weatherProbEarlier,
		MarketDelta:       marketProb - marketProbEarlier,
	}
	wd := math.Abs(lag.WeatherDelta)
	if wd < minWeatherDelta {
		return lag
	}
	lag.LagScore = clamp(1-math.Abs(lag.MarketDelta)/wd, 0, 1)
	return lag
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
