package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/stormsniper/engine/internal/observ"
	"github.com/stormsniper/engine/internal/weather"
)

// WeatherSource is one upstream forecast API.
type WeatherSource interface {
	Name() string
	Fetch(ctx context.Context, loc Location) (weather.Snapshot, error)
}

// WeatherConfig tunes the multi-source weather provider.
type WeatherConfig struct {
	TimeoutSeconds     int `yaml:"timeout_seconds"`
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
	PressureHistoryMax int `yaml:"pressure_history_max"`
}

func defaultWeatherConfig(cfg WeatherConfig) WeatherConfig {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 10
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 30
	}
	if cfg.PressureHistoryMax <= 0 {
		cfg.PressureHistoryMax = 7 * 24 * 4 // a week at 15-minute cycles
	}
	return cfg
}

// OpenMeteoSource fetches current conditions from the Open-Meteo API.
// No API key required.
type OpenMeteoSource struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

func NewOpenMeteoSource(cfg WeatherConfig) *OpenMeteoSource {
	cfg = defaultWeatherConfig(cfg)
	return &OpenMeteoSource{
		baseURL: "https://api.open-meteo.com/v1/forecast",
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimitPerMinute)/60), 1),
	}
}

func (s *OpenMeteoSource) Name() string { return "openmeteo" }

type openMeteoResponse struct {
	Current struct {
		Temperature2m            float64 `json:"temperature_2m"`
		SurfacePressure          float64 `json:"surface_pressure"`
		RelativeHumidity2m       float64 `json:"relative_humidity_2m"`
		WindSpeed10m             float64 `json:"wind_speed_10m"`
		Precipitation            float64 `json:"precipitation"`
		PrecipitationProbability float64 `json:"precipitation_probability"`
		CloudCover               float64 `json:"cloud_cover"`
	} `json:"current"`
}

func (s *OpenMeteoSource) Fetch(ctx context.Context, loc Location) (weather.Snapshot, error) {
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return weather.Snapshot{}, NewRateLimitError(s.Name(), loc.Name, "rate limiter wait aborted")
	}

	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.4f", loc.Lat))
	params.Set("longitude", fmt.Sprintf("%.4f", loc.Lon))
	params.Set("current", "temperature_2m,surface_pressure,relative_humidity_2m,wind_speed_10m,precipitation,precipitation_probability,cloud_cover")
	params.Set("wind_speed_unit", "ms")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return weather.Snapshot{}, NewNetworkError(s.Name(), loc.Name, "build request", err)
	}

	observ.IncCounter("provider_requests_total", map[string]string{"provider": s.Name()})
	resp, err := s.httpClient.Do(req)
	if err != nil {
		observ.IncCounter("provider_errors_total", map[string]string{"provider": s.Name()})
		return weather.Snapshot{}, NewNetworkError(s.Name(), loc.Name, "fetch current conditions", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		observ.IncCounter("provider_errors_total", map[string]string{"provider": s.Name()})
		return weather.Snapshot{}, NewUpstreamError(s.Name(), loc.Name, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	var body openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		observ.IncCounter("provider_errors_total", map[string]string{"provider": s.Name()})
		return weather.Snapshot{}, NewDecodeError(s.Name(), loc.Name, "decode response", err)
	}

	return weather.Snapshot{
		Location:        loc.Name,
		Source:          s.Name(),
		TemperatureC:    body.Current.Temperature2m,
		PressureHPa:     body.Current.SurfacePressure,
		HumidityPct:     body.Current.RelativeHumidity2m,
		WindSpeedMS:     body.Current.WindSpeed10m,
		PrecipMM:        body.Current.Precipitation,
		RainProbability: body.Current.PrecipitationProbability / 100,
		CloudCoverPct:   body.Current.CloudCover,
		FetchedAt:       time.Now().UTC(),
	}, nil
}

// MetNoSource fetches from the Norwegian Meteorological Institute API.
// Requires a descriptive User-Agent per their terms of service.
type MetNoSource struct {
	baseURL     string
	userAgent   string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

func NewMetNoSource(cfg WeatherConfig, userAgent string) *MetNoSource {
	cfg = defaultWeatherConfig(cfg)
	if userAgent == "" {
		userAgent = "stormsniper/1.0"
	}
	return &MetNoSource{
		baseURL:   "https://api.met.no/weatherapi/locationforecast/2.0/compact",
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimitPerMinute)/60), 1),
	}
}

func (s *MetNoSource) Name() string { return "metno" }

type metNoResponse struct {
	Properties struct {
		Timeseries []struct {
			Data struct {
				Instant struct {
					Details struct {
						AirTemperature        float64 `json:"air_temperature"`
						AirPressureAtSeaLevel float64 `json:"air_pressure_at_sea_level"`
						RelativeHumidity      float64 `json:"relative_humidity"`
						WindSpeed             float64 `json:"wind_speed"`
						CloudAreaFraction     float64 `json:"cloud_area_fraction"`
					} `json:"details"`
				} `json:"instant"`
				Next1Hours struct {
					Details struct {
						PrecipitationAmount        float64 `json:"precipitation_amount"`
						ProbabilityOfPrecipitation float64 `json:"probability_of_precipitation"`
					} `json:"details"`
				} `json:"next_1_hours"`
			} `json:"data"`
		} `json:"timeseries"`
	} `json:"properties"`
}

func (s *MetNoSource) Fetch(ctx context.Context, loc Location) (weather.Snapshot, error) {
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return weather.Snapshot{}, NewRateLimitError(s.Name(), loc.Name, "rate limiter wait aborted")
	}

	u := fmt.Sprintf("%s?lat=%.4f&lon=%.4f", s.baseURL, loc.Lat, loc.Lon)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return weather.Snapshot{}, NewNetworkError(s.Name(), loc.Name, "build request", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	observ.IncCounter("provider_requests_total", map[string]string{"provider": s.Name()})
	resp, err := s.httpClient.Do(req)
	if err != nil {
		observ.IncCounter("provider_errors_total", map[string]string{"provider": s.Name()})
		return weather.Snapshot{}, NewNetworkError(s.Name(), loc.Name, "fetch forecast", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		observ.IncCounter("provider_errors_total", map[string]string{"provider": s.Name()})
		return weather.Snapshot{}, NewUpstreamError(s.Name(), loc.Name, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	var body metNoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		observ.IncCounter("provider_errors_total", map[string]string{"provider": s.Name()})
		return weather.Snapshot{}, NewDecodeError(s.Name(), loc.Name, "decode response", err)
	}
	if len(body.Properties.Timeseries) == 0 {
		return weather.Snapshot{}, NewUpstreamError(s.Name(), loc.Name, "empty timeseries", nil)
	}

	first := body.Properties.Timeseries[0].Data
	return weather.Snapshot{
		Location:        loc.Name,
		Source:          s.Name(),
		TemperatureC:    first.Instant.Details.AirTemperature,
		PressureHPa:     first.Instant.Details.AirPressureAtSeaLevel,
		HumidityPct:     first.Instant.Details.RelativeHumidity,
		WindSpeedMS:     first.Instant.Details.WindSpeed,
		PrecipMM:        first.Next1Hours.Details.PrecipitationAmount,
		RainProbability: first.Next1Hours.Details.ProbabilityOfPrecipitation / 100,
		CloudCoverPct:   first.Instant.Details.CloudAreaFraction,
		FetchedAt:       time.Now().UTC(),
	}, nil
}

// MultiSourceWeather fans a fetch out to every source, folds the snapshots
// into an ensemble, and keeps a rolling pressure history per location for
// anomaly analysis.
type MultiSourceWeather struct {
	sources []WeatherSource
	cfg     WeatherConfig

	mu       sync.Mutex
	pressure map[string][]weather.PressurePoint
}

func NewMultiSourceWeather(cfg WeatherConfig, sources ...WeatherSource) *MultiSourceWeather {
	return &MultiSourceWeather{
		sources:  sources,
		cfg:      defaultWeatherConfig(cfg),
		pressure: make(map[string][]weather.PressurePoint),
	}
}

// FetchEnsemble fetches all sources concurrently. Failed sources are logged
// and dropped; the ensemble builds from whatever arrived.
func (m *MultiSourceWeather) FetchEnsemble(ctx context.Context, loc Location) (weather.EnsembleForecast, error) {
	type result struct {
		snap weather.Snapshot
		err  error
	}
	results := make(chan result, len(m.sources))
	for _, src := range m.sources {
		go func(src WeatherSource) {
			snap, err := src.Fetch(ctx, loc)
			results <- result{snap: snap, err: err}
		}(src)
	}

	snaps := make([]weather.Snapshot, 0, len(m.sources))
	for range m.sources {
		r := <-results
		if r.err != nil {
			observ.Log("weather_source_error", map[string]any{
				"location": loc.Name, "error": r.err.Error(),
			})
			continue
		}
		snaps = append(snaps, r.snap)
	}

	now := time.Now().UTC()
	ens, err := weather.BuildEnsemble(loc.Name, snaps, now)
	if err != nil {
		return weather.EnsembleForecast{}, fmt.Errorf("fetch ensemble for %s: all %d sources failed: %w", loc.Name, len(m.sources), err)
	}

	m.recordPressure(loc.Name, ens.MeanPressureHPa, now)
	return ens, nil
}

// PressureAnomaly evaluates the current reading against the accumulated
// history for the location.
func (m *MultiSourceWeather) PressureAnomaly(_ context.Context, loc Location, currentHPa float64) (weather.PressureAnomaly, error) {
	m.mu.Lock()
	history := make([]weather.PressurePoint, len(m.pressure[loc.Name]))
	copy(history, m.pressure[loc.Name])
	m.mu.Unlock()

	return weather.AnalyzePressure(loc.Name, currentHPa, history, time.Now().UTC()), nil
}

func (m *MultiSourceWeather) recordPressure(location string, hpa float64, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := append(m.pressure[location], weather.PressurePoint{HPa: hpa, At: at})
	if len(history) > m.cfg.PressureHistoryMax {
		history = history[len(history)-m.cfg.PressureHistoryMax:]
	}
	m.pressure[location] = history
}
