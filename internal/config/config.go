package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stormsniper/engine/internal/adapters"
	"github.com/stormsniper/engine/internal/alpha"
	"github.com/stormsniper/engine/internal/execution"
	"github.com/stormsniper/engine/internal/risk"
)

// Scheduling controls the loop cadence.
type Scheduling struct {
	ScanIntervalSeconds    int `yaml:"scan_interval_seconds"`
	MonitorIntervalSeconds int `yaml:"monitor_interval_seconds"`
}

// Portfolio holds balances and persistence.
type Portfolio struct {
	Bankroll  float64 `yaml:"bankroll"`
	StatePath string  `yaml:"state_path"`
	Timezone  string  `yaml:"timezone"`
}

// Markets configures candidate discovery.
type Markets struct {
	Keywords        []string `yaml:"keywords"`
	BroadenKeywords []string `yaml:"broaden_keywords"`
	MinCandidates   int      `yaml:"min_candidates"`
	MinVolume24h    float64  `yaml:"min_volume_24h"`
	ListLimit       int      `yaml:"list_limit"`
	DailyTradeCap   int      `yaml:"daily_trade_cap"`
	MinPositionSize float64  `yaml:"min_position_size"`
}

// Server exposes metrics and health endpoints.
type Server struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Root is the full engine configuration.
type Root struct {
	TradingMode string `yaml:"trading_mode"` // paper | live
	GlobalPause bool   `yaml:"global_pause"`

	Locations  []adapters.Location     `yaml:"locations"`
	Alpha      alpha.Config            `yaml:"alpha"`
	Volatility risk.VolatilityConfig   `yaml:"volatility"`
	MonteCarlo risk.MonteCarloConfig   `yaml:"monte_carlo"`
	Drawdown   risk.DrawdownConfig     `yaml:"drawdown"`
	Sizer      risk.SizerConfig        `yaml:"sizer"`
	Entry      execution.EntryConfig   `yaml:"entry"`
	Exit       execution.ExitConfig    `yaml:"exit"`
	Weather    adapters.WeatherConfig  `yaml:"weather"`
	Market     adapters.MarketConfig   `yaml:"market"`
	Executor   adapters.ExecutorConfig `yaml:"executor"`
	Markets    Markets                 `yaml:"markets"`
	Portfolio  Portfolio               `yaml:"portfolio"`
	Scheduling Scheduling              `yaml:"scheduling"`
	Server     Server                  `yaml:"server"`
}

// Default returns the built-in configuration: every tunable at its
// documented default, tracking four US cities.
func Default() Root {
	return Root{
		TradingMode: "paper",
		Locations: []adapters.Location{
			{Name: "new york", Lat: 40.7128, Lon: -74.0060},
			{Name: "miami", Lat: 25.7617, Lon: -80.1918},
			{Name: "chicago", Lat: 41.8781, Lon: -87.6298},
			{Name: "houston", Lat: 29.7604, Lon: -95.3698},
		},
		Alpha:      alpha.DefaultConfig(),
		Volatility: risk.DefaultVolatilityConfig(),
		MonteCarlo: risk.DefaultMonteCarloConfig(),
		Drawdown:   risk.DefaultDrawdownConfig(),
		Sizer:      risk.DefaultSizerConfig(),
		Entry:      execution.DefaultEntryConfig(),
		Exit:       execution.DefaultExitConfig(),
		Markets: Markets{
			Keywords:        []string{"rain", "snow", "temperature", "storm", "hurricane"},
			BroadenKeywords: []string{"weather", ""},
			MinCandidates:   5,
			ListLimit:       100,
			DailyTradeCap:   10,
			MinPositionSize: 1,
		},
		Portfolio: Portfolio{
			Bankroll:  1000,
			StatePath: "data/portfolio.json",
			Timezone:  "America/New_York",
		},
		Scheduling: Scheduling{
			ScanIntervalSeconds:    900,
			MonitorIntervalSeconds: 60,
		},
		Server: Server{
			Enabled: true,
			Addr:    ":8080",
		},
	}
}

// Load reads a YAML file over the defaults. A missing file is fine; the
// defaults stand.
func Load(path string) (Root, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return c, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse config %s: %w", path, err)
	}
	return c, c.validate()
}

func (c Root) validate() error {
	if c.TradingMode != "paper" && c.TradingMode != "live" {
		return fmt.Errorf("trading_mode must be paper or live, got %q", c.TradingMode)
	}
	if c.Portfolio.Bankroll <= 0 {
		return fmt.Errorf("portfolio.bankroll must be positive, got %.2f", c.Portfolio.Bankroll)
	}
	if len(c.Locations) == 0 {
		return fmt.Errorf("at least one location is required")
	}
	if _, err := time.LoadLocation(c.Portfolio.Timezone); err != nil {
		return fmt.Errorf("portfolio.timezone: %w", err)
	}
	return nil
}

// Location returns the configured local timezone.
func (c Root) Location() *time.Location {
	loc, err := time.LoadLocation(c.Portfolio.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LocationNames lists the tracked city names for the keyword mapper.
func (c Root) LocationNames() []string {
	names := make([]string, 0, len(c.Locations))
	for _, l := range c.Locations {
		names = append(names, l.Name)
	}
	return names
}
