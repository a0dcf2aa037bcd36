package adapters

import (
	"context"

	"github.com/stormsniper/engine/internal/alpha"
	"github.com/stormsniper/engine/internal/weather"
)

// Location is one tracked city with coordinates for the weather APIs.
type Location struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

// WeatherProvider supplies per-cycle weather context for a location.
type WeatherProvider interface {
	// FetchEnsemble fetches every configured source and folds the snapshots
	// into an ensemble. Partial source failures degrade the ensemble rather
	// than failing it; only a total miss returns an error.
	FetchEnsemble(ctx context.Context, loc Location) (weather.EnsembleForecast, error)
	// PressureAnomaly evaluates the current pressure against the history
	// this provider has accumulated for the location.
	PressureAnomaly(ctx context.Context, loc Location, currentHPa float64) (weather.PressureAnomaly, error)
}

// ListFilters narrows a market listing.
type ListFilters struct {
	ActiveOnly bool
	MinVolume  float64
	Limit      int
}

// MarketDataProvider lists candidate markets and serves live prices.
type MarketDataProvider interface {
	ListMarkets(ctx context.Context, keyword string, filters ListFilters) ([]Market, error)
	GetMidpoint(ctx context.Context, instrumentID string) (float64, error)
	GetOrderBook(ctx context.Context, instrumentID string) (OrderBook, error)
}

// OrderExecutor places orders at the venue. Implementations must return an
// error on any submission that may not have reached the venue; callers
// treat only a nil error as a fill.
type OrderExecutor interface {
	PlaceLimitOrder(ctx context.Context, instrumentID string, side alpha.Side, price, size float64) (orderID string, err error)
}
