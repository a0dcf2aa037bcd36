package adapters

import (
	"context"
	"fmt"
	"sync"

	"github.com/stormsniper/engine/internal/alpha"
	"github.com/stormsniper/engine/internal/weather"
)

// MockWeatherProvider serves scripted ensembles and pressure anomalies.
type MockWeatherProvider struct {
	mu        sync.Mutex
	Ensembles map[string]weather.EnsembleForecast
	Pressures map[string]weather.PressureAnomaly
	FailFor   map[string]error // per-location forced failures
	Calls     int
}

func NewMockWeatherProvider() *MockWeatherProvider {
	return &MockWeatherProvider{
		Ensembles: make(map[string]weather.EnsembleForecast),
		Pressures: make(map[string]weather.PressureAnomaly),
		FailFor:   make(map[string]error),
	}
}

func (m *MockWeatherProvider) FetchEnsemble(_ context.Context, loc Location) (weather.EnsembleForecast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if err, ok := m.FailFor[loc.Name]; ok {
		return weather.EnsembleForecast{}, err
	}
	ens, ok := m.Ensembles[loc.Name]
	if !ok {
		return weather.EnsembleForecast{}, fmt.Errorf("mock weather: no ensemble scripted for %s", loc.Name)
	}
	return ens, nil
}

func (m *MockWeatherProvider) PressureAnomaly(_ context.Context, loc Location, _ float64) (weather.PressureAnomaly, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Pressures[loc.Name], nil
}

// MockMarketData serves scripted markets, prices, and books.
type MockMarketData struct {
	mu        sync.Mutex
	Markets   []Market
	Midpoints map[string]float64
	Books     map[string]OrderBook
	ListErr   error
	PriceErr  map[string]error
	BookErr   map[string]error
}

func NewMockMarketData() *MockMarketData {
	return &MockMarketData{
		Midpoints: make(map[string]float64),
		Books:     make(map[string]OrderBook),
		PriceErr:  make(map[string]error),
		BookErr:   make(map[string]error),
	}
}

func (m *MockMarketData) ListMarkets(_ context.Context, _ string, _ ListFilters) ([]Market, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]Market, len(m.Markets))
	copy(out, m.Markets)
	return out, nil
}

func (m *MockMarketData) GetMidpoint(_ context.Context, instrumentID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.PriceErr[instrumentID]; ok {
		return 0, err
	}
	mid, ok := m.Midpoints[instrumentID]
	if !ok {
		return 0, fmt.Errorf("mock market data: no midpoint scripted for %s", instrumentID)
	}
	return mid, nil
}

func (m *MockMarketData) GetOrderBook(_ context.Context, instrumentID string) (OrderBook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.BookErr[instrumentID]; ok {
		return OrderBook{}, err
	}
	book, ok := m.Books[instrumentID]
	if !ok {
		return OrderBook{}, fmt.Errorf("mock market data: no book scripted for %s", instrumentID)
	}
	return book, nil
}

// SetMidpoint rescripts a live price mid-test.
func (m *MockMarketData) SetMidpoint(instrumentID string, mid float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Midpoints[instrumentID] = mid
}

// MockExecutor records placed orders and fails on demand.
type MockExecutor struct {
	mu      sync.Mutex
	Placed  []MockOrder
	FailErr error
	nextID  int
}

type MockOrder struct {
	InstrumentID string
	Side         alpha.Side
	Price        float64
	Size         float64
}

func NewMockExecutor() *MockExecutor {
	return &MockExecutor{}
}

func (m *MockExecutor) PlaceLimitOrder(_ context.Context, instrumentID string, side alpha.Side, price, size float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailErr != nil {
		return "", m.FailErr
	}
	m.Placed = append(m.Placed, MockOrder{InstrumentID: instrumentID, Side: side, Price: price, Size: size})
	m.nextID++
	return fmt.Sprintf("mock-%d", m.nextID), nil
}

// SetFailure scripts the next placements to fail.
func (m *MockExecutor) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailErr = err
}

// Orders returns a copy of everything placed.
func (m *MockExecutor) Orders() []MockOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockOrder, len(m.Placed))
	copy(out, m.Placed)
	return out
}
