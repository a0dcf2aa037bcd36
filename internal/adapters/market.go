package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/stormsniper/engine/internal/observ"
)

// MarketConfig tunes the prediction-market data client.
type MarketConfig struct {
	GammaBaseURL       string `yaml:"gamma_base_url"`
	ClobBaseURL        string `yaml:"clob_base_url"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

func defaultMarketConfig(cfg MarketConfig) MarketConfig {
	if cfg.GammaBaseURL == "" {
		cfg.GammaBaseURL = "https://gamma-api.polymarket.com"
	}
	if cfg.ClobBaseURL == "" {
		cfg.ClobBaseURL = "https://clob.polymarket.com"
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 10
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 60
	}
	return cfg
}

// PolymarketData reads markets from the Gamma listing API and books from
// the CLOB API.
type PolymarketData struct {
	cfg         MarketConfig
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

func NewPolymarketData(cfg MarketConfig) *PolymarketData {
	cfg = defaultMarketConfig(cfg)
	return &PolymarketData{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimitPerMinute)/60), 2),
	}
}

const providerPolymarket = "polymarket"

type gammaMarket struct {
	ID            string  `json:"id"`
	Question      string  `json:"question"`
	Active        bool    `json:"active"`
	Closed        bool    `json:"closed"`
	EndDate       string  `json:"endDate"`
	Volume24hr    float64 `json:"volume24hr"`
	ClobTokenIDs  string  `json:"clobTokenIds"`  // JSON-encoded array, YES first
	OutcomePrices string  `json:"outcomePrices"` // JSON-encoded array, YES first
}

// ListMarkets queries the listing API for markets matching a keyword.
func (p *PolymarketData) ListMarkets(ctx context.Context, keyword string, filters ListFilters) ([]Market, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return nil, NewRateLimitError(providerPolymarket, keyword, "rate limiter wait aborted")
	}

	params := url.Values{}
	params.Set("closed", "false")
	if filters.ActiveOnly {
		params.Set("active", "true")
	}
	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}
	params.Set("limit", strconv.Itoa(limit))

	u := p.cfg.GammaBaseURL + "/markets?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, NewNetworkError(providerPolymarket, keyword, "build request", err)
	}

	observ.IncCounter("provider_requests_total", map[string]string{"provider": providerPolymarket})
	resp, err := p.httpClient.Do(req)
	if err != nil {
		observ.IncCounter("provider_errors_total", map[string]string{"provider": providerPolymarket})
		return nil, NewNetworkError(providerPolymarket, keyword, "list markets", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		observ.IncCounter("provider_errors_total", map[string]string{"provider": providerPolymarket})
		return nil, NewUpstreamError(providerPolymarket, keyword, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	var raw []gammaMarket
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		observ.IncCounter("provider_errors_total", map[string]string{"provider": providerPolymarket})
		return nil, NewDecodeError(providerPolymarket, keyword, "decode market list", err)
	}

	kw := strings.ToLower(keyword)
	markets := make([]Market, 0, len(raw))
	for _, gm := range raw {
		if gm.Closed || (filters.ActiveOnly && !gm.Active) {
			continue
		}
		if kw != "" && !strings.Contains(strings.ToLower(gm.Question), kw) {
			continue
		}
		if gm.Volume24hr < filters.MinVolume {
			continue
		}
		m := Market{
			ID:        gm.ID,
			Question:  gm.Question,
			Volume24h: gm.Volume24hr,
			Active:    gm.Active,
		}
		if t, err := time.Parse(time.RFC3339, gm.EndDate); err == nil {
			m.EndDate = t
		}
		if tokens := decodeStringArray(gm.ClobTokenIDs); len(tokens) > 0 {
			m.InstrumentID = tokens[0]
		}
		if prices := decodeStringArray(gm.OutcomePrices); len(prices) > 0 {
			if v, err := strconv.ParseFloat(prices[0], 64); err == nil {
				m.YesPrice = v
			}
		}
		markets = append(markets, m)
	}
	return markets, nil
}

// GetMidpoint returns the current mid price for an instrument.
func (p *PolymarketData) GetMidpoint(ctx context.Context, instrumentID string) (float64, error) {
	var body struct {
		Mid string `json:"mid"`
	}
	if err := p.getJSON(ctx, p.cfg.ClobBaseURL+"/midpoint?token_id="+url.QueryEscape(instrumentID), instrumentID, &body); err != nil {
		return 0, err
	}
	mid, err := strconv.ParseFloat(body.Mid, 64)
	if err != nil {
		return 0, NewDecodeError(providerPolymarket, instrumentID, "parse midpoint", err)
	}
	return mid, nil
}

type clobBookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// GetOrderBook returns the book snapshot for an instrument, best first.
func (p *PolymarketData) GetOrderBook(ctx context.Context, instrumentID string) (OrderBook, error) {
	var body struct {
		Bids []clobBookLevel `json:"bids"`
		Asks []clobBookLevel `json:"asks"`
	}
	if err := p.getJSON(ctx, p.cfg.ClobBaseURL+"/book?token_id="+url.QueryEscape(instrumentID), instrumentID, &body); err != nil {
		return OrderBook{}, err
	}

	book := OrderBook{InstrumentID: instrumentID}
	for _, l := range body.Bids {
		if level, ok := parseLevel(l); ok {
			book.Bids = append(book.Bids, level)
		}
	}
	for _, l := range body.Asks {
		if level, ok := parseLevel(l); ok {
			book.Asks = append(book.Asks, level)
		}
	}
	return book, nil
}

func (p *PolymarketData) getJSON(ctx context.Context, u, subject string, out any) error {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return NewRateLimitError(providerPolymarket, subject, "rate limiter wait aborted")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return NewNetworkError(providerPolymarket, subject, "build request", err)
	}

	observ.IncCounter("provider_requests_total", map[string]string{"provider": providerPolymarket})
	resp, err := p.httpClient.Do(req)
	if err != nil {
		observ.IncCounter("provider_errors_total", map[string]string{"provider": providerPolymarket})
		return NewNetworkError(providerPolymarket, subject, "fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		observ.IncCounter("provider_errors_total", map[string]string{"provider": providerPolymarket})
		return NewUpstreamError(providerPolymarket, subject, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		observ.IncCounter("provider_errors_total", map[string]string{"provider": providerPolymarket})
		return NewDecodeError(providerPolymarket, subject, "decode response", err)
	}
	return nil
}

func parseLevel(l clobBookLevel) (Level, bool) {
	price, err1 := strconv.ParseFloat(l.Price, 64)
	size, err2 := strconv.ParseFloat(l.Size, 64)
	if err1 != nil || err2 != nil {
		return Level{}, false
	}
	return Level{Price: price, Size: size}, true
}

// decodeStringArray handles the listing API habit of JSON-encoding arrays
// as strings.
func decodeStringArray(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
