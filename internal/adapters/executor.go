package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/stormsniper/engine/internal/alpha"
	"github.com/stormsniper/engine/internal/observ"
)

// ExecutorConfig tunes the live order client.
type ExecutorConfig struct {
	BaseURL            string `yaml:"base_url"`
	APIKey             string `yaml:"api_key"`
	APISecret          string `yaml:"api_secret"`
	APIPassphrase      string `yaml:"api_passphrase"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

// ClobExecutor submits limit orders to the venue's CLOB API. A non-nil
// error means the order must not be treated as filled.
type ClobExecutor struct {
	cfg         ExecutorConfig
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

func NewClobExecutor(cfg ExecutorConfig) (*ClobExecutor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("clob executor: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://clob.polymarket.com"
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 10
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 30
	}
	return &ClobExecutor{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimitPerMinute)/60), 1),
	}, nil
}

type orderRequest struct {
	TokenID string  `json:"token_id"`
	Side    string  `json:"side"`
	Price   float64 `json:"price"`
	Size    float64 `json:"size"`
	Type    string  `json:"type"`
}

// venueSide translates the domain side into the order API's vocabulary.
// The instrument is always the YES outcome token, so YES exposure is a buy
// and NO exposure (or unwinding a YES position) is a sell.
func venueSide(side alpha.Side) string {
	if side == alpha.SideNo {
		return "SELL"
	}
	return "BUY"
}

type orderResponse struct {
	OrderID string `json:"orderID"`
	Success bool   `json:"success"`
	Error   string `json:"errorMsg"`
}

func (c *ClobExecutor) PlaceLimitOrder(ctx context.Context, instrumentID string, side alpha.Side, price, size float64) (string, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", NewRateLimitError(providerPolymarket, instrumentID, "rate limiter wait aborted")
	}

	payload, err := json.Marshal(orderRequest{
		TokenID: instrumentID,
		Side:    venueSide(side),
		Price:   price,
		Size:    size,
		Type:    "GTC",
	})
	if err != nil {
		return "", NewNetworkError(providerPolymarket, instrumentID, "marshal order", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/order", bytes.NewReader(payload))
	if err != nil {
		return "", NewNetworkError(providerPolymarket, instrumentID, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("POLY-API-KEY", c.cfg.APIKey)
	req.Header.Set("POLY-SECRET", c.cfg.APISecret)
	req.Header.Set("POLY-PASSPHRASE", c.cfg.APIPassphrase)

	observ.IncCounter("orders_submitted_total", nil)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observ.IncCounter("order_errors_total", nil)
		return "", NewNetworkError(providerPolymarket, instrumentID, "submit order", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		observ.IncCounter("order_errors_total", nil)
		return "", NewUpstreamError(providerPolymarket, instrumentID, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	var body orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		observ.IncCounter("order_errors_total", nil)
		return "", NewDecodeError(providerPolymarket, instrumentID, "decode order response", err)
	}
	if !body.Success {
		observ.IncCounter("order_errors_total", nil)
		return "", NewRejectedError(providerPolymarket, instrumentID, body.Error)
	}
	return body.OrderID, nil
}
