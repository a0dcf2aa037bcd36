package execution

import (
	"time"

	"github.com/google/uuid"

	"github.com/stormsniper/engine/internal/alpha"
	"github.com/stormsniper/engine/internal/risk"
)

// Valid probability range for binary outcome prices.
const (
	minPrice = 0.01
	maxPrice = 0.99
)

// EntryConfig tunes exit-price construction.
type EntryConfig struct {
	TakeProfitMinPct float64       `yaml:"take_profit_min_pct"`
	TakeProfitMaxPct float64       `yaml:"take_profit_max_pct"`
	StopLossPct      float64       `yaml:"stop_loss_pct"`
	MaxHold          time.Duration `yaml:"max_hold"`
}

func DefaultEntryConfig() EntryConfig {
	return EntryConfig{
		TakeProfitMinPct: 6,
		TakeProfitMaxPct: 9,
		StopLossPct:      3,
		MaxHold:          4 * time.Hour,
	}
}

// SniperEntry is an immutable trade intent: everything the executor needs
// to place the order plus the scores that justified it. Built once, never
// mutated.
type SniperEntry struct {
	ID           string                `json:"id"`
	MarketID     string                `json:"market_id"`
	Title        string                `json:"title"`
	Side         alpha.Side            `json:"side"`
	InstrumentID string                `json:"instrument_id"`
	Price        float64               `json:"price"`
	Size         float64               `json:"size"`
	Conviction   alpha.ConvictionScore `json:"conviction"`
	Shock        alpha.ShockScore      `json:"shock"`

	TakeProfitPct   float64       `json:"take_profit_pct"`
	StopLossPct     float64       `json:"stop_loss_pct"`
	TakeProfitPrice float64       `json:"take_profit_price"`
	StopLossPrice   float64       `json:"stop_loss_price"`
	MaxHold         time.Duration `json:"max_hold"`
	CreatedAt       time.Time     `json:"created_at"`
}

// BuildParams carries the inputs to one entry construction.
type BuildParams struct {
	MarketID     string
	Title        string
	Side         alpha.Side
	InstrumentID string
	Price        float64
	Size         float64
	Conviction   alpha.ConvictionScore
	Shock        alpha.ShockScore
	Volatility   risk.VolatilityState
}

// BuildEntry constructs a SniperEntry. The take-profit percentage
// interpolates between the configured min and max inversely with the
// volatility scaler: a calm market (scaler 1.0) gets the widest target.
func BuildEntry(p BuildParams, cfg EntryConfig, now time.Time) SniperEntry {
	def := DefaultEntryConfig()
	if cfg.TakeProfitMinPct <= 0 {
		cfg.TakeProfitMinPct = def.TakeProfitMinPct
	}
	if cfg.TakeProfitMaxPct < cfg.TakeProfitMinPct {
		cfg.TakeProfitMaxPct = def.TakeProfitMaxPct
	}
	if cfg.StopLossPct <= 0 {
		cfg.StopLossPct = def.StopLossPct
	}
	if cfg.MaxHold <= 0 {
		cfg.MaxHold = def.MaxHold
	}

	// Scaler runs 0.5 (hot) to 1.0 (calm); map it onto [0,1].
	calm := clamp01((p.Volatility.Scaler - 0.5) / 0.5)
	tpPct := cfg.TakeProfitMinPct + (cfg.TakeProfitMaxPct-cfg.TakeProfitMinPct)*calm

	entry := SniperEntry{
		ID:            uuid.NewString(),
		MarketID:      p.MarketID,
		Title:         p.Title,
		Side:          p.Side,
		InstrumentID:  p.InstrumentID,
		Price:         p.Price,
		Size:          p.Size,
		Conviction:    p.Conviction,
		Shock:         p.Shock,
		TakeProfitPct: tpPct,
		StopLossPct:   cfg.StopLossPct,
		MaxHold:       cfg.MaxHold,
		CreatedAt:     now,
	}

	if p.Side == alpha.SideNo {
		// A NO position profits as the YES price falls.
		entry.TakeProfitPrice = clampPrice(p.Price * (1 - tpPct/100))
		entry.StopLossPrice = clampPrice(p.Price * (1 + cfg.StopLossPct/100))
	} else {
		entry.TakeProfitPrice = clampPrice(p.Price * (1 + tpPct/100))
		entry.StopLossPrice = clampPrice(p.Price * (1 - cfg.StopLossPct/100))
	}
	return entry
}

func clampPrice(p float64) float64 {
	if p < minPrice {
		return minPrice
	}
	if p > maxPrice {
		return maxPrice
	}
	return p
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
