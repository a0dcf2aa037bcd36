package alpha

import (
	"fmt"

	"github.com/stormsniper/engine/internal/weather"
)

// Recommendation is the per-market verdict of one scoring pass.
type Recommendation string

const (
	Fire  Recommendation = "FIRE"
	Watch Recommendation = "WATCH"
	Skip  Recommendation = "SKIP"
)

// Side is the direction of a prospective entry on a binary market.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Weights blends edge, shock, and liquidity into the conviction composite.
type Weights struct {
	Edge      float64 `yaml:"edge"`
	Shock     float64 `yaml:"shock"`
	Liquidity float64 `yaml:"liquidity"`
}

func DefaultWeights() Weights {
	return Weights{Edge: 0.5, Shock: 0.3, Liquidity: 0.2}
}

type Config struct {
	MinEdge             float64      `yaml:"min_edge"`
	ConvictionThreshold float64      `yaml:"conviction_threshold"`
	WatchThreshold      float64      `yaml:"watch_threshold"`
	ShockThreshold      float64      `yaml:"shock_threshold"`
	Weights             Weights      `yaml:"weights"`
	ShockWeights        ShockWeights `yaml:"shock_weights"`
}

func DefaultConfig() Config {
	return Config{
		MinEdge:             0.08,
		ConvictionThreshold: 0.78,
		WatchThreshold:      0.60,
		ShockThreshold:      0.80,
		Weights:             DefaultWeights(),
		ShockWeights:        DefaultShockWeights(),
	}
}

// ConvictionScore is the fire/skip signal for one market. Triggered implies
// the edge already passed the MinEdge pre-filter; the short-circuit below is
// the only path that skips scoring.
type ConvictionScore struct {
	MarketID         string         `json:"market_id"`
	Location         string         `json:"location"`
	WeatherProb      float64        `json:"weather_prob"`
	MarketPrice      float64        `json:"market_price"`
	Edge             float64        `json:"edge"`
	ShockComposite   float64        `json:"shock_composite"`
	LiquidityQuality float64        `json:"liquidity_quality"`
	Composite        float64        `json:"composite"`
	Threshold        float64        `json:"threshold"`
	Triggered        bool           `json:"triggered"`
	Recommendation   Recommendation `json:"recommendation"`
	Reason           string         `json:"reason"`
}

// Candidate is one market presented for scoring, with whatever weather and
// liquidity context the cycle managed to assemble. Nil context fields
// degrade the affected contribution to neutral instead of failing the scan.
type Candidate struct {
	MarketID         string
	Question         string
	Price            float64
	Ensemble         *weather.EnsembleForecast
	Anomaly          *weather.Anomaly
	LiquidityQuality *float64
}

// Assessment is the full scoring output for one candidate.
type Assessment struct {
	Conviction ConvictionScore
	Shock      ShockScore
	Mapped     MappedQuestion
	Side       Side
}

// Engine scores candidate markets. Pure with respect to portfolio state;
// risk gating happens upstream in the orchestrator.
type Engine struct {
	cfg    Config
	mapper ProbabilityMapper
}

func NewEngine(cfg Config, mapper ProbabilityMapper) *Engine {
	return &Engine{cfg: cfg, mapper: mapper}
}

const neutralLiquidity = 0.5

// AnalyzeMarket maps the question, applies the edge pre-filter, then blends
// edge, shock, and liquidity into a conviction verdict.
func (e *Engine) AnalyzeMarket(c Candidate) Assessment {
	out := Assessment{Side: SideYes}
	out.Conviction = ConvictionScore{
		MarketID:    c.MarketID,
		MarketPrice: c.Price,
		Threshold:   e.cfg.ConvictionThreshold,
	}

	mq, ok := e.mapper.Map(c.Question)
	if !ok {
		out.Conviction.Recommendation = Skip
		out.Conviction.Reason = "question does not map to a tracked location and weather type"
		return out
	}
	out.Mapped = mq
	out.Conviction.Location = mq.Location

	if c.Ensemble == nil {
		out.Conviction.Recommendation = Skip
		out.Conviction.Reason = fmt.Sprintf("no ensemble forecast for %s this cycle", mq.Location)
		return out
	}

	weatherProb := ImpliedProbability(mq, *c.Ensemble)
	edge := weatherProb - c.Price
	out.Conviction.WeatherProb = weatherProb
	out.Conviction.Edge = abs(edge)
	if edge < 0 {
		out.Side = SideNo
	}

	if out.Conviction.Edge < e.cfg.MinEdge {
		out.Conviction.Recommendation = Skip
		out.Conviction.Reason = fmt.Sprintf("edge %.3f below minimum %.3f", out.Conviction.Edge, e.cfg.MinEdge)
		return out
	}

	var anom weather.Anomaly
	if c.Anomaly != nil {
		anom = *c.Anomaly
	} else {
		anom.Location = mq.Location
	}
	out.Shock = ComputeShock(anom, e.cfg.ShockWeights, e.cfg.ShockThreshold)
	out.Conviction.ShockComposite = out.Shock.Composite

	liq := neutralLiquidity
	if c.LiquidityQuality != nil {
		liq = *c.LiquidityQuality
	}
	out.Conviction.LiquidityQuality = liq

	w := e.cfg.Weights
	out.Conviction.Composite = w.Edge*out.Conviction.Edge +
		w.Shock*out.Shock.Composite +
		w.Liquidity*liq
	out.Conviction.Triggered = out.Conviction.Composite >= e.cfg.ConvictionThreshold

	switch {
	case out.Conviction.Triggered:
		out.Conviction.Recommendation = Fire
		out.Conviction.Reason = fmt.Sprintf("conviction %.3f at or above threshold %.3f", out.Conviction.Composite, e.cfg.ConvictionThreshold)
	case out.Conviction.Composite >= e.cfg.WatchThreshold:
		out.Conviction.Recommendation = Watch
		out.Conviction.Reason = fmt.Sprintf("conviction %.3f in watch band, below threshold %.3f", out.Conviction.Composite, e.cfg.ConvictionThreshold)
	default:
		out.Conviction.Recommendation = Skip
		out.Conviction.Reason = fmt.Sprintf("conviction %.3f below watch band %.3f", out.Conviction.Composite, e.cfg.WatchThreshold)
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
