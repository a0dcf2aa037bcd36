package execution

import (
	"github.com/stormsniper/engine/internal/adapters"
)

// Liquidity scoring constants. Spread is scored against a 5-cent band,
// depth against a $5000 reference book, and size against 10% of depth.
const (
	spreadBand     = 0.05
	depthReference = 5000.0
	sizeDepthFrac  = 0.1

	liquidityQualityFloor = 0.4
	depthSizeMultiple     = 3.0

	neutralQuality = 0.5
)

// LiquidityReport scores whether the book can absorb an intended entry.
type LiquidityReport struct {
	InstrumentID string  `json:"instrument_id"`
	IntendedSize float64 `json:"intended_size"`
	Spread       float64 `json:"spread"`
	TotalDepth   float64 `json:"total_depth"`
	SpreadScore  float64 `json:"spread_score"`
	DepthScore   float64 `json:"depth_score"`
	SizeScore    float64 `json:"size_score"`
	Quality      float64 `json:"quality"`
	Sufficient   bool    `json:"sufficient"`
	Degraded     bool    `json:"degraded"` // book read failed, neutral values substituted
}

// ScoreLiquidity grades an order-book snapshot against an intended size.
func ScoreLiquidity(book adapters.OrderBook, intendedSize float64) LiquidityReport {
	r := LiquidityReport{
		InstrumentID: book.InstrumentID,
		IntendedSize: intendedSize,
		TotalDepth:   book.TotalDepth(),
	}

	bid, haveBid := book.BestBid()
	ask, haveAsk := book.BestAsk()
	if haveBid && haveAsk {
		r.Spread = ask.Price - bid.Price
		if s := 1 - r.Spread/spreadBand; s > 0 {
			r.SpreadScore = s
		}
	}

	r.DepthScore = min1(r.TotalDepth / depthReference)
	if r.TotalDepth > 0 && intendedSize > 0 {
		r.SizeScore = min1(r.TotalDepth * sizeDepthFrac / intendedSize)
	}

	r.Quality = 0.4*r.SpreadScore + 0.3*r.DepthScore + 0.3*r.SizeScore
	r.Sufficient = r.Quality > liquidityQualityFloor && r.TotalDepth > depthSizeMultiple*intendedSize
	return r
}

// NeutralLiquidity stands in when the book cannot be read. A fetch failure
// must not veto a qualifying trade outright, but the report stays visible
// for audit.
func NeutralLiquidity(instrumentID string, intendedSize float64) LiquidityReport {
	return LiquidityReport{
		InstrumentID: instrumentID,
		IntendedSize: intendedSize,
		Quality:      neutralQuality,
		Sufficient:   true,
		Degraded:     true,
	}
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}
