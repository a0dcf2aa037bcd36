package adapters

import "time"

// Market is one tradable binary market as listed by the market-data venue.
type Market struct {
	ID           string    `json:"id"`
	Question     string    `json:"question"`
	InstrumentID string    `json:"instrument_id"` // YES outcome token
	YesPrice     float64   `json:"yes_price"`
	Volume24h    float64   `json:"volume_24h"`
	EndDate      time.Time `json:"end_date"`
	Active       bool      `json:"active"`
}

// Level is one order-book price level.
type Level struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBook is a point-in-time book snapshot for one instrument.
type OrderBook struct {
	InstrumentID string  `json:"instrument_id"`
	Bids         []Level `json:"bids"` // best first
	Asks         []Level `json:"asks"` // best first
}

func (b OrderBook) BestBid() (Level, bool) {
	if len(b.Bids) == 0 {
		return Level{}, false
	}
	return b.Bids[0], true
}

func (b OrderBook) BestAsk() (Level, bool) {
	if len(b.Asks) == 0 {
		return Level{}, false
	}
	return b.Asks[0], true
}

// TotalDepth is the combined bid and ask notional on the book.
func (b OrderBook) TotalDepth() float64 {
	total := 0.0
	for _, l := range b.Bids {
		total += l.Price * l.Size
	}
	for _, l := range b.Asks {
		total += l.Price * l.Size
	}
	return total
}
