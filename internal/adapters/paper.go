package adapters

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/stormsniper/engine/internal/alpha"
	"github.com/stormsniper/engine/internal/observ"
)

// PaperOrder is one simulated fill, retained for inspection.
type PaperOrder struct {
	OrderID      string
	InstrumentID string
	Side         alpha.Side
	LimitPrice   float64
	FillPrice    float64
	Size         float64
	PlacedAt     time.Time
}

// PaperExecutor simulates fills with small latency and slippage so the
// orchestration path behaves like production without touching the venue.
type PaperExecutor struct {
	mu          sync.Mutex
	rng         *rand.Rand
	maxLatency  time.Duration
	slippageBps float64
	nextID      int
	orders      []PaperOrder
}

func NewPaperExecutor(maxLatency time.Duration, slippageBps float64) *PaperExecutor {
	if maxLatency <= 0 {
		maxLatency = 50 * time.Millisecond
	}
	if slippageBps <= 0 {
		slippageBps = 20
	}
	return &PaperExecutor{
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		maxLatency:  maxLatency,
		slippageBps: slippageBps,
	}
}

func (p *PaperExecutor) PlaceLimitOrder(ctx context.Context, instrumentID string, side alpha.Side, price, size float64) (string, error) {
	p.mu.Lock()
	latency := time.Duration(p.rng.Int63n(int64(p.maxLatency)))
	slip := price * (p.slippageBps / 10000) * p.rng.Float64()
	p.mu.Unlock()

	select {
	case <-time.After(latency):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	// Entries pay up, exits give up; slippage always works against us.
	fill := price + slip
	if side == alpha.SideNo {
		fill = price - slip
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	order := PaperOrder{
		OrderID:      fmt.Sprintf("paper-%d", p.nextID),
		InstrumentID: instrumentID,
		Side:         side,
		LimitPrice:   price,
		FillPrice:    fill,
		Size:         size,
		PlacedAt:     time.Now().UTC(),
	}
	p.orders = append(p.orders, order)
	observ.IncCounter("orders_submitted_total", map[string]string{"mode": "paper"})
	return order.OrderID, nil
}

// Orders returns a copy of all simulated fills.
func (p *PaperExecutor) Orders() []PaperOrder {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PaperOrder, len(p.orders))
	copy(out, p.orders)
	return out
}
