package timeseries

import (
	"sync"
	"time"
)

// Sample is one observed price for a market at a point in time.
type Sample struct {
	Price float64   `json:"price"`
	At    time.Time `json:"at"`
}

// Store keeps a bounded rolling price history per market. It backs the
// volatility scaler and the momentum-reversal exit check, so reads are
// frequent and writes happen once per price refresh.
type Store struct {
	mu         sync.RWMutex
	samples    map[string][]Sample
	maxSamples int
}

const defaultMaxSamples = 720 // ~12h at one sample per minute

// NewStore creates a store that keeps at most maxSamples entries per market.
// A non-positive maxSamples selects the default cap.
func NewStore(maxSamples int) *Store {
	if maxSamples <= 0 {
		maxSamples = defaultMaxSamples
	}
	return &Store{
		samples:    make(map[string][]Sample),
		maxSamples: maxSamples,
	}
}

// Append records a price observation for a market, rotating out the oldest
// entries once the per-market cap is reached.
func (s *Store) Append(marketID string, price float64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.samples[marketID], Sample{Price: price, At: at})
	if len(history) > s.maxSamples {
		history = history[len(history)-s.maxSamples:]
	}
	s.samples[marketID] = history
}

// Recent returns samples within the given window ending at now, oldest first.
// The returned slice is a copy; callers may mutate it freely.
func (s *Store) Recent(marketID string, window time.Duration, now time.Time) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.samples[marketID]
	cutoff := now.Add(-window)

	var out []Sample
	for _, sample := range history {
		if sample.At.Before(cutoff) {
			continue
		}
		out = append(out, sample)
	}
	return out
}

// Since returns samples at or after the given time, oldest first.
func (s *Store) Since(marketID string, t time.Time) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Sample
	for _, sample := range s.samples[marketID] {
		if sample.At.Before(t) {
			continue
		}
		out = append(out, sample)
	}
	return out
}

// Last returns the most recent sample for a market, if any.
func (s *Store) Last(marketID string) (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.samples[marketID]
	if len(history) == 0 {
		return Sample{}, false
	}
	return history[len(history)-1], true
}

// Count returns the number of stored samples for a market.
func (s *Store) Count(marketID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples[marketID])
}

// Drop removes all history for a market (used when a position closes and the
// market is no longer tracked).
func (s *Store) Drop(marketID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.samples, marketID)
}
