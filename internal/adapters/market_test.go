package adapters

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMarketClient(t *testing.T, handler http.HandlerFunc) *PolymarketData {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewPolymarketData(MarketConfig{
		GammaBaseURL:       srv.URL,
		ClobBaseURL:        srv.URL,
		RateLimitPerMinute: 6000,
	})
}

func TestListMarketsFiltersAndDecodes(t *testing.T) {
	p := newMarketClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "false", r.URL.Query().Get("closed"))
		w.Write([]byte(`[
			{"id":"m1","question":"Will it rain in Miami on Friday?","active":true,"closed":false,
			 "endDate":"2026-09-04T12:00:00Z","volume24hr":15000,
			 "clobTokenIds":"[\"tok-yes\",\"tok-no\"]","outcomePrices":"[\"0.34\",\"0.66\"]"},
			{"id":"m2","question":"Will it rain in Seattle?","active":true,"closed":false,"volume24hr":50},
			{"id":"m3","question":"NBA finals winner","active":true,"closed":false,"volume24hr":90000},
			{"id":"m4","question":"Will it rain in Boston?","active":true,"closed":true,"volume24hr":90000}
		]`))
	})

	markets, err := p.ListMarkets(context.Background(), "rain", ListFilters{ActiveOnly: true, MinVolume: 1000})
	require.NoError(t, err)
	require.Len(t, markets, 1)

	m := markets[0]
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, "tok-yes", m.InstrumentID)
	assert.Equal(t, 0.34, m.YesPrice)
	assert.Equal(t, 15000.0, m.Volume24h)
	assert.Equal(t, 2026, m.EndDate.Year())
}

func TestListMarketsEmptyKeywordMatchesAll(t *testing.T) {
	p := newMarketClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id":"m1","question":"Snow in Chicago?","active":true,"volume24hr":5000},
			{"id":"m2","question":"High temperature in Houston?","active":true,"volume24hr":5000}
		]`))
	})

	markets, err := p.ListMarkets(context.Background(), "", ListFilters{})
	require.NoError(t, err)
	assert.Len(t, markets, 2)
}

func TestListMarketsUpstreamError(t *testing.T) {
	p := newMarketClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := p.ListMarkets(context.Background(), "rain", ListFilters{})
	require.Error(t, err)

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "upstream", pe.Type)
	assert.Equal(t, "polymarket", pe.Provider)
}

func TestGetMidpoint(t *testing.T) {
	p := newMarketClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok-yes", r.URL.Query().Get("token_id"))
		w.Write([]byte(`{"mid":"0.415"}`))
	})

	mid, err := p.GetMidpoint(context.Background(), "tok-yes")
	require.NoError(t, err)
	assert.Equal(t, 0.415, mid)
}

func TestGetMidpointDecodeError(t *testing.T) {
	p := newMarketClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"mid":"not-a-number"}`))
	})

	_, err := p.GetMidpoint(context.Background(), "tok-yes")
	require.Error(t, err)

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "decode", pe.Type)
}

func TestGetOrderBook(t *testing.T) {
	p := newMarketClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"bids":[{"price":"0.40","size":"1000"},{"price":"0.39","size":"500"}],
			"asks":[{"price":"0.42","size":"800"},{"price":"bad","size":"1"}]
		}`))
	})

	book, err := p.GetOrderBook(context.Background(), "tok-yes")
	require.NoError(t, err)

	require.Len(t, book.Bids, 2)
	require.Len(t, book.Asks, 1) // unparseable level dropped

	bid, ok := book.BestBid()
	require.True(t, ok)
	assert.Equal(t, 0.40, bid.Price)
	assert.Equal(t, 1000.0, bid.Size)

	ask, ok := book.BestAsk()
	require.True(t, ok)
	assert.Equal(t, 0.42, ask.Price)
}

func TestDecodeStringArray(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, decodeStringArray(`["a","b"]`))
	assert.Nil(t, decodeStringArray(""))
	assert.Nil(t, decodeStringArray("not json"))
}
