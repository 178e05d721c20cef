package pricefeed_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/pricefeed"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/resilience"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_FetchPrices(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		symbols := strings.Split(r.URL.Query().Get("symbols"), ",")
		out := make([]domain.MarketPrice, 0, len(symbols))
		for _, s := range symbols {
			out = append(out, domain.MarketPrice{Symbol: s, Price: decimal.NewFromInt(10), Change24h: decimal.NewFromFloat(1.5)})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	cfg := resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxConcurrency: 2}
	client := pricefeed.NewHTTPClient(&http.Client{Timeout: time.Second}, srv.URL, resilience.NewCircuitBreaker("test"), cfg)

	symbols := make([]string, 0, 45)
	for i := 0; i < 45; i++ {
		symbols = append(symbols, "S"+string(rune('A'+i%26))+string(rune('A'+i/26)))
	}

	prices, err := client.FetchPrices(context.Background(), symbols)
	require.NoError(t, err)
	assert.Len(t, prices, 45)
	assert.Equal(t, int32(3), calls.Load(), "45 symbols should be fetched in 3 batches")
	assert.True(t, prices[0].Price.Equal(decimal.NewFromInt(10)))
}

func TestHTTPClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxConcurrency: 1}
	client := pricefeed.NewHTTPClient(&http.Client{Timeout: time.Second}, srv.URL, resilience.NewCircuitBreaker("test-err"), cfg)

	_, err := client.FetchPrices(context.Background(), []string{"VTI"})
	var ext *domain.ErrExternalService
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, "pricefeed", ext.Service)
}

func TestHTTPClient_NoSymbols(t *testing.T) {
	client := pricefeed.NewHTTPClient(http.DefaultClient, "http://unused", resilience.NewCircuitBreaker("noop"), resilience.Config{MaxConcurrency: 1})
	prices, err := client.FetchPrices(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, prices)
}

func TestSimulated_WalksKnownSymbols(t *testing.T) {
	feed := pricefeed.NewSimulated(map[string]decimal.Decimal{"vti": decimal.NewFromInt(200)}, 7)

	prices, err := feed.FetchPrices(context.Background(), []string{"VTI", "UNKNOWN"})
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, "VTI", prices[0].Symbol)

	lo := decimal.NewFromInt(196)
	hi := decimal.NewFromInt(204)
	assert.True(t, prices[0].Price.GreaterThanOrEqual(lo) && prices[0].Price.LessThanOrEqual(hi),
		"price %s should stay within one 2%% step", prices[0].Price)
}

func TestSimulated_SeedsNewSymbolsLazily(t *testing.T) {
	var lookups []string
	feed := pricefeed.NewSimulated(nil, 7).SeedFrom(func(symbol string) (decimal.Decimal, bool) {
		lookups = append(lookups, symbol)
		if symbol == "PETR4" {
			return decimal.NewFromInt(40), true
		}
		return decimal.Decimal{}, false
	})

	prices, err := feed.FetchPrices(context.Background(), []string{"petr4", "NOPE"})
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, "PETR4", prices[0].Symbol)
	assert.True(t, prices[0].Price.GreaterThanOrEqual(decimal.RequireFromString("39.2")) &&
		prices[0].Price.LessThanOrEqual(decimal.RequireFromString("40.8")),
		"price %s should open at the seeded value", prices[0].Price)

	_, err = feed.FetchPrices(context.Background(), []string{"PETR4"})
	require.NoError(t, err)
	assert.Equal(t, []string{"PETR4", "NOPE"}, lookups, "a known symbol is not looked up again")
}
