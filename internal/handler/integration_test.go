package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"
	"github.com/boddenberg/pj-liquidity-engine/internal/handler"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/cache"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/clock"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/kv"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/observability"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/pricefeed"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/resilience"
	"github.com/boddenberg/pj-liquidity-engine/internal/port"
	"github.com/boddenberg/pj-liquidity-engine/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stack struct {
	router    http.Handler
	refresher *service.PriceRefresher
	store     port.KVStore
}

func buildStack(t *testing.T, ctx context.Context, dbPath, priceURL string, now time.Time) *stack {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	store, err := kv.Open(kv.DriverBolt, dbPath)
	require.NoError(t, err)

	book := service.NewPriceBook(cache.New[domain.MarketPrice](ctx, time.Hour), metrics)
	engine := service.NewEngine(store, clock.NewFixed(now), book, service.Settings{AnchorDay: 25, CashAccountID: "cash"}, metrics, logger)
	_, err = engine.Load(ctx)
	require.NoError(t, err)

	cfg := resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxConcurrency: 2}
	feed := pricefeed.NewHTTPClient(&http.Client{Timeout: time.Second}, priceURL, resilience.NewCircuitBreaker("integration"), cfg)

	return &stack{
		router:    handler.NewRouter(engine, store, metrics, logger),
		refresher: service.NewPriceRefresher(feed, book, engine.Symbols, time.Minute, metrics, logger),
		store:     store,
	}
}

// TestIntegration_FullFlow runs the service against a bolt store and a mock
// quote API, then restarts it on the same file.
func TestIntegration_FullFlow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Mock price API ---
	priceServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var out []domain.MarketPrice
		for _, s := range strings.Split(r.URL.Query().Get("symbols"), ",") {
			out = append(out, domain.MarketPrice{Symbol: s, Price: decimal.NewFromInt(40), UpdatedAt: time.Now()})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}))
	defer priceServer.Close()

	dbPath := filepath.Join(t.TempDir(), "liquidity.db")
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	s := buildStack(t, ctx, dbPath, priceServer.URL, now)

	// --- Seed through the API ---
	require.Equal(t, http.StatusCreated, do(t, s.router, http.MethodPost, "/v1/accounts",
		`{"id":"nubank","name":"Nubank","type":"bank","openingBalance":"1000"}`).Code)
	require.Equal(t, http.StatusCreated, do(t, s.router, http.MethodPost, "/v1/accounts",
		`{"id":"broker","name":"Broker","type":"investment","holdings":[{"symbol":"petr4","quantity":"10","purchasePrice":"30"}]}`).Code)
	require.Equal(t, http.StatusOK, do(t, s.router, http.MethodPut, "/v1/accounts/primary", `{"accountId":"nubank"}`).Code)
	rec := do(t, s.router, http.MethodPost, "/v1/recurring/expenses",
		`{"description":"Rent","amount":"600","dayOfMonth":5,"nextDate":"2026-11-05T00:00:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Before any quote arrives the holding is valued at purchase price.
	rec = do(t, s.router, http.MethodGet, "/v1/liquidity/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assertDecimal(t, "300", decode[domain.LiquiditySummary](t, rec).InvestmentValue)

	// --- Refresh quotes from the mock API ---
	require.NoError(t, s.refresher.RefreshOnce(ctx))

	rec = do(t, s.router, http.MethodGet, "/v1/prices", "")
	require.Equal(t, http.StatusOK, rec.Code)
	prices := decode[domain.ListResponse[domain.MarketPrice]](t, rec)
	require.Equal(t, 1, prices.Total)
	require.Equal(t, "PETR4", prices.Data[0].Symbol)

	rec = do(t, s.router, http.MethodGet, "/v1/liquidity/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[domain.LiquiditySummary](t, rec)
	assertDecimal(t, "400", summary.InvestmentValue)
	assertDecimal(t, "1000", summary.LiquidFunds)
	require.Equal(t, "nubank", summary.PrimaryAccountID)

	// --- Restart on the same file ---
	require.NoError(t, s.store.Close())
	s = buildStack(t, ctx, dbPath, priceServer.URL, now)
	defer s.store.Close()

	rec = do(t, s.router, http.MethodGet, "/v1/recurring/expenses", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, decode[domain.ListResponse[domain.ExpenseView]](t, rec).Total)

	rec = do(t, s.router, http.MethodGet, "/v1/accounts/broker", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[domain.Account](t, rec).Holdings, 1)

	rec = do(t, s.router, http.MethodGet, "/v1/cycle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, decode[domain.CycleStatus](t, rec).Pending)
}
