package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/observability"
	"github.com/boddenberg/pj-liquidity-engine/internal/port"
	"github.com/boddenberg/pj-liquidity-engine/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(engine *service.Engine, store port.KVStore, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(store, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// 1. Ledger
		// =============================================
		r.Get("/transactions", listTransactionsHandler(engine, logger))
		r.Post("/transactions", recordTransactionHandler(engine, logger))
		r.Put("/transactions/{id}", editTransactionHandler(engine, logger))
		r.Delete("/transactions/{id}", deleteTransactionHandler(engine, logger))
		r.Post("/drafts", applyDraftHandler(engine, logger))

		// =============================================
		// 2. Recurring obligations
		// =============================================
		r.Route("/recurring/expenses", func(r chi.Router) {
			r.Get("/", listExpensesHandler(engine, logger))
			r.Post("/", registerExpenseHandler(engine, logger))
			r.Get("/{id}", getExpenseHandler(engine, logger))
			r.Put("/{id}", replaceExpenseHandler(engine, logger))
			r.Delete("/{id}", removeExpenseHandler(engine, logger))
			r.Post("/{id}/payments", expensePaymentHandler(engine, logger))
		})
		r.Route("/recurring/incomes", func(r chi.Router) {
			r.Get("/", listIncomesHandler(engine, logger))
			r.Post("/", registerIncomeHandler(engine, logger))
			r.Get("/{id}", getIncomeHandler(engine, logger))
			r.Put("/{id}", replaceIncomeHandler(engine, logger))
			r.Delete("/{id}", removeIncomeHandler(engine, logger))
			r.Post("/{id}/receipts", incomeReceiptHandler(engine, logger))
		})

		// =============================================
		// 3. Accounts & liquidity
		// =============================================
		r.Get("/accounts", listAccountsHandler(engine, logger))
		r.Post("/accounts", registerAccountHandler(engine, logger))
		r.Put("/accounts/primary", setPrimaryAccountHandler(engine, logger))
		r.Get("/accounts/{id}", getAccountHandler(engine, logger))
		r.Get("/accounts/{id}/balance", getBalanceHandler(engine, logger))
		r.Get("/liquidity/balances", listBalancesHandler(engine, logger))
		r.Get("/liquidity/summary", summaryHandler(engine, logger))
		r.Get("/projection", projectionHandler(engine, logger))
		r.Get("/prices", listPricesHandler(engine, logger))

		// =============================================
		// 4. Billing cycle
		// =============================================
		r.Get("/cycle", currentCycleHandler(engine, logger))
		r.Post("/cycle/check", runCycleCheckHandler(engine, logger))

		// =============================================
		// 5. Saving goals
		// =============================================
		r.Get("/goals", listGoalsHandler(engine, logger))
		r.Post("/goals", createGoalHandler(engine, logger))
		r.Post("/goals/{id}/contribute", contributeGoalHandler(engine, logger))
		r.Post("/goals/{id}/withdraw", withdrawGoalHandler(engine, logger))

		// =============================================
		// 6. Metrics
		// =============================================
		r.Get("/metrics/engine", engineMetricsHandler(metrics))
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(store port.KVStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "liquidity-engine", Status: "healthy", LastChecked: now},
		}

		if store != nil {
			start := time.Now()
			_, err := store.Get(ctx, service.KeyCycle)
			status := "healthy"
			if err != nil {
				status = "unhealthy"
				logger.Warn("state store health check failed", zap.Error(err))
			}
			services = append(services, domain.ServiceHealth{
				Name: "state-store", Status: status, LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}

		overall := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overall = s.Status
				break
			}
		}

		code := http.StatusOK
		if overall == "unhealthy" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, domain.HealthStatus{Status: overall, Services: services})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func engineMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.EngineSnapshot())
	}
}
