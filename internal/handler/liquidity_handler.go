package handler

import (
	"net/http"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"
	"github.com/boddenberg/pj-liquidity-engine/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Liquidity, projection & cycle Handlers
// ============================================================

const defaultProjectionCycles = 12

func listBalancesHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/liquidity/balances")
		defer span.End()

		balances := engine.Balances(ctx)
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Balance]{Data: balances, Total: len(balances)})
	}
}

func summaryHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/liquidity/summary")
		defer span.End()

		writeJSON(w, http.StatusOK, engine.Summary(ctx))
	}
}

// projectionHandler serves GET /v1/projection?cycles=N (default 12).
func projectionHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/projection")
		defer span.End()

		cycles, err := parseIntParam(r, "cycles", defaultProjectionCycles)
		if err != nil {
			writeError(w, http.StatusBadRequest, "cycles must be an integer")
			return
		}
		span.SetAttributes(attribute.Int("projection.cycles", cycles))

		p, err := engine.Projection(ctx, cycles)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func listPricesHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/prices")
		defer span.End()

		prices := engine.Prices().All()
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.MarketPrice]{Data: prices, Total: len(prices)})
	}
}

func currentCycleHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/cycle")
		defer span.End()

		writeJSON(w, http.StatusOK, engine.CurrentCycle(ctx))
	}
}

func runCycleCheckHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/cycle/check")
		defer span.End()

		report, err := engine.RunCycleCheck(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
