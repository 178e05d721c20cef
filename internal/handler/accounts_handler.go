package handler

import (
	"net/http"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"
	"github.com/boddenberg/pj-liquidity-engine/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Accounts Handlers
// ============================================================

func listAccountsHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts")
		defer span.End()

		accounts := engine.ListAccounts(ctx)
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Account]{Data: accounts, Total: len(accounts)})
	}
}

func registerAccountHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts")
		defer span.End()

		var req domain.AccountRequest
		if !decodeBody(w, r, &req) {
			return
		}
		acct, err := engine.RegisterAccount(ctx, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, acct)
	}
}

func getAccountHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{id}")
		defer span.End()

		acct, err := engine.GetAccount(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, acct)
	}
}

func getBalanceHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{id}/balance")
		defer span.End()

		b, err := engine.AccountBalance(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

func setPrimaryAccountHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/accounts/primary")
		defer span.End()

		var req domain.PrimaryAccountRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.AccountID == "" {
			writeError(w, http.StatusBadRequest, "accountId is required")
			return
		}
		if err := engine.SetPrimaryAccount(ctx, req.AccountID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "primary account updated", ID: req.AccountID})
	}
}
