package handler

import (
	"net/http"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"
	"github.com/boddenberg/pj-liquidity-engine/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Ledger Handlers
// ============================================================

// listTransactionsHandler serves GET /v1/transactions with optional filters:
// ?accountId=&recurringId=&direction=&from=&to= (from inclusive, to exclusive).
func listTransactionsHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions")
		defer span.End()

		q := r.URL.Query()
		filter := domain.TransactionFilter{
			AccountID:   q.Get("accountId"),
			RecurringID: q.Get("recurringId"),
			Direction:   domain.Direction(q.Get("direction")),
		}
		if filter.Direction != "" && !filter.Direction.IsValid() {
			writeError(w, http.StatusBadRequest, "invalid direction")
			return
		}
		var err error
		if filter.From, err = parseDateParam(q.Get("from")); err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date")
			return
		}
		if filter.To, err = parseDateParam(q.Get("to")); err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date")
			return
		}

		txs := engine.ListTransactions(ctx, filter)
		if txs == nil {
			txs = []domain.Transaction{}
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Transaction]{Data: txs, Total: len(txs)})
	}
}

func recordTransactionHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions")
		defer span.End()

		var draft domain.TransactionDraft
		if !decodeBody(w, r, &draft) {
			return
		}

		tx, err := engine.RecordTransaction(ctx, draft)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, tx)
	}
}

func editTransactionHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/transactions/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("transaction.id", id))

		var draft domain.TransactionDraft
		if !decodeBody(w, r, &draft) {
			return
		}

		tx, err := engine.EditTransaction(ctx, id, draft)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	}
}

func deleteTransactionHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/transactions/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		if err := engine.DeleteTransaction(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "transaction deleted", ID: id})
	}
}

// applyDraftHandler serves POST /v1/drafts for drafts the user approved.
func applyDraftHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/drafts")
		defer span.End()

		var draft domain.ApprovedDraft
		if !decodeBody(w, r, &draft) {
			return
		}
		span.SetAttributes(attribute.String("draft.type", string(draft.UpdateType)))

		res, err := engine.ApplyDraft(ctx, draft)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}
