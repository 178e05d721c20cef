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
// Recurring Expense Handlers
// ============================================================

func listExpensesHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/recurring/expenses")
		defer span.End()

		list := engine.ListExpenses(ctx)
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.ExpenseView]{Data: list, Total: len(list)})
	}
}

func registerExpenseHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/recurring/expenses")
		defer span.End()

		var def domain.ObligationDefinition
		if !decodeBody(w, r, &def) {
			return
		}
		view, err := engine.RegisterExpense(ctx, def)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, view)
	}
}

func getExpenseHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/recurring/expenses/{id}")
		defer span.End()

		view, err := engine.GetExpense(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func replaceExpenseHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/recurring/expenses/{id}")
		defer span.End()

		var def domain.ObligationDefinition
		if !decodeBody(w, r, &def) {
			return
		}
		view, err := engine.ReplaceExpense(ctx, chi.URLParam(r, "id"), def)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func removeExpenseHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/recurring/expenses/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		if err := engine.RemoveExpense(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "recurring expense removed", ID: id})
	}
}

func expensePaymentHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/recurring/expenses/{id}/payments")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("recurring.id", id))

		var req domain.PaymentRequest
		if !decodeBody(w, r, &req) {
			return
		}
		res, err := engine.ApplyExpensePayment(ctx, id, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

// ============================================================
// Recurring Income Handlers
// ============================================================

func listIncomesHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/recurring/incomes")
		defer span.End()

		list := engine.ListIncomes(ctx)
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.IncomeView]{Data: list, Total: len(list)})
	}
}

func registerIncomeHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/recurring/incomes")
		defer span.End()

		var def domain.ObligationDefinition
		if !decodeBody(w, r, &def) {
			return
		}
		view, err := engine.RegisterIncome(ctx, def)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, view)
	}
}

func getIncomeHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/recurring/incomes/{id}")
		defer span.End()

		view, err := engine.GetIncome(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func replaceIncomeHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/recurring/incomes/{id}")
		defer span.End()

		var def domain.ObligationDefinition
		if !decodeBody(w, r, &def) {
			return
		}
		view, err := engine.ReplaceIncome(ctx, chi.URLParam(r, "id"), def)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func removeIncomeHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/recurring/incomes/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		if err := engine.RemoveIncome(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "recurring income removed", ID: id})
	}
}

func incomeReceiptHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/recurring/incomes/{id}/receipts")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("recurring.id", id))

		var req domain.PaymentRequest
		if !decodeBody(w, r, &req) {
			return
		}
		res, err := engine.ApplyIncomeReceipt(ctx, id, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}
