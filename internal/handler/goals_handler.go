package handler

import (
	"net/http"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"
	"github.com/boddenberg/pj-liquidity-engine/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Saving Goal Handlers
// ============================================================

func listGoalsHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/goals")
		defer span.End()

		goals := engine.ListGoals(ctx)
		if goals == nil {
			goals = []domain.SavingGoal{}
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.SavingGoal]{Data: goals, Total: len(goals)})
	}
}

func createGoalHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/goals")
		defer span.End()

		var req domain.SavingGoalRequest
		if !decodeBody(w, r, &req) {
			return
		}
		goal, err := engine.CreateGoal(ctx, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, goal)
	}
}

func contributeGoalHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/goals/{id}/contribute")
		defer span.End()

		var mv domain.GoalMovement
		if !decodeBody(w, r, &mv) {
			return
		}
		tx, err := engine.ContributeToGoal(ctx, chi.URLParam(r, "id"), mv)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, tx)
	}
}

func withdrawGoalHandler(engine *service.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/goals/{id}/withdraw")
		defer span.End()

		var mv domain.GoalMovement
		if !decodeBody(w, r, &mv) {
			return
		}
		tx, err := engine.WithdrawFromGoal(ctx, chi.URLParam(r, "id"), mv)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, tx)
	}
}
