package service

import (
	"context"
	"slices"
	"strings"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Saving goals
// ============================================================

// CreateGoal adds a saving goal.
func (e *Engine) CreateGoal(ctx context.Context, req domain.SavingGoalRequest) (*domain.SavingGoal, error) {
	ctx, span := engineTracer.Start(ctx, "Engine.CreateGoal")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	goal := domain.SavingGoal{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(req.Name),
		TargetAmount:  req.TargetAmount,
		CurrentAmount: req.CurrentAmount,
		Institution:   req.Institution,
		CreatedAt:     e.now(),
	}
	err := e.update(ctx, "create_goal", func(m *mutation) error {
		m.Goals = append(m.Goals, goal)
		m.touch(KeySavingGoals)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &goal, nil
}

// ListGoals returns every goal in creation order.
func (e *Engine) ListGoals(ctx context.Context) []domain.SavingGoal {
	_, span := engineTracer.Start(ctx, "Engine.ListGoals")
	defer span.End()

	var out []domain.SavingGoal
	e.read(func(s *state) { out = slices.Clone(s.Goals) })
	return out
}

// ContributeToGoal records a savings transaction linked to the goal.
func (e *Engine) ContributeToGoal(ctx context.Context, goalID string, mv domain.GoalMovement) (*domain.Transaction, error) {
	return e.moveGoal(ctx, goalID, mv, domain.DirectionSavings, "Contribution")
}

// WithdrawFromGoal records an income transaction that takes money out of the
// goal. Withdrawing more than the goal holds is rejected.
func (e *Engine) WithdrawFromGoal(ctx context.Context, goalID string, mv domain.GoalMovement) (*domain.Transaction, error) {
	return e.moveGoal(ctx, goalID, mv, domain.DirectionIncome, "Withdrawal")
}

func (e *Engine) moveGoal(ctx context.Context, goalID string, mv domain.GoalMovement, dir domain.Direction, label string) (*domain.Transaction, error) {
	ctx, span := engineTracer.Start(ctx, "Engine.MoveGoal")
	defer span.End()
	span.SetAttributes(
		attribute.String("goal.id", goalID),
		attribute.String("goal.direction", string(dir)),
	)

	if !mv.Amount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	date := mv.Date
	if date.IsZero() {
		date = e.now()
	}

	var tx domain.Transaction
	err := e.update(ctx, "goal_"+strings.ToLower(label), func(m *mutation) error {
		idx := m.goalIndex(goalID)
		if idx < 0 {
			return &domain.ErrNotFound{Resource: "saving goal", ID: goalID}
		}
		var err error
		tx, _, _, err = e.appendTransaction(m, domain.TransactionDraft{
			Amount:       mv.Amount,
			Description:  label + ": " + m.Goals[idx].Name,
			Category:     "savings",
			Direction:    dir,
			Date:         date,
			AccountID:    mv.AccountID,
			SavingGoalID: goalID,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	e.logger.Info("saving goal updated",
		zap.String("goal_id", goalID),
		zap.String("direction", string(dir)),
		zap.String("amount", mv.Amount.String()),
	)
	return &tx, nil
}

// applyGoalEffect books a goal-linked transaction: savings add to the goal,
// income takes from it.
func (m *mutation) applyGoalEffect(tx domain.Transaction) error {
	idx := m.goalIndex(tx.SavingGoalID)
	if idx < 0 {
		return &domain.ErrNotFound{Resource: "saving goal", ID: tx.SavingGoalID}
	}
	g := &m.Goals[idx]
	switch tx.Direction {
	case domain.DirectionSavings:
		g.CurrentAmount = g.CurrentAmount.Add(tx.Amount)
	case domain.DirectionIncome:
		if tx.Amount.GreaterThan(g.CurrentAmount) {
			return &domain.ErrInsufficientFunds{Available: g.CurrentAmount, Required: tx.Amount}
		}
		g.CurrentAmount = g.CurrentAmount.Sub(tx.Amount)
	default:
		return &domain.ErrValidation{Field: "savingGoalId", Message: "only savings and income transactions can reference a goal"}
	}
	m.touch(KeySavingGoals)
	return nil
}

// reverseGoalEffect undoes applyGoalEffect for a removed or replaced
// transaction. A goal that no longer exists is left alone. Taking back a
// contribution the goal no longer holds is rejected.
func (m *mutation) reverseGoalEffect(tx domain.Transaction) error {
	idx := m.goalIndex(tx.SavingGoalID)
	if idx < 0 {
		return nil
	}
	g := &m.Goals[idx]
	switch tx.Direction {
	case domain.DirectionSavings:
		if tx.Amount.GreaterThan(g.CurrentAmount) {
			return &domain.ErrInsufficientFunds{Available: g.CurrentAmount, Required: tx.Amount}
		}
		g.CurrentAmount = g.CurrentAmount.Sub(tx.Amount)
	case domain.DirectionIncome:
		g.CurrentAmount = g.CurrentAmount.Add(tx.Amount)
	}
	m.touch(KeySavingGoals)
	return nil
}
