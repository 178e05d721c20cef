package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Saving goals
// ============================================================

// SavingGoal is mutated only through contributions and withdrawals that
// reference it by ID.
type SavingGoal struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"targetAmount"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
	Institution   string          `json:"institution,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Progress is the fraction of the target reached, capped at 1.
func (g SavingGoal) Progress() decimal.Decimal {
	if !g.TargetAmount.IsPositive() {
		return decimal.Zero
	}
	p := g.CurrentAmount.Div(g.TargetAmount)
	if p.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return p.Round(4)
}

// SavingGoalRequest is the body to create a goal.
type SavingGoalRequest struct {
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"targetAmount"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
	Institution   string          `json:"institution,omitempty"`
}

// Validate checks the goal request.
func (r *SavingGoalRequest) Validate() error {
	if r.Name == "" {
		return &ErrValidation{Field: "name", Message: "required"}
	}
	if !r.TargetAmount.IsPositive() {
		return &ErrValidation{Field: "targetAmount", Message: "must be positive"}
	}
	if r.CurrentAmount.IsNegative() {
		return &ErrValidation{Field: "currentAmount", Message: "must not be negative"}
	}
	return nil
}

// GoalMovement is the body for goal contributions and withdrawals.
type GoalMovement struct {
	Amount    decimal.Decimal `json:"amount"`
	AccountID string          `json:"accountId,omitempty"`
	Date      time.Time       `json:"date"`
}
