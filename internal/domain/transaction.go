package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Ledger
// ============================================================

// Direction determines how a transaction's amount is signed when aggregated.
type Direction string

const (
	DirectionIncome     Direction = "income"
	DirectionExpense    Direction = "expense"
	DirectionTransfer   Direction = "transfer"
	DirectionWithdrawal Direction = "withdrawal"
	DirectionSavings    Direction = "savings"
)

// IsValid reports whether d is one of the known directions.
func (d Direction) IsValid() bool {
	switch d {
	case DirectionIncome, DirectionExpense, DirectionTransfer, DirectionWithdrawal, DirectionSavings:
		return true
	}
	return false
}

// Moves reports whether the direction moves money between two accounts.
func (d Direction) Moves() bool {
	return d == DirectionTransfer || d == DirectionWithdrawal
}

// Transaction is an immutable financial event. It is only ever replaced as a
// whole through an explicit edit.
type Transaction struct {
	ID                   string          `json:"id"`
	Amount               decimal.Decimal `json:"amount"`
	Description          string          `json:"description"`
	Category             string          `json:"category"`
	Direction            Direction       `json:"direction"`
	Date                 time.Time       `json:"date"`
	AccountID            string          `json:"accountId"`
	DestinationAccountID string          `json:"destinationAccountId,omitempty"`
	RecurringID          string          `json:"recurringId,omitempty"`
	SavingGoalID         string          `json:"savingGoalId,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
}

// TransactionDraft is the request shape for a new or replacement transaction.
// Manual entries, approved AI drafts and bank-sync drafts all share it.
type TransactionDraft struct {
	Amount               decimal.Decimal `json:"amount"`
	Description          string          `json:"description"`
	Category             string          `json:"category"`
	Direction            Direction       `json:"direction"`
	Date                 time.Time       `json:"date"`
	AccountID            string          `json:"accountId,omitempty"`
	DestinationAccountID string          `json:"destinationAccountId,omitempty"`
	RecurringID          string          `json:"recurringId,omitempty"`
	SavingGoalID         string          `json:"savingGoalId,omitempty"`
}

// Validate checks the invariants every recorded transaction must satisfy.
func (d *TransactionDraft) Validate() error {
	if !d.Amount.IsPositive() {
		return &ErrValidation{Field: "amount", Message: "must be positive"}
	}
	if !d.Direction.IsValid() {
		return &ErrValidation{Field: "direction", Message: "must be one of income, expense, transfer, withdrawal, savings"}
	}
	if d.Date.IsZero() {
		return &ErrValidation{Field: "date", Message: "required"}
	}
	return nil
}

// TransactionFilter narrows a ledger listing. Zero values match everything.
type TransactionFilter struct {
	AccountID   string
	RecurringID string
	Direction   Direction
	From        time.Time
	To          time.Time
}

// Match reports whether t passes the filter. From is inclusive, To exclusive.
func (f TransactionFilter) Match(t Transaction) bool {
	if f.AccountID != "" && t.AccountID != f.AccountID && t.DestinationAccountID != f.AccountID {
		return false
	}
	if f.RecurringID != "" && t.RecurringID != f.RecurringID {
		return false
	}
	if f.Direction != "" && t.Direction != f.Direction {
		return false
	}
	if !f.From.IsZero() && t.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !t.Date.Before(f.To) {
		return false
	}
	return true
}
