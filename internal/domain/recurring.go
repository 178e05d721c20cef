package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Recurring obligations
// ============================================================

// RecurringExpense is a monthly bill with its running settlement state.
// AccumulatedOverdue never goes negative and NextDueDate only moves forward
// in whole months, and only once the cycle's total due has been paid.
//
// After a partial payment AccumulatedOverdue holds everything still owed for
// the cycle, base amount included, and OverdueIncludesBase is set until the
// cycle is settled or rolls over.
type RecurringExpense struct {
	ID                  string          `json:"id"`
	Description         string          `json:"description"`
	Category            string          `json:"category"`
	Amount              decimal.Decimal `json:"amount"`
	DayOfMonth          int             `json:"dayOfMonth"`
	NextDueDate         time.Time       `json:"nextDueDate"`
	AccumulatedOverdue  decimal.Decimal `json:"accumulatedOverdue"`
	OverdueIncludesBase bool            `json:"overdueIncludesBase,omitempty"`
	LastBilledDate      *time.Time      `json:"lastBilledDate,omitempty"`
}

// TotalDue is the amount needed to settle the current cycle.
func (e RecurringExpense) TotalDue() decimal.Decimal {
	if e.OverdueIncludesBase {
		return e.AccumulatedOverdue
	}
	return e.Amount.Add(e.AccumulatedOverdue)
}

// RecurringIncome is a monthly income with the amount received so far
// toward the current cycle.
type RecurringIncome struct {
	ID                   string          `json:"id"`
	Description          string          `json:"description"`
	Category             string          `json:"category"`
	Amount               decimal.Decimal `json:"amount"`
	DayOfMonth           int             `json:"dayOfMonth"`
	NextConfirmationDate time.Time       `json:"nextConfirmationDate"`
	AccumulatedReceived  decimal.Decimal `json:"accumulatedReceived"`
	LastConfirmedDate    *time.Time      `json:"lastConfirmedDate,omitempty"`
}

// Remaining is what is still expected for the current cycle.
func (i RecurringIncome) Remaining() decimal.Decimal {
	r := i.Amount.Sub(i.AccumulatedReceived)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// ObligationDefinition is the request shape to register or replace an
// obligation. NextDate maps to nextDueDate for expenses and to
// nextConfirmationDate for incomes. Accumulated is optional on replace; when
// nil the running state is preserved.
type ObligationDefinition struct {
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Amount      decimal.Decimal  `json:"amount"`
	DayOfMonth  int              `json:"dayOfMonth"`
	NextDate    *time.Time       `json:"nextDate,omitempty"`
	Accumulated *decimal.Decimal `json:"accumulated,omitempty"`
}

// Validate checks the definition's invariants.
func (d *ObligationDefinition) Validate() error {
	if d.Description == "" {
		return &ErrValidation{Field: "description", Message: "required"}
	}
	if !d.Amount.IsPositive() {
		return &ErrValidation{Field: "amount", Message: "must be positive"}
	}
	if d.DayOfMonth < 1 || d.DayOfMonth > 31 {
		return &ErrValidation{Field: "dayOfMonth", Message: "must be between 1 and 31"}
	}
	if d.Accumulated != nil && d.Accumulated.IsNegative() {
		return &ErrValidation{Field: "accumulated", Message: "must not be negative"}
	}
	return nil
}

// ExpenseView is a RecurringExpense with flags derived from the ledger.
type ExpenseView struct {
	RecurringExpense
	TotalDue      decimal.Decimal `json:"totalDue"`
	PaidThisCycle bool            `json:"paidThisCycle"`
}

// IncomeView is a RecurringIncome with flags derived from the ledger.
type IncomeView struct {
	RecurringIncome
	Remaining          decimal.Decimal `json:"remaining"`
	ConfirmedThisCycle bool            `json:"confirmedThisCycle"`
}

// PaymentRequest is the body for expense payments and income receipts.
type PaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
	AccountID string          `json:"accountId,omitempty"`
}

// PaymentOutcome labels how a payment or receipt affected its obligation.
type PaymentOutcome string

const (
	OutcomeSettled   PaymentOutcome = "settled"
	OutcomePartial   PaymentOutcome = "partial"
	OutcomeConfirmed PaymentOutcome = "confirmed"
	OutcomeAccrued   PaymentOutcome = "accrued"
)

// PaymentResult is returned by the payment resolver.
type PaymentResult struct {
	Transaction Transaction    `json:"transaction"`
	Outcome     PaymentOutcome `json:"outcome"`
	Expense     *ExpenseView   `json:"expense,omitempty"`
	Income      *IncomeView    `json:"income,omitempty"`
}
