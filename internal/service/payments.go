package service

import (
	"context"
	"time"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Payment resolver
// ============================================================

const (
	paymentKindExpense = "expense"
	paymentKindIncome  = "income"
)

// ApplyExpensePayment pays toward a recurring expense and records the linked
// expense transaction.
func (e *Engine) ApplyExpensePayment(ctx context.Context, recurringID string, req domain.PaymentRequest) (*domain.PaymentResult, error) {
	ctx, span := engineTracer.Start(ctx, "Engine.ApplyExpensePayment")
	defer span.End()
	span.SetAttributes(
		attribute.String("recurring.id", recurringID),
		attribute.String("payment.amount", req.Amount.String()),
	)

	if !req.Amount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	date := req.Date
	if date.IsZero() {
		date = e.now()
	}

	var (
		result domain.PaymentResult
		now    = e.now()
	)
	err := e.update(ctx, "expense_payment", func(m *mutation) error {
		idx := m.expenseIndex(recurringID)
		if idx < 0 {
			return &domain.ErrNotFound{Resource: "recurring expense", ID: recurringID}
		}
		exp := m.Expenses[idx]
		tx, _, outcome, err := e.appendTransaction(m, domain.TransactionDraft{
			Amount:      req.Amount,
			Description: exp.Description,
			Category:    exp.Category,
			Direction:   domain.DirectionExpense,
			Date:        date,
			AccountID:   req.AccountID,
			RecurringID: recurringID,
		})
		if err != nil {
			return err
		}
		view := e.expenseView(m.state, m.Expenses[idx], now)
		result = domain.PaymentResult{Transaction: tx, Outcome: outcome, Expense: &view}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	e.metrics.IncrPayment(paymentKindExpense, string(result.Outcome))
	e.logger.Info("expense payment applied",
		zap.String("recurring_id", recurringID),
		zap.String("amount", req.Amount.String()),
		zap.String("outcome", string(result.Outcome)),
		zap.String("overdue", result.Expense.AccumulatedOverdue.String()),
	)
	return &result, nil
}

// ApplyIncomeReceipt records money received toward a recurring income.
func (e *Engine) ApplyIncomeReceipt(ctx context.Context, recurringID string, req domain.PaymentRequest) (*domain.PaymentResult, error) {
	ctx, span := engineTracer.Start(ctx, "Engine.ApplyIncomeReceipt")
	defer span.End()
	span.SetAttributes(
		attribute.String("recurring.id", recurringID),
		attribute.String("payment.amount", req.Amount.String()),
	)

	if !req.Amount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	date := req.Date
	if date.IsZero() {
		date = e.now()
	}

	var (
		result domain.PaymentResult
		now    = e.now()
	)
	err := e.update(ctx, "income_receipt", func(m *mutation) error {
		idx := m.incomeIndex(recurringID)
		if idx < 0 {
			return &domain.ErrNotFound{Resource: "recurring income", ID: recurringID}
		}
		inc := m.Incomes[idx]
		tx, _, outcome, err := e.appendTransaction(m, domain.TransactionDraft{
			Amount:      req.Amount,
			Description: inc.Description,
			Category:    inc.Category,
			Direction:   domain.DirectionIncome,
			Date:        date,
			AccountID:   req.AccountID,
			RecurringID: recurringID,
		})
		if err != nil {
			return err
		}
		view := e.incomeView(m.state, m.Incomes[idx], now)
		result = domain.PaymentResult{Transaction: tx, Outcome: outcome, Income: &view}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	e.metrics.IncrPayment(paymentKindIncome, string(result.Outcome))
	e.logger.Info("income receipt applied",
		zap.String("recurring_id", recurringID),
		zap.String("amount", req.Amount.String()),
		zap.String("outcome", string(result.Outcome)),
	)
	return &result, nil
}

// resolvePayment applies a linked transaction to its obligation. The
// direction must match the registry the id lives in.
func (m *mutation) resolvePayment(tx domain.Transaction) (string, domain.PaymentOutcome, error) {
	if idx := m.expenseIndex(tx.RecurringID); idx >= 0 {
		if tx.Direction != domain.DirectionExpense {
			return "", "", &domain.ErrValidation{Field: "direction", Message: "payments toward a recurring expense must be expenses"}
		}
		outcome := settleExpense(&m.Expenses[idx], tx.Amount, tx.Date)
		m.touch(KeyRecurringExpenses)
		return paymentKindExpense, outcome, nil
	}
	if idx := m.incomeIndex(tx.RecurringID); idx >= 0 {
		if tx.Direction != domain.DirectionIncome {
			return "", "", &domain.ErrValidation{Field: "direction", Message: "receipts toward a recurring income must be income"}
		}
		outcome := receiveIncome(&m.Incomes[idx], tx.Amount, tx.Date)
		m.touch(KeyRecurringIncomes)
		return paymentKindIncome, outcome, nil
	}
	return "", "", &domain.ErrNotFound{Resource: "recurring obligation", ID: tx.RecurringID}
}

// settleExpense clears the cycle when amount covers the total due and
// advances the due date by one month. Otherwise the remainder is carried as
// overdue and the due date stays put. Overpayment is not credited forward.
func settleExpense(exp *domain.RecurringExpense, amount decimal.Decimal, date time.Time) domain.PaymentOutcome {
	due := exp.TotalDue()
	billed := date
	exp.LastBilledDate = &billed

	if amount.GreaterThanOrEqual(due) {
		exp.AccumulatedOverdue = decimal.Zero
		exp.OverdueIncludesBase = false
		exp.NextDueDate = domain.AddMonthClamped(exp.NextDueDate, exp.DayOfMonth)
		return domain.OutcomeSettled
	}

	exp.AccumulatedOverdue = due.Sub(amount)
	exp.OverdueIncludesBase = true
	return domain.OutcomePartial
}

// receiveIncome accumulates a receipt and confirms the cycle once the full
// amount has arrived. Any surplus is discarded.
func receiveIncome(inc *domain.RecurringIncome, amount decimal.Decimal, date time.Time) domain.PaymentOutcome {
	inc.AccumulatedReceived = inc.AccumulatedReceived.Add(amount)
	if inc.AccumulatedReceived.LessThan(inc.Amount) {
		return domain.OutcomeAccrued
	}

	confirmed := date
	inc.LastConfirmedDate = &confirmed
	inc.AccumulatedReceived = decimal.Zero
	inc.NextConfirmationDate = domain.AddMonthClamped(inc.NextConfirmationDate, inc.DayOfMonth)
	return domain.OutcomeConfirmed
}
