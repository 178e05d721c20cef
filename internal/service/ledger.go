package service

import (
	"context"
	"slices"
	"time"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Ledger
// ============================================================

// RecordTransaction appends a transaction. A recurringId routes it through
// the payment resolver and a savingGoalId updates the goal, both in the same
// state update as the ledger append.
func (e *Engine) RecordTransaction(ctx context.Context, draft domain.TransactionDraft) (*domain.Transaction, error) {
	ctx, span := engineTracer.Start(ctx, "Engine.RecordTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.direction", string(draft.Direction)))

	if err := draft.Validate(); err != nil {
		return nil, err
	}

	var (
		tx      domain.Transaction
		outcome domain.PaymentOutcome
		kind    string
	)
	err := e.update(ctx, "record_transaction", func(m *mutation) error {
		var err error
		tx, kind, outcome, err = e.appendTransaction(m, draft)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if kind != "" {
		e.metrics.IncrPayment(kind, string(outcome))
	}

	e.logger.Debug("transaction recorded",
		zap.String("id", tx.ID),
		zap.String("direction", string(tx.Direction)),
		zap.String("amount", tx.Amount.String()),
	)
	return &tx, nil
}

// EditTransaction replaces a transaction as a whole. The recurring link
// cannot change on edit, and a linked record also keeps its direction,
// amount and billing cycle, since its obligation was settled against them.
// Goal bookkeeping follows the new record.
func (e *Engine) EditTransaction(ctx context.Context, id string, draft domain.TransactionDraft) (*domain.Transaction, error) {
	ctx, span := engineTracer.Start(ctx, "Engine.EditTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	if err := draft.Validate(); err != nil {
		return nil, err
	}

	var updated domain.Transaction
	err := e.update(ctx, "edit_transaction", func(m *mutation) error {
		idx := m.transactionIndex(id)
		if idx < 0 {
			return &domain.ErrNotFound{Resource: "transaction", ID: id}
		}
		old := m.Ledger[idx]
		if draft.RecurringID != old.RecurringID {
			return &domain.ErrValidation{Field: "recurringId", Message: "cannot be changed on edit"}
		}
		if old.RecurringID != "" {
			if err := e.checkLinkedEdit(old, draft); err != nil {
				return err
			}
		}

		if old.SavingGoalID != "" {
			if err := m.reverseGoalEffect(old); err != nil {
				return err
			}
		}
		updated = e.buildTransaction(draft, old.ID, old.CreatedAt)
		if updated.SavingGoalID != "" {
			if err := m.applyGoalEffect(updated); err != nil {
				return err
			}
		}
		m.Ledger[idx] = updated
		m.touch(KeyLedger)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &updated, nil
}

// DeleteTransaction removes a transaction. Goal bookkeeping is reversed; a
// linked recurring obligation keeps its state.
func (e *Engine) DeleteTransaction(ctx context.Context, id string) error {
	ctx, span := engineTracer.Start(ctx, "Engine.DeleteTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	err := e.update(ctx, "delete_transaction", func(m *mutation) error {
		idx := m.transactionIndex(id)
		if idx < 0 {
			return &domain.ErrNotFound{Resource: "transaction", ID: id}
		}
		old := m.Ledger[idx]
		if old.SavingGoalID != "" {
			if err := m.reverseGoalEffect(old); err != nil {
				return err
			}
		}
		if old.RecurringID != "" {
			e.logger.Info("deleted transaction linked to recurring obligation, obligation state kept",
				zap.String("transaction_id", id),
				zap.String("recurring_id", old.RecurringID),
			)
		}
		m.Ledger = slices.Delete(m.Ledger, idx, idx+1)
		m.touch(KeyLedger)
		return nil
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// ListTransactions returns the matching transactions, most recent first.
func (e *Engine) ListTransactions(ctx context.Context, filter domain.TransactionFilter) []domain.Transaction {
	_, span := engineTracer.Start(ctx, "Engine.ListTransactions")
	defer span.End()

	var out []domain.Transaction
	e.read(func(s *state) {
		for _, t := range s.Ledger {
			if filter.Match(t) {
				out = append(out, t)
			}
		}
	})
	slices.SortStableFunc(out, func(a, b domain.Transaction) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// checkLinkedEdit rejects edits that would detach a payment from what its
// obligation was settled with. Delete and record again to change them.
func (e *Engine) checkLinkedEdit(old domain.Transaction, draft domain.TransactionDraft) error {
	switch {
	case draft.Direction != old.Direction:
		return &domain.ErrValidation{Field: "direction", Message: "cannot be changed on a transaction linked to a recurring obligation"}
	case !draft.Amount.Equal(old.Amount):
		return &domain.ErrValidation{Field: "amount", Message: "cannot be changed on a transaction linked to a recurring obligation"}
	}
	anchor, loc := e.settings.AnchorDay, e.now().Location()
	if domain.CycleKeyAt(draft.Date.In(loc), anchor) != domain.CycleKeyAt(old.Date.In(loc), anchor) {
		return &domain.ErrValidation{Field: "date", Message: "cannot move a linked transaction into another billing cycle"}
	}
	return nil
}

// appendTransaction is the single write path into the ledger. It returns the
// payment kind and outcome when the draft was linked to an obligation.
func (e *Engine) appendTransaction(m *mutation, draft domain.TransactionDraft) (domain.Transaction, string, domain.PaymentOutcome, error) {
	tx := e.buildTransaction(draft, uuid.NewString(), e.now())

	var (
		kind    string
		outcome domain.PaymentOutcome
	)
	if tx.RecurringID != "" {
		var err error
		kind, outcome, err = m.resolvePayment(tx)
		if err != nil {
			return domain.Transaction{}, "", "", err
		}
	}
	if tx.SavingGoalID != "" {
		if err := m.applyGoalEffect(tx); err != nil {
			return domain.Transaction{}, "", "", err
		}
	}

	m.Ledger = append(m.Ledger, tx)
	m.touch(KeyLedger)
	return tx, kind, outcome, nil
}

// buildTransaction fills defaults: an empty source goes to the cash bucket,
// and so does the missing destination of a transfer or withdrawal.
func (e *Engine) buildTransaction(d domain.TransactionDraft, id string, createdAt time.Time) domain.Transaction {
	tx := domain.Transaction{
		ID:                   id,
		Amount:               d.Amount,
		Description:          d.Description,
		Category:             d.Category,
		Direction:            d.Direction,
		Date:                 d.Date,
		AccountID:            d.AccountID,
		DestinationAccountID: d.DestinationAccountID,
		RecurringID:          d.RecurringID,
		SavingGoalID:         d.SavingGoalID,
		CreatedAt:            createdAt,
	}
	if tx.AccountID == "" {
		tx.AccountID = e.settings.CashAccountID
	}
	if tx.Direction.Moves() && tx.DestinationAccountID == "" {
		tx.DestinationAccountID = e.settings.CashAccountID
	}
	if !tx.Direction.Moves() {
		tx.DestinationAccountID = ""
	}
	return tx
}

// linkedInWindow reports whether the ledger holds a transaction of the given
// direction linked to recurringID with a date in [start, end).
func linkedInWindow(ledger []domain.Transaction, recurringID string, dir domain.Direction, start, end time.Time) bool {
	for _, t := range ledger {
		if t.RecurringID == recurringID && t.Direction == dir && !t.Date.Before(start) && t.Date.Before(end) {
			return true
		}
	}
	return false
}

func sumAmounts[T any](items []T, amount func(T) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(amount(it))
	}
	return total
}
