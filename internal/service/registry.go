package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Recurring expenses
// ============================================================

// RegisterExpense adds a recurring expense. The first due date defaults to
// the next occurrence of its day of month.
func (e *Engine) RegisterExpense(ctx context.Context, def domain.ObligationDefinition) (*domain.ExpenseView, error) {
	ctx, span := engineTracer.Start(ctx, "Engine.RegisterExpense")
	defer span.End()

	if err := def.Validate(); err != nil {
		return nil, err
	}

	now := e.now()
	exp := domain.RecurringExpense{
		ID:          uuid.NewString(),
		Description: strings.TrimSpace(def.Description),
		Category:    def.Category,
		Amount:      def.Amount,
		DayOfMonth:  def.DayOfMonth,
		NextDueDate: domain.NextOccurrence(now, def.DayOfMonth),
	}
	if def.NextDate != nil {
		exp.NextDueDate = *def.NextDate
	}
	if def.Accumulated != nil {
		exp.AccumulatedOverdue = *def.Accumulated
	}

	var view domain.ExpenseView
	err := e.update(ctx, "register_expense", func(m *mutation) error {
		m.Expenses = append(m.Expenses, exp)
		m.touch(KeyRecurringExpenses)
		view = e.expenseView(m.state, exp, now)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	e.logger.Info("recurring expense registered",
		zap.String("id", exp.ID),
		zap.String("description", exp.Description),
		zap.Int("day_of_month", exp.DayOfMonth),
	)
	return &view, nil
}

// GetExpense returns one expense with its derived flags.
func (e *Engine) GetExpense(ctx context.Context, id string) (*domain.ExpenseView, error) {
	_, span := engineTracer.Start(ctx, "Engine.GetExpense")
	defer span.End()

	var (
		view  domain.ExpenseView
		found bool
	)
	now := e.now()
	e.read(func(s *state) {
		if idx := s.expenseIndex(id); idx >= 0 {
			view, found = e.expenseView(s, s.Expenses[idx], now), true
		}
	})
	if !found {
		return nil, &domain.ErrNotFound{Resource: "recurring expense", ID: id}
	}
	return &view, nil
}

// ListExpenses returns every expense ordered by due date.
func (e *Engine) ListExpenses(ctx context.Context) []domain.ExpenseView {
	_, span := engineTracer.Start(ctx, "Engine.ListExpenses")
	defer span.End()

	now := e.now()
	var out []domain.ExpenseView
	e.read(func(s *state) {
		out = make([]domain.ExpenseView, 0, len(s.Expenses))
		for _, exp := range s.Expenses {
			out = append(out, e.expenseView(s, exp, now))
		}
	})
	slices.SortStableFunc(out, func(a, b domain.ExpenseView) int {
		return a.NextDueDate.Compare(b.NextDueDate)
	})
	return out
}

// ReplaceExpense swaps the definition of an expense. Running state is kept
// unless the definition carries it.
func (e *Engine) ReplaceExpense(ctx context.Context, id string, def domain.ObligationDefinition) (*domain.ExpenseView, error) {
	ctx, span := engineTracer.Start(ctx, "Engine.ReplaceExpense")
	defer span.End()
	span.SetAttributes(attribute.String("recurring.id", id))

	if err := def.Validate(); err != nil {
		return nil, err
	}

	now := e.now()
	var view domain.ExpenseView
	err := e.update(ctx, "replace_expense", func(m *mutation) error {
		idx := m.expenseIndex(id)
		if idx < 0 {
			return &domain.ErrNotFound{Resource: "recurring expense", ID: id}
		}
		exp := &m.Expenses[idx]
		if exp.OverdueIncludesBase && !def.Amount.Equal(exp.Amount) {
			rebaseOverdue(exp, def.Amount)
		}
		exp.Description = strings.TrimSpace(def.Description)
		exp.Category = def.Category
		exp.Amount = def.Amount
		exp.DayOfMonth = def.DayOfMonth
		if def.NextDate != nil {
			exp.NextDueDate = *def.NextDate
		}
		if def.Accumulated != nil {
			exp.AccumulatedOverdue = *def.Accumulated
			exp.OverdueIncludesBase = false
		}
		m.touch(KeyRecurringExpenses)
		view = e.expenseView(m.state, *exp, now)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &view, nil
}

// rebaseOverdue swaps the base amount carried inside a partial payment's
// remainder for amount. A remainder the new amount no longer leaves open
// settles the cycle.
func rebaseOverdue(exp *domain.RecurringExpense, amount decimal.Decimal) {
	rest := exp.AccumulatedOverdue.Sub(exp.Amount).Add(amount)
	if rest.IsPositive() {
		exp.AccumulatedOverdue = rest
		return
	}
	exp.AccumulatedOverdue = decimal.Zero
	exp.OverdueIncludesBase = false
	exp.NextDueDate = domain.AddMonthClamped(exp.NextDueDate, exp.DayOfMonth)
}

// RemoveExpense deletes an expense. Linked transactions stay in the ledger.
func (e *Engine) RemoveExpense(ctx context.Context, id string) error {
	ctx, span := engineTracer.Start(ctx, "Engine.RemoveExpense")
	defer span.End()

	return e.update(ctx, "remove_expense", func(m *mutation) error {
		idx := m.expenseIndex(id)
		if idx < 0 {
			return &domain.ErrNotFound{Resource: "recurring expense", ID: id}
		}
		m.Expenses = slices.Delete(m.Expenses, idx, idx+1)
		m.touch(KeyRecurringExpenses)
		return nil
	})
}

// ============================================================
// Recurring incomes
// ============================================================

// RegisterIncome adds a recurring income.
func (e *Engine) RegisterIncome(ctx context.Context, def domain.ObligationDefinition) (*domain.IncomeView, error) {
	ctx, span := engineTracer.Start(ctx, "Engine.RegisterIncome")
	defer span.End()

	if err := def.Validate(); err != nil {
		return nil, err
	}

	now := e.now()
	inc := domain.RecurringIncome{
		ID:                   uuid.NewString(),
		Description:          strings.TrimSpace(def.Description),
		Category:             def.Category,
		Amount:               def.Amount,
		DayOfMonth:           def.DayOfMonth,
		NextConfirmationDate: domain.NextOccurrence(now, def.DayOfMonth),
	}
	if def.NextDate != nil {
		inc.NextConfirmationDate = *def.NextDate
	}
	if def.Accumulated != nil {
		inc.AccumulatedReceived = *def.Accumulated
	}

	var view domain.IncomeView
	err := e.update(ctx, "register_income", func(m *mutation) error {
		m.Incomes = append(m.Incomes, inc)
		m.touch(KeyRecurringIncomes)
		view = e.incomeView(m.state, inc, now)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	e.logger.Info("recurring income registered",
		zap.String("id", inc.ID),
		zap.String("description", inc.Description),
		zap.Int("day_of_month", inc.DayOfMonth),
	)
	return &view, nil
}

// GetIncome returns one income with its derived flags.
func (e *Engine) GetIncome(ctx context.Context, id string) (*domain.IncomeView, error) {
	_, span := engineTracer.Start(ctx, "Engine.GetIncome")
	defer span.End()

	var (
		view  domain.IncomeView
		found bool
	)
	now := e.now()
	e.read(func(s *state) {
		if idx := s.incomeIndex(id); idx >= 0 {
			view, found = e.incomeView(s, s.Incomes[idx], now), true
		}
	})
	if !found {
		return nil, &domain.ErrNotFound{Resource: "recurring income", ID: id}
	}
	return &view, nil
}

// ListIncomes returns every income ordered by confirmation date.
func (e *Engine) ListIncomes(ctx context.Context) []domain.IncomeView {
	_, span := engineTracer.Start(ctx, "Engine.ListIncomes")
	defer span.End()

	now := e.now()
	var out []domain.IncomeView
	e.read(func(s *state) {
		out = make([]domain.IncomeView, 0, len(s.Incomes))
		for _, inc := range s.Incomes {
			out = append(out, e.incomeView(s, inc, now))
		}
	})
	slices.SortStableFunc(out, func(a, b domain.IncomeView) int {
		return a.NextConfirmationDate.Compare(b.NextConfirmationDate)
	})
	return out
}

// ReplaceIncome swaps the definition of an income.
func (e *Engine) ReplaceIncome(ctx context.Context, id string, def domain.ObligationDefinition) (*domain.IncomeView, error) {
	ctx, span := engineTracer.Start(ctx, "Engine.ReplaceIncome")
	defer span.End()
	span.SetAttributes(attribute.String("recurring.id", id))

	if err := def.Validate(); err != nil {
		return nil, err
	}

	now := e.now()
	var view domain.IncomeView
	err := e.update(ctx, "replace_income", func(m *mutation) error {
		idx := m.incomeIndex(id)
		if idx < 0 {
			return &domain.ErrNotFound{Resource: "recurring income", ID: id}
		}
		inc := &m.Incomes[idx]
		inc.Description = strings.TrimSpace(def.Description)
		inc.Category = def.Category
		inc.Amount = def.Amount
		inc.DayOfMonth = def.DayOfMonth
		if def.NextDate != nil {
			inc.NextConfirmationDate = *def.NextDate
		}
		if def.Accumulated != nil {
			inc.AccumulatedReceived = *def.Accumulated
		}
		m.touch(KeyRecurringIncomes)
		view = e.incomeView(m.state, *inc, now)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &view, nil
}

// RemoveIncome deletes an income. Linked transactions stay in the ledger.
func (e *Engine) RemoveIncome(ctx context.Context, id string) error {
	ctx, span := engineTracer.Start(ctx, "Engine.RemoveIncome")
	defer span.End()

	return e.update(ctx, "remove_income", func(m *mutation) error {
		idx := m.incomeIndex(id)
		if idx < 0 {
			return &domain.ErrNotFound{Resource: "recurring income", ID: id}
		}
		m.Incomes = slices.Delete(m.Incomes, idx, idx+1)
		m.touch(KeyRecurringIncomes)
		return nil
	})
}

// ============================================================
// Views
// ============================================================

// expenseView marks an expense paid once a payment in the current cycle
// settled it. A partial payment leaves the base amount in the overdue and
// does not count.
func (e *Engine) expenseView(s *state, exp domain.RecurringExpense, now time.Time) domain.ExpenseView {
	start, end := domain.CycleKeyAt(now, e.settings.AnchorDay).Window(e.settings.AnchorDay, now.Location())
	return domain.ExpenseView{
		RecurringExpense: exp,
		TotalDue:         exp.TotalDue(),
		PaidThisCycle:    !exp.OverdueIncludesBase && linkedInWindow(s.Ledger, exp.ID, domain.DirectionExpense, start, end),
	}
}

// incomeView marks an income confirmed when the full amount arrived in the
// current cycle.
func (e *Engine) incomeView(_ *state, inc domain.RecurringIncome, now time.Time) domain.IncomeView {
	start, end := domain.CycleKeyAt(now, e.settings.AnchorDay).Window(e.settings.AnchorDay, now.Location())
	confirmed := inc.LastConfirmedDate != nil && !inc.LastConfirmedDate.Before(start) && inc.LastConfirmedDate.Before(end)
	return domain.IncomeView{
		RecurringIncome:    inc,
		Remaining:          inc.Remaining(),
		ConfirmedThisCycle: confirmed,
	}
}

// totalOverdue sums the overdue carried by every expense.
func totalOverdue(expenses []domain.RecurringExpense) decimal.Decimal {
	return sumAmounts(expenses, func(x domain.RecurringExpense) decimal.Decimal { return x.AccumulatedOverdue })
}
