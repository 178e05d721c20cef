package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"
	"github.com/boddenberg/pj-liquidity-engine/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunCycleCheck_FirstRunOnlyInitializes(t *testing.T) {
	f := newFixture(t, date(2026, 10, 5))

	status := f.engine.CurrentCycle(f.ctx)
	assert.Equal(t, "2026-09", status.PersistedKey)
	assert.False(t, status.Pending)
	assert.Equal(t, date(2026, 9, 25), status.WindowStart)
	assert.Equal(t, date(2026, 10, 25), status.WindowEnd)
}

func TestRunCycleCheck_UnpaidBillAccruesOverdue(t *testing.T) {
	f := newFixture(t, date(2026, 8, 20))
	exp := f.registerExpense(t, "200", 20, date(2026, 8, 20), "")

	// Paid on the 20th, before the 25th-to-25th window that closes next.
	_, err := f.engine.ApplyExpensePayment(f.ctx, exp.ID, domain.PaymentRequest{Amount: dec("200"), Date: date(2026, 8, 20)})
	require.NoError(t, err)

	f.clock.Set(date(2026, 8, 26))
	report, err := f.engine.RunCycleCheck(f.ctx)
	require.NoError(t, err)
	assert.True(t, report.Transitioned)
	assert.Empty(t, report.OverdueAdded, "payment fell inside the July cycle")

	f.clock.Set(date(2026, 9, 26))
	report, err = f.engine.RunCycleCheck(f.ctx)
	require.NoError(t, err)

	assert.True(t, report.Transitioned)
	assert.Equal(t, "2026-08", report.PreviousKey)
	assert.Equal(t, "2026-09", report.CurrentKey)
	assert.Equal(t, 0, report.SkippedCycles)
	require.NotNil(t, report.WindowStart)
	assert.Equal(t, date(2026, 8, 25), *report.WindowStart)
	assert.Equal(t, date(2026, 9, 25), *report.WindowEnd)
	assertDecimal(t, "200", report.OverdueAdded[exp.ID])

	got, err := f.engine.GetExpense(f.ctx, exp.ID)
	require.NoError(t, err)
	assertDecimal(t, "200", got.AccumulatedOverdue)
	assertDecimal(t, "400", got.TotalDue)
	assert.Equal(t, int64(2), f.metrics.EngineSnapshot().CycleTransitions)
}

func TestRunCycleCheck_PaidInWindowNoOverdue(t *testing.T) {
	f := newFixture(t, date(2026, 9, 1))
	exp := f.registerExpense(t, "200", 1, date(2026, 9, 1), "")

	_, err := f.engine.ApplyExpensePayment(f.ctx, exp.ID, domain.PaymentRequest{Amount: dec("200"), Date: date(2026, 9, 1)})
	require.NoError(t, err)

	f.clock.Set(date(2026, 9, 25))
	report, err := f.engine.RunCycleCheck(f.ctx)
	require.NoError(t, err)

	assert.True(t, report.Transitioned)
	assert.Empty(t, report.OverdueAdded)
	got, _ := f.engine.GetExpense(f.ctx, exp.ID)
	assertDecimal(t, "0", got.AccumulatedOverdue)
}

func TestRunCycleCheck_IsIdempotentWithinCycle(t *testing.T) {
	f := newFixture(t, date(2026, 9, 20))
	exp := f.registerExpense(t, "200", 20, date(2026, 9, 20), "")

	f.clock.Set(date(2026, 9, 26))
	first, err := f.engine.RunCycleCheck(f.ctx)
	require.NoError(t, err)
	require.True(t, first.Transitioned)
	after1, _ := f.engine.GetExpense(f.ctx, exp.ID)

	second, err := f.engine.RunCycleCheck(f.ctx)
	require.NoError(t, err)
	assert.False(t, second.Transitioned)
	after2, _ := f.engine.GetExpense(f.ctx, exp.ID)

	assert.Equal(t, after1, after2)
	assertDecimal(t, "200", after2.AccumulatedOverdue)
}

func TestRunCycleCheck_ResetsIncomeAccrual(t *testing.T) {
	f := newFixture(t, date(2026, 9, 20))
	inc := f.registerIncome(t, "3000", 20, date(2026, 9, 20))
	_, err := f.engine.ApplyIncomeReceipt(f.ctx, inc.ID, domain.PaymentRequest{Amount: dec("1000")})
	require.NoError(t, err)

	f.clock.Set(date(2026, 9, 25))
	report, err := f.engine.RunCycleCheck(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.IncomesReset)

	got, err := f.engine.GetIncome(f.ctx, inc.ID)
	require.NoError(t, err)
	assertDecimal(t, "0", got.AccumulatedReceived)
	assert.Equal(t, date(2026, 9, 20), got.NextConfirmationDate)
}

func TestRunCycleCheck_PartialRemainderCarriesIntoNextCycle(t *testing.T) {
	f := newFixture(t, date(2026, 9, 20))
	exp := f.registerExpense(t, "100", 20, date(2026, 9, 20), "")
	_, err := f.engine.ApplyExpensePayment(f.ctx, exp.ID, domain.PaymentRequest{Amount: dec("30")})
	require.NoError(t, err)

	f.clock.Set(date(2026, 9, 25))
	_, err = f.engine.RunCycleCheck(f.ctx)
	require.NoError(t, err)

	got, err := f.engine.GetExpense(f.ctx, exp.ID)
	require.NoError(t, err)
	assertDecimal(t, "70", got.AccumulatedOverdue)
	assertDecimal(t, "170", got.TotalDue)
	assert.False(t, got.PaidThisCycle)
}

func TestRunCycleCheck_CollapsesMissedCycles(t *testing.T) {
	f := newFixture(t, date(2026, 6, 1))
	exp := f.registerExpense(t, "50", 1, date(2026, 6, 1), "")

	f.clock.Set(date(2026, 9, 26))
	report, err := f.engine.RunCycleCheck(f.ctx)
	require.NoError(t, err)

	assert.True(t, report.Transitioned)
	assert.Equal(t, "2026-05", report.PreviousKey)
	assert.Equal(t, 3, report.SkippedCycles)
	got, _ := f.engine.GetExpense(f.ctx, exp.ID)
	assertDecimal(t, "50", got.AccumulatedOverdue, "only one transition is applied")
}

func TestRunCycleCheck_ClockBehindIsNoop(t *testing.T) {
	f := newFixture(t, date(2026, 10, 1))
	exp := f.registerExpense(t, "50", 1, date(2026, 10, 1), "")

	f.clock.Set(date(2026, 7, 1))
	report, err := f.engine.RunCycleCheck(f.ctx)
	require.NoError(t, err)
	assert.False(t, report.Transitioned)

	got, _ := f.engine.GetExpense(f.ctx, exp.ID)
	assertDecimal(t, "0", got.AccumulatedOverdue)
	assert.Equal(t, "2026-09", f.engine.CurrentCycle(f.ctx).PersistedKey)
}

func TestRunCycleCheck_FailedWriteKeepsCycleKey(t *testing.T) {
	f := newFixture(t, date(2026, 9, 20))
	exp := f.registerExpense(t, "200", 20, date(2026, 9, 20), "")

	f.store.FailWrites = errors.New("store offline")
	f.clock.Set(date(2026, 9, 26))
	_, err := f.engine.RunCycleCheck(f.ctx)
	require.Error(t, err)

	status := f.engine.CurrentCycle(f.ctx)
	assert.Equal(t, "2026-08", status.PersistedKey)
	assert.True(t, status.Pending)
	got, _ := f.engine.GetExpense(f.ctx, exp.ID)
	assertDecimal(t, "0", got.AccumulatedOverdue)

	// Once the store recovers the transition is applied exactly once.
	f.store.FailWrites = nil
	report, err := f.engine.RunCycleCheck(f.ctx)
	require.NoError(t, err)
	assert.True(t, report.Transitioned)
	got, _ = f.engine.GetExpense(f.ctx, exp.ID)
	assertDecimal(t, "200", got.AccumulatedOverdue)
}

func TestCycleScheduler_StopsOnCancel(t *testing.T) {
	f := newFixture(t, date(2026, 9, 20))
	sched := service.NewCycleScheduler(f.engine, time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	f.clock.Set(date(2026, 9, 26))
	require.Eventually(t, func() bool {
		return f.engine.CurrentCycle(f.ctx).PersistedKey == "2026-09"
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestPaymentAfterAnchorClosesPendingCycleFirst(t *testing.T) {
	// Both engines sit in the April cycle with a bill due on the anchor day.
	unchecked := newFixture(t, date(2026, 5, 20))
	checked := newFixture(t, date(2026, 5, 20))
	uncheckedExp := unchecked.registerExpense(t, "100", 25, date(2026, 5, 25), "")
	checkedExp := checked.registerExpense(t, "100", 25, date(2026, 5, 25), "")

	justAfterAnchor := date(2026, 5, 25).Add(10 * time.Minute)
	unchecked.clock.Set(justAfterAnchor)
	checked.clock.Set(justAfterAnchor)

	report, err := checked.engine.RunCycleCheck(checked.ctx)
	require.NoError(t, err)
	require.True(t, report.Transitioned)

	for _, c := range []struct {
		name string
		f    *fixture
		id   string
	}{
		{"no check before paying", unchecked, uncheckedExp.ID},
		{"check before paying", checked, checkedExp.ID},
	} {
		t.Run(c.name, func(t *testing.T) {
			res, err := c.f.engine.ApplyExpensePayment(c.f.ctx, c.id, domain.PaymentRequest{Amount: dec("100")})
			require.NoError(t, err)
			assert.Equal(t, domain.OutcomePartial, res.Outcome)
			assertDecimal(t, "100", res.Expense.AccumulatedOverdue)
			assertDecimal(t, "100", res.Expense.TotalDue)
			assert.Equal(t, date(2026, 5, 25), res.Expense.NextDueDate)
		})
	}

	status := unchecked.engine.CurrentCycle(unchecked.ctx)
	assert.Equal(t, "2026-05", status.PersistedKey)
	assert.False(t, status.Pending)

	report, err = unchecked.engine.RunCycleCheck(unchecked.ctx)
	require.NoError(t, err)
	assert.False(t, report.Transitioned, "the payment already closed the April cycle")
	got, err := unchecked.engine.GetExpense(unchecked.ctx, uncheckedExp.ID)
	require.NoError(t, err)
	assertDecimal(t, "100", got.AccumulatedOverdue)
	assert.Equal(t, int64(1), unchecked.metrics.EngineSnapshot().CycleTransitions)
}

func TestFailedMutationLeavesCyclePending(t *testing.T) {
	f := newFixture(t, date(2026, 9, 20))
	exp := f.registerExpense(t, "200", 20, date(2026, 9, 20), "")

	f.clock.Set(date(2026, 9, 26))
	_, err := f.engine.ApplyExpensePayment(f.ctx, "missing", domain.PaymentRequest{Amount: dec("10")})
	var nf *domain.ErrNotFound
	require.ErrorAs(t, err, &nf)
	assert.True(t, f.engine.CurrentCycle(f.ctx).Pending)

	_, err = f.engine.RecordTransaction(f.ctx, domain.TransactionDraft{Amount: dec("15"), Direction: domain.DirectionExpense, Date: date(2026, 9, 26)})
	require.NoError(t, err)
	assert.False(t, f.engine.CurrentCycle(f.ctx).Pending)
	got, err := f.engine.GetExpense(f.ctx, exp.ID)
	require.NoError(t, err)
	assertDecimal(t, "200", got.AccumulatedOverdue)
}
