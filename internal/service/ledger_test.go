package service_test

import (
	"testing"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTransaction_Defaults(t *testing.T) {
	f := newFixture(t, date(2026, 10, 5))

	out, err := f.engine.RecordTransaction(f.ctx, domain.TransactionDraft{
		Amount:    dec("20"),
		Direction: domain.DirectionWithdrawal,
		Date:      date(2026, 10, 4),
		AccountID: "broker",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, out.ID)
	assert.Equal(t, "broker", out.AccountID)
	assert.Equal(t, "cash", out.DestinationAccountID)
	assert.Equal(t, date(2026, 10, 5), out.CreatedAt)

	out, err = f.engine.RecordTransaction(f.ctx, domain.TransactionDraft{
		Amount:               dec("5"),
		Direction:            domain.DirectionExpense,
		Date:                 date(2026, 10, 4),
		DestinationAccountID: "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, "cash", out.AccountID)
	assert.Empty(t, out.DestinationAccountID)
}

func TestRecordTransaction_Validation(t *testing.T) {
	f := newFixture(t, date(2026, 10, 5))

	tests := []struct {
		name  string
		draft domain.TransactionDraft
		field string
	}{
		{"zero amount", domain.TransactionDraft{Amount: dec("0"), Direction: domain.DirectionIncome, Date: date(2026, 10, 1)}, "amount"},
		{"negative amount", domain.TransactionDraft{Amount: dec("-1"), Direction: domain.DirectionIncome, Date: date(2026, 10, 1)}, "amount"},
		{"unknown direction", domain.TransactionDraft{Amount: dec("1"), Direction: "gift", Date: date(2026, 10, 1)}, "direction"},
		{"missing date", domain.TransactionDraft{Amount: dec("1"), Direction: domain.DirectionIncome}, "date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.RecordTransaction(f.ctx, tt.draft)
			var verr *domain.ErrValidation
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
	assert.Empty(t, f.engine.ListTransactions(f.ctx, domain.TransactionFilter{}))
}

func TestEditTransaction(t *testing.T) {
	f := newFixture(t, date(2026, 10, 5))
	orig, err := f.engine.RecordTransaction(f.ctx, domain.TransactionDraft{Amount: dec("20"), Direction: domain.DirectionExpense, Date: date(2026, 10, 4), Description: "Lunch"})
	require.NoError(t, err)

	edited, err := f.engine.EditTransaction(f.ctx, orig.ID, domain.TransactionDraft{Amount: dec("25"), Direction: domain.DirectionExpense, Date: date(2026, 10, 4), Description: "Lunch + tip"})
	require.NoError(t, err)
	assert.Equal(t, orig.ID, edited.ID)
	assert.Equal(t, orig.CreatedAt, edited.CreatedAt)

	txs := f.engine.ListTransactions(f.ctx, domain.TransactionFilter{})
	require.Len(t, txs, 1)
	assert.Equal(t, "Lunch + tip", txs[0].Description)
	assertDecimal(t, "25", txs[0].Amount)

	_, err = f.engine.EditTransaction(f.ctx, "missing", domain.TransactionDraft{Amount: dec("1"), Direction: domain.DirectionExpense, Date: date(2026, 10, 4)})
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestEditTransaction_CannotRelinkObligation(t *testing.T) {
	f := newFixture(t, date(2026, 10, 5))
	exp := f.registerExpense(t, "100", 10, date(2026, 10, 10), "")
	res, err := f.engine.ApplyExpensePayment(f.ctx, exp.ID, domain.PaymentRequest{Amount: dec("40")})
	require.NoError(t, err)

	_, err = f.engine.EditTransaction(f.ctx, res.Transaction.ID, domain.TransactionDraft{Amount: dec("40"), Direction: domain.DirectionExpense, Date: date(2026, 10, 5)})
	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "recurringId", verr.Field)
}

func TestEditTransaction_LinkedPaymentKeepsSettlementFields(t *testing.T) {
	f := newFixture(t, date(2026, 10, 5))
	exp := f.registerExpense(t, "100", 10, date(2026, 10, 10), "")
	res, err := f.engine.ApplyExpensePayment(f.ctx, exp.ID, domain.PaymentRequest{Amount: dec("100"), Date: date(2026, 10, 5)})
	require.NoError(t, err)
	id := res.Transaction.ID

	cases := []struct {
		name  string
		draft domain.TransactionDraft
		field string
	}{
		{"direction", domain.TransactionDraft{Amount: dec("100"), Direction: domain.DirectionIncome, Date: date(2026, 10, 5), RecurringID: exp.ID}, "direction"},
		{"amount", domain.TransactionDraft{Amount: dec("10"), Direction: domain.DirectionExpense, Date: date(2026, 10, 5), RecurringID: exp.ID}, "amount"},
		{"date in another cycle", domain.TransactionDraft{Amount: dec("100"), Direction: domain.DirectionExpense, Date: date(2026, 10, 26), RecurringID: exp.ID}, "date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.EditTransaction(f.ctx, id, tc.draft)
			var verr *domain.ErrValidation
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}

	// Description and a date inside the same cycle can still change.
	edited, err := f.engine.EditTransaction(f.ctx, id, domain.TransactionDraft{
		Amount: dec("100"), Direction: domain.DirectionExpense, Date: date(2026, 10, 1),
		Description: "Rent (bank slip)", RecurringID: exp.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Rent (bank slip)", edited.Description)

	// The payment still counts when the cycle closes.
	f.clock.Set(date(2026, 10, 26))
	report, err := f.engine.RunCycleCheck(f.ctx)
	require.NoError(t, err)
	require.True(t, report.Transitioned)
	assert.Empty(t, report.OverdueAdded)
	got, err := f.engine.GetExpense(f.ctx, exp.ID)
	require.NoError(t, err)
	assertDecimal(t, "0", got.AccumulatedOverdue)
}

func TestDeleteTransaction_KeepsObligationState(t *testing.T) {
	f := newFixture(t, date(2026, 10, 5))
	exp := f.registerExpense(t, "100", 10, date(2026, 10, 10), "")
	res, err := f.engine.ApplyExpensePayment(f.ctx, exp.ID, domain.PaymentRequest{Amount: dec("100")})
	require.NoError(t, err)

	require.NoError(t, f.engine.DeleteTransaction(f.ctx, res.Transaction.ID))

	got, err := f.engine.GetExpense(f.ctx, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, date(2026, 11, 10), got.NextDueDate)
	assert.False(t, got.PaidThisCycle)
	assert.Empty(t, f.engine.ListTransactions(f.ctx, domain.TransactionFilter{}))

	err = f.engine.DeleteTransaction(f.ctx, res.Transaction.ID)
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestListTransactions_FilterAndOrder(t *testing.T) {
	f := newFixture(t, date(2026, 10, 5))
	record := func(day int, dir domain.Direction, account, dest string) {
		_, err := f.engine.RecordTransaction(f.ctx, domain.TransactionDraft{
			Amount: dec("1"), Direction: dir, Date: date(2026, 9, day), AccountID: account, DestinationAccountID: dest,
		})
		require.NoError(t, err)
	}
	record(1, domain.DirectionIncome, "main", "")
	record(3, domain.DirectionExpense, "main", "")
	record(2, domain.DirectionTransfer, "side", "main")
	record(4, domain.DirectionExpense, "side", "")

	all := f.engine.ListTransactions(f.ctx, domain.TransactionFilter{AccountID: "main"})
	require.Len(t, all, 3)
	assert.Equal(t, date(2026, 9, 3), all[0].Date)
	assert.Equal(t, date(2026, 9, 1), all[2].Date)

	window := f.engine.ListTransactions(f.ctx, domain.TransactionFilter{From: date(2026, 9, 2), To: date(2026, 9, 4)})
	assert.Len(t, window, 2)

	expenses := f.engine.ListTransactions(f.ctx, domain.TransactionFilter{Direction: domain.DirectionExpense})
	assert.Len(t, expenses, 2)
}

func TestRegistry_ReplaceKeepsRunningState(t *testing.T) {
	f := newFixture(t, date(2026, 10, 5))
	exp := f.registerExpense(t, "100", 10, date(2026, 10, 10), "20")

	got, err := f.engine.ReplaceExpense(f.ctx, exp.ID, domain.ObligationDefinition{Description: "Rent (new lease)", Amount: dec("120"), DayOfMonth: 12})
	require.NoError(t, err)
	assertDecimal(t, "20", got.AccumulatedOverdue)
	assertDecimal(t, "140", got.TotalDue)
	assert.Equal(t, date(2026, 10, 10), got.NextDueDate)
	assert.Equal(t, 12, got.DayOfMonth)

	got, err = f.engine.ReplaceExpense(f.ctx, exp.ID, domain.ObligationDefinition{Description: "Rent", Amount: dec("120"), DayOfMonth: 12, Accumulated: ptr(dec("0"))})
	require.NoError(t, err)
	assertDecimal(t, "0", got.AccumulatedOverdue)
}

func TestRegistry_ReplaceRebasesPartialRemainder(t *testing.T) {
	f := newFixture(t, date(2026, 10, 5))
	exp := f.registerExpense(t, "100", 10, date(2026, 10, 10), "")
	_, err := f.engine.ApplyExpensePayment(f.ctx, exp.ID, domain.PaymentRequest{Amount: dec("80")})
	require.NoError(t, err)

	// 20 of the old 100 is open; raising the bill to 150 leaves 70.
	got, err := f.engine.ReplaceExpense(f.ctx, exp.ID, domain.ObligationDefinition{Description: "Rent", Amount: dec("150"), DayOfMonth: 10})
	require.NoError(t, err)
	assertDecimal(t, "70", got.AccumulatedOverdue)
	assertDecimal(t, "70", got.TotalDue)
	assert.Equal(t, date(2026, 10, 10), got.NextDueDate)

	// Lowering it below what was already paid settles the cycle.
	got, err = f.engine.ReplaceExpense(f.ctx, exp.ID, domain.ObligationDefinition{Description: "Rent", Amount: dec("60"), DayOfMonth: 10})
	require.NoError(t, err)
	assertDecimal(t, "0", got.AccumulatedOverdue)
	assertDecimal(t, "60", got.TotalDue)
	assert.Equal(t, date(2026, 11, 10), got.NextDueDate)
	assert.True(t, got.PaidThisCycle)
}

func TestRegistry_RegisterDefaultsNextDate(t *testing.T) {
	f := newFixture(t, date(2026, 10, 15))

	exp, err := f.engine.RegisterExpense(f.ctx, domain.ObligationDefinition{Description: "Gym", Amount: dec("30"), DayOfMonth: 10})
	require.NoError(t, err)
	assert.Equal(t, date(2026, 11, 10), exp.NextDueDate)

	inc, err := f.engine.RegisterIncome(f.ctx, domain.ObligationDefinition{Description: "Salary", Amount: dec("3000"), DayOfMonth: 20})
	require.NoError(t, err)
	assert.Equal(t, date(2026, 10, 20), inc.NextConfirmationDate)

	_, err = f.engine.RegisterExpense(f.ctx, domain.ObligationDefinition{Description: "Bad", Amount: dec("30"), DayOfMonth: 32})
	var verr *domain.ErrValidation
	assert.ErrorAs(t, err, &verr)
}

func TestRegistry_RemoveKeepsTransactions(t *testing.T) {
	f := newFixture(t, date(2026, 10, 5))
	exp := f.registerExpense(t, "100", 10, date(2026, 10, 10), "")
	inc := f.registerIncome(t, "3000", 5, date(2026, 10, 5))
	_, err := f.engine.ApplyExpensePayment(f.ctx, exp.ID, domain.PaymentRequest{Amount: dec("100")})
	require.NoError(t, err)

	require.NoError(t, f.engine.RemoveExpense(f.ctx, exp.ID))
	require.NoError(t, f.engine.RemoveIncome(f.ctx, inc.ID))

	assert.Empty(t, f.engine.ListExpenses(f.ctx))
	assert.Empty(t, f.engine.ListIncomes(f.ctx))
	assert.Len(t, f.engine.ListTransactions(f.ctx, domain.TransactionFilter{}), 1)

	var nf *domain.ErrNotFound
	assert.ErrorAs(t, f.engine.RemoveExpense(f.ctx, exp.ID), &nf)
	_, err = f.engine.GetIncome(f.ctx, inc.ID)
	assert.ErrorAs(t, err, &nf)
}
