package service_test

import (
	"testing"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDraft_Transaction(t *testing.T) {
	f := newFixture(t, date(2026, 10, 5))

	res, err := f.engine.ApplyDraft(f.ctx, domain.ApprovedDraft{
		UpdateType: domain.DraftTransaction,
		Transaction: &domain.TransactionDraft{
			Amount:      dec("42.10"),
			Description: "Groceries",
			Direction:   domain.DirectionExpense,
			Date:        date(2026, 10, 4),
			AccountID:   "main",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, "main", res.AccountID)
	assert.Len(t, f.engine.ListTransactions(f.ctx, domain.TransactionFilter{}), 1)
}

func TestApplyDraft_PortfolioSetsHolding(t *testing.T) {
	f := newFixture(t, date(2026, 10, 5))
	_, err := f.engine.RegisterAccount(f.ctx, domain.AccountRequest{
		ID:       "acct-broker",
		Name:     "Brokerage",
		Type:     domain.AccountInvestment,
		Holdings: []domain.Holding{{Symbol: "VTI", Quantity: dec("10"), PurchasePrice: dec("200")}},
	})
	require.NoError(t, err)
	f.book.Update([]domain.MarketPrice{{Symbol: "BTC", Price: dec("60000")}})

	// Matched by name, existing position.
	res, err := f.engine.ApplyDraft(f.ctx, domain.ApprovedDraft{
		UpdateType: domain.DraftPortfolio,
		Portfolio:  &domain.PortfolioUpdate{Provider: "brokerage", Symbol: "vti", Quantity: dec("12")},
	})
	require.NoError(t, err)
	assert.Equal(t, "acct-broker", res.AccountID)
	assertDecimal(t, "12", res.Holding.Quantity)
	assertDecimal(t, "200", res.Holding.PurchasePrice)

	// Matched by id, new position booked at the last known price.
	res, err = f.engine.ApplyDraft(f.ctx, domain.ApprovedDraft{
		UpdateType: domain.DraftPortfolio,
		Portfolio:  &domain.PortfolioUpdate{Provider: "acct-broker", Symbol: "btc", Quantity: dec("0.1")},
	})
	require.NoError(t, err)
	assertDecimal(t, "60000", res.Holding.PurchasePrice)

	acct, err := f.engine.GetAccount(f.ctx, "acct-broker")
	require.NoError(t, err)
	require.Len(t, acct.Holdings, 2)
	assert.Equal(t, []string{"VTI", "BTC"}, f.engine.Symbols())

	// Zero closes the position.
	_, err = f.engine.ApplyDraft(f.ctx, domain.ApprovedDraft{
		UpdateType: domain.DraftPortfolio,
		Portfolio:  &domain.PortfolioUpdate{Provider: "acct-broker", Symbol: "VTI", Quantity: dec("0")},
	})
	require.NoError(t, err)
	acct, _ = f.engine.GetAccount(f.ctx, "acct-broker")
	require.Len(t, acct.Holdings, 1)
	assert.Equal(t, "BTC", acct.Holdings[0].Symbol)
}

func TestApplyDraft_Errors(t *testing.T) {
	f := newFixture(t, date(2026, 10, 5))
	f.registerAccount(t, "main", domain.AccountBank, "0")

	tests := []struct {
		name  string
		draft domain.ApprovedDraft
		check func(t *testing.T, err error)
	}{
		{
			name:  "unknown update type",
			draft: domain.ApprovedDraft{UpdateType: "note"},
			check: func(t *testing.T, err error) {
				var verr *domain.ErrValidation
				assert.ErrorAs(t, err, &verr)
			},
		},
		{
			name:  "transaction payload missing",
			draft: domain.ApprovedDraft{UpdateType: domain.DraftTransaction},
			check: func(t *testing.T, err error) {
				var verr *domain.ErrValidation
				assert.ErrorAs(t, err, &verr)
			},
		},
		{
			name: "provider is not an investment account",
			draft: domain.ApprovedDraft{
				UpdateType: domain.DraftPortfolio,
				Portfolio:  &domain.PortfolioUpdate{Provider: "main", Symbol: "VTI", Quantity: dec("1")},
			},
			check: func(t *testing.T, err error) {
				var nf *domain.ErrNotFound
				assert.ErrorAs(t, err, &nf)
			},
		},
		{
			name: "negative quantity",
			draft: domain.ApprovedDraft{
				UpdateType: domain.DraftPortfolio,
				Portfolio:  &domain.PortfolioUpdate{Provider: "main", Symbol: "VTI", Quantity: dec("-1")},
			},
			check: func(t *testing.T, err error) {
				var verr *domain.ErrValidation
				assert.ErrorAs(t, err, &verr)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.ApplyDraft(f.ctx, tt.draft)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}
