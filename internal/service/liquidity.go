package service

import (
	"context"
	"slices"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Liquidity aggregation
// ============================================================

// Aggregation is the per-account view of the ledger at one instant.
type Aggregation struct {
	Balances        []domain.Balance
	Valuations      map[string]domain.AccountValuation
	PrimaryID       string
	LiquidFunds     decimal.Decimal
	OtherBankFunds  decimal.Decimal
	InvestmentValue decimal.Decimal
}

// Balance returns the balance for id, if present.
func (a Aggregation) Balance(id string) (domain.Balance, bool) {
	idx := slices.IndexFunc(a.Balances, func(b domain.Balance) bool { return b.AccountID == id })
	if idx < 0 {
		return domain.Balance{}, false
	}
	return a.Balances[idx], true
}

// Balances aggregates opening balances and signed ledger flows per account.
//
// Income credits its account; expense and savings debit it; transfer and
// withdrawal debit the source and credit the destination. Transactions that
// name no account, or one that is not registered, land in the cash bucket,
// which is synthesized when not registered. Investment accounts are valued
// from their holdings instead. The result does not depend on the order of
// txs.
func Balances(accounts []domain.Account, txs []domain.Transaction, prices map[string]domain.MarketPrice, primaryID, cashID string) Aggregation {
	accts := slices.Clone(accounts)
	if !slices.ContainsFunc(accts, func(a domain.Account) bool { return a.ID == cashID }) {
		accts = append(accts, domain.Account{ID: cashID, Name: "Cash", Type: domain.AccountCash})
	}
	known := make(map[string]domain.AccountType, len(accts))
	for _, a := range accts {
		known[a.ID] = a.Type
	}
	route := func(id string) string {
		if _, ok := known[id]; ok {
			return id
		}
		return cashID
	}

	flows := make(map[string]decimal.Decimal, len(accts))
	credit := func(id string, amt decimal.Decimal) { flows[id] = flows[id].Add(amt) }
	for _, t := range txs {
		src := route(t.AccountID)
		switch t.Direction {
		case domain.DirectionIncome:
			credit(src, t.Amount)
		case domain.DirectionExpense, domain.DirectionSavings:
			credit(src, t.Amount.Neg())
		case domain.DirectionTransfer, domain.DirectionWithdrawal:
			credit(src, t.Amount.Neg())
			credit(route(t.DestinationAccountID), t.Amount)
		}
	}

	primary := ResolvePrimary(accts, primaryID)
	agg := Aggregation{
		Balances:        make([]domain.Balance, 0, len(accts)),
		Valuations:      make(map[string]domain.AccountValuation),
		PrimaryID:       primary,
		LiquidFunds:     decimal.Zero,
		OtherBankFunds:  decimal.Zero,
		InvestmentValue: decimal.Zero,
	}
	for _, a := range accts {
		b := domain.Balance{
			AccountID:      a.ID,
			Name:           a.Name,
			Type:           a.Type,
			OpeningBalance: a.OpeningBalance,
			Flow:           flows[a.ID],
		}
		switch {
		case a.Type == domain.AccountInvestment:
			v := AccountValue(a, prices, txs)
			agg.Valuations[a.ID] = v
			b.Flow = v.Withdrawals.Neg()
			b.Balance = v.Value
			agg.InvestmentValue = agg.InvestmentValue.Add(v.Value)
		case a.Type == domain.AccountCash:
			b.Balance = a.OpeningBalance.Add(b.Flow)
			b.Liquid = true
			agg.LiquidFunds = agg.LiquidFunds.Add(b.Balance)
		case a.ID == primary:
			b.Balance = a.OpeningBalance.Add(b.Flow)
			b.Primary = true
			b.Liquid = true
			agg.LiquidFunds = agg.LiquidFunds.Add(b.Balance)
		default:
			b.Balance = a.OpeningBalance.Add(b.Flow)
			agg.OtherBankFunds = agg.OtherBankFunds.Add(b.Balance)
		}
		agg.Balances = append(agg.Balances, b)
	}
	return agg
}

// ResolvePrimary returns the designated primary account when it is a
// registered bank account, otherwise the earliest registered bank account.
func ResolvePrimary(accounts []domain.Account, designated string) string {
	var (
		fallback string
		earliest domain.Account
	)
	for _, a := range accounts {
		if !a.Type.IsBank() {
			continue
		}
		if a.ID == designated {
			return a.ID
		}
		if fallback == "" || a.CreatedAt.Before(earliest.CreatedAt) {
			fallback, earliest = a.ID, a
		}
	}
	return fallback
}

// LiquidFunds is the primary account plus cash.
func LiquidFunds(balances []domain.Balance) decimal.Decimal {
	return sumAmounts(balances, func(b domain.Balance) decimal.Decimal {
		if b.Liquid {
			return b.Balance
		}
		return decimal.Zero
	})
}

// aggregate builds the aggregation for the current state. Callers hold the
// read lock.
func (e *Engine) aggregate(s *state) Aggregation {
	prices := e.prices.Snapshot(holdingSymbols(s.Accounts))
	return Balances(s.Accounts, s.Ledger, prices, s.PrimaryAccount, e.settings.CashAccountID)
}

// Balances returns every account's balance.
func (e *Engine) Balances(ctx context.Context) []domain.Balance {
	_, span := engineTracer.Start(ctx, "Engine.Balances")
	defer span.End()

	var agg Aggregation
	e.read(func(s *state) { agg = e.aggregate(s) })
	return agg.Balances
}

// AccountBalance returns one account's balance.
func (e *Engine) AccountBalance(ctx context.Context, id string) (*domain.Balance, error) {
	_, span := engineTracer.Start(ctx, "Engine.AccountBalance")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", id))

	var agg Aggregation
	e.read(func(s *state) { agg = e.aggregate(s) })
	b, ok := agg.Balance(id)
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: id}
	}
	return &b, nil
}
