package service

import (
	"strings"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"

	"github.com/shopspring/decimal"
)

// ============================================================
// Valuation
// ============================================================

// MarketValue marks a holding to the latest quote, falling back to its
// purchase price when no quote is known.
func MarketValue(h domain.Holding, prices map[string]domain.MarketPrice) domain.HoldingValuation {
	v := domain.HoldingValuation{
		Symbol:   h.Symbol,
		Quantity: h.Quantity,
		Price:    h.PurchasePrice,
	}
	if p, ok := prices[strings.ToUpper(h.Symbol)]; ok {
		v.Price = p.Price
		v.Live = true
	}
	v.Value = h.Quantity.Mul(v.Price)
	return v
}

// AccountValue is the market value of an investment account's holdings less
// the withdrawals recorded against it.
func AccountValue(acct domain.Account, prices map[string]domain.MarketPrice, txs []domain.Transaction) domain.AccountValuation {
	out := domain.AccountValuation{
		AccountID:   acct.ID,
		Holdings:    make([]domain.HoldingValuation, 0, len(acct.Holdings)),
		Gross:       decimal.Zero,
		Withdrawals: decimal.Zero,
	}
	for _, h := range acct.Holdings {
		hv := MarketValue(h, prices)
		out.Holdings = append(out.Holdings, hv)
		out.Gross = out.Gross.Add(hv.Value)
	}
	for _, t := range txs {
		if t.Direction == domain.DirectionWithdrawal && t.AccountID == acct.ID {
			out.Withdrawals = out.Withdrawals.Add(t.Amount)
		}
	}
	out.Value = out.Gross.Sub(out.Withdrawals)
	return out
}

// holdingSymbols lists the distinct symbols held across all accounts.
func holdingSymbols(accounts []domain.Account) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, a := range accounts {
		for _, h := range a.Holdings {
			sym := strings.ToUpper(h.Symbol)
			if _, ok := seen[sym]; ok {
				continue
			}
			seen[sym] = struct{}{}
			out = append(out, sym)
		}
	}
	return out
}
