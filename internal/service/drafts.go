package service

import (
	"context"
	"strings"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ApplyDraft applies a user-approved draft. Drafts from the AI parser, bank
// sync and manual entry are treated the same.
func (e *Engine) ApplyDraft(ctx context.Context, draft domain.ApprovedDraft) (*domain.DraftResult, error) {
	ctx, span := engineTracer.Start(ctx, "Engine.ApplyDraft")
	defer span.End()
	span.SetAttributes(attribute.String("draft.type", string(draft.UpdateType)))

	switch draft.UpdateType {
	case domain.DraftTransaction:
		if draft.Transaction == nil {
			return nil, &domain.ErrValidation{Field: "transaction", Message: "required for transaction drafts"}
		}
		tx, err := e.RecordTransaction(ctx, *draft.Transaction)
		if err != nil {
			return nil, err
		}
		return &domain.DraftResult{UpdateType: draft.UpdateType, Transaction: tx, AccountID: tx.AccountID}, nil

	case domain.DraftPortfolio:
		if draft.Portfolio == nil {
			return nil, &domain.ErrValidation{Field: "portfolio", Message: "required for portfolio drafts"}
		}
		return e.applyPortfolio(ctx, *draft.Portfolio)

	default:
		return nil, &domain.ErrValidation{Field: "updateType", Message: "must be transaction or portfolio"}
	}
}

// applyPortfolio sets a holding's quantity on the investment account whose
// id or name matches the provider. New positions are booked at the last
// known price.
func (e *Engine) applyPortfolio(ctx context.Context, p domain.PortfolioUpdate) (*domain.DraftResult, error) {
	if strings.TrimSpace(p.Provider) == "" {
		return nil, &domain.ErrValidation{Field: "provider", Message: "required"}
	}
	if strings.TrimSpace(p.Symbol) == "" {
		return nil, &domain.ErrValidation{Field: "symbol", Message: "required"}
	}
	if p.Quantity.IsNegative() {
		return nil, &domain.ErrValidation{Field: "quantity", Message: "must not be negative"}
	}

	price := decimal.Zero
	if q, ok := e.prices.Get(p.Symbol); ok {
		price = q.Price
	}

	result := &domain.DraftResult{UpdateType: domain.DraftPortfolio}
	err := e.update(ctx, "apply_portfolio", func(m *mutation) error {
		idx := -1
		for i, a := range m.Accounts {
			if a.Type == domain.AccountInvestment && (a.ID == p.Provider || strings.EqualFold(a.Name, p.Provider)) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return &domain.ErrNotFound{Resource: "investment account", ID: p.Provider}
		}
		h := m.setHolding(idx, p.Symbol, p.Quantity, price)
		result.Holding = &h
		result.AccountID = m.Accounts[idx].ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("portfolio draft applied",
		zap.String("account_id", result.AccountID),
		zap.String("symbol", result.Holding.Symbol),
		zap.String("quantity", p.Quantity.String()),
	)
	return result, nil
}
