package service

import (
	"context"
	"slices"
	"strings"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Accounts
// ============================================================

// RegisterAccount adds an account. The opening balance is fixed from here on.
func (e *Engine) RegisterAccount(ctx context.Context, req domain.AccountRequest) (*domain.Account, error) {
	ctx, span := engineTracer.Start(ctx, "Engine.RegisterAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.type", string(req.Type)))

	if err := req.Validate(); err != nil {
		return nil, err
	}

	acct := domain.Account{
		ID:             strings.TrimSpace(req.ID),
		Name:           strings.TrimSpace(req.Name),
		Type:           req.Type,
		OpeningBalance: req.OpeningBalance,
		CreatedAt:      e.now(),
	}
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	for _, h := range req.Holdings {
		h.Symbol = strings.ToUpper(h.Symbol)
		acct.Holdings = append(acct.Holdings, h)
	}

	err := e.update(ctx, "register_account", func(m *mutation) error {
		if m.accountIndex(acct.ID) >= 0 {
			return &domain.ErrConflict{Message: "account already exists: " + acct.ID}
		}
		m.Accounts = append(m.Accounts, acct)
		m.touch(KeyAccounts)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	e.logger.Info("account registered",
		zap.String("id", acct.ID),
		zap.String("type", string(acct.Type)),
	)
	return &acct, nil
}

// ListAccounts returns every registered account in registration order.
func (e *Engine) ListAccounts(ctx context.Context) []domain.Account {
	_, span := engineTracer.Start(ctx, "Engine.ListAccounts")
	defer span.End()

	var out []domain.Account
	e.read(func(s *state) {
		out = slices.Clone(s.Accounts)
		for i := range out {
			out[i].Holdings = slices.Clone(out[i].Holdings)
		}
	})
	return out
}

// GetAccount returns one account.
func (e *Engine) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	_, span := engineTracer.Start(ctx, "Engine.GetAccount")
	defer span.End()

	var (
		acct  domain.Account
		found bool
	)
	e.read(func(s *state) {
		if idx := s.accountIndex(id); idx >= 0 {
			acct, found = s.Accounts[idx], true
			acct.Holdings = slices.Clone(acct.Holdings)
		}
	})
	if !found {
		return nil, &domain.ErrNotFound{Resource: "account", ID: id}
	}
	return &acct, nil
}

// SetPrimaryAccount designates the operating account whose balance counts as
// liquid. Only bank and credit union accounts qualify.
func (e *Engine) SetPrimaryAccount(ctx context.Context, id string) error {
	ctx, span := engineTracer.Start(ctx, "Engine.SetPrimaryAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", id))

	return e.update(ctx, "set_primary_account", func(m *mutation) error {
		idx := m.accountIndex(id)
		if idx < 0 {
			return &domain.ErrNotFound{Resource: "account", ID: id}
		}
		if !m.Accounts[idx].Type.IsBank() {
			return &domain.ErrValidation{Field: "accountId", Message: "primary account must be a bank or credit union account"}
		}
		m.PrimaryAccount = id
		m.touch(KeyPrimaryAccount)
		return nil
	})
}

// setHolding sets the quantity of symbol in the account. A new position
// takes purchasePrice; a zero quantity closes the position.
func (m *mutation) setHolding(accountIdx int, symbol string, quantity, purchasePrice decimal.Decimal) domain.Holding {
	acct := &m.Accounts[accountIdx]
	symbol = strings.ToUpper(symbol)
	m.touch(KeyAccounts)

	idx := slices.IndexFunc(acct.Holdings, func(h domain.Holding) bool { return strings.EqualFold(h.Symbol, symbol) })
	if idx < 0 {
		h := domain.Holding{Symbol: symbol, Quantity: quantity, PurchasePrice: purchasePrice}
		if quantity.IsPositive() {
			acct.Holdings = append(acct.Holdings, h)
		}
		return h
	}
	if quantity.IsZero() {
		h := acct.Holdings[idx]
		h.Quantity = decimal.Zero
		acct.Holdings = slices.Delete(acct.Holdings, idx, idx+1)
		return h
	}
	acct.Holdings[idx].Quantity = quantity
	return acct.Holdings[idx]
}
