package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Accounts
// ============================================================

// AccountType classifies a financial source.
type AccountType string

const (
	AccountBank        AccountType = "bank"
	AccountCreditUnion AccountType = "credit_union"
	AccountCash        AccountType = "cash"
	AccountInvestment  AccountType = "investment"
)

// IsValid reports whether t is a known account type.
func (t AccountType) IsValid() bool {
	switch t {
	case AccountBank, AccountCreditUnion, AccountCash, AccountInvestment:
		return true
	}
	return false
}

// IsBank reports whether the account is a bank-like deposit account.
func (t AccountType) IsBank() bool {
	return t == AccountBank || t == AccountCreditUnion
}

// Account is a bank connection, cash-in-hand or investment account.
// OpeningBalance is the baseline at registration and is never mutated.
type Account struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
	Holdings       []Holding       `json:"holdings,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// AccountRequest is the body to register an account.
type AccountRequest struct {
	ID             string          `json:"id,omitempty"`
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
	Holdings       []Holding       `json:"holdings,omitempty"`
}

// Validate checks the registration request.
func (r *AccountRequest) Validate() error {
	if r.Name == "" {
		return &ErrValidation{Field: "name", Message: "required"}
	}
	if !r.Type.IsValid() {
		return &ErrValidation{Field: "type", Message: "must be one of bank, credit_union, cash, investment"}
	}
	if len(r.Holdings) > 0 && r.Type != AccountInvestment {
		return &ErrValidation{Field: "holdings", Message: "only investment accounts carry holdings"}
	}
	for _, h := range r.Holdings {
		if err := h.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Holding is a position in an investment account.
type Holding struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
}

// Validate checks the holding's invariants.
func (h Holding) Validate() error {
	if h.Symbol == "" {
		return &ErrValidation{Field: "symbol", Message: "required"}
	}
	if h.Quantity.IsNegative() {
		return &ErrValidation{Field: "quantity", Message: "must not be negative"}
	}
	if h.PurchasePrice.IsNegative() {
		return &ErrValidation{Field: "purchasePrice", Message: "must not be negative"}
	}
	return nil
}

// Balance is the aggregated position of one account.
type Balance struct {
	AccountID      string          `json:"accountId"`
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
	Flow           decimal.Decimal `json:"flow"`
	Balance        decimal.Decimal `json:"balance"`
	Primary        bool            `json:"primary"`
	Liquid         bool            `json:"liquid"`
}

// PrimaryAccountRequest designates the primary operating account.
type PrimaryAccountRequest struct {
	AccountID string `json:"accountId"`
}
