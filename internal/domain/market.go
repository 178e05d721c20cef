package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Market prices & portfolio valuation
// ============================================================

// MarketPrice is the latest known quote for a symbol.
type MarketPrice struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Change24h decimal.Decimal `json:"change24h"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// HoldingValuation is one holding marked to market.
type HoldingValuation struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Value    decimal.Decimal `json:"value"`
	Live     bool            `json:"live"` // false when valued at purchase price
}

// AccountValuation is an investment account marked to market.
type AccountValuation struct {
	AccountID   string             `json:"accountId"`
	Holdings    []HoldingValuation `json:"holdings"`
	Gross       decimal.Decimal    `json:"gross"`
	Withdrawals decimal.Decimal    `json:"withdrawals"`
	Value       decimal.Decimal    `json:"value"`
}

// PortfolioUpdate sets the quantity held of a symbol at a provider.
type PortfolioUpdate struct {
	Provider string          `json:"provider"`
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
}

// DraftUpdateType selects what an approved draft carries.
type DraftUpdateType string

const (
	DraftTransaction DraftUpdateType = "transaction"
	DraftPortfolio   DraftUpdateType = "portfolio"
)

// ApprovedDraft is a candidate record approved by the user, produced by the
// AI parser or bank sync.
type ApprovedDraft struct {
	UpdateType  DraftUpdateType   `json:"updateType"`
	Transaction *TransactionDraft `json:"transaction,omitempty"`
	Portfolio   *PortfolioUpdate  `json:"portfolio,omitempty"`
}

// DraftResult reports what applying a draft changed.
type DraftResult struct {
	UpdateType  DraftUpdateType `json:"updateType"`
	Transaction *Transaction    `json:"transaction,omitempty"`
	Holding     *Holding        `json:"holding,omitempty"`
	AccountID   string          `json:"accountId,omitempty"`
}
