package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Liquidity, net worth & projection read models
// ============================================================

// LiquiditySummary is the dashboard figure set.
type LiquiditySummary struct {
	LiquidFunds         decimal.Decimal `json:"liquidFunds"`
	OtherBankFunds      decimal.Decimal `json:"otherBankFunds"`
	InvestmentValue     decimal.Decimal `json:"investmentValue"`
	NetWorth            decimal.Decimal `json:"netWorth"`
	MonthlyIncome       decimal.Decimal `json:"monthlyIncome"`
	MonthlyExpenses     decimal.Decimal `json:"monthlyExpenses"`
	MonthlyNet          decimal.Decimal `json:"monthlyNet"`
	TotalOverdue        decimal.Decimal `json:"totalOverdue"`
	SafetyMargin        decimal.Decimal `json:"safetyMargin"`
	DaysUntilNextAnchor int             `json:"daysUntilNextAnchor"`
	NextAnchor          time.Time       `json:"nextAnchor"`
	DailySpendLimit     decimal.Decimal `json:"dailySpendLimit"`
	PrimaryAccountID    string          `json:"primaryAccountId,omitempty"`
	CycleKey            string          `json:"cycleKey"`
	AsOf                time.Time       `json:"asOf"`
}

// ProjectionPoint is the projected liquid balance at the start of a future
// cycle, paired with the reference burn rate.
type ProjectionPoint struct {
	Cycle    int             `json:"cycle"`
	CycleKey string          `json:"cycleKey"`
	Balance  decimal.Decimal `json:"balance"`
	BurnRate decimal.Decimal `json:"burnRate"`
}

// Projection is the forward extrapolation of liquid funds.
type Projection struct {
	LiquidFunds decimal.Decimal   `json:"liquidFunds"`
	MonthlyNet  decimal.Decimal   `json:"monthlyNet"`
	BurnRate    decimal.Decimal   `json:"burnRate"`
	Points      []ProjectionPoint `json:"points"`
}

// EngineMetrics is returned by GET /v1/metrics/engine.
type EngineMetrics struct {
	ExpensePayments   int64   `json:"expensePayments"`
	IncomeReceipts    int64   `json:"incomeReceipts"`
	CycleTransitions  int64   `json:"cycleTransitions"`
	PriceRefreshes    int64   `json:"priceRefreshes"`
	PriceRefreshFails int64   `json:"priceRefreshFailures"`
	PriceCacheHitRate float64 `json:"priceCacheHitRate"`
	Period            string  `json:"period"`
}
