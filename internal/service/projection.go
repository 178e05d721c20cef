package service

import (
	"context"
	"time"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Net worth & projection
// ============================================================

// MaxProjectionCycles bounds Projection requests.
const MaxProjectionCycles = 120

// MonthlyNet is the steady-state monthly surplus: recurring incomes minus
// recurring expenses, ignoring overdue and accrued state.
func MonthlyNet(incomes []domain.RecurringIncome, expenses []domain.RecurringExpense) decimal.Decimal {
	return monthlyIncome(incomes).Sub(burnRate(expenses))
}

func monthlyIncome(incomes []domain.RecurringIncome) decimal.Decimal {
	return sumAmounts(incomes, func(i domain.RecurringIncome) decimal.Decimal { return i.Amount })
}

func burnRate(expenses []domain.RecurringExpense) decimal.Decimal {
	return sumAmounts(expenses, func(x domain.RecurringExpense) decimal.Decimal { return x.Amount })
}

// Project extrapolates liquid funds over n cycles starting at start. Point k
// is liquid + k*monthlyNet, paired with the constant burn rate.
func Project(liquid, monthlyNet, burn decimal.Decimal, start domain.CycleKey, n int) []domain.ProjectionPoint {
	points := make([]domain.ProjectionPoint, 0, n)
	key := start
	for k := 0; k < n; k++ {
		points = append(points, domain.ProjectionPoint{
			Cycle:    k,
			CycleKey: key.String(),
			Balance:  liquid.Add(monthlyNet.Mul(decimal.NewFromInt(int64(k)))),
			BurnRate: burn,
		})
		key = key.Next()
	}
	return points
}

// DailySpendLimit spreads the safety margin (monthly net minus overdue) over
// the days left until the next anchor, rounded to cents. A negative margin
// yields zero.
func DailySpendLimit(monthlyNet, overdue decimal.Decimal, now, nextAnchor time.Time) decimal.Decimal {
	margin := monthlyNet.Sub(overdue)
	if margin.IsNegative() {
		return decimal.Zero
	}
	days := domain.DaysUntil(now, nextAnchor)
	return margin.Div(decimal.NewFromInt(int64(days))).Round(2)
}

// Summary returns the liquidity, net worth and spend figures as of now.
func (e *Engine) Summary(ctx context.Context) *domain.LiquiditySummary {
	_, span := engineTracer.Start(ctx, "Engine.Summary")
	defer span.End()

	now := e.now()
	anchor := e.settings.AnchorDay
	next := domain.NextAnchor(now, anchor)

	out := &domain.LiquiditySummary{
		NextAnchor:          next,
		DaysUntilNextAnchor: domain.DaysUntil(now, next),
		AsOf:                now,
	}
	e.read(func(s *state) {
		agg := e.aggregate(s)
		out.LiquidFunds = agg.LiquidFunds
		out.OtherBankFunds = agg.OtherBankFunds
		out.InvestmentValue = agg.InvestmentValue
		out.PrimaryAccountID = agg.PrimaryID
		out.MonthlyIncome = monthlyIncome(s.Incomes)
		out.MonthlyExpenses = burnRate(s.Expenses)
		out.TotalOverdue = totalOverdue(s.Expenses)
		if !s.Cycle.Key.IsZero() {
			out.CycleKey = s.Cycle.Key.String()
		} else {
			out.CycleKey = domain.CycleKeyAt(now, anchor).String()
		}
	})
	out.NetWorth = out.LiquidFunds.Add(out.InvestmentValue)
	out.MonthlyNet = out.MonthlyIncome.Sub(out.MonthlyExpenses)
	out.SafetyMargin = out.MonthlyNet.Sub(out.TotalOverdue)
	out.DailySpendLimit = DailySpendLimit(out.MonthlyNet, out.TotalOverdue, now, next)
	return out
}

// Projection extrapolates liquid funds over the next cycles.
func (e *Engine) Projection(ctx context.Context, cycles int) (*domain.Projection, error) {
	_, span := engineTracer.Start(ctx, "Engine.Projection")
	defer span.End()
	span.SetAttributes(attribute.Int("projection.cycles", cycles))

	if cycles < 1 || cycles > MaxProjectionCycles {
		return nil, &domain.ErrValidation{Field: "cycles", Message: "must be between 1 and 120"}
	}

	now := e.now()
	out := &domain.Projection{}
	e.read(func(s *state) {
		out.LiquidFunds = e.aggregate(s).LiquidFunds
		out.MonthlyNet = MonthlyNet(s.Incomes, s.Expenses)
		out.BurnRate = burnRate(s.Expenses)
	})
	out.Points = Project(out.LiquidFunds, out.MonthlyNet, out.BurnRate, domain.CycleKeyAt(now, e.settings.AnchorDay), cycles)
	return out, nil
}
