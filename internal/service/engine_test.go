package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/cache"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/clock"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/kv"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/observability"
	"github.com/boddenberg/pj-liquidity-engine/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Fixtures ---

type fixture struct {
	ctx     context.Context
	engine  *service.Engine
	store   *kv.Memory
	clock   *clock.Fixed
	book    *service.PriceBook
	metrics *observability.Metrics
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	return newFixtureWithStore(t, now, kv.NewMemory())
}

func newFixtureWithStore(t *testing.T, now time.Time, store *kv.Memory) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	metrics := observability.NewMetrics()
	book := service.NewPriceBook(cache.New[domain.MarketPrice](ctx, time.Hour), metrics)
	clk := clock.NewFixed(now)
	eng := service.NewEngine(store, clk, book, service.Settings{AnchorDay: 25, CashAccountID: "cash"}, metrics, zap.NewNop())

	_, err := eng.Load(ctx)
	require.NoError(t, err)

	return &fixture{ctx: ctx, engine: eng, store: store, clock: clk, book: book, metrics: metrics}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T { return &v }

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func (f *fixture) registerExpense(t *testing.T, amount string, day int, next time.Time, overdue string) *domain.ExpenseView {
	t.Helper()
	def := domain.ObligationDefinition{
		Description: "Rent",
		Category:    "housing",
		Amount:      dec(amount),
		DayOfMonth:  day,
		NextDate:    &next,
	}
	if overdue != "" {
		def.Accumulated = ptr(dec(overdue))
	}
	v, err := f.engine.RegisterExpense(f.ctx, def)
	require.NoError(t, err)
	return v
}

func (f *fixture) registerIncome(t *testing.T, amount string, day int, next time.Time) *domain.IncomeView {
	t.Helper()
	v, err := f.engine.RegisterIncome(f.ctx, domain.ObligationDefinition{
		Description: "Salary",
		Category:    "salary",
		Amount:      dec(amount),
		DayOfMonth:  day,
		NextDate:    &next,
	})
	require.NoError(t, err)
	return v
}

func (f *fixture) registerAccount(t *testing.T, id string, typ domain.AccountType, opening string) {
	t.Helper()
	_, err := f.engine.RegisterAccount(f.ctx, domain.AccountRequest{
		ID:             id,
		Name:           id,
		Type:           typ,
		OpeningBalance: dec(opening),
	})
	require.NoError(t, err)
}

// --- Tests ---

func TestLoad_RestoresPersistedState(t *testing.T) {
	store := kv.NewMemory()
	f := newFixtureWithStore(t, date(2026, 10, 5), store)
	exp := f.registerExpense(t, "100", 10, date(2026, 10, 10), "")
	_, err := f.engine.ApplyExpensePayment(f.ctx, exp.ID, domain.PaymentRequest{Amount: dec("40"), Date: date(2026, 10, 5)})
	require.NoError(t, err)

	reloaded := newFixtureWithStore(t, date(2026, 10, 6), store)

	got, err := reloaded.engine.GetExpense(reloaded.ctx, exp.ID)
	require.NoError(t, err)
	assertDecimal(t, "60", got.AccumulatedOverdue)
	assert.False(t, got.PaidThisCycle, "40 of 100 is a partial payment")
	assert.Len(t, reloaded.engine.ListTransactions(reloaded.ctx, domain.TransactionFilter{}), 1)
	assert.Equal(t, "2026-09", reloaded.engine.CurrentCycle(reloaded.ctx).PersistedKey)
}

func TestLoad_MalformedDocumentFailsClosed(t *testing.T) {
	store := kv.NewMemory()
	store.Put(service.KeyLedger, []byte(`{not json`))
	store.Put(service.KeyAccounts, []byte(`[{"id":"bank","name":"Bank","type":"bank","openingBalance":"250"}]`))
	store.Put(service.KeyCycle, []byte(`{"key":"garbage"}`))

	f := newFixtureWithStore(t, date(2026, 10, 5), store)

	assert.Empty(t, f.engine.ListTransactions(f.ctx, domain.TransactionFilter{}))
	accounts := f.engine.ListAccounts(f.ctx)
	require.Len(t, accounts, 1)
	assert.Equal(t, "bank", accounts[0].ID)
	// The corrupt cycle key was reset, so load re-initialized it.
	assert.Equal(t, "2026-09", f.engine.CurrentCycle(f.ctx).PersistedKey)
}

func TestUpdate_FailedPersistLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, date(2026, 10, 5))
	exp := f.registerExpense(t, "100", 10, date(2026, 10, 10), "20")

	f.store.FailWrites = errors.New("disk full")
	_, err := f.engine.ApplyExpensePayment(f.ctx, exp.ID, domain.PaymentRequest{Amount: dec("50")})

	var perr *domain.ErrPersistence
	require.ErrorAs(t, err, &perr)

	got, err := f.engine.GetExpense(f.ctx, exp.ID)
	require.NoError(t, err)
	assertDecimal(t, "20", got.AccumulatedOverdue)
	assert.Empty(t, f.engine.ListTransactions(f.ctx, domain.TransactionFilter{}))

	// The store was not touched either.
	f.store.FailWrites = nil
	reloaded := newFixtureWithStore(t, date(2026, 10, 5), f.store)
	assert.Empty(t, reloaded.engine.ListTransactions(reloaded.ctx, domain.TransactionFilter{}))
}

func TestNewEngine_DefaultsSettings(t *testing.T) {
	eng := service.NewEngine(kv.NewMemory(), clock.NewFixed(date(2026, 1, 1)), nil, service.Settings{AnchorDay: 40}, observability.NewMetrics(), zap.NewNop())

	s := eng.Settings()
	assert.Equal(t, service.DefaultAnchorDay, s.AnchorDay)
	assert.Equal(t, service.DefaultCashAccountID, s.CashAccountID)
}
