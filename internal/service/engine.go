// Package service provides the business logic layer (use cases).
// Engine owns the ledger, the recurring obligation registry, the accounts
// and the saving goals, and applies every change to them as one atomic
// state update.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/observability"
	"github.com/boddenberg/pj-liquidity-engine/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var engineTracer = otel.Tracer("service/engine")

// DefaultAnchorDay is the day of month on which a new billing cycle starts.
const DefaultAnchorDay = 25

// DefaultCashAccountID is the bucket that receives transactions without a
// known account.
const DefaultCashAccountID = "cash"

// Settings are the engine's tunables.
type Settings struct {
	AnchorDay     int
	CashAccountID string
}

// Engine is the recurring obligation and liquidity engine.
type Engine struct {
	mu    sync.RWMutex
	state *state

	store    port.KVStore
	clock    port.Clock
	prices   *PriceBook
	settings Settings
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewEngine creates an engine with empty state. Call Load before serving.
func NewEngine(store port.KVStore, clock port.Clock, prices *PriceBook, settings Settings, metrics *observability.Metrics, logger *zap.Logger) *Engine {
	if settings.AnchorDay < 1 || settings.AnchorDay > 31 {
		settings.AnchorDay = DefaultAnchorDay
	}
	if settings.CashAccountID == "" {
		settings.CashAccountID = DefaultCashAccountID
	}
	return &Engine{
		state:    &state{},
		store:    store,
		clock:    clock,
		prices:   prices,
		settings: settings,
		metrics:  metrics,
		logger:   logger,
	}
}

// Load reads the persisted state and runs the cycle check, so a rollover
// missed while the process was down is applied before the first request.
func (e *Engine) Load(ctx context.Context) (*domain.CycleReport, error) {
	ctx, span := engineTracer.Start(ctx, "Engine.Load")
	defer span.End()

	s, err := loadState(ctx, e.store.Get, e.logger)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	e.mu.Lock()
	e.state = s
	e.mu.Unlock()

	e.logger.Info("engine state loaded",
		zap.Int("transactions", len(s.Ledger)),
		zap.Int("expenses", len(s.Expenses)),
		zap.Int("incomes", len(s.Incomes)),
		zap.Int("accounts", len(s.Accounts)),
		zap.String("cycle", s.Cycle.Key.String()),
	)

	return e.RunCycleCheck(ctx)
}

// Settings returns the engine's effective settings.
func (e *Engine) Settings() Settings {
	return e.settings
}

// Prices returns the price book the engine values holdings with.
func (e *Engine) Prices() *PriceBook {
	return e.prices
}

func (e *Engine) now() time.Time {
	return e.clock.Now()
}

// update runs fn as one atomic state update. A billing cycle that ended
// since the last rollover is closed first, inside the same update, so fn
// always sees the current cycle.
func (e *Engine) update(ctx context.Context, op string, fn func(m *mutation) error) error {
	var (
		report       domain.CycleReport
		overdueAdded decimal.Decimal
	)
	err := e.commit(ctx, op, func(m *mutation) error {
		report, overdueAdded, _ = e.closeCycle(m, e.now(), false)
		return fn(m)
	})
	if err == nil && report.Transitioned {
		e.logger.Info("pending billing cycle closed before update", zap.String("op", op))
		e.recordTransition(&report, overdueAdded)
	}
	return err
}

// commit applies fn to a private copy of the state, writes every document fn
// touched in a single SetMany and only then publishes the copy. When fn or
// the write fails, neither memory nor the store changes.
func (e *Engine) commit(ctx context.Context, op string, fn func(m *mutation) error) error {
	start := time.Now()
	defer func() { e.metrics.RecordDuration(op, time.Since(start)) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	m := &mutation{state: e.state.clone(), dirty: make(map[string]struct{})}
	if err := fn(m); err != nil {
		return err
	}
	if len(m.dirty) == 0 {
		return nil
	}

	docs, err := m.encode(m.dirtyKeys())
	if err != nil {
		return &domain.ErrPersistence{Op: op, Err: err}
	}
	if err := e.store.SetMany(ctx, docs); err != nil {
		e.metrics.IncrPersistError()
		e.logger.Error("state write failed, changes discarded",
			zap.String("op", op),
			zap.Strings("keys", m.dirtyKeys()),
			zap.Error(err),
		)
		return &domain.ErrPersistence{Op: op, Err: err}
	}

	e.state = m.state
	return nil
}

// read runs fn under the read lock. fn must not retain s.
func (e *Engine) read(fn func(s *state)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(e.state)
}
