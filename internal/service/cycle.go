package service

import (
	"context"
	"time"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Cycle settlement
// ============================================================

// RunCycleCheck closes the previous billing cycle when the anchor day has
// been crossed since the last processed cycle. Expenses without a linked
// payment inside the closed window accrue their base amount as overdue and
// every income restarts from zero. Calling it again within the same cycle
// is a no-op.
//
// A gap of several cycles is processed as one transition; SkippedCycles
// reports how many were collapsed. Every other state update applies a
// pending rollover first, so this only has work to do when nothing else
// touched the state since the anchor was crossed.
func (e *Engine) RunCycleCheck(ctx context.Context) (*domain.CycleReport, error) {
	ctx, span := engineTracer.Start(ctx, "Engine.RunCycleCheck")
	defer span.End()

	var (
		report       domain.CycleReport
		overdueAdded decimal.Decimal
		behind       bool
	)
	err := e.commit(ctx, "cycle_check", func(m *mutation) error {
		report, overdueAdded, behind = e.closeCycle(m, e.now(), true)
		return nil
	})
	span.SetAttributes(attribute.String("cycle.current", report.CurrentKey))
	if err != nil {
		span.RecordError(err)
		e.logger.Error("cycle check failed", zap.String("cycle", report.CurrentKey), zap.Error(err))
		return nil, err
	}

	if behind {
		e.logger.Warn("clock is behind the processed cycle, skipping check",
			zap.String("processed", report.PreviousKey),
			zap.String("current", report.CurrentKey),
		)
	}
	if report.Initialized {
		e.logger.Info("cycle key initialized", zap.String("cycle", report.CurrentKey))
	}
	e.recordTransition(&report, overdueAdded)
	return &report, nil
}

// closeCycle applies a pending rollover to m as of now. A zero cycle key is
// only initialized when init is set. behind reports a clock earlier than
// the processed cycle, which leaves m untouched.
func (e *Engine) closeCycle(m *mutation, now time.Time, init bool) (report domain.CycleReport, overdueAdded decimal.Decimal, behind bool) {
	anchor := e.settings.AnchorDay
	current := domain.CycleKeyAt(now, anchor)
	report.CurrentKey = current.String()
	overdueAdded = decimal.Zero

	prev := m.Cycle.Key
	if prev.IsZero() {
		if init {
			m.Cycle = domain.CycleState{Key: current, ProcessedAt: &now}
			m.touch(KeyCycle)
			report.Initialized = true
		}
		return report, overdueAdded, false
	}

	report.PreviousKey = prev.String()
	gap := prev.MonthsUntil(current)
	if gap == 0 {
		return report, overdueAdded, false
	}
	if gap < 0 {
		return report, overdueAdded, true
	}

	closed := current.Prev()
	start, end := closed.Window(anchor, now.Location())
	report.Transitioned = true
	report.SkippedCycles = gap - 1
	report.WindowStart = &start
	report.WindowEnd = &end
	report.OverdueAdded = make(map[string]decimal.Decimal)

	for i := range m.Expenses {
		exp := &m.Expenses[i]
		// Whatever is left of a partial payment is plain overdue from now
		// on; the new cycle bills the base amount again.
		exp.OverdueIncludesBase = false
		if linkedInWindow(m.Ledger, exp.ID, domain.DirectionExpense, start, end) {
			continue
		}
		exp.AccumulatedOverdue = exp.AccumulatedOverdue.Add(exp.Amount)
		billed := end
		exp.LastBilledDate = &billed
		report.OverdueAdded[exp.ID] = exp.Amount
		overdueAdded = overdueAdded.Add(exp.Amount)
	}
	for i := range m.Incomes {
		m.Incomes[i].AccumulatedReceived = decimal.Zero
	}
	report.IncomesReset = len(m.Incomes)

	m.Cycle = domain.CycleState{Key: current, ProcessedAt: &now}
	m.touch(KeyCycle, KeyRecurringExpenses, KeyRecurringIncomes)
	return report, overdueAdded, false
}

// recordTransition logs and counts a committed rollover.
func (e *Engine) recordTransition(report *domain.CycleReport, overdueAdded decimal.Decimal) {
	if !report.Transitioned {
		return
	}
	added, _ := overdueAdded.Float64()
	e.metrics.IncrCycleTransition(added)
	e.logger.Info("billing cycle closed",
		zap.String("previous", report.PreviousKey),
		zap.String("current", report.CurrentKey),
		zap.Int("skipped_cycles", report.SkippedCycles),
		zap.Int("expenses_overdue", len(report.OverdueAdded)),
		zap.String("overdue_added", overdueAdded.String()),
		zap.Int("incomes_reset", report.IncomesReset),
	)
	if report.SkippedCycles > 0 {
		e.logger.Warn("missed billing cycles collapsed into one transition",
			zap.Int("skipped_cycles", report.SkippedCycles),
		)
	}
}

// CurrentCycle reports the active cycle and whether a rollover is pending.
func (e *Engine) CurrentCycle(ctx context.Context) domain.CycleStatus {
	_, span := engineTracer.Start(ctx, "Engine.CurrentCycle")
	defer span.End()

	now := e.now()
	anchor := e.settings.AnchorDay
	current := domain.CycleKeyAt(now, anchor)
	start, end := current.Window(anchor, now.Location())

	status := domain.CycleStatus{
		AnchorDay:   anchor,
		CurrentKey:  current.String(),
		WindowStart: start,
		WindowEnd:   end,
	}
	e.read(func(s *state) {
		if !s.Cycle.Key.IsZero() {
			status.PersistedKey = s.Cycle.Key.String()
		}
		status.ProcessedAt = s.Cycle.ProcessedAt
		status.Pending = s.Cycle.Key != current
	})
	return status
}

// CycleScheduler re-runs the cycle check on a fixed interval.
type CycleScheduler struct {
	engine   *Engine
	interval time.Duration
	logger   *zap.Logger
}

// NewCycleScheduler creates a scheduler for engine.
func NewCycleScheduler(engine *Engine, interval time.Duration, logger *zap.Logger) *CycleScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CycleScheduler{engine: engine, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled.
func (s *CycleScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("cycle scheduler started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("cycle scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.engine.RunCycleCheck(ctx); err != nil {
				s.logger.Warn("scheduled cycle check failed", zap.Error(err))
			}
		}
	}
}
