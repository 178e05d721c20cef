package observability

import (
	"time"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	operationDuration *prometheus.HistogramVec
	payments          *prometheus.CounterVec
	cycleTransitions  prometheus.Counter
	overdueAccrued    prometheus.Counter
	priceRefreshes    *prometheus.CounterVec
	externalErrors    *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	persistErrors     prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "liquidity_operation_duration_seconds",
				Help:    "Duration of engine operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		payments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liquidity_payments_total",
				Help: "Payments and receipts applied to recurring obligations.",
			},
			[]string{"kind", "outcome"},
		),
		cycleTransitions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "liquidity_cycle_transitions_total",
				Help: "Billing cycle rollovers processed.",
			},
		),
		overdueAccrued: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "liquidity_overdue_accrued_total",
				Help: "Sum of base amounts moved into overdue by cycle rollovers.",
			},
		),
		priceRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liquidity_price_refreshes_total",
				Help: "Market price refreshes by status.",
			},
			[]string{"status"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liquidity_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liquidity_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liquidity_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		persistErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "liquidity_persist_errors_total",
				Help: "State writes rejected by the store.",
			},
		),
	}
}

// RecordDuration records the duration of an operation.
func (m *Metrics) RecordDuration(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrPayment counts a payment (kind=expense) or receipt (kind=income).
func (m *Metrics) IncrPayment(kind, outcome string) {
	m.payments.WithLabelValues(kind, outcome).Inc()
}

// IncrCycleTransition counts a processed rollover and the overdue it added.
func (m *Metrics) IncrCycleTransition(overdueAdded float64) {
	m.cycleTransitions.Inc()
	m.overdueAccrued.Add(overdueAdded)
}

// IncrPriceRefresh counts a price refresh with a status label.
func (m *Metrics) IncrPriceRefresh(status string) {
	m.priceRefreshes.WithLabelValues(status).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrPersistError counts a rejected state write.
func (m *Metrics) IncrPersistError() {
	m.persistErrors.Inc()
}

// EngineSnapshot returns a snapshot of engine counters suitable for the
// GET /v1/metrics/engine endpoint.
func (m *Metrics) EngineSnapshot() *domain.EngineMetrics {
	expense := 0.0
	income := 0.0
	for _, outcome := range []string{string(domain.OutcomeSettled), string(domain.OutcomePartial)} {
		expense += counterValue(m.payments.WithLabelValues("expense", outcome))
	}
	for _, outcome := range []string{string(domain.OutcomeConfirmed), string(domain.OutcomeAccrued)} {
		income += counterValue(m.payments.WithLabelValues("income", outcome))
	}

	hits := counterValue(m.cacheHits.WithLabelValues("prices"))
	misses := counterValue(m.cacheMisses.WithLabelValues("prices"))
	hitRate := 0.0
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.EngineMetrics{
		ExpensePayments:   int64(expense),
		IncomeReceipts:    int64(income),
		CycleTransitions:  int64(counterValue(m.cycleTransitions)),
		PriceRefreshes:    int64(counterValue(m.priceRefreshes.WithLabelValues("ok"))),
		PriceRefreshFails: int64(counterValue(m.priceRefreshes.WithLabelValues("error"))),
		PriceCacheHitRate: hitRate,
		Period:            "all_time",
	}
}

// counterValue extracts the current float64 value from a counter.
func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
