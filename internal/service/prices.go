package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/cache"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/observability"
	"github.com/boddenberg/pj-liquidity-engine/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var priceTracer = otel.Tracer("service/prices")

const priceCacheName = "prices"

// ============================================================
// Price book
// ============================================================

// PriceBook holds the latest quote per symbol. Quotes older than the cache
// TTL disappear, which makes valuation fall back to purchase price.
type PriceBook struct {
	cache   port.Cache[domain.MarketPrice]
	metrics *observability.Metrics
}

// NewPriceBook wraps a cache of quotes.
func NewPriceBook(c *cache.InMemory[domain.MarketPrice], metrics *observability.Metrics) *PriceBook {
	return &PriceBook{cache: c, metrics: metrics}
}

// Update stores fresh quotes.
func (b *PriceBook) Update(prices []domain.MarketPrice) {
	for _, p := range prices {
		p.Symbol = strings.ToUpper(p.Symbol)
		b.cache.Set(p.Symbol, p)
	}
}

// Get returns the quote for symbol if it is still fresh.
func (b *PriceBook) Get(symbol string) (domain.MarketPrice, bool) {
	p, ok := b.cache.Get(strings.ToUpper(symbol))
	if ok {
		b.metrics.IncrCacheHit(priceCacheName)
	} else {
		b.metrics.IncrCacheMiss(priceCacheName)
	}
	return p, ok
}

// Snapshot returns the fresh quotes among symbols, keyed by upper-case symbol.
func (b *PriceBook) Snapshot(symbols []string) map[string]domain.MarketPrice {
	out := make(map[string]domain.MarketPrice, len(symbols))
	for _, sym := range symbols {
		if p, ok := b.Get(sym); ok {
			out[p.Symbol] = p
		}
	}
	return out
}

// All returns every fresh quote ordered by symbol.
func (b *PriceBook) All() []domain.MarketPrice {
	keys := b.cache.Keys()
	out := make([]domain.MarketPrice, 0, len(keys))
	for _, k := range keys {
		if p, ok := b.cache.Get(k); ok {
			out = append(out, p)
		}
	}
	return out
}

// ============================================================
// Refresher
// ============================================================

// PriceRefresher polls a feed for the symbols currently held. It never
// takes the engine lock while fetching.
type PriceRefresher struct {
	feed     port.PriceFeed
	book     *PriceBook
	symbols  func() []string
	interval time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewPriceRefresher creates a refresher. symbols is called before every
// fetch.
func NewPriceRefresher(feed port.PriceFeed, book *PriceBook, symbols func() []string, interval time.Duration, metrics *observability.Metrics, logger *zap.Logger) *PriceRefresher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &PriceRefresher{
		feed:     feed,
		book:     book,
		symbols:  symbols,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
	}
}

// RefreshOnce fetches and stores quotes for every held symbol.
func (r *PriceRefresher) RefreshOnce(ctx context.Context) error {
	ctx, span := priceTracer.Start(ctx, "PriceRefresher.RefreshOnce")
	defer span.End()

	symbols := r.symbols()
	span.SetAttributes(attribute.Int("symbols.count", len(symbols)))
	if len(symbols) == 0 {
		return nil
	}

	start := time.Now()
	prices, err := r.feed.FetchPrices(ctx, symbols)
	r.metrics.RecordDuration("price_refresh", time.Since(start))
	if err != nil {
		span.RecordError(err)
		r.metrics.IncrPriceRefresh("error")
		var ext *domain.ErrExternalService
		var open *domain.ErrCircuitOpen
		if errors.As(err, &ext) || errors.As(err, &open) {
			r.metrics.IncrExternalError("pricefeed")
		}
		return err
	}

	r.book.Update(prices)
	r.metrics.IncrPriceRefresh("ok")
	r.logger.Debug("prices refreshed",
		zap.Int("requested", len(symbols)),
		zap.Int("received", len(prices)),
	)
	return nil
}

// Run refreshes immediately and then on every tick until ctx is cancelled.
func (r *PriceRefresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("price refresher started", zap.Duration("interval", r.interval))
	for {
		if err := r.RefreshOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn("price refresh failed, keeping last quotes", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			r.logger.Info("price refresher stopped")
			return
		case <-ticker.C:
		}
	}
}

// Symbols lists the distinct symbols held across all investment accounts.
func (e *Engine) Symbols() []string {
	var out []string
	e.read(func(s *state) { out = holdingSymbols(s.Accounts) })
	return out
}
