package pricefeed

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"

	"github.com/shopspring/decimal"
)

// Simulated is a random-walk quote generator for demos and local runs.
// Each call moves every known symbol by at most maxStep in either direction.
type Simulated struct {
	mu      sync.Mutex
	prices  map[string]decimal.Decimal
	opening map[string]decimal.Decimal
	rnd     *rand.Rand
	maxStep float64
	now     func() time.Time
	lookup  func(symbol string) (decimal.Decimal, bool)
}

// NewSimulated seeds the walk with starting prices.
func NewSimulated(seed map[string]decimal.Decimal, randSeed int64) *Simulated {
	prices := make(map[string]decimal.Decimal, len(seed))
	opening := make(map[string]decimal.Decimal, len(seed))
	for k, v := range seed {
		prices[strings.ToUpper(k)] = v
		opening[strings.ToUpper(k)] = v
	}
	return &Simulated{
		prices:  prices,
		opening: opening,
		rnd:     rand.New(rand.NewSource(randSeed)),
		maxStep: 0.02,
		now:     time.Now,
	}
}

// SeedFrom sets the source of starting prices for symbols the walk has not
// seen yet. The first request for such a symbol opens it at the returned
// price.
func (s *Simulated) SeedFrom(lookup func(symbol string) (decimal.Decimal, bool)) *Simulated {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookup = lookup
	return s
}

// FetchPrices returns a quote for every requested symbol the walk knows.
// Symbols with no starting price are skipped so their holdings fall back to
// purchase price.
func (s *Simulated) FetchPrices(ctx context.Context, symbols []string) ([]domain.MarketPrice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.MarketPrice, 0, len(symbols))
	for _, sym := range symbols {
		key := strings.ToUpper(sym)
		p, ok := s.prices[key]
		if !ok {
			if p, ok = s.open(key); !ok {
				continue
			}
		}
		step := (s.rnd.Float64()*2 - 1) * s.maxStep
		next := p.Mul(decimal.NewFromFloat(1 + step)).Round(4)
		if !next.IsPositive() {
			next = p
		}
		s.prices[key] = next

		change := decimal.Zero
		if open := s.opening[key]; open.IsPositive() {
			change = next.Sub(open).Div(open).Mul(decimal.NewFromInt(100)).Round(2)
		}
		out = append(out, domain.MarketPrice{
			Symbol:    key,
			Price:     next,
			Change24h: change,
			UpdatedAt: s.now(),
		})
	}
	return out, nil
}

// open starts the walk for key from the lookup. Caller holds s.mu.
func (s *Simulated) open(key string) (decimal.Decimal, bool) {
	if s.lookup == nil {
		return decimal.Decimal{}, false
	}
	p, ok := s.lookup(key)
	if !ok || !p.IsPositive() {
		return decimal.Decimal{}, false
	}
	s.prices[key] = p
	s.opening[key] = p
	return p, true
}
