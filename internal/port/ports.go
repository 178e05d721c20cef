// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"
)

// KVStore persists engine state as JSON documents under string keys.
// Get returns (nil, nil) when the key is absent. SetMany writes every pair
// or none of them.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetMany(ctx context.Context, values map[string][]byte) error
	Close() error
}

// Clock abstracts wall-clock reads so cycle and due-date rules are
// deterministic under test.
type Clock interface {
	Now() time.Time
}

// PriceFeed supplies the latest market quotes for a set of symbols.
type PriceFeed interface {
	FetchPrices(ctx context.Context, symbols []string) ([]domain.MarketPrice, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Keys() []string
}
