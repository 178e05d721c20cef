// Package pricefeed provides market price sources for the valuation engine.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("pricefeed")

// batchSize caps the symbols sent in one quote request.
const batchSize = 20

// HTTPClient fetches quotes from a price API exposing
// GET /v1/prices?symbols=A,B returning [{symbol, price, change24h}].
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	bulkhead   *resilience.Bulkhead
}

// NewHTTPClient creates a new HTTPClient.
func NewHTTPClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *HTTPClient {
	return &HTTPClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cb:         cb,
		cfg:        cfg,
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
	}
}

// FetchPrices fetches quotes in concurrent batches with retry, circuit
// breaker, and tracing. Any failed batch fails the whole call.
func (c *HTTPClient) FetchPrices(ctx context.Context, symbols []string) ([]domain.MarketPrice, error) {
	ctx, span := tracer.Start(ctx, "HTTPClient.FetchPrices")
	defer span.End()
	span.SetAttributes(attribute.Int("symbols.count", len(symbols)))

	if len(symbols) == 0 {
		return nil, nil
	}

	batches := chunk(symbols, batchSize)
	results := make([][]domain.MarketPrice, len(batches))

	g, gCtx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			if err := c.bulkhead.Acquire(gCtx); err != nil {
				return err
			}
			defer c.bulkhead.Release()

			prices, err := resilience.Execute(gCtx, c.cb, c.cfg, "pricefeed", func(ctx context.Context) ([]domain.MarketPrice, error) {
				return c.fetchBatch(ctx, batch)
			})
			if err != nil {
				return err
			}
			results[i] = prices
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []domain.MarketPrice
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func (c *HTTPClient) fetchBatch(ctx context.Context, symbols []string) ([]domain.MarketPrice, error) {
	u := fmt.Sprintf("%s/v1/prices?symbols=%s", c.baseURL, url.QueryEscape(strings.Join(symbols, ",")))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price API returned status %d", resp.StatusCode)
	}

	var prices []domain.MarketPrice
	if err := json.NewDecoder(resp.Body).Decode(&prices); err != nil {
		return nil, fmt.Errorf("decode prices: %w", err)
	}
	return prices, nil
}

func chunk(symbols []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(symbols); start += size {
		end := min(start+size, len(symbols))
		out = append(out, symbols[start:end])
	}
	return out
}
