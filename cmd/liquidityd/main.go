package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/boddenberg/pj-liquidity-engine/internal/config"
	"github.com/boddenberg/pj-liquidity-engine/internal/domain"
	"github.com/boddenberg/pj-liquidity-engine/internal/handler"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/cache"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/clock"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/kv"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/observability"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/pricefeed"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/resilience"
	"github.com/boddenberg/pj-liquidity-engine/internal/port"
	"github.com/boddenberg/pj-liquidity-engine/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg, err := config.Load(os.Getenv("LIQUIDITY_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	loc, _ := cfg.Location()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_driver", cfg.StoreDriver),
		zap.String("store_path", cfg.StorePath),
		zap.Int("cycle_anchor_day", cfg.CycleAnchorDay),
		zap.Duration("cycle_check_interval", cfg.CycleCheckInterval),
		zap.String("price_feed", cfg.PriceFeed),
		zap.Duration("price_refresh_interval", cfg.PriceRefreshInterval),
		zap.String("timezone", loc.String()),
	)

	// --- Tracing ---
	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "pj-liquidity-engine")
		if err != nil {
			logger.Fatal("failed to init tracer", zap.Error(err))
		}
		defer shutdown(context.Background())
	}

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- State store ---
	store, err := kv.Open(cfg.StoreDriver, cfg.StorePath)
	if err != nil {
		logger.Fatal("failed to open state store", zap.Error(err))
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Engine ---
	priceCache := cache.New[domain.MarketPrice](ctx, cfg.PriceStaleAfter)
	prices := service.NewPriceBook(priceCache, metrics)

	engine := service.NewEngine(store, clock.System{Location: loc}, prices, service.Settings{
		AnchorDay:     cfg.CycleAnchorDay,
		CashAccountID: cfg.CashAccountID,
	}, metrics, logger)

	report, err := engine.Load(ctx)
	if err != nil {
		logger.Fatal("failed to load engine state", zap.Error(err))
	}
	logger.Info("engine ready",
		zap.String("cycle", report.CurrentKey),
		zap.Bool("transitioned", report.Transitioned),
	)

	// --- Background workers ---
	var wg sync.WaitGroup

	scheduler := service.NewCycleScheduler(engine, cfg.CycleCheckInterval, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()

	if feed := newPriceFeed(cfg, engine, logger); feed != nil {
		refresher := service.NewPriceRefresher(feed, prices, engine.Symbols, cfg.PriceRefreshInterval, metrics, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			refresher.Run(ctx)
		}()
	}

	// --- Router ---
	router := handler.NewRouter(engine, store, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	cancel()
	wg.Wait()

	logger.Info("server stopped")
}

// newPriceFeed builds the configured quote source, or nil when prices are
// disabled.
func newPriceFeed(cfg *config.Config, engine *service.Engine, logger *zap.Logger) port.PriceFeed {
	switch cfg.PriceFeed {
	case "http":
		logger.Info("using HTTP price feed", zap.String("url", cfg.PriceFeedURL))
		resilienceCfg := resilience.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxConcurrency: cfg.MaxConcurrency,
		}
		return pricefeed.NewHTTPClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.PriceFeedURL,
			resilience.NewCircuitBreaker("pricefeed"),
			resilienceCfg,
		)
	case "simulated":
		logger.Info("using simulated price feed")
		return pricefeed.NewSimulated(nil, time.Now().UnixNano()).SeedFrom(purchasePriceLookup(engine))
	default:
		logger.Warn("price feed disabled, holdings valued at purchase price")
		return nil
	}
}

// purchasePriceLookup opens the simulated walk for a symbol at the purchase
// price of the first holding of it, so holdings added later get quotes too.
func purchasePriceLookup(engine *service.Engine) func(string) (decimal.Decimal, bool) {
	return func(symbol string) (decimal.Decimal, bool) {
		for _, acct := range engine.ListAccounts(context.Background()) {
			for _, h := range acct.Holdings {
				if strings.EqualFold(h.Symbol, symbol) {
					return h.PurchasePrice, true
				}
			}
		}
		return decimal.Decimal{}, false
	}
}
