// Package cmd provides the liqctl subcommands. Every command opens the
// configured state store directly, so liqctl must not run against a store
// that liquidityd holds open with the bolt driver.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/boddenberg/pj-liquidity-engine/internal/config"
	"github.com/boddenberg/pj-liquidity-engine/internal/domain"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/cache"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/clock"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/kv"
	"github.com/boddenberg/pj-liquidity-engine/internal/infra/observability"
	"github.com/boddenberg/pj-liquidity-engine/internal/port"
	"github.com/boddenberg/pj-liquidity-engine/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	debug   bool

	logger = zap.NewNop()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "liqctl",
	Short: "Operate the liquidity engine state store",
	Long: `liqctl runs engine operations directly against the configured
state store, without going through the HTTP service.

Example:
  liqctl cycle-check
  liqctl summary
  liqctl project --cycles 6
  liqctl pay --expense rent --amount 1200
  liqctl seed --file fixtures.yaml`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "warn"
		if debug {
			level = "debug"
		}
		logger = observability.NewLogger(level)
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: env and .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(cycleCheckCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(payCmd)
	rootCmd.AddCommand(receiveCmd)
	rootCmd.AddCommand(seedCmd)
}

// openEngine loads config, opens the store and loads engine state. Loading
// runs the cycle check, whose report is returned. The close func releases
// the store.
func openEngine(ctx context.Context) (*service.Engine, *domain.CycleReport, func(), error) {
	_ = config.LoadDotEnv(".env")

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	loc, _ := cfg.Location()

	store, err := kv.Open(cfg.StoreDriver, cfg.StorePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open state store: %w", err)
	}

	engine, report, err := loadEngine(ctx, store, clock.System{Location: loc}, cfg)
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}
	return engine, report, func() { store.Close() }, nil
}

func loadEngine(ctx context.Context, store port.KVStore, clk port.Clock, cfg *config.Config) (*service.Engine, *domain.CycleReport, error) {
	metrics := observability.NewMetrics()
	prices := service.NewPriceBook(cache.New[domain.MarketPrice](ctx, cfg.PriceStaleAfter), metrics)

	engine := service.NewEngine(store, clk, prices, service.Settings{
		AnchorDay:     cfg.CycleAnchorDay,
		CashAccountID: cfg.CashAccountID,
	}, metrics, logger)

	report, err := engine.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load engine state: %w", err)
	}
	return engine, report, nil
}

// printJSON writes v as indented JSON to the command's output.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func exitOnError(err error, msg string) {
	if err != nil {
		logger.Error(msg, zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
		os.Exit(1)
	}
}
