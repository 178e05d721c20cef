package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
// Values come from environment variables, optionally layered over a config
// file, with sensible defaults.
type Config struct {
	// Server
	Port     int    `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Storage
	StoreDriver string `mapstructure:"STORE_DRIVER"`
	StorePath   string `mapstructure:"STORE_PATH"`

	// Billing cycle
	CycleAnchorDay     int           `mapstructure:"CYCLE_ANCHOR_DAY"`
	CycleCheckInterval time.Duration `mapstructure:"CYCLE_CHECK_INTERVAL"`
	CashAccountID      string        `mapstructure:"CASH_ACCOUNT_ID"`
	Timezone           string        `mapstructure:"TIMEZONE"`

	// Market prices
	PriceFeed            string        `mapstructure:"PRICE_FEED"` // http, simulated, none
	PriceFeedURL         string        `mapstructure:"PRICE_FEED_URL"`
	PriceRefreshInterval time.Duration `mapstructure:"PRICE_REFRESH_INTERVAL"`
	PriceStaleAfter      time.Duration `mapstructure:"PRICE_STALE_AFTER"`

	// HTTP client
	HTTPTimeout time.Duration `mapstructure:"HTTP_TIMEOUT"`

	// Resilience
	MaxRetries     int           `mapstructure:"MAX_RETRIES"`
	InitialBackoff time.Duration `mapstructure:"INITIAL_BACKOFF"`
	MaxConcurrency int           `mapstructure:"MAX_CONCURRENCY"`

	// Observability
	OTLPEndpoint   string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TracingEnabled bool   `mapstructure:"TRACING_ENABLED"`
}

var defaults = map[string]any{
	"PORT":      8080,
	"LOG_LEVEL": "info",

	"STORE_DRIVER": "bolt",
	"STORE_PATH":   "data/liquidity.db",

	"CYCLE_ANCHOR_DAY":     25,
	"CYCLE_CHECK_INTERVAL": time.Hour,
	"CASH_ACCOUNT_ID":      "cash",
	"TIMEZONE":             "Local",

	"PRICE_FEED":             "simulated",
	"PRICE_FEED_URL":         "http://localhost:8091",
	"PRICE_REFRESH_INTERVAL": 30 * time.Second,
	"PRICE_STALE_AFTER":      24 * time.Hour,

	"HTTP_TIMEOUT": 10 * time.Second,

	"MAX_RETRIES":     3,
	"INITIAL_BACKOFF": 100 * time.Millisecond,
	"MAX_CONCURRENCY": 8,

	"OTEL_EXPORTER_OTLP_ENDPOINT": "localhost:4317",
	"TRACING_ENABLED":             false,
}

// Load reads configuration from environment variables with defaults.
// When configFile is not empty it is read first and env vars override it.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.CycleAnchorDay < 1 || c.CycleAnchorDay > 31 {
		return fmt.Errorf("CYCLE_ANCHOR_DAY must be between 1 and 31, got %d", c.CycleAnchorDay)
	}
	if c.CashAccountID == "" {
		return fmt.Errorf("CASH_ACCOUNT_ID must not be empty")
	}
	switch c.PriceFeed {
	case "http", "simulated", "none":
	default:
		return fmt.Errorf("PRICE_FEED must be one of http, simulated, none, got %q", c.PriceFeed)
	}
	for name, d := range map[string]time.Duration{
		"CYCLE_CHECK_INTERVAL":   c.CycleCheckInterval,
		"PRICE_REFRESH_INTERVAL": c.PriceRefreshInterval,
		"PRICE_STALE_AFTER":      c.PriceStaleAfter,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured timezone used for cycle boundaries.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}
