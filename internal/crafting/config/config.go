// Package config loads planner configuration from a config file,
// environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the main configuration struct combining all sub-configs
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Market   MarketConfig   `mapstructure:"market"`
	Shopping ShoppingConfig `mapstructure:"shopping"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// DatabaseConfig holds the SQLite location.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// MarketConfig holds market API access and retry settings.
type MarketConfig struct {
	BaseURL         string          `mapstructure:"base_url" validate:"required,url"`
	Timeout         time.Duration   `mapstructure:"timeout" validate:"gt=0"`
	RegionDelay     time.Duration   `mapstructure:"region_delay" validate:"gte=0"`
	ListingsPerItem int             `mapstructure:"listings_per_item" validate:"gte=0"`
	UserAgent       string          `mapstructure:"user_agent"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
	Retry           RetryConfig     `mapstructure:"retry"`
}

// RateLimitConfig bounds outgoing market requests.
type RateLimitConfig struct {
	Requests float64 `mapstructure:"requests" validate:"gt=0"`
	Burst    int     `mapstructure:"burst" validate:"min=1"`
}

// RetryConfig controls per-region retries. MaxAttempts counts the first
// attempt.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1,max=10"`
	BackoffBase time.Duration `mapstructure:"backoff_base" validate:"gt=0"`
	BackoffMax  time.Duration `mapstructure:"backoff_max" validate:"gtefield=BackoffBase"`
}

// ShoppingConfig holds world preferences and shopping defaults.
type ShoppingConfig struct {
	HomeWorld              string        `mapstructure:"home_world"`
	HomeDataCenter         string        `mapstructure:"home_data_center" validate:"required"`
	DataCenters            []string      `mapstructure:"data_centers"`
	CongestedWorlds        []string      `mapstructure:"congested_worlds"`
	TravelProhibitedWorlds []string      `mapstructure:"travel_prohibited_worlds"`
	Objective              string        `mapstructure:"objective" validate:"oneof=min-cost best-value"`
	Sort                   string        `mapstructure:"sort" validate:"oneof=recommended alphabetical price-desc"`
	BlacklistDuration      time.Duration `mapstructure:"blacklist_duration" validate:"gt=0"`
}

// CacheConfig sizes the in-memory caches.
type CacheConfig struct {
	RecipeTTL   time.Duration `mapstructure:"recipe_ttl" validate:"gt=0"`
	RecipeSize  int           `mapstructure:"recipe_size" validate:"min=1"`
	PriceMaxAge time.Duration `mapstructure:"price_max_age" validate:"gte=0"`
}

// MetricsConfig controls the optional Prometheus endpoint. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// envKeys are the keys that can be set from CRAFT_* variables without a
// config file entry.
var envKeys = []string{
	"database.path",
	"market.base_url",
	"market.timeout",
	"market.region_delay",
	"market.listings_per_item",
	"market.user_agent",
	"market.rate_limit.requests",
	"market.rate_limit.burst",
	"market.retry.max_attempts",
	"market.retry.backoff_base",
	"market.retry.backoff_max",
	"shopping.home_world",
	"shopping.home_data_center",
	"shopping.data_centers",
	"shopping.congested_worlds",
	"shopping.travel_prohibited_worlds",
	"shopping.objective",
	"shopping.sort",
	"shopping.blacklist_duration",
	"cache.recipe_ttl",
	"cache.recipe_size",
	"cache.price_max_age",
	"logging.level",
	"logging.format",
	"metrics.addr",
}

// LoadConfig loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. Config file (config.yaml)
// 3. Defaults (lowest priority)
func LoadConfig(configPath string) (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/craft-planner")
	}

	v.SetEnvPrefix("CRAFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	SetDefaults(&cfg)

	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
