package config

import "time"

// SetDefaults sets default values for all configuration fields
func SetDefaults(cfg *Config) {
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/crafting/planner.db"
	}

	// Market defaults
	if cfg.Market.BaseURL == "" {
		cfg.Market.BaseURL = "https://universalis.app"
	}
	if cfg.Market.Timeout == 0 {
		cfg.Market.Timeout = 15 * time.Second
	}
	if cfg.Market.RegionDelay == 0 {
		cfg.Market.RegionDelay = 100 * time.Millisecond
	}
	if cfg.Market.UserAgent == "" {
		cfg.Market.UserAgent = "craft-market-planner"
	}
	if cfg.Market.RateLimit.Requests == 0 {
		cfg.Market.RateLimit.Requests = 8
	}
	if cfg.Market.RateLimit.Burst == 0 {
		cfg.Market.RateLimit.Burst = 2
	}
	if cfg.Market.Retry.MaxAttempts == 0 {
		cfg.Market.Retry.MaxAttempts = 3
	}
	if cfg.Market.Retry.BackoffBase == 0 {
		cfg.Market.Retry.BackoffBase = 500 * time.Millisecond
	}
	if cfg.Market.Retry.BackoffMax == 0 {
		cfg.Market.Retry.BackoffMax = 8 * time.Second
	}

	// Shopping defaults
	if cfg.Shopping.HomeDataCenter == "" {
		cfg.Shopping.HomeDataCenter = "Aether"
	}
	if len(cfg.Shopping.DataCenters) == 0 {
		cfg.Shopping.DataCenters = []string{cfg.Shopping.HomeDataCenter}
	}
	if cfg.Shopping.Objective == "" {
		cfg.Shopping.Objective = "min-cost"
	}
	if cfg.Shopping.Sort == "" {
		cfg.Shopping.Sort = "recommended"
	}
	if cfg.Shopping.BlacklistDuration == 0 {
		cfg.Shopping.BlacklistDuration = 30 * time.Minute
	}

	// Cache defaults
	if cfg.Cache.RecipeTTL == 0 {
		cfg.Cache.RecipeTTL = time.Hour
	}
	if cfg.Cache.RecipeSize == 0 {
		cfg.Cache.RecipeSize = 4096
	}
	if cfg.Cache.PriceMaxAge == 0 {
		cfg.Cache.PriceMaxAge = 6 * time.Hour
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}
