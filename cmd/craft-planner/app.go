package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rsned/craft-market-planner/internal/crafting/cache"
	"github.com/rsned/craft-market-planner/internal/crafting/config"
	"github.com/rsned/craft-market-planner/internal/crafting/db"
	"github.com/rsned/craft-market-planner/internal/crafting/engine"
	"github.com/rsned/craft-market-planner/internal/crafting/metrics"
	"github.com/rsned/craft-market-planner/internal/crafting/universalis"
	"github.com/rsned/craft-market-planner/pkg/crafting"
)

// app holds the wired components shared by every command.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *db.DB
	catalog   *cache.CachedCatalog
	prices    *cache.PriceCache
	blacklist *db.BlacklistStore
	metrics   *metrics.FetchCollector
	registry  *prometheus.Registry
	engine    *engine.Engine
}

// newApp loads configuration, opens the database and wires the engine.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	// stdout carries MCP traffic and command output
	logger := cfg.Logging.NewLogger(os.Stderr, verbose)

	database, err := db.OpenAndInit(ctx, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	catalog := cache.NewCachedCatalog(db.NewCatalog(database), cfg.Cache.RecipeSize, cfg.Cache.RecipeTTL)
	prices := cache.NewPriceCache(db.NewPriceStore(database), catalog, logger)
	blacklist := db.NewBlacklistStore(database)

	collector := metrics.NewFetchCollector()
	registry := prometheus.NewRegistry()
	if err := collector.Register(registry); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	market := universalis.NewClient(universalis.Config{
		BaseURL:           cfg.Market.BaseURL,
		RequestsPerSecond: cfg.Market.RateLimit.Requests,
		Burst:             cfg.Market.RateLimit.Burst,
		ListingsPerItem:   cfg.Market.ListingsPerItem,
		UserAgent:         cfg.Market.UserAgent,
	}, logger)

	eng := engine.New(catalog, prices, market,
		engine.WithLogger(logger),
		engine.WithSnapshots(db.NewMarketStore(database)),
		engine.WithBlacklist(blacklist),
		engine.WithWorldPolicy(engine.WorldPolicy{
			HomeWorld:              cfg.Shopping.HomeWorld,
			HomeDataCenter:         cfg.Shopping.HomeDataCenter,
			CongestedWorlds:        cfg.Shopping.CongestedWorlds,
			TravelProhibitedWorlds: cfg.Shopping.TravelProhibitedWorlds,
		}),
		engine.WithRegions(cfg.Shopping.DataCenters),
		engine.WithFetchConfig(engine.FetchConfig{
			MaxAttempts: cfg.Market.Retry.MaxAttempts,
			BackoffBase: cfg.Market.Retry.BackoffBase,
			BackoffMax:  cfg.Market.Retry.BackoffMax,
			Timeout:     cfg.Market.Timeout,
			RegionDelay: cfg.Market.RegionDelay,
		}),
		engine.WithFetchRecorder(collector),
		engine.WithDefaults(crafting.Objective(cfg.Shopping.Objective), crafting.SortOrder(cfg.Shopping.Sort)),
		engine.WithPriceMaxAge(cfg.Cache.PriceMaxAge),
	)

	return &app{
		cfg:       cfg,
		logger:    logger,
		db:        database,
		catalog:   catalog,
		prices:    prices,
		blacklist: blacklist,
		metrics:   collector,
		registry:  registry,
		engine:    eng,
	}, nil
}

// Close persists fetched prices and closes the database.
func (a *app) Close(ctx context.Context) {
	if err := a.prices.Flush(context.WithoutCancel(ctx)); err != nil {
		a.logger.Error("failed to persist prices", "error", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", "error", err)
	}
}

// progressLogger reports engine progress as debug logs.
func (a *app) progressLogger() crafting.ProgressFunc {
	return func(p crafting.Progress) {
		a.logger.Debug("progress",
			"stage", p.Stage,
			"current", p.Current,
			"total", p.Total,
			"region", p.Region,
			"message", p.Message,
		)
	}
}
