// Package engine contains the plan building and market shopping logic.
package engine

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rsned/craft-market-planner/pkg/crafting"
)

// RecipeCatalog resolves items to recipes and static item data.
// Both lookups return nil, nil when the item is unknown or not craftable.
type RecipeCatalog interface {
	LookupRecipe(ctx context.Context, itemID int) (*crafting.Recipe, error)
	LookupItem(ctx context.Context, itemID int) (*crafting.Item, error)
}

// RecipeSearcher is implemented by catalogs that support name search.
type RecipeSearcher interface {
	SearchRecipes(ctx context.Context, term string, limit int) ([]crafting.RecipeSearchHit, error)
	GetRecipesUsingItem(ctx context.Context, itemID int) ([]int, error)
}

// PriceCache is the shared price cache. LookupPrice never blocks on the
// network; Put records a fresh price.
type PriceCache interface {
	LookupPrice(ctx context.Context, itemID int) (crafting.PriceInfo, error)
	Put(info crafting.PriceInfo)
}

// MarketSource fetches current listings for a batch of items in one region.
type MarketSource interface {
	FetchListings(ctx context.Context, region string, itemIDs []int) (crafting.RegionListings, error)
}

// SnapshotStore keeps the last good listings per region.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, region string, requested []int, listings crafting.RegionListings, fetchedAt time.Time) error
	LoadSnapshot(ctx context.Context, region string, itemIDs []int) (crafting.RegionListings, time.Time, error)
}

// Blacklist reports the worlds currently excluded from recommendation.
type Blacklist interface {
	Active(ctx context.Context, now time.Time) ([]crafting.BlacklistEntry, error)
}

// Engine is the main entry point for plan building, price refresh and
// shopping plan computation. Collaborators are injected; the engine reads
// no global state.
type Engine struct {
	catalog   RecipeCatalog
	prices    PriceCache
	fetcher   *RegionFetchCoordinator
	snapshots SnapshotStore
	blacklist Blacklist
	clock     Clock
	logger    *slog.Logger
	validate  *validator.Validate

	policy      WorldPolicy
	regions     []string
	objective   crafting.Objective
	sortOrder   crafting.SortOrder
	priceMaxAge time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the clock used for timestamps, backoff and delays.
func WithClock(clock Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithSnapshots enables the stale listing fallback.
func WithSnapshots(store SnapshotStore) Option {
	return func(e *Engine) { e.snapshots = store }
}

// WithBlacklist sets the source of time-boxed world exclusions.
func WithBlacklist(b Blacklist) Option {
	return func(e *Engine) { e.blacklist = b }
}

// WithWorldPolicy sets home world and world flags.
func WithWorldPolicy(p WorldPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithRegions sets every region searched when all regions are requested.
func WithRegions(regions []string) Option {
	return func(e *Engine) { e.regions = regions }
}

// WithFetchConfig sets retry and pacing of market fetches.
func WithFetchConfig(cfg FetchConfig) Option {
	return func(e *Engine) { e.fetcher.cfg = cfg.withDefaults() }
}

// WithFetchRecorder sets the metrics recorder for market fetches.
func WithFetchRecorder(r FetchRecorder) Option {
	return func(e *Engine) { e.fetcher.recorder = r }
}

// WithDefaults sets the default objective and display order.
func WithDefaults(objective crafting.Objective, order crafting.SortOrder) Option {
	return func(e *Engine) {
		e.objective = objective
		e.sortOrder = order
	}
}

// WithPriceMaxAge sets the age after which a cached market price counts
// as unpriced for ScopeUnpriced refreshes.
func WithPriceMaxAge(d time.Duration) Option {
	return func(e *Engine) { e.priceMaxAge = d }
}

// New creates an Engine from its collaborators.
func New(catalog RecipeCatalog, prices PriceCache, market MarketSource, opts ...Option) *Engine {
	e := &Engine{
		catalog:   catalog,
		prices:    prices,
		fetcher:   NewRegionFetchCoordinator(market, DefaultFetchConfig()),
		clock:     NewRealClock(),
		validate:  validator.New(),
		objective: crafting.ObjectiveMinimizeTotalCost,
		sortOrder: crafting.SortByRecommendedWorld,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	e.fetcher.clock = e.clock
	e.fetcher.logger = e.logger
	return e
}

// report pushes a progress update if the caller asked for them.
func report(progress crafting.ProgressFunc, p crafting.Progress) {
	if progress != nil {
		progress(p)
	}
}

// regionsFor returns the regions to query, the requested one first.
func (e *Engine) regionsFor(region string, all bool) []string {
	if !all || len(e.regions) == 0 {
		return []string{region}
	}
	out := []string{region}
	for _, r := range e.regions {
		if r != region {
			out = append(out, r)
		}
	}
	return out
}
