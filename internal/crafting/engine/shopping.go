package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rsned/craft-market-planner/pkg/crafting"
)

// ShoppingRequest selects where and how shopping plans are computed.
type ShoppingRequest struct {
	Region     string
	AllRegions bool
	Objective  crafting.Objective
	Sort       crafting.SortOrder
}

// ComputeShoppingPlans fetches listings for the market materials and
// builds one DetailedShoppingPlan per item with a per-world allocation and
// a recommended world. Vendor and untradeable materials are skipped.
func (e *Engine) ComputeShoppingPlans(ctx context.Context, materials []crafting.MaterialAggregate, req ShoppingRequest, progress crafting.ProgressFunc) (*crafting.ShoppingResult, error) {
	return e.computeShoppingPlans(ctx, materials, req, progress, e.collectListings)
}

func (e *Engine) computeShoppingPlans(ctx context.Context, materials []crafting.MaterialAggregate, req ShoppingRequest, progress crafting.ProgressFunc, fetch listingFetcher) (*crafting.ShoppingResult, error) {
	if req.Region == "" {
		req.Region = e.policy.HomeDataCenter
	}
	if req.Region == "" {
		return nil, errors.New("compute shopping plans: no region given and no home data center configured")
	}
	if req.Objective == "" {
		req.Objective = e.objective
	}
	if !req.Objective.IsValid() {
		return nil, fmt.Errorf("compute shopping plans: unknown objective %q", req.Objective)
	}
	if req.Sort == "" {
		req.Sort = e.sortOrder
	}

	buckets := e.CategorizeMaterials(ctx, materials)
	var outcome crafting.Outcome
	outcome.Skipped = len(buckets.Vendor) + len(buckets.Untradeable)

	var wanted []crafting.MaterialAggregate
	for _, m := range buckets.Market {
		if m.TotalQuantity <= 0 {
			outcome.Skipped++
			continue
		}
		wanted = append(wanted, m)
	}

	ids := make([]int, 0, len(wanted))
	for _, m := range wanted {
		ids = append(ids, m.ItemID)
	}
	regions := e.regionsFor(req.Region, req.AllRegions)
	data := fetch(ctx, regions, ids, progress)
	outcome.FailedRegions = data.failedRegions
	outcome.UsedCachedData = data.usedSnapshots

	blacklisted := e.activeBlacklist(ctx)

	plans := make([]crafting.DetailedShoppingPlan, 0, len(wanted))
	for i, m := range wanted {
		report(progress, crafting.Progress{
			Stage:   crafting.StageAllocating,
			Current: i + 1,
			Total:   len(wanted),
			ItemID:  m.ItemID,
			Item:    m.Name,
		})

		plan := e.shoppingPlanFor(m, data.itemListings(regions, m.ItemID), req.Objective, blacklisted)
		if plan.RecommendedWorld != nil {
			outcome.Success++
		} else {
			outcome.Failed++
		}
		plans = append(plans, plan)
	}

	SortPlans(plans, req.Sort)

	report(progress, crafting.Progress{
		Stage:   crafting.StageComplete,
		Current: len(wanted),
		Total:   len(wanted),
	})
	e.logger.Info("shopping plans computed",
		"items", len(plans),
		"objective", req.Objective,
		"success", outcome.Success,
		"failed", outcome.Failed,
		"failed_regions", len(outcome.FailedRegions),
	)

	return &crafting.ShoppingResult{Plans: plans, Outcome: outcome}, nil
}

// ShopPlan computes shopping plans for a plan's aggregated materials and
// stores them on the plan.
func (e *Engine) ShopPlan(ctx context.Context, plan *crafting.CraftingPlan, req ShoppingRequest, progress crafting.ProgressFunc) (*crafting.ShoppingResult, error) {
	if plan == nil {
		return nil, errors.New("shop plan: plan is nil")
	}
	if req.Region == "" {
		req.Region = plan.DataCenter
	}
	result, err := e.ComputeShoppingPlans(ctx, AggregateMaterials(plan), req, progress)
	if err != nil {
		return nil, err
	}
	plan.MarketPlans = result.Plans
	plan.ModifiedAt = e.clock.Now()
	return result, nil
}

// RefreshAndShop refreshes the plan's prices and computes its shopping
// plans from a single fetch of every region. The shopping request searches
// the same regions as the refresh.
func (e *Engine) RefreshAndShop(ctx context.Context, plan *crafting.CraftingPlan, refresh RefreshRequest, shop ShoppingRequest, progress crafting.ProgressFunc) (*crafting.RefreshResult, *crafting.ShoppingResult, error) {
	if plan == nil {
		return nil, nil, errors.New("refresh and shop: plan is nil")
	}
	if refresh.Region == "" {
		refresh.Region = plan.DataCenter
	}
	shop.Region = refresh.Region
	shop.AllRegions = refresh.AllRegions

	// every market material is fetched up front, so an unpriced-only
	// refresh still leaves the listings the shopping pass needs
	var ids []int
	for _, m := range e.CategorizeMaterials(ctx, AggregateMaterials(plan)).Market {
		if m.TotalQuantity > 0 {
			ids = append(ids, m.ItemID)
		}
	}
	var shared *marketData
	fetchOnce := func(ctx context.Context, regions []string, _ []int, progress crafting.ProgressFunc) *marketData {
		if shared == nil {
			shared = e.collectListings(ctx, regions, ids, progress)
		}
		return shared
	}

	refreshed, err := e.refreshPrices(ctx, plan, refresh, progress, fetchOnce)
	if err != nil {
		return nil, nil, err
	}
	shopping, err := e.computeShoppingPlans(ctx, plan.AggregatedMaterials, shop, progress, fetchOnce)
	if err != nil {
		return nil, nil, err
	}
	plan.MarketPlans = shopping.Plans
	plan.ModifiedAt = e.clock.Now()
	return refreshed, shopping, nil
}

func (e *Engine) shoppingPlanFor(m crafting.MaterialAggregate, sets []crafting.ItemListings, objective crafting.Objective, blacklisted []string) crafting.DetailedShoppingPlan {
	plan := crafting.DetailedShoppingPlan{
		ItemID:             m.ItemID,
		Name:               m.Name,
		QuantityNeeded:     m.TotalQuantity,
		RequiresHQ:         m.RequiresHQ,
		RegionAveragePrice: regionAverage(sets),
	}

	for _, s := range sets {
		plan.WorldOptions = append(plan.WorldOptions, AllocateByWorld(m.TotalQuantity, m.RequiresHQ, s, plan.RegionAveragePrice)...)
	}
	e.policy.Apply(plan.WorldOptions, blacklisted)
	MarkCompetitive(plan.WorldOptions, plan.RegionAveragePrice)
	plan.RecommendedWorld = RecommendWorld(plan.WorldOptions, objective)

	switch {
	case len(plan.WorldOptions) == 0:
		plan.Error = "no listings found"
	case plan.RecommendedWorld == nil:
		plan.Error = "no eligible world has enough listings"
	}
	return plan
}

// activeBlacklist returns the names of currently blacklisted worlds.
func (e *Engine) activeBlacklist(ctx context.Context) []string {
	if e.blacklist == nil {
		return nil
	}
	entries, err := e.blacklist.Active(ctx, e.clock.Now())
	if err != nil {
		e.logger.Warn("loading world blacklist failed", "error", err)
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.World)
	}
	return names
}
