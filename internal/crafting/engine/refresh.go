package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rsned/craft-market-planner/pkg/crafting"
)

// RefreshRequest selects what a price refresh fetches.
type RefreshRequest struct {
	Region     string
	Scope      crafting.RefreshScope
	AllRegions bool
}

// RefreshPrices updates the prices stored on the plan's bought nodes.
// Vendor prices come from the cache, untradeable items are skipped, and
// market items are fetched live. A market item that cannot be fetched
// keeps its cached price when there is one. Partial results are kept when
// ctx is cancelled.
func (e *Engine) RefreshPrices(ctx context.Context, plan *crafting.CraftingPlan, req RefreshRequest, progress crafting.ProgressFunc) (*crafting.RefreshResult, error) {
	return e.refreshPrices(ctx, plan, req, progress, e.collectListings)
}

func (e *Engine) refreshPrices(ctx context.Context, plan *crafting.CraftingPlan, req RefreshRequest, progress crafting.ProgressFunc, fetch listingFetcher) (*crafting.RefreshResult, error) {
	if plan == nil {
		return nil, errors.New("refresh prices: plan is nil")
	}
	if req.Region == "" {
		req.Region = e.policy.HomeDataCenter
	}
	if req.Region == "" {
		return nil, errors.New("refresh prices: no region given and no home data center configured")
	}
	if req.Scope == "" {
		req.Scope = crafting.ScopeAll
	}

	materials := AggregateMaterials(plan)
	buckets := e.CategorizeMaterials(ctx, materials)
	var outcome crafting.Outcome
	resolved := make(map[int]crafting.PriceInfo)

	for _, m := range buckets.Vendor {
		info, err := e.prices.LookupPrice(ctx, m.ItemID)
		if err != nil || info.UnitPrice <= 0 {
			outcome.Failed++
			continue
		}
		resolved[m.ItemID] = info
		outcome.Success++
	}
	for _, m := range buckets.Untradeable {
		resolved[m.ItemID] = crafting.PriceInfo{ItemID: m.ItemID, Source: crafting.PriceSourceUntradeable}
		outcome.Skipped++
	}

	var toFetch []crafting.MaterialAggregate
	started := e.clock.Now()
	for _, m := range buckets.Market {
		if req.Scope == crafting.ScopeUnpriced {
			info, err := e.prices.LookupPrice(ctx, m.ItemID)
			if err == nil && info.UnitPrice > 0 && !info.IsStale(e.priceMaxAge, started) {
				resolved[m.ItemID] = info
				outcome.Cached++
				continue
			}
		}
		toFetch = append(toFetch, m)
	}

	ids := make([]int, 0, len(toFetch))
	for _, m := range toFetch {
		ids = append(ids, m.ItemID)
	}
	regions := e.regionsFor(req.Region, req.AllRegions)
	data := fetch(ctx, regions, ids, progress)
	outcome.FailedRegions = data.failedRegions
	outcome.UsedCachedData = data.usedSnapshots

	now := e.clock.Now()
	for i, m := range toFetch {
		report(progress, crafting.Progress{
			Stage:   crafting.StagePricing,
			Current: i + 1,
			Total:   len(toFetch),
			ItemID:  m.ItemID,
			Item:    m.Name,
		})

		sets := data.itemListings(regions, m.ItemID)
		if len(sets) > 0 {
			info := crafting.PriceInfo{
				ItemID:      m.ItemID,
				Source:      crafting.PriceSourceMarket,
				UnitPrice:   bestUnitPrice(sets, m.TotalQuantity, false),
				HQUnitPrice: bestUnitPrice(sets, m.TotalQuantity, true),
				Details:     fmt.Sprintf("median %.0f, average %.0f", medianPrice(sets), regionAverage(sets)),
				Region:      req.Region,
				FetchedAt:   now,
			}
			if req.AllRegions {
				info.Region = "all"
			}
			e.prices.Put(info)
			resolved[m.ItemID] = info
			outcome.Success++
			continue
		}

		if info, err := e.prices.LookupPrice(ctx, m.ItemID); err == nil && info.UnitPrice > 0 {
			resolved[m.ItemID] = info
			outcome.Cached++
			outcome.UsedCachedData = true
			continue
		}
		outcome.Failed++
	}

	applyPrices(plan, resolved)
	plan.AggregatedMaterials = AggregateMaterials(plan)
	plan.ModifiedAt = now

	report(progress, crafting.Progress{
		Stage:   crafting.StageComplete,
		Current: len(materials),
		Total:   len(materials),
	})
	e.logger.Info("prices refreshed",
		"plan_id", plan.ID,
		"success", outcome.Success,
		"failed", outcome.Failed,
		"skipped", outcome.Skipped,
		"cached", outcome.Cached,
		"failed_regions", len(outcome.FailedRegions),
	)

	return &crafting.RefreshResult{Plan: plan, Outcome: outcome}, nil
}

// applyPrices copies resolved prices onto every node of the same item.
func applyPrices(plan *crafting.CraftingPlan, resolved map[int]crafting.PriceInfo) {
	plan.Walk(func(n *crafting.PlanNode) bool {
		info, ok := resolved[n.ItemID]
		if !ok {
			return true
		}
		switch info.Source {
		case crafting.PriceSourceMarket:
			if info.UnitPrice > 0 {
				n.MarketPrice = info.UnitPrice
			}
			if info.HQUnitPrice > 0 {
				n.HQMarketPrice = info.HQUnitPrice
			}
		case crafting.PriceSourceVendor:
			n.VendorPrice = info.UnitPrice
		}
		if n.Source.IsBuy() {
			n.PriceSource = info.Source
		}
		return true
	})
}
