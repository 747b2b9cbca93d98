package engine

import (
	"context"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/rsned/craft-market-planner/pkg/crafting"
)

// marketData is the merged result of a multi-region fetch.
type marketData struct {
	byRegion      map[string]crafting.RegionListings
	failedRegions []string
	usedSnapshots bool
	cancelled     bool
}

// listingFetcher supplies merged listings for itemIDs across regions.
type listingFetcher func(ctx context.Context, regions []string, itemIDs []int, progress crafting.ProgressFunc) *marketData

// itemListings returns the item's listings in every region that has them,
// in region order.
func (m *marketData) itemListings(regions []string, itemID int) []crafting.ItemListings {
	var out []crafting.ItemListings
	for _, r := range regions {
		rl, ok := m.byRegion[r]
		if !ok {
			continue
		}
		if il, ok := rl[itemID]; ok && len(il.Listings) > 0 {
			if il.Region == "" {
				il.Region = r
			}
			out = append(out, il)
		}
	}
	return out
}

// collectListings fetches listings for itemIDs in every region. Fresh
// results are saved as snapshots; regions that fail fall back to their
// last snapshot when one exists.
func (e *Engine) collectListings(ctx context.Context, regions []string, itemIDs []int, progress crafting.ProgressFunc) *marketData {
	data := &marketData{byRegion: make(map[string]crafting.RegionListings)}
	if len(itemIDs) == 0 {
		return data
	}

	result := e.fetcher.Fetch(ctx, regions, itemIDs, progress)
	data.cancelled = result.Cancelled
	data.failedRegions = result.FailedRegions()

	now := e.clock.Now()
	for region, listings := range result.Listings {
		data.byRegion[region] = listings
		if e.snapshots == nil {
			continue
		}
		// the request context may be cancelled already; completed regions are still worth keeping
		if err := e.snapshots.SaveSnapshot(context.WithoutCancel(ctx), region, itemIDs, listings, now); err != nil {
			e.logger.Warn("saving listing snapshot failed", "region", region, "error", err)
		}
	}

	if e.snapshots == nil || ctx.Err() != nil {
		return data
	}
	for _, region := range data.failedRegions {
		listings, fetchedAt, err := e.snapshots.LoadSnapshot(ctx, region, itemIDs)
		if err != nil {
			e.logger.Warn("loading listing snapshot failed", "region", region, "error", err)
			continue
		}
		if len(listings) == 0 {
			continue
		}
		e.logger.Info("using stale listings",
			"region", region,
			"fetched_at", fetchedAt,
			"items", len(listings),
		)
		data.byRegion[region] = listings
		data.usedSnapshots = true
	}
	return data
}

// regionAverage is the average unit price across listings. A server
// supplied average is preferred; otherwise the listing prices are averaged.
func regionAverage(sets []crafting.ItemListings) float64 {
	var serverAvg []float64
	var prices []float64
	for _, s := range sets {
		if s.AveragePrice > 0 {
			serverAvg = append(serverAvg, s.AveragePrice)
		}
		for _, l := range s.Listings {
			prices = append(prices, float64(l.PricePerUnit))
		}
	}
	if len(serverAvg) > 0 {
		avg, _ := stats.Mean(serverAvg)
		return avg
	}
	if len(prices) == 0 {
		return 0
	}
	avg, _ := stats.Mean(prices)
	return avg
}

// bestUnitPrice is the lowest per-unit price at which need units can be
// bought from a single world. When no world covers need, the cheapest
// usable listing price is returned instead. Zero means no usable listing.
func bestUnitPrice(sets []crafting.ItemListings, need int, requiresHQ bool) int64 {
	if need < 1 {
		need = 1
	}
	var best float64
	var cheapest int64
	for _, s := range sets {
		for _, w := range AllocateByWorld(need, requiresHQ, s, 0) {
			if w.HasFullCoverage && (best == 0 || w.AveragePricePerUnit < best) {
				best = w.AveragePricePerUnit
			}
		}
		for _, l := range s.Listings {
			if requiresHQ && !l.IsHQ {
				continue
			}
			if cheapest == 0 || l.PricePerUnit < cheapest {
				cheapest = l.PricePerUnit
			}
		}
	}
	if best > 0 {
		return int64(math.Ceil(best))
	}
	return cheapest
}

// medianPrice is the median listing price, used for price details.
func medianPrice(sets []crafting.ItemListings) float64 {
	var prices []float64
	for _, s := range sets {
		for _, l := range s.Listings {
			prices = append(prices, float64(l.PricePerUnit))
		}
	}
	if len(prices) == 0 {
		return 0
	}
	m, _ := stats.Median(prices)
	return m
}
