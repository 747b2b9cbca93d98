package engine

import (
	"context"

	"github.com/rsned/craft-market-planner/pkg/crafting"
)

// CategorizeMaterials partitions materials by the price source reported
// by the price cache. Every material lands in exactly one bucket. Items
// whose price cannot be looked up go to the market bucket so a live fetch
// gets a chance to price them.
func (e *Engine) CategorizeMaterials(ctx context.Context, materials []crafting.MaterialAggregate) crafting.MaterialBuckets {
	var buckets crafting.MaterialBuckets
	for _, m := range materials {
		info, err := e.prices.LookupPrice(ctx, m.ItemID)
		if err != nil {
			e.logger.Warn("price lookup failed", "item_id", m.ItemID, "error", err)
			buckets.Market = append(buckets.Market, m)
			continue
		}

		switch info.Source {
		case crafting.PriceSourceVendor:
			buckets.Vendor = append(buckets.Vendor, m)
		case crafting.PriceSourceMarket:
			buckets.Market = append(buckets.Market, m)
		default:
			buckets.Untradeable = append(buckets.Untradeable, m)
		}
	}
	return buckets
}
