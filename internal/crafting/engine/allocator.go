package engine

import (
	"sort"

	"github.com/rsned/craft-market-planner/pkg/crafting"
)

// AllocateListings chooses whole listings of one world, cheapest first,
// until need is covered. Listings can only be bought as whole stacks, so
// the last stack taken may leave an excess. When the world cannot cover
// need, every usable listing is taken and HasFullCoverage is false.
//
// Only HQ listings are usable when requiresHQ is set.
func AllocateListings(need int, requiresHQ bool, listings []crafting.Listing, regionAverage float64) crafting.WorldShoppingSummary {
	var summary crafting.WorldShoppingSummary

	usable := make([]crafting.Listing, 0, len(listings))
	for _, l := range listings {
		if l.Quantity <= 0 || (requiresHQ && !l.IsHQ) {
			continue
		}
		usable = append(usable, l)
		summary.AvailableQuantity += l.Quantity
	}
	if len(listings) > 0 {
		summary.WorldID = listings[0].WorldID
		summary.WorldName = listings[0].WorldName
	}

	// Cheapest first; on equal price take the bigger stack so fewer
	// purchases are needed.
	sort.SliceStable(usable, func(i, j int) bool {
		if usable[i].PricePerUnit != usable[j].PricePerUnit {
			return usable[i].PricePerUnit < usable[j].PricePerUnit
		}
		return usable[i].Quantity > usable[j].Quantity
	})

	remaining := need
	for _, l := range usable {
		if remaining <= 0 {
			break
		}
		needed := min(l.Quantity, remaining)
		remaining -= needed

		summary.Listings = append(summary.Listings, crafting.ShoppingListingEntry{
			Quantity:        l.Quantity,
			PricePerUnit:    l.PricePerUnit,
			RetainerName:    l.RetainerName,
			IsHQ:            l.IsHQ,
			IsUnderAverage:  regionAverage > 0 && float64(l.PricePerUnit) < regionAverage,
			NeededFromStack: needed,
			ExcessQuantity:  l.Quantity - needed,
		})
		summary.TotalCost += l.PricePerUnit * int64(l.Quantity)
		summary.TotalQuantity += l.Quantity
	}

	summary.HasFullCoverage = remaining <= 0
	if summary.HasFullCoverage {
		summary.ExcessQuantity = summary.TotalQuantity - need
	}
	if summary.TotalQuantity > 0 {
		summary.AveragePricePerUnit = float64(summary.TotalCost) / float64(summary.TotalQuantity)
	}
	return summary
}

// AllocateByWorld groups an item's listings by world and allocates each
// world independently. Results are ordered by world name.
func AllocateByWorld(need int, requiresHQ bool, listings crafting.ItemListings, regionAverage float64) []crafting.WorldShoppingSummary {
	byWorld := make(map[string][]crafting.Listing)
	for _, l := range listings.Listings {
		byWorld[l.WorldName] = append(byWorld[l.WorldName], l)
	}

	worlds := make([]string, 0, len(byWorld))
	for w := range byWorld {
		worlds = append(worlds, w)
	}
	sort.Strings(worlds)

	out := make([]crafting.WorldShoppingSummary, 0, len(worlds))
	for _, w := range worlds {
		summary := AllocateListings(need, requiresHQ, byWorld[w], regionAverage)
		if len(summary.Listings) == 0 {
			// nothing usable in this world (e.g. only NQ when HQ is required)
			continue
		}
		summary.DataCenter = listings.Region
		out = append(out, summary)
	}
	return out
}
