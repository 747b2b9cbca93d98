package engine

import (
	"github.com/rsned/craft-market-planner/pkg/crafting"
)

// NodeCost is the cost of buying a node outright: unit price times quantity
// for buy sources, zero for Craft.
func NodeCost(n *crafting.PlanNode) int64 {
	if !n.Source.IsBuy() {
		return 0
	}
	return n.UnitPrice() * int64(n.Quantity)
}

// CraftCost is the effective cost of a node under its chosen sources: the
// sum over children for Craft nodes and the node cost otherwise.
func CraftCost(n *crafting.PlanNode) int64 {
	if n.Source != crafting.SourceCraft {
		return NodeCost(n)
	}
	var total int64
	for _, c := range n.Children {
		total += CraftCost(c)
	}
	return total
}

// PlanCost sums CraftCost over the plan's roots.
func PlanCost(plan *crafting.CraftingPlan) int64 {
	var total int64
	for _, root := range plan.RootItems {
		total += CraftCost(root)
	}
	return total
}

// AggregateMaterials sums the quantities of every bought node in the plan
// by item ID. Nodes under a bought node are not visited. Results keep the
// order in which items first appear.
func AggregateMaterials(plan *crafting.CraftingPlan) []crafting.MaterialAggregate {
	index := make(map[int]int)
	var out []crafting.MaterialAggregate

	plan.Walk(func(n *crafting.PlanNode) bool {
		if n.Source == crafting.SourceCraft {
			return true
		}

		i, ok := index[n.ItemID]
		if !ok {
			i = len(out)
			index[n.ItemID] = i
			out = append(out, crafting.MaterialAggregate{
				ItemID: n.ItemID,
				Name:   n.Name,
				Source: n.Source,
			})
		}
		agg := &out[i]
		agg.TotalQuantity += n.Quantity
		agg.RequiresHQ = agg.RequiresHQ || n.RequiresHQ
		if agg.RequiresHQ && agg.Source == crafting.SourceBuyNormalQuality {
			agg.Source = crafting.SourceBuyHighQuality
		}
		return false
	})

	// Prices are resolved after sources settle so an HQ upgrade picks the
	// HQ price.
	plan.Walk(func(n *crafting.PlanNode) bool {
		if n.Source == crafting.SourceCraft {
			return true
		}
		agg := &out[index[n.ItemID]]
		if p := unitPriceFor(n, agg.Source); p > 0 && (agg.UnitPrice == 0 || p < agg.UnitPrice) {
			agg.UnitPrice = p
		}
		return false
	})

	for i := range out {
		out[i].TotalCost = out[i].UnitPrice * int64(out[i].TotalQuantity)
	}
	return out
}

// unitPriceFor reads the node's price for source regardless of the node's
// own source.
func unitPriceFor(n *crafting.PlanNode, source crafting.AcquisitionSource) int64 {
	alt := *n
	alt.Source = source
	return alt.UnitPrice()
}
