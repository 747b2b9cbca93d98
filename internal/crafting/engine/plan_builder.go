package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/rsned/craft-market-planner/pkg/crafting"
)

// PlanVersion is the plan format version written by BuildPlan.
const PlanVersion = 1

// BuildPlan expands each target into a full recipe tree. Craftable items
// become Craft nodes whose children are the ingredients scaled by the
// number of craft executions; everything else becomes a leaf with a buy
// source. Catalog failures never abort the build: the affected node is
// marked with an error and kept as a leaf.
func (e *Engine) BuildPlan(ctx context.Context, name string, targets []crafting.Target) (*crafting.CraftingPlan, error) {
	if len(targets) == 0 {
		return nil, &crafting.ErrInvalidTarget{Index: -1, Reason: "no targets given"}
	}
	for i, t := range targets {
		if err := e.validate.Struct(t); err != nil {
			return nil, &crafting.ErrInvalidTarget{Index: i, Reason: formatValidationError(err)}
		}
	}

	now := e.clock.Now()
	plan := &crafting.CraftingPlan{
		Version:    PlanVersion,
		ID:         uuid.NewString(),
		Name:       name,
		CreatedAt:  now,
		ModifiedAt: now,
		DataCenter: e.policy.HomeDataCenter,
		World:      e.policy.HomeWorld,
	}

	for _, t := range targets {
		root := e.expandNode(ctx, t.ItemID, t.Quantity, t.RequiresHQ, "", "", nil)
		plan.RootItems = append(plan.RootItems, root)
	}

	plan.AggregatedMaterials = AggregateMaterials(plan)

	e.logger.Info("plan built",
		"plan_id", plan.ID,
		"targets", len(targets),
		"materials", len(plan.AggregatedMaterials),
	)
	return plan, nil
}

// expandNode builds the node for itemID and, if it is craftable, recurses
// into its ingredients. ancestors holds the item IDs on the path from the
// root to the parent.
func (e *Engine) expandNode(ctx context.Context, itemID, quantity int, requiresHQ bool, parentID, fallbackName string, ancestors []int) *crafting.PlanNode {
	node := &crafting.PlanNode{
		NodeID:       uuid.NewString(),
		ParentNodeID: parentID,
		ItemID:       itemID,
		Name:         fallbackName,
		Quantity:     quantity,
		RequiresHQ:   requiresHQ,
		Yield:        1,
	}

	item, err := e.catalog.LookupItem(ctx, itemID)
	if err != nil {
		e.logger.Warn("item lookup failed", "item_id", itemID, "error", err)
		node.Error = fmt.Sprintf("item lookup failed: %v", err)
	}
	if item != nil {
		if item.Name != "" {
			node.Name = item.Name
		}
		node.VendorPrice = item.VendorPrice
	}
	if node.Name == "" {
		node.Name = fmt.Sprintf("Item #%d", itemID)
	}

	if slices.Contains(ancestors, itemID) {
		node.IsCircular = true
		node.Name += crafting.CircularMarker
		setLeafSource(node, item)
		e.logger.Debug("circular recipe cut", "item_id", itemID, "depth", len(ancestors))
		return node
	}

	if err := ctx.Err(); err != nil {
		node.Error = fmt.Sprintf("expansion cancelled: %v", err)
		setLeafSource(node, item)
		return node
	}

	recipe, err := e.catalog.LookupRecipe(ctx, itemID)
	if err != nil {
		e.logger.Warn("recipe lookup failed", "item_id", itemID, "error", err)
		node.Error = fmt.Sprintf("recipe lookup failed: %v", err)
		setLeafSource(node, item)
		return node
	}
	if recipe == nil {
		setLeafSource(node, item)
		return node
	}

	node.Source = crafting.SourceCraft
	if recipe.Yield > 1 {
		node.Yield = recipe.Yield
	}
	runs := node.CraftCount()

	path := append(slices.Clip(ancestors), itemID)
	for _, ing := range recipe.Ingredients {
		if ing.Amount <= 0 {
			continue
		}
		child := e.expandNode(ctx, ing.ItemID, runs*ing.Amount, false, node.NodeID, ing.Name, path)
		node.Children = append(node.Children, child)
	}

	return node
}

// setLeafSource picks the default acquisition of a leaf: market when the
// item is tradeable, vendor when a vendor sells it, and a market buy with
// no known price otherwise.
func setLeafSource(node *crafting.PlanNode, item *crafting.Item) {
	switch {
	case item != nil && item.Tradeable:
		node.PriceSource = crafting.PriceSourceMarket
		if node.RequiresHQ {
			node.Source = crafting.SourceBuyHighQuality
		} else {
			node.Source = crafting.SourceBuyNormalQuality
		}
	case item != nil && item.VendorPrice > 0:
		node.PriceSource = crafting.PriceSourceVendor
		node.Source = crafting.SourceBuyFromVendor
	case item != nil:
		node.PriceSource = crafting.PriceSourceUntradeable
		node.Source = crafting.SourceBuyNormalQuality
	default:
		node.PriceSource = crafting.PriceSourceUnknown
		node.Source = crafting.SourceBuyNormalQuality
	}
}

// SetNodeSource switches a node between crafting and buying. Switching to
// a buy source keeps the children so the node can be switched back.
func SetNodeSource(plan *crafting.CraftingPlan, nodeID string, source crafting.AcquisitionSource) error {
	if !source.IsValid() {
		return fmt.Errorf("invalid acquisition source %d", source)
	}
	node := plan.FindNode(nodeID)
	if node == nil {
		return fmt.Errorf("node not found: %s", nodeID)
	}
	if source == crafting.SourceCraft && node.IsLeaf() {
		return fmt.Errorf("node %s has no recipe to craft", nodeID)
	}
	node.Source = source
	plan.AggregatedMaterials = AggregateMaterials(plan)
	return nil
}

// SetRequiresHQ toggles the HQ requirement of a node. A market buy moves
// between BuyNQ and BuyHQ with it.
func SetRequiresHQ(plan *crafting.CraftingPlan, nodeID string, requiresHQ bool) error {
	node := plan.FindNode(nodeID)
	if node == nil {
		return fmt.Errorf("node not found: %s", nodeID)
	}
	node.RequiresHQ = requiresHQ
	switch {
	case requiresHQ && node.Source == crafting.SourceBuyNormalQuality:
		node.Source = crafting.SourceBuyHighQuality
	case !requiresHQ && node.Source == crafting.SourceBuyHighQuality:
		node.Source = crafting.SourceBuyNormalQuality
	}
	plan.AggregatedMaterials = AggregateMaterials(plan)
	return nil
}
