// Package crafting contains the core types for the craft and market planner.
package crafting

import "time"

// ============================================
// INPUT TYPES
// ============================================

// Target is one item the player wants to end up with.
type Target struct {
	ItemID     int  `json:"item_id" validate:"gt=0"`
	Quantity   int  `json:"quantity" validate:"gt=0"`
	RequiresHQ bool `json:"requires_hq,omitempty"`
}

// Objective selects how a recommended world is chosen.
type Objective string

const (
	ObjectiveMinimizeTotalCost Objective = "min-cost"
	ObjectiveMaximizeValue     Objective = "best-value"
)

// ValidObjectives returns all valid shopping objectives.
func ValidObjectives() []Objective {
	return []Objective{ObjectiveMinimizeTotalCost, ObjectiveMaximizeValue}
}

// IsValid checks if the objective is a known valid objective.
func (o Objective) IsValid() bool {
	for _, valid := range ValidObjectives() {
		if o == valid {
			return true
		}
	}
	return false
}

// SortOrder controls display ordering of shopping plans. It is independent
// of the recommendation objective.
type SortOrder string

const (
	SortByRecommendedWorld SortOrder = "recommended"
	SortAlphabetical       SortOrder = "alphabetical"
	SortPriceDescending    SortOrder = "price-desc"
)

// RefreshScope limits which plan items a price refresh touches.
type RefreshScope string

const (
	// ScopeAll refreshes every bought material.
	ScopeAll RefreshScope = "all"
	// ScopeUnpriced refreshes only materials with no cached price.
	ScopeUnpriced RefreshScope = "unpriced"
)

// ============================================
// CATALOG TYPES
// ============================================

// Item is static item data from the catalog.
type Item struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Tradeable   bool   `json:"tradeable"`
	VendorPrice int64  `json:"vendor_price,omitempty"`
	CanBeHQ     bool   `json:"can_be_hq,omitempty"`
}

// Recipe describes how one item is crafted.
type Recipe struct {
	ID          int          `json:"id"`
	ItemID      int          `json:"item_id"`
	Name        string       `json:"name"`
	Yield       int          `json:"yield"`
	CraftType   string       `json:"craft_type,omitempty"`
	Level       int          `json:"level,omitempty"`
	Ingredients []Ingredient `json:"ingredients"`
}

// Ingredient is a per-craft input of a recipe.
type Ingredient struct {
	ItemID int    `json:"item_id"`
	Name   string `json:"name,omitempty"`
	Amount int    `json:"amount"`
}

// RecipeSearchHit is a lightweight recipe match for search results.
type RecipeSearchHit struct {
	RecipeID int    `json:"recipe_id"`
	ItemID   int    `json:"item_id"`
	Name     string `json:"name"`
}

// RecipeLookupRequest asks for one item's recipe or a name search.
type RecipeLookupRequest struct {
	ItemID int    `json:"item_id,omitempty"`
	Search string `json:"search,omitempty"`
}

// RecipeLookupResponse is the result of a recipe lookup.
type RecipeLookupResponse struct {
	Item          *Item             `json:"item,omitempty"`
	Recipe        *Recipe           `json:"recipe,omitempty"`
	SearchResults []RecipeSearchHit `json:"search_results,omitempty"`
	UsedInRecipes []int             `json:"used_in_recipes,omitempty"`
}

// ============================================
// PRICE TYPES
// ============================================

// PriceSource says where an item's price comes from.
type PriceSource string

const (
	PriceSourceUnknown     PriceSource = "unknown"
	PriceSourceVendor      PriceSource = "vendor"
	PriceSourceMarket      PriceSource = "market"
	PriceSourceUntradeable PriceSource = "untradeable"
)

// PriceInfo is the cached or freshly fetched price of one item.
type PriceInfo struct {
	ItemID      int         `json:"item_id"`
	Source      PriceSource `json:"source"`
	UnitPrice   int64       `json:"unit_price"`
	HQUnitPrice int64       `json:"hq_unit_price,omitempty"`
	Details     string      `json:"details,omitempty"`
	Region      string      `json:"region,omitempty"`
	FetchedAt   time.Time   `json:"fetched_at,omitempty"`
}

// IsStale reports whether a fetched price is older than maxAge at now.
// Prices that were never fetched, and a zero maxAge, are never stale.
func (p PriceInfo) IsStale(maxAge time.Duration, now time.Time) bool {
	if maxAge <= 0 || p.FetchedAt.IsZero() {
		return false
	}
	return now.Sub(p.FetchedAt) > maxAge
}

// ============================================
// PLAN TYPES
// ============================================

// AcquisitionSource is how a plan node is obtained. The numeric values are
// part of the persisted plan format.
type AcquisitionSource int

const (
	SourceCraft AcquisitionSource = iota
	SourceBuyNormalQuality
	SourceBuyHighQuality
	SourceBuyFromVendor
)

// String returns a readable name for the source.
func (s AcquisitionSource) String() string {
	switch s {
	case SourceCraft:
		return "craft"
	case SourceBuyNormalQuality:
		return "buy-nq"
	case SourceBuyHighQuality:
		return "buy-hq"
	case SourceBuyFromVendor:
		return "vendor"
	default:
		return "unknown"
	}
}

// IsValid reports whether s is one of the four persisted values.
func (s AcquisitionSource) IsValid() bool {
	return s >= SourceCraft && s <= SourceBuyFromVendor
}

// IsBuy reports whether the source purchases the item directly.
func (s AcquisitionSource) IsBuy() bool {
	return s != SourceCraft
}

// CircularMarker is appended to the name of a node whose expansion was cut
// because its item already appears among its ancestors.
const CircularMarker = " (circular)"

// PlanNode is one material requirement in a crafting plan tree.
type PlanNode struct {
	NodeID       string            `json:"nodeId"`
	ParentNodeID string            `json:"-"`
	ItemID       int               `json:"itemId"`
	Name         string            `json:"name"`
	Quantity     int               `json:"quantity"`
	Source       AcquisitionSource `json:"source"`
	RequiresHQ   bool              `json:"requiresHq,omitempty"`
	Yield        int               `json:"yield"`

	// Unit prices per source. Zero means unknown.
	MarketPrice   int64 `json:"marketPrice,omitempty"`
	HQMarketPrice int64 `json:"hqMarketPrice,omitempty"`
	VendorPrice   int64 `json:"vendorPrice,omitempty"`

	PriceSource PriceSource `json:"priceSource,omitempty"`
	IsCircular  bool        `json:"isCircular,omitempty"`
	Error       string      `json:"error,omitempty"`
	Children    []*PlanNode `json:"children,omitempty"`
}

// CraftCount is the number of craft executions the node's quantity needs.
func (n *PlanNode) CraftCount() int {
	yield := n.Yield
	if yield < 1 {
		yield = 1
	}
	return (n.Quantity + yield - 1) / yield
}

// UnitPrice returns the unit price for the node's active source.
func (n *PlanNode) UnitPrice() int64 {
	switch n.Source {
	case SourceBuyNormalQuality:
		return n.MarketPrice
	case SourceBuyHighQuality:
		if n.HQMarketPrice > 0 {
			return n.HQMarketPrice
		}
		return n.MarketPrice
	case SourceBuyFromVendor:
		return n.VendorPrice
	default:
		return 0
	}
}

// IsLeaf returns true if the node has no ingredients.
func (n *PlanNode) IsLeaf() bool {
	return len(n.Children) == 0
}

// CraftingPlan is the root collection of target nodes.
type CraftingPlan struct {
	Version    int       `json:"version"`
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
	DataCenter string    `json:"dataCenter,omitempty"`
	World      string    `json:"world,omitempty"`

	RootItems []*PlanNode `json:"rootItems"`

	// AggregatedMaterials is a cache re-derivable from RootItems.
	AggregatedMaterials []MaterialAggregate    `json:"-"`
	MarketPlans         []DetailedShoppingPlan `json:"marketPlans,omitempty"`
}

// Walk visits every node in pre-order. Returning false from fn skips the
// node's children.
func (p *CraftingPlan) Walk(fn func(n *PlanNode) bool) {
	var visit func(n *PlanNode)
	visit = func(n *PlanNode) {
		if !fn(n) {
			return
		}
		for _, c := range n.Children {
			visit(c)
		}
	}
	for _, root := range p.RootItems {
		visit(root)
	}
}

// FindNode returns the node with the given ID, or nil.
func (p *CraftingPlan) FindNode(nodeID string) *PlanNode {
	var found *PlanNode
	p.Walk(func(n *PlanNode) bool {
		if found != nil {
			return false
		}
		if n.NodeID == nodeID {
			found = n
			return false
		}
		return true
	})
	return found
}

// AncestorChain returns the nodes from the root down to (and excluding)
// nodeID, following parent back-references.
func (p *CraftingPlan) AncestorChain(nodeID string) []*PlanNode {
	node := p.FindNode(nodeID)
	if node == nil {
		return nil
	}
	var chain []*PlanNode
	for parentID := node.ParentNodeID; parentID != ""; {
		parent := p.FindNode(parentID)
		if parent == nil {
			break
		}
		chain = append([]*PlanNode{parent}, chain...)
		parentID = parent.ParentNodeID
	}
	return chain
}

// MaterialAggregate is one bought material summed across the whole tree.
type MaterialAggregate struct {
	ItemID        int               `json:"item_id"`
	Name          string            `json:"name"`
	TotalQuantity int               `json:"total_quantity"`
	RequiresHQ    bool              `json:"requires_hq"`
	Source        AcquisitionSource `json:"source"`
	UnitPrice     int64             `json:"unit_price"`
	TotalCost     int64             `json:"total_cost"`
}

// MaterialBuckets partitions aggregated materials by price source.
type MaterialBuckets struct {
	Vendor      []MaterialAggregate `json:"vendor"`
	Market      []MaterialAggregate `json:"market"`
	Untradeable []MaterialAggregate `json:"untradeable"`
}

// ============================================
// MARKET TYPES
// ============================================

// Listing is one raw market listing as returned by the market data service.
type Listing struct {
	WorldID      int    `json:"world_id"`
	WorldName    string `json:"world_name"`
	Quantity     int    `json:"quantity"`
	PricePerUnit int64  `json:"price_per_unit"`
	RetainerName string `json:"retainer_name,omitempty"`
	IsHQ         bool   `json:"hq"`
}

// ItemListings holds every listing of one item in one region.
type ItemListings struct {
	ItemID       int       `json:"item_id"`
	Region       string    `json:"region"`
	AveragePrice float64   `json:"average_price,omitempty"`
	Listings     []Listing `json:"listings"`
}

// RegionListings maps item ID to that item's listings within one region.
type RegionListings map[int]ItemListings

// ShoppingListingEntry is one listing chosen (or considered) for a world.
type ShoppingListingEntry struct {
	Quantity        int    `json:"quantity"`
	PricePerUnit    int64  `json:"pricePerUnit"`
	RetainerName    string `json:"retainerName,omitempty"`
	IsHQ            bool   `json:"isHq"`
	IsUnderAverage  bool   `json:"isUnderAverage"`
	NeededFromStack int    `json:"neededFromStack"`
	ExcessQuantity  int    `json:"excessQuantity"`
}

// WorldShoppingSummary is the allocation for one item in one world.
type WorldShoppingSummary struct {
	WorldName           string                 `json:"worldName"`
	WorldID             int                    `json:"worldId"`
	DataCenter          string                 `json:"dataCenter,omitempty"`
	Listings            []ShoppingListingEntry `json:"listings"`
	TotalCost           int64                  `json:"totalCost"`
	TotalQuantity       int                    `json:"totalQuantity"`
	ExcessQuantity      int                    `json:"excessQuantity"`
	AveragePricePerUnit float64                `json:"averagePricePerUnit"`
	AvailableQuantity   int                    `json:"availableQuantity"`
	HasFullCoverage     bool                   `json:"hasFullCoverage"`
	IsHomeWorld         bool                   `json:"isHomeWorld,omitempty"`
	IsCongested         bool                   `json:"isCongested,omitempty"`
	IsTravelProhibited  bool                   `json:"isTravelProhibited,omitempty"`
	IsBlacklisted       bool                   `json:"isBlacklisted,omitempty"`
	IsCompetitive       bool                   `json:"isCompetitive,omitempty"`
}

// Eligible reports whether the world may be recommended.
func (w *WorldShoppingSummary) Eligible() bool {
	return w.HasFullCoverage && !w.IsBlacklisted && !w.IsTravelProhibited
}

// DetailedShoppingPlan is the per-item shopping result.
type DetailedShoppingPlan struct {
	ItemID             int                    `json:"itemId"`
	Name               string                 `json:"name"`
	QuantityNeeded     int                    `json:"quantityNeeded"`
	RequiresHQ         bool                   `json:"requiresHq,omitempty"`
	RegionAveragePrice float64                `json:"regionAveragePrice"`
	WorldOptions       []WorldShoppingSummary `json:"worldOptions"`
	RecommendedWorld   *WorldShoppingSummary  `json:"recommendedWorld,omitempty"`
	Error              string                 `json:"error,omitempty"`
}

// BlacklistEntry is a time-boxed exclusion of a world from recommendation.
type BlacklistEntry struct {
	World     string    `json:"world"`
	Reason    string    `json:"reason,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ============================================
// PROGRESS AND OUTCOME TYPES
// ============================================

// Stage names a phase of a long-running operation.
type Stage string

const (
	StageFetching     Stage = "fetching"
	StageRetrying     Stage = "retrying"
	StageRegionFailed Stage = "region-failed"
	StageRegionDone   Stage = "region-done"
	StagePricing      Stage = "pricing"
	StageAllocating   Stage = "allocating"
	StageComplete     Stage = "complete"
)

// Progress is pushed to callers while a long-running operation runs.
type Progress struct {
	Stage   Stage  `json:"stage"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Region  string `json:"region,omitempty"`
	ItemID  int    `json:"item_id,omitempty"`
	Item    string `json:"item,omitempty"`
	Message string `json:"message,omitempty"`
}

// ProgressFunc receives progress updates. It may be nil.
type ProgressFunc func(Progress)

// Outcome counts per-item results of a price refresh or shopping run.
type Outcome struct {
	Success        int      `json:"success"`
	Failed         int      `json:"failed"`
	Skipped        int      `json:"skipped"`
	Cached         int      `json:"cached"`
	FailedRegions  []string `json:"failed_regions,omitempty"`
	UsedCachedData bool     `json:"used_cached_data,omitempty"`
}

// RefreshResult is returned by a price refresh.
type RefreshResult struct {
	Plan    *CraftingPlan `json:"plan"`
	Outcome Outcome       `json:"outcome"`
}

// ShoppingResult is returned by a shopping plan computation.
type ShoppingResult struct {
	Plans   []DetailedShoppingPlan `json:"plans"`
	Outcome Outcome                `json:"outcome"`
}
