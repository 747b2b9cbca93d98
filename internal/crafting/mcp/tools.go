package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rsned/craft-market-planner/internal/crafting/engine"
	"github.com/rsned/craft-market-planner/pkg/crafting"
)

// ToolDefinition describes an MCP tool.
type ToolDefinition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	InputSchema JSONSchema `json:"inputSchema"`
}

// JSONSchema is a simplified JSON Schema representation.
type JSONSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes a schema property.
type Property struct {
	Type        string              `json:"type,omitempty"`
	Description string              `json:"description,omitempty"`
	Default     any                 `json:"default,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Minimum     *float64            `json:"minimum,omitempty"`
	Maximum     *float64            `json:"maximum,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
	Required    []string            `json:"required,omitempty"`
}

// GetToolDefinitions returns all tool definitions.
func GetToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		buildPlanTool(),
		refreshPricesTool(),
		computeShoppingPlansTool(),
		updateNodeTool(),
		recipeLookupTool(),
		blacklistWorldTool(),
	}
}

func buildPlanTool() ToolDefinition {
	minQty := 1.0

	return ToolDefinition{
		Name:        "build_plan",
		Description: "Expand target items into a full crafting tree. Craftable items become craft steps, everything else is bought. Returns the plan with its aggregated shopping list; the plan is kept for the other plan tools.",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"name": {
					Type:        "string",
					Description: "Plan name",
				},
				"targets": {
					Type:        "array",
					Description: "Items to craft",
					Items: &Property{
						Type: "object",
						Properties: map[string]Property{
							"item_id":     {Type: "integer", Description: "Item ID"},
							"quantity":    {Type: "integer", Description: "How many to make", Minimum: &minQty},
							"requires_hq": {Type: "boolean", Description: "Whether the result must be high quality"},
						},
						Required: []string{"item_id", "quantity"},
					},
				},
			},
			Required: []string{"targets"},
		},
	}
}

func refreshPricesTool() ToolDefinition {
	return ToolDefinition{
		Name:        "refresh_prices",
		Description: "Fetch current market prices for the bought materials of a plan. Failed regions are retried with backoff; on failure the last cached price is kept.",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"plan_id": {
					Type:        "string",
					Description: "Plan returned by build_plan",
				},
				"region": {
					Type:        "string",
					Description: "Data center to price in (defaults to the plan's)",
				},
				"scope": {
					Type:        "string",
					Description: "Which materials to refresh",
					Enum:        []string{string(crafting.ScopeAll), string(crafting.ScopeUnpriced)},
					Default:     string(crafting.ScopeAll),
				},
				"all_regions": {
					Type:        "boolean",
					Description: "Also search every other configured data center",
				},
			},
			Required: []string{"plan_id"},
		},
	}
}

func computeShoppingPlansTool() ToolDefinition {
	return ToolDefinition{
		Name:        "compute_shopping_plans",
		Description: "Allocate whole market listings per world for every market material of a plan and recommend a world to buy each one on.",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"plan_id": {
					Type:        "string",
					Description: "Plan returned by build_plan",
				},
				"region": {
					Type:        "string",
					Description: "Data center to shop in (defaults to the plan's)",
				},
				"all_regions": {
					Type:        "boolean",
					Description: "Also search every other configured data center",
				},
				"objective": {
					Type:        "string",
					Description: "How the recommended world is chosen",
					Enum:        []string{string(crafting.ObjectiveMinimizeTotalCost), string(crafting.ObjectiveMaximizeValue)},
				},
				"sort": {
					Type:        "string",
					Description: "Display order of the returned plans",
					Enum:        []string{string(crafting.SortByRecommendedWorld), string(crafting.SortAlphabetical), string(crafting.SortPriceDescending)},
				},
			},
			Required: []string{"plan_id"},
		},
	}
}

func updateNodeTool() ToolDefinition {
	return ToolDefinition{
		Name:        "update_node",
		Description: "Switch a plan node between crafting and buying, or toggle its HQ requirement. The tree is never restructured.",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"plan_id": {Type: "string", Description: "Plan returned by build_plan"},
				"node_id": {Type: "string", Description: "Node to change"},
				"source": {
					Type:        "string",
					Description: "New acquisition source",
					Enum:        []string{"craft", "buy-nq", "buy-hq", "vendor"},
				},
				"requires_hq": {Type: "boolean", Description: "New HQ requirement"},
			},
			Required: []string{"plan_id", "node_id"},
		},
	}
}

func recipeLookupTool() ToolDefinition {
	return ToolDefinition{
		Name:        "recipe_lookup",
		Description: "Look up the recipe producing an item, or search recipes by name. Also lists the recipes the item is used in.",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"item_id": {
					Type:        "integer",
					Description: "Exact item ID to look up",
				},
				"search": {
					Type:        "string",
					Description: "Search term for recipe name (alternative to item_id)",
				},
			},
		},
	}
}

func blacklistWorldTool() ToolDefinition {
	minMinutes := 1.0

	return ToolDefinition{
		Name:        "blacklist_world",
		Description: "Exclude a world from shopping recommendations for a while, e.g. during maintenance or when it is full.",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"world":  {Type: "string", Description: "World name"},
				"reason": {Type: "string", Description: "Why the world is excluded"},
				"minutes": {
					Type:        "integer",
					Description: "How long the exclusion lasts (defaults to the configured duration)",
					Minimum:     &minMinutes,
				},
			},
			Required: []string{"world"},
		},
	}
}

// Tool handlers

type buildPlanArgs struct {
	Name    string            `json:"name"`
	Targets []crafting.Target `json:"targets"`
}

func (s *Server) toolBuildPlan(ctx context.Context, args json.RawMessage) (any, error) {
	var req buildPlanArgs
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	plan, err := s.engine.BuildPlan(ctx, req.Name, req.Targets)
	if err != nil {
		var invalid *crafting.ErrInvalidTarget
		if errors.As(err, &invalid) {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		return nil, err
	}
	s.AddPlan(plan)
	return plan, nil
}

type refreshArgs struct {
	PlanID     string                `json:"plan_id"`
	Region     string                `json:"region"`
	Scope      crafting.RefreshScope `json:"scope"`
	AllRegions bool                  `json:"all_regions"`
}

func (s *Server) toolRefreshPrices(ctx context.Context, args json.RawMessage, progress crafting.ProgressFunc) (any, error) {
	var req refreshArgs
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	plan, err := s.lookupPlan(req.PlanID)
	if err != nil {
		return nil, err
	}
	if req.Region == "" {
		req.Region = plan.DataCenter
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	result, err := s.engine.RefreshPrices(ctx, plan, engine.RefreshRequest{
		Region:     req.Region,
		Scope:      req.Scope,
		AllRegions: req.AllRegions,
	}, progress)
	if err != nil {
		return nil, err
	}
	// the plan is large; callers keep it by ID
	return struct {
		PlanID              string                       `json:"plan_id"`
		Outcome             crafting.Outcome             `json:"outcome"`
		AggregatedMaterials []crafting.MaterialAggregate `json:"aggregated_materials"`
	}{plan.ID, result.Outcome, plan.AggregatedMaterials}, nil
}

type shoppingArgs struct {
	PlanID     string             `json:"plan_id"`
	Region     string             `json:"region"`
	AllRegions bool               `json:"all_regions"`
	Objective  crafting.Objective `json:"objective"`
	Sort       crafting.SortOrder `json:"sort"`
}

func (s *Server) toolComputeShoppingPlans(ctx context.Context, args json.RawMessage, progress crafting.ProgressFunc) (any, error) {
	var req shoppingArgs
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	if req.Objective != "" && !req.Objective.IsValid() {
		return nil, fmt.Errorf("%w: unknown objective %q", errInvalidParams, req.Objective)
	}
	plan, err := s.lookupPlan(req.PlanID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.ShopPlan(ctx, plan, engine.ShoppingRequest{
		Region:     req.Region,
		AllRegions: req.AllRegions,
		Objective:  req.Objective,
		Sort:       req.Sort,
	}, progress)
}

type updateNodeArgs struct {
	PlanID     string `json:"plan_id"`
	NodeID     string `json:"node_id"`
	Source     string `json:"source"`
	RequiresHQ *bool  `json:"requires_hq"`
}

func (s *Server) toolUpdateNode(ctx context.Context, args json.RawMessage) (any, error) {
	var req updateNodeArgs
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	plan, err := s.lookupPlan(req.PlanID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if req.RequiresHQ != nil {
		if err := engine.SetRequiresHQ(plan, req.NodeID, *req.RequiresHQ); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
	}
	if req.Source != "" {
		source, ok := parseSource(req.Source)
		if !ok {
			return nil, fmt.Errorf("%w: unknown source %q", errInvalidParams, req.Source)
		}
		if err := engine.SetNodeSource(plan, req.NodeID, source); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
	}
	return plan.FindNode(req.NodeID), nil
}

func (s *Server) toolRecipeLookup(ctx context.Context, args json.RawMessage) (any, error) {
	var req crafting.RecipeLookupRequest
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	return s.engine.RecipeLookup(ctx, req)
}

type blacklistArgs struct {
	World   string `json:"world"`
	Reason  string `json:"reason"`
	Minutes int    `json:"minutes"`
}

func (s *Server) toolBlacklistWorld(ctx context.Context, args json.RawMessage) (any, error) {
	if s.blacklist == nil {
		return nil, errors.New("world blacklist is not configured")
	}
	var req blacklistArgs
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	if req.World == "" {
		return nil, fmt.Errorf("%w: world is required", errInvalidParams)
	}
	d := s.blacklistDuration
	if req.Minutes > 0 {
		d = time.Duration(req.Minutes) * time.Minute
	}

	entry := crafting.BlacklistEntry{
		World:     req.World,
		Reason:    req.Reason,
		ExpiresAt: s.now().Add(d).UTC(),
	}
	if err := s.blacklist.Add(ctx, entry); err != nil {
		return nil, fmt.Errorf("blacklisting %s: %w", req.World, err)
	}
	s.logger.Info("world blacklisted", "world", entry.World, "until", entry.ExpiresAt)

	active, err := s.blacklist.Active(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("listing blacklist: %w", err)
	}
	return active, nil
}

func (s *Server) lookupPlan(id string) (*crafting.CraftingPlan, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: plan_id is required", errInvalidParams)
	}
	plan := s.Plan(id)
	if plan == nil {
		return nil, fmt.Errorf("%w: plan not found: %s", errInvalidParams, id)
	}
	return plan, nil
}

func decodeArgs(args json.RawMessage, into any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, into); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	return nil
}

func parseSource(s string) (crafting.AcquisitionSource, bool) {
	for _, src := range []crafting.AcquisitionSource{
		crafting.SourceCraft,
		crafting.SourceBuyNormalQuality,
		crafting.SourceBuyHighQuality,
		crafting.SourceBuyFromVendor,
	} {
		if src.String() == s {
			return src, true
		}
	}
	return 0, false
}
