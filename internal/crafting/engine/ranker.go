package engine

import (
	"sort"
	"strings"

	"github.com/rsned/craft-market-planner/pkg/crafting"
)

// WorldPolicy holds the player's home location and per-world flags.
type WorldPolicy struct {
	HomeWorld              string
	HomeDataCenter         string
	CongestedWorlds        []string
	TravelProhibitedWorlds []string
}

// Apply sets the home, congestion, travel and blacklist flags on options.
// World names compare case-insensitively.
func (p WorldPolicy) Apply(options []crafting.WorldShoppingSummary, blacklisted []string) {
	for i := range options {
		w := &options[i]
		w.IsHomeWorld = p.HomeWorld != "" && strings.EqualFold(w.WorldName, p.HomeWorld)
		w.IsCongested = containsFold(p.CongestedWorlds, w.WorldName)
		w.IsTravelProhibited = containsFold(p.TravelProhibitedWorlds, w.WorldName)
		w.IsBlacklisted = containsFold(blacklisted, w.WorldName)
	}
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// MarkCompetitive flags worlds whose allocation is at or below the region
// average, or whose every chosen listing is under it.
func MarkCompetitive(options []crafting.WorldShoppingSummary, regionAverage float64) {
	for i := range options {
		w := &options[i]
		w.IsCompetitive = false
		if regionAverage <= 0 || len(w.Listings) == 0 {
			continue
		}
		if w.AveragePricePerUnit <= regionAverage {
			w.IsCompetitive = true
			continue
		}
		all := true
		for _, l := range w.Listings {
			if !l.IsUnderAverage {
				all = false
				break
			}
		}
		w.IsCompetitive = all
	}
}

// RecommendWorld picks the best eligible world for the objective, or nil
// when no world is eligible. Worlds without full coverage, blacklisted
// worlds and travel-prohibited worlds are never chosen.
//
// MinimizeTotalCost picks the lowest total cost, then the smallest excess.
// MaximizeValue prefers competitive worlds and picks the lowest average
// price per unit, then the lowest total cost. Remaining ties go to the
// home world and then to the world name.
func RecommendWorld(options []crafting.WorldShoppingSummary, objective crafting.Objective) *crafting.WorldShoppingSummary {
	var eligible []*crafting.WorldShoppingSummary
	for i := range options {
		if options[i].Eligible() {
			eligible = append(eligible, &options[i])
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	if objective == crafting.ObjectiveMaximizeValue {
		var competitive []*crafting.WorldShoppingSummary
		for _, w := range eligible {
			if w.IsCompetitive {
				competitive = append(competitive, w)
			}
		}
		if len(competitive) > 0 {
			eligible = competitive
		}
	}

	best := eligible[0]
	for _, w := range eligible[1:] {
		if betterWorld(w, best, objective) {
			best = w
		}
	}
	chosen := *best
	return &chosen
}

func betterWorld(a, b *crafting.WorldShoppingSummary, objective crafting.Objective) bool {
	if objective == crafting.ObjectiveMaximizeValue {
		if a.AveragePricePerUnit != b.AveragePricePerUnit {
			return a.AveragePricePerUnit < b.AveragePricePerUnit
		}
		if a.TotalCost != b.TotalCost {
			return a.TotalCost < b.TotalCost
		}
	} else {
		if a.TotalCost != b.TotalCost {
			return a.TotalCost < b.TotalCost
		}
		if a.ExcessQuantity != b.ExcessQuantity {
			return a.ExcessQuantity < b.ExcessQuantity
		}
	}
	if a.IsHomeWorld != b.IsHomeWorld {
		return a.IsHomeWorld
	}
	return a.WorldName < b.WorldName
}

// SortPlans orders shopping plans for display. The order never affects
// which world is recommended.
func SortPlans(plans []crafting.DetailedShoppingPlan, order crafting.SortOrder) {
	switch order {
	case crafting.SortAlphabetical:
		sort.SliceStable(plans, func(i, j int) bool {
			return plans[i].Name < plans[j].Name
		})
	case crafting.SortPriceDescending:
		sort.SliceStable(plans, func(i, j int) bool {
			return recommendedCost(plans[i]) > recommendedCost(plans[j])
		})
	default:
		// group by recommended world; plans without one go last
		sort.SliceStable(plans, func(i, j int) bool {
			wi, wj := recommendedName(plans[i]), recommendedName(plans[j])
			if (wi == "") != (wj == "") {
				return wj == ""
			}
			if wi != wj {
				return wi < wj
			}
			return plans[i].Name < plans[j].Name
		})
	}
}

func recommendedName(p crafting.DetailedShoppingPlan) string {
	if p.RecommendedWorld == nil {
		return ""
	}
	return p.RecommendedWorld.WorldName
}

func recommendedCost(p crafting.DetailedShoppingPlan) int64 {
	if p.RecommendedWorld == nil {
		return -1
	}
	return p.RecommendedWorld.TotalCost
}
