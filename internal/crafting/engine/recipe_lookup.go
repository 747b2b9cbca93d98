package engine

import (
	"context"
	"fmt"

	"github.com/rsned/craft-market-planner/pkg/crafting"
)

// RecipeLookup returns an item's recipe, or searches recipes by name when
// a search term is given. A single search hit is resolved directly.
func (e *Engine) RecipeLookup(ctx context.Context, req crafting.RecipeLookupRequest) (*crafting.RecipeLookupResponse, error) {
	resp := &crafting.RecipeLookupResponse{}
	searcher, canSearch := e.catalog.(RecipeSearcher)

	if req.Search != "" {
		if !canSearch {
			return nil, fmt.Errorf("recipe search is not supported by this catalog")
		}
		hits, err := searcher.SearchRecipes(ctx, req.Search, 10)
		if err != nil {
			return nil, err
		}
		resp.SearchResults = hits

		if len(hits) == 1 && req.ItemID == 0 {
			req.ItemID = hits[0].ItemID
		}
	}

	if req.ItemID == 0 {
		return resp, nil
	}

	item, err := e.catalog.LookupItem(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	resp.Item = item

	recipe, err := e.catalog.LookupRecipe(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	resp.Recipe = recipe

	if canSearch {
		usedIn, err := searcher.GetRecipesUsingItem(ctx, req.ItemID)
		if err != nil {
			return nil, err
		}
		resp.UsedInRecipes = usedIn
	}

	return resp, nil
}
