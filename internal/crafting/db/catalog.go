package db

import (
	"context"

	"github.com/rsned/craft-market-planner/pkg/crafting"
)

// Catalog answers recipe and item lookups from the local database.
type Catalog struct {
	recipes *RecipeStore
	items   *ItemStore
}

// NewCatalog creates a Catalog over db.
func NewCatalog(db *DB) *Catalog {
	return &Catalog{
		recipes: NewRecipeStore(db),
		items:   NewItemStore(db),
	}
}

// LookupRecipe returns the recipe producing itemID, or nil if none does.
func (c *Catalog) LookupRecipe(ctx context.Context, itemID int) (*crafting.Recipe, error) {
	return c.recipes.GetRecipeForItem(ctx, itemID)
}

// LookupItem returns the item, or nil if it is unknown.
func (c *Catalog) LookupItem(ctx context.Context, itemID int) (*crafting.Item, error) {
	return c.items.GetItem(ctx, itemID)
}

// SearchRecipes searches recipes by name.
func (c *Catalog) SearchRecipes(ctx context.Context, term string, limit int) ([]crafting.RecipeSearchHit, error) {
	return c.recipes.SearchRecipes(ctx, term, limit)
}

// GetRecipesUsingItem returns IDs of recipes that consume itemID.
func (c *Catalog) GetRecipesUsingItem(ctx context.Context, itemID int) ([]int, error) {
	return c.recipes.GetRecipesUsingItem(ctx, itemID)
}
