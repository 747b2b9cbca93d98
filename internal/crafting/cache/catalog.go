package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/rsned/craft-market-planner/pkg/crafting"
)

// Catalog is the lookup surface wrapped by CachedCatalog.
type Catalog interface {
	LookupRecipe(ctx context.Context, itemID int) (*crafting.Recipe, error)
	LookupItem(ctx context.Context, itemID int) (*crafting.Item, error)
	SearchRecipes(ctx context.Context, term string, limit int) ([]crafting.RecipeSearchHit, error)
	GetRecipesUsingItem(ctx context.Context, itemID int) ([]int, error)
}

// CachedCatalog memoizes recipe and item lookups. Concurrent misses for
// the same item share one underlying lookup. Negative results (nil
// recipe or item) are cached too.
type CachedCatalog struct {
	next    Catalog
	recipes *expirable.LRU[int, *crafting.Recipe]
	items   *expirable.LRU[int, *crafting.Item]
	group   singleflight.Group
}

// NewCachedCatalog wraps next with caches holding up to size entries each
// for ttl.
func NewCachedCatalog(next Catalog, size int, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{
		next:    next,
		recipes: expirable.NewLRU[int, *crafting.Recipe](size, nil, ttl),
		items:   expirable.NewLRU[int, *crafting.Item](size, nil, ttl),
	}
}

// LookupRecipe returns the recipe producing itemID.
func (c *CachedCatalog) LookupRecipe(ctx context.Context, itemID int) (*crafting.Recipe, error) {
	if r, ok := c.recipes.Get(itemID); ok {
		return r, nil
	}
	v, err, _ := c.group.Do("recipe:"+strconv.Itoa(itemID), func() (any, error) {
		r, err := c.next.LookupRecipe(ctx, itemID)
		if err != nil {
			return nil, err
		}
		c.recipes.Add(itemID, r)
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("looking up recipe for %d: %w", itemID, err)
	}
	return v.(*crafting.Recipe), nil
}

// LookupItem returns static item data.
func (c *CachedCatalog) LookupItem(ctx context.Context, itemID int) (*crafting.Item, error) {
	if it, ok := c.items.Get(itemID); ok {
		return it, nil
	}
	v, err, _ := c.group.Do("item:"+strconv.Itoa(itemID), func() (any, error) {
		it, err := c.next.LookupItem(ctx, itemID)
		if err != nil {
			return nil, err
		}
		c.items.Add(itemID, it)
		return it, nil
	})
	if err != nil {
		return nil, fmt.Errorf("looking up item %d: %w", itemID, err)
	}
	return v.(*crafting.Item), nil
}

// SearchRecipes is passed through uncached.
func (c *CachedCatalog) SearchRecipes(ctx context.Context, term string, limit int) ([]crafting.RecipeSearchHit, error) {
	return c.next.SearchRecipes(ctx, term, limit)
}

// GetRecipesUsingItem is passed through uncached.
func (c *CachedCatalog) GetRecipesUsingItem(ctx context.Context, itemID int) ([]int, error) {
	return c.next.GetRecipesUsingItem(ctx, itemID)
}

// Purge drops every cached entry, e.g. after a catalog import.
func (c *CachedCatalog) Purge() {
	c.recipes.Purge()
	c.items.Purge()
}
