package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsned/craft-market-planner/pkg/crafting"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := OpenAndInit(context.Background(), filepath.Join(t.TempDir(), "planner.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestRecipeStore_RoundTrip(t *testing.T) {
	// Arrange
	database := openTestDB(t)
	ctx := context.Background()
	items := NewItemStore(database)
	recipes := NewRecipeStore(database)
	require.NoError(t, items.BulkInsertItems(ctx, []crafting.Item{
		{ID: 1, Name: "Bronze Ingot", Tradeable: true},
		{ID: 2, Name: "Copper Ore", Tradeable: true},
		{ID: 3, Name: "Tin Ore", Tradeable: true},
	}))

	// Act
	err := recipes.BulkInsertRecipes(ctx, []crafting.Recipe{
		{ID: 20, ItemID: 1, Name: "Bronze Ingot (alt)", Yield: 2, Ingredients: []crafting.Ingredient{{ItemID: 2, Amount: 5}}},
		{ID: 10, ItemID: 1, Name: "Bronze Ingot", Yield: 0, CraftType: "Blacksmith", Level: 5, Ingredients: []crafting.Ingredient{
			{ItemID: 3, Amount: 1},
			{ItemID: 2, Amount: 3},
		}},
	})
	require.NoError(t, err)
	recipe, err := recipes.GetRecipeForItem(ctx, 1)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, recipe)
	assert.Equal(t, 10, recipe.ID, "lowest recipe ID wins")
	assert.Equal(t, 1, recipe.Yield, "yield defaults to one")
	assert.Equal(t, "Blacksmith", recipe.CraftType)
	require.Len(t, recipe.Ingredients, 2)
	assert.Equal(t, crafting.Ingredient{ItemID: 3, Name: "Tin Ore", Amount: 1}, recipe.Ingredients[0])
	assert.Equal(t, crafting.Ingredient{ItemID: 2, Name: "Copper Ore", Amount: 3}, recipe.Ingredients[1])

	none, err := recipes.GetRecipeForItem(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, none)

	usedIn, err := recipes.GetRecipesUsingItem(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 20}, usedIn)

	hits, err := recipes.SearchRecipes(ctx, "bronze", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	count, err := recipes.CountRecipes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRecipeStore_ReimportReplacesIngredients(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	recipes := NewRecipeStore(database)

	require.NoError(t, recipes.BulkInsertRecipes(ctx, []crafting.Recipe{
		{ID: 10, ItemID: 1, Ingredients: []crafting.Ingredient{{ItemID: 2, Amount: 3}, {ItemID: 3, Amount: 1}}},
	}))
	require.NoError(t, recipes.BulkInsertRecipes(ctx, []crafting.Recipe{
		{ID: 10, ItemID: 1, Ingredients: []crafting.Ingredient{{ItemID: 4, Amount: 2}}},
	}))

	recipe, err := recipes.GetRecipeForItem(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recipe.Ingredients, 1)
	assert.Equal(t, 4, recipe.Ingredients[0].ItemID)
}

func TestItemStore(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	items := NewItemStore(database)

	require.NoError(t, items.BulkInsertItems(ctx, []crafting.Item{
		{ID: 5, Name: "Distilled Water", VendorPrice: 3, CanBeHQ: false},
		{ID: 6, Name: "Silk", Tradeable: true, CanBeHQ: true},
	}))

	water, err := items.GetItem(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, &crafting.Item{ID: 5, Name: "Distilled Water", VendorPrice: 3}, water)

	silk, err := items.GetItem(ctx, 6)
	require.NoError(t, err)
	assert.True(t, silk.Tradeable)
	assert.True(t, silk.CanBeHQ)

	missing, err := items.GetItem(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, missing)

	count, err := items.CountItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPriceStore_Upsert(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	prices := NewPriceStore(database)
	fetched := time.Date(2026, 5, 6, 7, 8, 9, 123456789, time.UTC)

	require.NoError(t, prices.UpsertPrices(ctx, []crafting.PriceInfo{
		{ItemID: 1, Source: crafting.PriceSourceMarket, UnitPrice: 100, Region: "Aether", FetchedAt: fetched},
	}))
	require.NoError(t, prices.UpsertPrices(ctx, []crafting.PriceInfo{
		{ItemID: 1, Source: crafting.PriceSourceMarket, UnitPrice: 90, HQUnitPrice: 150, Region: "Aether", FetchedAt: fetched},
	}))

	p, err := prices.GetPrice(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(90), p.UnitPrice)
	assert.Equal(t, int64(150), p.HQUnitPrice)
	assert.True(t, fetched.Equal(p.FetchedAt))

	missing, err := prices.GetPrice(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMarketStore_Snapshots(t *testing.T) {
	// Arrange
	database := openTestDB(t)
	ctx := context.Background()
	market := NewMarketStore(database)
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	require.NoError(t, market.SaveSnapshot(ctx, "Aether", nil, crafting.RegionListings{
		1: {ItemID: 1, Region: "Aether", AveragePrice: 95, Listings: []crafting.Listing{
			{WorldID: 73, WorldName: "Adamantoise", Quantity: 5, PricePerUnit: 100},
			{WorldID: 74, WorldName: "Cactuar", Quantity: 1, PricePerUnit: 90, IsHQ: true},
		}},
	}, older))
	require.NoError(t, market.SaveSnapshot(ctx, "Aether", nil, crafting.RegionListings{
		2: {ItemID: 2, Region: "Aether", Listings: []crafting.Listing{{WorldName: "Faerie", Quantity: 2, PricePerUnit: 10}}},
	}, newer))

	// Act
	snap, oldest, err := market.LoadSnapshot(ctx, "Aether", []int{1, 2, 3})

	// Assert
	require.NoError(t, err)
	assert.True(t, older.Equal(oldest))
	require.Len(t, snap, 2)
	require.Len(t, snap[1].Listings, 2)
	assert.Equal(t, int64(90), snap[1].Listings[0].PricePerUnit, "cheapest first")
	assert.True(t, snap[1].Listings[0].IsHQ)
	assert.InDelta(t, 95.0, snap[1].AveragePrice, 0.001)

	other, _, err := market.LoadSnapshot(ctx, "Primal", []int{1})
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, market.ClearMarketData(ctx))
	cleared, _, err := market.LoadSnapshot(ctx, "Aether", []int{1, 2})
	require.NoError(t, err)
	assert.Empty(t, cleared)
}

func TestMarketStore_SoldOutItemDropsSnapshot(t *testing.T) {
	// Arrange
	database := openTestDB(t)
	ctx := context.Background()
	market := NewMarketStore(database)
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, market.SaveSnapshot(ctx, "Aether", []int{1, 2}, crafting.RegionListings{
		1: {ItemID: 1, Listings: []crafting.Listing{{WorldName: "Adamantoise", Quantity: 5, PricePerUnit: 100}}},
		2: {ItemID: 2, Listings: []crafting.Listing{{WorldName: "Faerie", Quantity: 2, PricePerUnit: 10}}},
	}, first))

	// Act: item 2 sold out in the next successful fetch.
	require.NoError(t, market.SaveSnapshot(ctx, "Aether", []int{1, 2}, crafting.RegionListings{
		1: {ItemID: 1, Listings: []crafting.Listing{{WorldName: "Adamantoise", Quantity: 3, PricePerUnit: 110}}},
	}, first.Add(time.Hour)))

	// Assert
	snap, _, err := market.LoadSnapshot(ctx, "Aether", []int{1, 2})
	require.NoError(t, err)
	require.Contains(t, snap, 1)
	assert.Equal(t, int64(110), snap[1].Listings[0].PricePerUnit)
	assert.NotContains(t, snap, 2, "sold-out items are not served from an old snapshot")
}

func TestBlacklistStore(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	blacklist := NewBlacklistStore(database)
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, blacklist.Add(ctx, crafting.BlacklistEntry{World: "Gilgamesh", Reason: "maintenance", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, blacklist.Add(ctx, crafting.BlacklistEntry{World: "Balmung", ExpiresAt: now.Add(-time.Minute)}))

	active, err := blacklist.Active(ctx, now)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Gilgamesh", active[0].World)
	assert.Equal(t, "maintenance", active[0].Reason)

	pruned, err := blacklist.PruneExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	require.NoError(t, blacklist.Remove(ctx, "Gilgamesh"))
	active, err = blacklist.Active(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestSyncMetadata(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	value, err := database.GetSyncMetadata(ctx, "recipes_count")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, database.SetSyncMetadata(ctx, "recipes_count", "12"))
	require.NoError(t, database.SetSyncMetadata(ctx, "recipes_count", "13"))

	value, err = database.GetSyncMetadata(ctx, "recipes_count")
	require.NoError(t, err)
	assert.Equal(t, "13", value)
}

func TestCatalog(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, NewItemStore(database).BulkInsertItems(ctx, []crafting.Item{{ID: 1, Name: "Ingot", Tradeable: true}}))
	require.NoError(t, NewRecipeStore(database).BulkInsertRecipes(ctx, []crafting.Recipe{{ID: 10, ItemID: 1, Name: "Ingot"}}))
	catalog := NewCatalog(database)

	recipe, err := catalog.LookupRecipe(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, recipe.ID)

	item, err := catalog.LookupItem(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Ingot", item.Name)
}
