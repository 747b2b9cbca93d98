package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsned/craft-market-planner/internal/crafting/db"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestSyncer(t *testing.T) (*Syncer, *db.DB) {
	t.Helper()
	database, err := db.OpenAndInit(context.Background(), filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return NewSyncer(database), database
}

func TestTransformRecipe_FieldSpellings(t *testing.T) {
	var imp RecipeImport
	imp.ID = 7
	imp.ResultItemID = 100
	imp.AmountResult = 3
	imp.Ingredients = append(imp.Ingredients,
		struct {
			ID       int    `json:"id,omitempty"`
			ItemID   int    `json:"item_id,omitempty"`
			Name     string `json:"name,omitempty"`
			Amount   int    `json:"amount,omitempty"`
			Quantity int    `json:"quantity,omitempty"`
		}{ID: 5, Quantity: 2},
		struct {
			ID       int    `json:"id,omitempty"`
			ItemID   int    `json:"item_id,omitempty"`
			Name     string `json:"name,omitempty"`
			Amount   int    `json:"amount,omitempty"`
			Quantity int    `json:"quantity,omitempty"`
		}{ItemID: 6, Amount: 0},
	)

	recipe := transformRecipe(imp)

	assert.Equal(t, 100, recipe.ItemID)
	assert.Equal(t, 3, recipe.Yield)
	require.Len(t, recipe.Ingredients, 1, "zero amounts are dropped")
	assert.Equal(t, 5, recipe.Ingredients[0].ItemID)
	assert.Equal(t, 2, recipe.Ingredients[0].Amount)
}

func TestTransformItem(t *testing.T) {
	no := false
	tests := []struct {
		name          string
		imp           ItemImport
		wantTradeable bool
		wantVendor    int64
	}{
		{"default tradeable", ItemImport{ID: 1}, true, 0},
		{"untradable flag", ItemImport{ID: 1, Untradable: true}, false, 0},
		{"explicit tradeable wins", ItemImport{ID: 1, Tradeable: &no}, false, 0},
		{"price_mid fallback", ItemImport{ID: 1, PriceMid: 12}, true, 12},
		{"vendor_price preferred", ItemImport{ID: 1, VendorPrice: 8, PriceMid: 12}, true, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := transformItem(tt.imp)
			assert.Equal(t, tt.wantTradeable, item.Tradeable)
			assert.Equal(t, tt.wantVendor, item.VendorPrice)
		})
	}
}

func TestSyncer_ImportRecipesAndItems(t *testing.T) {
	// Arrange
	syncer, database := newTestSyncer(t)
	ctx := context.Background()
	items := writeFile(t, "items.json", `[
		{"id": 1, "name": "Bronze Ingot"},
		{"id": 2, "name": "Copper Ore"},
		{"id": 3, "name": "Distilled Water", "is_untradable": true, "price_mid": 4},
		{"id": 0, "name": "broken"}
	]`)
	recipes := writeFile(t, "recipes.json", `[
		{"id": 10, "result_item_id": 1, "name": "Bronze Ingot", "amount_result": 2,
		 "ingredients": [{"item_id": 2, "amount": 3}, {"id": 3, "quantity": 1}]},
		{"id": 11, "name": "no result"}
	]`)

	// Act
	itemCount, err := syncer.ImportItemsFromFile(ctx, items)
	require.NoError(t, err)
	recipeCount, err := syncer.ImportRecipesFromFile(ctx, recipes)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, 3, itemCount)
	assert.Equal(t, 1, recipeCount)

	recipe, err := db.NewRecipeStore(database).GetRecipeForItem(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, recipe)
	assert.Equal(t, 2, recipe.Yield)
	require.Len(t, recipe.Ingredients, 2)
	assert.Equal(t, "Copper Ore", recipe.Ingredients[0].Name)

	water, err := db.NewItemStore(database).GetItem(ctx, 3)
	require.NoError(t, err)
	assert.False(t, water.Tradeable)
	assert.Equal(t, int64(4), water.VendorPrice)

	count, err := database.GetSyncMetadata(ctx, "recipes_count")
	require.NoError(t, err)
	assert.Equal(t, "1", count)
}

func TestSyncer_ImportListings(t *testing.T) {
	syncer, database := newTestSyncer(t)
	ctx := context.Background()
	fetched := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	path := writeFile(t, "listings.json", `[
		{"region": "Aether", "item_id": 2, "world_name": "Jenova", "quantity": 10, "price_per_unit": 50},
		{"region": "Aether", "item_id": 2, "world_name": "Faerie", "quantity": 5, "price_per_unit": 40, "hq": true},
		{"region": "Primal", "item_id": 2, "world_name": "Behemoth", "quantity": 1, "price_per_unit": 30},
		{"region": "Primal", "item_id": 2, "world_name": "Excalibur", "quantity": 0, "price_per_unit": 1}
	]`)

	count, err := syncer.ImportListingsFromFile(ctx, path, fetched)

	require.NoError(t, err)
	assert.Equal(t, 3, count)
	snap, oldest, err := db.NewMarketStore(database).LoadSnapshot(ctx, "Aether", []int{2})
	require.NoError(t, err)
	assert.True(t, fetched.Equal(oldest))
	require.Len(t, snap[2].Listings, 2)
	assert.Equal(t, "Faerie", snap[2].Listings[0].WorldName)
}

func TestSyncer_ImportMissingFile(t *testing.T) {
	syncer, _ := newTestSyncer(t)

	_, err := syncer.ImportRecipesFromFile(context.Background(), filepath.Join(t.TempDir(), "missing.json"))

	assert.ErrorContains(t, err, "reading file")
}
