// Package sync imports catalog and market data dumps into the database.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rsned/craft-market-planner/internal/crafting/db"
	"github.com/rsned/craft-market-planner/pkg/crafting"
)

// Syncer handles data imports.
type Syncer struct {
	db *db.DB
}

// NewSyncer creates a new Syncer.
func NewSyncer(database *db.DB) *Syncer {
	return &Syncer{db: database}
}

// RecipeImport is the accepted format of one recipe in a recipe dump.
// Several field spellings found in community dumps are accepted.
type RecipeImport struct {
	ID        int    `json:"id"`
	Name      string `json:"name,omitempty"`
	CraftType string `json:"craft_type,omitempty"`
	Level     int    `json:"level,omitempty"`

	ItemID       int `json:"item_id,omitempty"`
	ResultItemID int `json:"result_item_id,omitempty"`

	Yield        int `json:"yield,omitempty"`
	AmountResult int `json:"amount_result,omitempty"`

	Ingredients []struct {
		ID       int    `json:"id,omitempty"`
		ItemID   int    `json:"item_id,omitempty"`
		Name     string `json:"name,omitempty"`
		Amount   int    `json:"amount,omitempty"`
		Quantity int    `json:"quantity,omitempty"`
	} `json:"ingredients,omitempty"`
}

// ItemImport is the accepted format of one item in an item dump.
type ItemImport struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Tradeable   *bool  `json:"tradeable,omitempty"`
	Untradable  bool   `json:"is_untradable,omitempty"`
	VendorPrice int64  `json:"vendor_price,omitempty"`
	PriceMid    int64  `json:"price_mid,omitempty"`
	CanBeHQ     bool   `json:"can_be_hq,omitempty"`
}

// ListingImport is one row of a market listing dump.
type ListingImport struct {
	Region       string  `json:"region"`
	ItemID       int     `json:"item_id"`
	WorldID      int     `json:"world_id,omitempty"`
	WorldName    string  `json:"world_name"`
	Quantity     int     `json:"quantity"`
	PricePerUnit int64   `json:"price_per_unit"`
	RetainerName string  `json:"retainer_name,omitempty"`
	HQ           bool    `json:"hq,omitempty"`
	AveragePrice float64 `json:"average_price,omitempty"`
}

// ImportRecipesFromFile imports recipes from a JSON file and returns how
// many were stored.
func (s *Syncer) ImportRecipesFromFile(ctx context.Context, path string) (int, error) {
	var imports []RecipeImport
	if err := readJSON(path, &imports); err != nil {
		return 0, err
	}

	recipes := make([]crafting.Recipe, 0, len(imports))
	for _, imp := range imports {
		recipe := transformRecipe(imp)
		if recipe.ID <= 0 || recipe.ItemID <= 0 {
			continue
		}
		recipes = append(recipes, recipe)
	}

	recipeStore := db.NewRecipeStore(s.db)
	if err := recipeStore.BulkInsertRecipes(ctx, recipes); err != nil {
		return 0, fmt.Errorf("inserting recipes: %w", err)
	}

	if err := s.recordSync(ctx, "recipes", len(recipes)); err != nil {
		return 0, err
	}
	return len(recipes), nil
}

// ImportItemsFromFile imports items from a JSON file and returns how many
// were stored.
func (s *Syncer) ImportItemsFromFile(ctx context.Context, path string) (int, error) {
	var imports []ItemImport
	if err := readJSON(path, &imports); err != nil {
		return 0, err
	}

	items := make([]crafting.Item, 0, len(imports))
	for _, imp := range imports {
		if imp.ID <= 0 {
			continue
		}
		items = append(items, transformItem(imp))
	}

	itemStore := db.NewItemStore(s.db)
	if err := itemStore.BulkInsertItems(ctx, items); err != nil {
		return 0, fmt.Errorf("inserting items: %w", err)
	}

	if err := s.recordSync(ctx, "items", len(items)); err != nil {
		return 0, err
	}
	return len(items), nil
}

// ImportListingsFromFile stores a listing dump as market snapshots, one
// snapshot per region.
func (s *Syncer) ImportListingsFromFile(ctx context.Context, path string, fetchedAt time.Time) (int, error) {
	var imports []ListingImport
	if err := readJSON(path, &imports); err != nil {
		return 0, err
	}

	byRegion := make(map[string]crafting.RegionListings)
	for _, imp := range imports {
		if imp.Region == "" || imp.ItemID <= 0 || imp.Quantity <= 0 {
			continue
		}
		rl, ok := byRegion[imp.Region]
		if !ok {
			rl = make(crafting.RegionListings)
			byRegion[imp.Region] = rl
		}
		il := rl[imp.ItemID]
		il.ItemID = imp.ItemID
		il.Region = imp.Region
		if imp.AveragePrice > 0 {
			il.AveragePrice = imp.AveragePrice
		}
		il.Listings = append(il.Listings, crafting.Listing{
			WorldID:      imp.WorldID,
			WorldName:    imp.WorldName,
			Quantity:     imp.Quantity,
			PricePerUnit: imp.PricePerUnit,
			RetainerName: imp.RetainerName,
			IsHQ:         imp.HQ,
		})
		rl[imp.ItemID] = il
	}

	marketStore := db.NewMarketStore(s.db)
	count := 0
	for region, rl := range byRegion {
		if err := marketStore.SaveSnapshot(ctx, region, nil, rl, fetchedAt); err != nil {
			return 0, fmt.Errorf("saving snapshot for %s: %w", region, err)
		}
		for _, il := range rl {
			count += len(il.Listings)
		}
	}

	if err := s.recordSync(ctx, "listings", count); err != nil {
		return 0, err
	}
	return count, nil
}

// ClearAll removes catalog and market data from the database.
func (s *Syncer) ClearAll(ctx context.Context) error {
	recipeStore := db.NewRecipeStore(s.db)
	marketStore := db.NewMarketStore(s.db)

	if err := recipeStore.ClearRecipes(ctx); err != nil {
		return err
	}
	if err := marketStore.ClearMarketData(ctx); err != nil {
		return err
	}

	return nil
}

func (s *Syncer) recordSync(ctx context.Context, kind string, count int) error {
	if err := s.db.SetSyncMetadata(ctx, kind+"_last_sync", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return s.db.SetSyncMetadata(ctx, kind+"_count", strconv.Itoa(count))
}

func readJSON(path string, into any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("parsing JSON: %w", err)
	}
	return nil
}

// transformRecipe converts import format to domain format.
func transformRecipe(imp RecipeImport) crafting.Recipe {
	recipe := crafting.Recipe{
		ID:        imp.ID,
		ItemID:    imp.ItemID,
		Name:      imp.Name,
		CraftType: imp.CraftType,
		Level:     imp.Level,
		Yield:     imp.Yield,
	}
	if recipe.ItemID == 0 {
		recipe.ItemID = imp.ResultItemID
	}
	if recipe.Yield == 0 {
		recipe.Yield = imp.AmountResult
	}
	if recipe.Yield == 0 {
		recipe.Yield = 1
	}

	for _, in := range imp.Ingredients {
		id := in.ItemID
		if id == 0 {
			id = in.ID
		}
		amount := in.Amount
		if amount == 0 {
			amount = in.Quantity
		}
		if id == 0 || amount <= 0 {
			continue
		}
		recipe.Ingredients = append(recipe.Ingredients, crafting.Ingredient{
			ItemID: id,
			Name:   in.Name,
			Amount: amount,
		})
	}

	return recipe
}

// transformItem converts import format to domain format.
func transformItem(imp ItemImport) crafting.Item {
	item := crafting.Item{
		ID:          imp.ID,
		Name:        imp.Name,
		Tradeable:   !imp.Untradable,
		VendorPrice: imp.VendorPrice,
		CanBeHQ:     imp.CanBeHQ,
	}
	if imp.Tradeable != nil {
		item.Tradeable = *imp.Tradeable
	}
	if item.VendorPrice == 0 {
		item.VendorPrice = imp.PriceMid
	}
	return item
}
