package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rsned/craft-market-planner/pkg/crafting"
)

// RecipeStore handles recipe data access.
type RecipeStore struct {
	db *DB
}

// NewRecipeStore creates a new RecipeStore.
func NewRecipeStore(db *DB) *RecipeStore {
	return &RecipeStore{db: db}
}

// GetRecipeForItem retrieves the recipe that produces itemID, with its
// ingredients. When several recipes produce the item the lowest recipe ID
// wins. Returns nil if the item is not craftable.
func (s *RecipeStore) GetRecipeForItem(ctx context.Context, itemID int) (*crafting.Recipe, error) {
	recipe := &crafting.Recipe{}

	err := s.db.QueryRowContext(ctx, `
		SELECT id, item_id, name, yield, craft_type, level
		FROM recipes WHERE item_id = ?
		ORDER BY id
		LIMIT 1
	`, itemID).Scan(
		&recipe.ID,
		&recipe.ItemID,
		&recipe.Name,
		&recipe.Yield,
		&recipe.CraftType,
		&recipe.Level,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying recipe: %w", err)
	}

	ingredients, err := s.getIngredients(ctx, recipe.ID)
	if err != nil {
		return nil, err
	}
	recipe.Ingredients = ingredients

	return recipe, nil
}

// getIngredients retrieves ingredients for a recipe in recipe order.
func (s *RecipeStore) getIngredients(ctx context.Context, recipeID int) ([]crafting.Ingredient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ri.item_id, COALESCE(i.name, ''), ri.amount
		FROM recipe_ingredients ri
		LEFT JOIN items i ON i.id = ri.item_id
		WHERE ri.recipe_id = ?
		ORDER BY ri.position, ri.item_id
	`, recipeID)
	if err != nil {
		return nil, fmt.Errorf("querying recipe ingredients: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ingredients []crafting.Ingredient
	for rows.Next() {
		var ing crafting.Ingredient
		if err := rows.Scan(&ing.ItemID, &ing.Name, &ing.Amount); err != nil {
			return nil, fmt.Errorf("scanning ingredient: %w", err)
		}
		ingredients = append(ingredients, ing)
	}

	return ingredients, rows.Err()
}

// SearchRecipes searches recipes by name (case-insensitive partial match).
func (s *RecipeStore) SearchRecipes(ctx context.Context, term string, limit int) ([]crafting.RecipeSearchHit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item_id, name
		FROM recipes
		WHERE name LIKE ?
		ORDER BY name
		LIMIT ?
	`, "%"+term+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("searching recipes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []crafting.RecipeSearchHit
	for rows.Next() {
		var hit crafting.RecipeSearchHit
		if err := rows.Scan(&hit.RecipeID, &hit.ItemID, &hit.Name); err != nil {
			return nil, fmt.Errorf("scanning search hit: %w", err)
		}
		results = append(results, hit)
	}

	return results, rows.Err()
}

// GetRecipesUsingItem finds recipe IDs that use itemID as an ingredient.
func (s *RecipeStore) GetRecipesUsingItem(ctx context.Context, itemID int) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT recipe_id
		FROM recipe_ingredients
		WHERE item_id = ?
		ORDER BY recipe_id
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("finding recipes using item: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning recipe id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// CountRecipes returns the total number of recipes.
func (s *RecipeStore) CountRecipes(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recipes`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting recipes: %w", err)
	}
	return count, nil
}

// BulkInsertRecipes inserts multiple recipes in a transaction.
func (s *RecipeStore) BulkInsertRecipes(ctx context.Context, recipes []crafting.Recipe) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		recipeStmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO recipes
			(id, item_id, name, yield, craft_type, level)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing recipe statement: %w", err)
		}
		defer func() { _ = recipeStmt.Close() }()

		clearStmt, err := tx.PrepareContext(ctx, `DELETE FROM recipe_ingredients WHERE recipe_id = ?`)
		if err != nil {
			return fmt.Errorf("preparing ingredient cleanup statement: %w", err)
		}
		defer func() { _ = clearStmt.Close() }()

		ingStmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO recipe_ingredients (recipe_id, item_id, amount, position)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing ingredient statement: %w", err)
		}
		defer func() { _ = ingStmt.Close() }()

		for _, r := range recipes {
			yield := r.Yield
			if yield < 1 {
				yield = 1
			}
			if _, err := recipeStmt.ExecContext(ctx,
				r.ID, r.ItemID, r.Name, yield, r.CraftType, r.Level,
			); err != nil {
				return fmt.Errorf("inserting recipe %d: %w", r.ID, err)
			}

			if _, err := clearStmt.ExecContext(ctx, r.ID); err != nil {
				return fmt.Errorf("clearing ingredients for %d: %w", r.ID, err)
			}
			for pos, ing := range r.Ingredients {
				if _, err := ingStmt.ExecContext(ctx, r.ID, ing.ItemID, ing.Amount, pos); err != nil {
					return fmt.Errorf("inserting ingredient for %d: %w", r.ID, err)
				}
			}
		}

		return nil
	})
}

// ClearRecipes removes all recipe data (for re-sync).
func (s *RecipeStore) ClearRecipes(ctx context.Context) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		// Foreign keys will cascade delete ingredients
		_, err := tx.ExecContext(ctx, `DELETE FROM recipes`)
		return err
	})
}
