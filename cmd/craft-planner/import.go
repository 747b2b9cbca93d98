package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rsned/craft-market-planner/internal/crafting/sync"
)

func newImportCommand() *cobra.Command {
	var recipesFile, itemsFile, listingsFile string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import catalog and market dumps into the database",
		Long: `Load item, recipe and market listing dumps from JSON files.

Items are imported before recipes so ingredient names resolve.

Examples:
  craft-planner import --items items.json --recipes recipes.json
  craft-planner import --listings listings.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if recipesFile == "" && itemsFile == "" && listingsFile == "" {
				return fmt.Errorf("at least one of --recipes, --items or --listings is required")
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			syncer := sync.NewSyncer(a.db)

			if itemsFile != "" {
				a.logger.Info("importing items", "file", itemsFile)
				n, err := syncer.ImportItemsFromFile(ctx, itemsFile)
				if err != nil {
					return fmt.Errorf("failed to import items: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d items\n", n)
			}

			if recipesFile != "" {
				a.logger.Info("importing recipes", "file", recipesFile)
				n, err := syncer.ImportRecipesFromFile(ctx, recipesFile)
				if err != nil {
					return fmt.Errorf("failed to import recipes: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d recipes\n", n)
			}

			if listingsFile != "" {
				a.logger.Info("importing listings", "file", listingsFile)
				n, err := syncer.ImportListingsFromFile(ctx, listingsFile, time.Now().UTC())
				if err != nil {
					return fmt.Errorf("failed to import listings: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d listings\n", n)
			}

			a.catalog.Purge()
			return nil
		},
	}

	cmd.Flags().StringVar(&recipesFile, "recipes", "", "Recipe dump (JSON)")
	cmd.Flags().StringVar(&itemsFile, "items", "", "Item dump (JSON)")
	cmd.Flags().StringVar(&listingsFile, "listings", "", "Market listing dump (JSON)")

	return cmd
}
