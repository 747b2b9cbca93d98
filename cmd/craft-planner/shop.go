package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rsned/craft-market-planner/internal/crafting/engine"
	"github.com/rsned/craft-market-planner/internal/crafting/planfile"
	"github.com/rsned/craft-market-planner/pkg/crafting"
)

func newShopCommand() *cobra.Command {
	var (
		planPath   string
		region     string
		allRegions bool
		objective  string
		sortOrder  string
		unpriced   bool
	)

	cmd := &cobra.Command{
		Use:   "shop",
		Short: "Refresh prices and compute where to buy a plan's materials",
		Long: `Fetch current market listings for every material of a plan, allocate
whole listings per world and recommend a world for each item. The prices
and shopping plans are written back into the plan file.

Examples:
  craft-planner shop --plan plan.json
  craft-planner shop --plan plan.json --all-regions --objective best-value`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if planPath == "" {
				return fmt.Errorf("--plan flag is required")
			}
			obj := crafting.Objective(objective)
			if objective != "" && !obj.IsValid() {
				return fmt.Errorf("invalid objective %q: want %v", objective, crafting.ValidObjectives())
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			plan, err := planfile.Load(planPath)
			if err != nil {
				return err
			}
			if region == "" {
				region = plan.DataCenter
			}

			scope := crafting.ScopeAll
			if unpriced {
				scope = crafting.ScopeUnpriced
			}
			refreshed, shopping, err := a.engine.RefreshAndShop(ctx, plan,
				engine.RefreshRequest{
					Region:     region,
					Scope:      scope,
					AllRegions: allRegions,
				},
				engine.ShoppingRequest{
					Objective: obj,
					Sort:      crafting.SortOrder(sortOrder),
				},
				a.progressLogger())
			if err != nil {
				return err
			}

			if err := planfile.Save(planPath, plan); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printOutcome(out, "prices", refreshed.Outcome)
			printShopping(out, shopping)
			return nil
		},
	}

	cmd.Flags().StringVarP(&planPath, "plan", "p", "", "Plan file to shop for")
	cmd.Flags().StringVar(&region, "region", "", "Data center to shop in (default: the plan's)")
	cmd.Flags().BoolVar(&allRegions, "all-regions", false, "Also search every configured data center")
	cmd.Flags().StringVar(&objective, "objective", "", "Recommendation objective: min-cost or best-value")
	cmd.Flags().StringVar(&sortOrder, "sort", "", "Display order: recommended, alphabetical or price-desc")
	cmd.Flags().BoolVar(&unpriced, "unpriced", false, "Only refresh materials without a current price")

	return cmd
}

func printOutcome(w io.Writer, label string, o crafting.Outcome) {
	fmt.Fprintf(w, "%s: %d ok, %d failed, %d skipped, %d cached", label, o.Success, o.Failed, o.Skipped, o.Cached)
	if len(o.FailedRegions) > 0 {
		fmt.Fprintf(w, " (failed regions: %v)", o.FailedRegions)
	}
	if o.UsedCachedData {
		fmt.Fprint(w, " [stale data used]")
	}
	fmt.Fprintln(w)
}

func printShopping(w io.Writer, result *crafting.ShoppingResult) {
	printOutcome(w, "shopping", result.Outcome)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tQTY\tWORLD\tDATA CENTER\tCOST\tAVG/UNIT\tNOTE")
	var total int64
	for _, p := range result.Plans {
		name := p.Name
		if p.RequiresHQ {
			name += " (HQ)"
		}
		if p.RecommendedWorld == nil {
			fmt.Fprintf(tw, "%s\t%d\t-\t-\t-\t-\t%s\n", name, p.QuantityNeeded, p.Error)
			continue
		}
		rw := p.RecommendedWorld
		total += rw.TotalCost
		note := ""
		if rw.ExcessQuantity > 0 {
			note = fmt.Sprintf("+%d excess", rw.ExcessQuantity)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\t%.1f\t%s\n",
			name, p.QuantityNeeded, rw.WorldName, rw.DataCenter, rw.TotalCost, rw.AveragePricePerUnit, note)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "Total: %d gil\n", total)
}
