package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rsned/craft-market-planner/internal/crafting/engine"
	"github.com/rsned/craft-market-planner/internal/crafting/planfile"
	"github.com/rsned/craft-market-planner/pkg/crafting"
)

func newPlanCommand() *cobra.Command {
	var (
		targets []string
		name    string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Build a crafting plan for one or more items",
		Long: `Expand target items into a full crafting tree and write it as a plan file.

A target is ITEM_ID:QUANTITY, with an optional :hq suffix when the result
must be high quality.

Examples:
  craft-planner plan --target 5057:3 --out ingots.json
  craft-planner plan --target 5106:1:hq --target 5057:10 --name "Weekly" --out weekly.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(targets) == 0 {
				return fmt.Errorf("--target flag is required")
			}
			parsed := make([]crafting.Target, 0, len(targets))
			for _, raw := range targets {
				t, err := parseTarget(raw)
				if err != nil {
					return err
				}
				parsed = append(parsed, t)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			plan, err := a.engine.BuildPlan(ctx, name, parsed)
			if err != nil {
				return err
			}

			if outPath != "" {
				if err := planfile.Save(outPath, plan); err != nil {
					return err
				}
				a.logger.Info("plan saved", "path", outPath, "plan_id", plan.ID)
			}

			printMaterials(cmd.OutOrStdout(), plan)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&targets, "target", "t", nil, "Target as ITEM_ID:QUANTITY[:hq] (repeatable)")
	cmd.Flags().StringVar(&name, "name", "", "Plan name")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the plan to this file")

	return cmd
}

// parseTarget parses ITEM_ID:QUANTITY[:hq].
func parseTarget(raw string) (crafting.Target, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return crafting.Target{}, fmt.Errorf("invalid target %q: want ITEM_ID:QUANTITY[:hq]", raw)
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return crafting.Target{}, fmt.Errorf("invalid item id in %q: %w", raw, err)
	}
	qty, err := strconv.Atoi(parts[1])
	if err != nil {
		return crafting.Target{}, fmt.Errorf("invalid quantity in %q: %w", raw, err)
	}
	t := crafting.Target{ItemID: id, Quantity: qty}
	if len(parts) == 3 {
		if !strings.EqualFold(parts[2], "hq") {
			return crafting.Target{}, fmt.Errorf("invalid target %q: unknown suffix %q", raw, parts[2])
		}
		t.RequiresHQ = true
	}
	return t, nil
}

// printMaterials writes the aggregated shopping list as a table.
func printMaterials(w io.Writer, plan *crafting.CraftingPlan) {
	fmt.Fprintf(w, "Plan %s", plan.ID)
	if plan.Name != "" {
		fmt.Fprintf(w, " (%s)", plan.Name)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tQTY\tSOURCE\tUNIT\tTOTAL")
	for _, m := range plan.AggregatedMaterials {
		name := m.Name
		if m.RequiresHQ {
			name += " (HQ)"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%d\n", name, m.TotalQuantity, m.Source, m.UnitPrice, m.TotalCost)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "Estimated cost: %d gil\n", engine.PlanCost(plan))
}
