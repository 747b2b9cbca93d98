// Command craft-planner builds crafting plans and market shopping lists.
// Run without a subcommand it serves MCP over stdio.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCommand creates the root command for the CLI
func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "craft-planner",
		Short: "Crafting plan and market shopping planner",
		Long: `craft-planner expands crafted items into full recipe trees, prices the
materials from live market data and tells you which world to buy each one on.

Examples:
  craft-planner import --recipes recipes.json --items items.json
  craft-planner plan --target 5057:3 --target 5106:1:hq --out plan.json
  craft-planner shop --plan plan.json --all-regions
  craft-planner blacklist add Gilgamesh --for 2h --reason "congested"
  craft-planner serve --metrics-addr :9090`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), "")
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newImportCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newShopCommand())
	rootCmd.AddCommand(newBlacklistCommand())

	return rootCmd
}
