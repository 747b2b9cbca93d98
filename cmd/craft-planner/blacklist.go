package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rsned/craft-market-planner/pkg/crafting"
)

func newBlacklistCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blacklist",
		Short: "Manage temporarily excluded worlds",
		Long: `Blacklisted worlds are still shown in shopping plans but are never
recommended until the entry expires.`,
	}

	cmd.AddCommand(newBlacklistAddCommand())
	cmd.AddCommand(newBlacklistRemoveCommand())
	cmd.AddCommand(newBlacklistListCommand())

	return cmd
}

func newBlacklistAddCommand() *cobra.Command {
	var (
		duration time.Duration
		reason   string
	)

	cmd := &cobra.Command{
		Use:   "add <world>",
		Short: "Exclude a world from recommendations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if duration <= 0 {
				duration = a.cfg.Shopping.BlacklistDuration
			}
			entry := crafting.BlacklistEntry{
				World:     args[0],
				Reason:    reason,
				ExpiresAt: time.Now().Add(duration).UTC(),
			}
			if err := a.blacklist.Add(ctx, entry); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s blacklisted until %s\n", entry.World, entry.ExpiresAt.Local().Format(time.Kitchen))
			return nil
		},
	}

	cmd.Flags().DurationVar(&duration, "for", 0, "How long the exclusion lasts (default: shopping.blacklist_duration)")
	cmd.Flags().StringVar(&reason, "reason", "", "Why the world is excluded")

	return cmd
}

func newBlacklistRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <world>",
		Short: "Lift a world's exclusion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			return a.blacklist.Remove(ctx, args[0])
		},
	}
}

func newBlacklistListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show active exclusions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			entries, err := a.blacklist.Active(ctx, time.Now())
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No worlds blacklisted")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "WORLD\tEXPIRES\tREASON")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", e.World, e.ExpiresAt.Local().Format(time.DateTime), e.Reason)
			}
			return tw.Flush()
		},
	}
}
