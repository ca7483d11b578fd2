package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lowtide/hexplore/internal/explore"
)

func exploreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Inspect live exploration runs",
	}

	cmd.AddCommand(exploreListCmd())
	cmd.AddCommand(exploreShowCmd())

	return cmd
}

func exploreListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all live explorations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var summaries []explore.Summary
			if err := adminGet("/explores", &summaries); err != nil {
				return fmt.Errorf("list explores: %w", err)
			}

			out, err := formatSummaries(summaries, outputFormat)
			if err != nil {
				return fmt.Errorf("format explores: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}
}

func exploreShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <player-id>",
		Short: "Show details of one player's live exploration",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			playerID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("parse player id %q: %w", args[0], err)
			}

			var summary explore.Summary
			if err := adminGet(fmt.Sprintf("/explores/%d", playerID), &summary); err != nil {
				return fmt.Errorf("show explore: %w", err)
			}

			out, err := formatSummary(summary, outputFormat)
			if err != nil {
				return fmt.Errorf("format explore: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}
}
