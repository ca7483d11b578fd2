package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func reloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Trigger a config hot-reload on the target service",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := adminPost("/reload"); err != nil {
				return fmt.Errorf("reload: %w", err)
			}
			fmt.Println("reload triggered")
			return nil
		},
	}
}
