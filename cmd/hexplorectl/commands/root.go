// Package commands implements the hexplorectl CLI commands.
package commands

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// httpClient talks to a service's plain HTTP admin surface
	// (POST /reload, GET /explores, GET /explores/{player_id}).
	httpClient = &http.Client{Timeout: 10 * time.Second}

	// outputFormat controls the output format for all commands (table or json).
	outputFormat string

	// serverAddr is the admin listener address (host:port) of the target service.
	serverAddr string
)

// rootCmd is the top-level cobra command for hexplorectl.
var rootCmd = &cobra.Command{
	Use:   "hexplorectl",
	Short: "CLI client for the hexplore platform and exploration servers",
	Long:  "hexplorectl talks to a hexplore service's admin HTTP surface to reload game data and inspect live explorations.",
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:8080",
		"service admin address (host:port)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(exploreCmd())
	rootCmd.AddCommand(reloadCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(shellCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
