// Package cli implements the matchd command-line interface using Cobra.
// Each subcommand maps to a service capability (serve, match, explain).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "matchd",
	Short: "matchd — match job candidates against job postings",
	Long: `matchd matches job candidates against job postings and vice versa,
producing ranked lists with explainable per-criterion scores.

Run 'matchd serve' to start the HTTP API, or 'matchd match -f request.json'
for a one-shot local match.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
