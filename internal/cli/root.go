// Package cli implements the dispatch command tree.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Query dispatch gateway for indexing providers",
	Long: `dispatch selects, for each client query, a small set of indexing
providers to race in parallel, so the combined response is likely to be
correct, fast, fresh, and economical.

Run 'dispatch serve' to start the gateway daemon, or pipe provider
characteristics into 'dispatch simulate' to inspect selection offline.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
