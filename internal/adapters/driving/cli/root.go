// Package cli provides the command-line entry points. The serve command
// assembles the full adapter stack and runs the HTTP API.
package cli

import (
	"github.com/spf13/cobra"
)

// version is the build version, injectable at link time.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "nullgpt-indexer",
	Short: "Incremental document indexing and hybrid retrieval service",
	Long: `nullgpt-indexer maintains per-document vector indexes over local
source trees and serves ranked retrieval queries over an HTTP API.`,
	SilenceUsage: true,
}

// Execute runs the root command. v overrides the build version when
// non-empty.
func Execute(v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.Execute()
}
