// Package cmd contains the wayfarer CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wayfarer",
	Short: "Wayfarer - travel assistant query engine",
	Long: `Wayfarer answers natural-language travel questions by combining
knowledge-base retrieval, conversation memory, and tool-assisted model calls.

Run "wayfarer serve" to start the HTTP API, or "wayfarer ask" for a
one-shot question from the terminal.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
