// Package cli holds the gatewarden command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gatewarden",
	Short: "Conversational security gate for physical checkpoints",
	Long: "Runs the checkpoint assistant: interviews visitors over the kiosk,\n" +
		"watches the door camera for faces and threats, and renders access\n" +
		"decisions with audit-ready reasoning.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
