package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Real-time group chat relay server",
	Long: `Relay is a single-process group chat server: clients connect over
WebSocket, claim a unique display name, exchange messages, and see presence
and typing state in real time.

Available commands:
  serve    Start the relay server

Use "relay [command] --help" for more information about a specific command.`,
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
