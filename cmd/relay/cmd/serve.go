package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nfrund/relay/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay server",
	Long: `Starts the relay server: binds the HTTP listener, accepts WebSocket
connections on /ws, and relays chat traffic until interrupted.`,
	Run: func(cmd *cobra.Command, args []string) {
		s := server.New()
		s.RegisterRoutes()
		s.Start()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
