package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var flagServer string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "classctl",
	Short: "Command-line client for the classlink signaling server",
	Long: `classctl joins a tutoring room on a classlink signaling server and
negotiates a WebRTC session with the peer in that room. It sends synthetic
media, which makes it useful for exercising a deployment end to end without
camera hardware.`,
}

// Execute runs the root command. Called once from main.
func Execute() {
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagServer, "server", "s", "ws://localhost:8080/ws", "Signaling server WebSocket URL")
}
