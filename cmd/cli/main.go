package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiURL string = "http://localhost:8080"
	output string = "text" // "text" or "json"
)

var rootCmd = &cobra.Command{
	Use:   "messengerctl",
	Short: "Messenger gateway CLI - inspect presence and call records",
	Long: `messengerctl provides command-line access to a running Messenger
real-time gateway. Check who is online, inspect last-seen timestamps,
read hub statistics, and look up call history.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", apiURL, "Gateway API URL")
	rootCmd.PersistentFlags().StringVar(&output, "output", output, "Output format: text or json")

	// Add command groups
	rootCmd.AddCommand(presenceCmd)
	rootCmd.AddCommand(callsCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
