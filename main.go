package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dividendlog",
	Short: "Broker dividend import backend",
	Long: `dividendlog imports dividend exports from brokers into the dividend log.

Files are parsed against a per-broker format, staged for preview and
committed to SQLite once the operator confirms.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
