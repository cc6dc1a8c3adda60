// Package main provides the entry point for the content autopilot CLI and API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	logLevel    string
	databaseURL string
)

var rootCmd = &cobra.Command{
	Use:   "autopilot",
	Short: "Content autopilot for managed sites",
	Long: `Content autopilot refreshes keyword opportunities from Search Console, picks the best one,
generates an article and publishes it, on a cadence or on dates committed in a calendar.

Configuration can be loaded from a JSON or YAML file using --config. Environment variables
override the file, and command-line flags override both.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a JSON or YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "db-url", "", "PostgreSQL connection URL (defaults to DATABASE_URL env var)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
