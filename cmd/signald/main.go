package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"signald/internal/config"
	"signald/internal/logging"
)

var (
	// Global flags
	verbose    bool
	jsonLog    bool
	configPath string
	dbPath     string

	// Loaded configuration, available to all subcommands after PreRun.
	cfg *config.Config
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "signald",
	Short: "signald - failure event classification server",
	Long: `signald ingests failure events from monitored services, classifies
them by severity and failure category, and persists the analysis to SQLite.

The server speaks a structured tool protocol over stdio or HTTP, and can
additionally accept raw events on a plain HTTP push endpoint. A built-in
agent and event generator exercise the full pipeline for demos and load
runs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.Store.DatabasePath = dbPath
		}
		if verbose {
			cfg.Logging.Verbose = true
		}
		if jsonLog {
			cfg.Logging.JSON = true
		}

		if err := logging.Initialize(cfg.Logging.Verbose, cfg.Logging.JSON); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "Emit logs as JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "signald.yaml", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(demoCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseDelay converts the --delay flag, falling back to the configured
// default on garbage input.
func parseDelay(raw string) time.Duration {
	if raw == "" {
		return cfg.AgentDelay()
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return cfg.AgentDelay()
	}
	return d
}
