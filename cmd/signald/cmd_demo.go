package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"signald/internal/agent"
	"signald/internal/client"
)

var (
	demoCount int
	demoDelay string
	demoSeed  int64
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a self-contained demo",
	Long: `Spawns a signal server as a subprocess over stdio, then drives
generated failure events through it and prints each analysis. Results
are persisted to the configured database, so a later "signald events"
shows them.`,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().IntVarP(&demoCount, "count", "n", 5, "Number of events to generate")
	demoCmd.Flags().StringVar(&demoDelay, "delay", "1s", "Delay between events")
	demoCmd.Flags().Int64Var(&demoSeed, "seed", 0, "Generator seed (0 uses the clock)")
}

func runDemo(cmd *cobra.Command, args []string) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate binary: %w", err)
	}

	endpoint := fmt.Sprintf("%s serve -t stdio --no-push --db %s", self, cfg.Store.DatabasePath)
	transport := client.NewStdioTransport(endpoint)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := agent.New(transport)
	if err := a.Connect(ctx); err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Demo: %d events through a stdio server (db %s)\n\n", demoCount, cfg.Store.DatabasePath)

	gen := agent.NewGenerator(demoSeed)
	processed, err := a.RunDemo(ctx, gen, demoCount, parseDelay(demoDelay))
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	fmt.Printf("Processed %d of %d events\n", processed, demoCount)
	return nil
}
