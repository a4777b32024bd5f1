package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"signald/internal/agent"
	"signald/internal/client"
)

var (
	agentServerURL string
	agentTransport string
	agentCount     int
	agentDelay     string
	agentSeed      int64
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the agent against a signal server",
	Long: `Connects to a running signal server, generates failure events from
the scenario library, and streams them through classification.

With --transport http the agent POSTs to the server URL. With
--transport stdio it spawns the server command given by --server-url
and speaks over its pipes, e.g.:

  signald agent --transport stdio --server-url "signald serve -t stdio"`,
	RunE: runAgent,
}

func init() {
	agentCmd.Flags().StringVar(&agentServerURL, "server-url", "", "Server endpoint (http URL or stdio command line)")
	agentCmd.Flags().StringVarP(&agentTransport, "transport", "t", "", "Client transport: stdio or http")
	agentCmd.Flags().IntVarP(&agentCount, "count", "n", 0, "Number of events to generate")
	agentCmd.Flags().StringVar(&agentDelay, "delay", "", "Delay between events, e.g. 500ms")
	agentCmd.Flags().Int64Var(&agentSeed, "seed", 0, "Generator seed (0 uses the clock)")
}

func runAgent(cmd *cobra.Command, args []string) error {
	if agentServerURL != "" {
		cfg.Agent.ServerURL = agentServerURL
	}
	if agentTransport != "" {
		cfg.Agent.Transport = agentTransport
	}
	if agentCount > 0 {
		cfg.Agent.Count = agentCount
	}
	if agentDelay != "" {
		cfg.Agent.Delay = agentDelay
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var transport client.Transport
	switch cfg.Agent.Transport {
	case "stdio":
		transport = client.NewStdioTransport(cfg.Agent.ServerURL)
	case "http":
		transport = client.NewHTTPTransport(cfg.Agent.ServerURL, 30*time.Second)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := agent.New(transport)
	if err := a.Connect(ctx); err != nil {
		return err
	}
	defer a.Close()

	gen := agent.NewGenerator(agentSeed)
	processed, err := a.RunDemo(ctx, gen, cfg.Agent.Count, parseDelay(cfg.Agent.Delay))
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	fmt.Printf("Processed %d of %d events\n", processed, cfg.Agent.Count)
	return nil
}
