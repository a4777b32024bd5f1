package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"signald/internal/gateway"
	"signald/internal/logging"
	"signald/internal/store"
	"signald/internal/tools"
)

var (
	serveTransport  string
	serveListen     string
	servePushListen string
	serveNoPush     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signal server",
	Long: `Starts the signal server on the selected transport.

With --transport stdio the server reads newline-delimited requests on
stdin and writes responses to stdout; logs go to stderr. With
--transport http it accepts the same requests as JSON POSTs on /mcp.

Unless --no-push is given, a plain HTTP push endpoint also listens for
raw failure events on POST /events.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveTransport, "transport", "t", "", "Session transport: stdio or http")
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "HTTP bind address (http transport)")
	serveCmd.Flags().StringVar(&servePushListen, "push-listen", "", "Push endpoint bind address")
	serveCmd.Flags().BoolVar(&serveNoPush, "no-push", false, "Disable the HTTP push endpoint")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveTransport != "" {
		cfg.Server.Transport = serveTransport
	}
	if serveListen != "" {
		cfg.Server.Listen = serveListen
	}
	if servePushListen != "" {
		cfg.Push.Listen = servePushListen
	}
	if serveNoPush {
		cfg.Push.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logging.Get(logging.CategoryBoot)

	st, err := store.Open(cfg.Store.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}
	defer st.Close()

	registry := tools.New(st, cfg.Server.Transport)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	switch cfg.Server.Transport {
	case "stdio":
		srv := gateway.NewStdioServer(registry, os.Stdin, os.Stdout)
		g.Go(func() error {
			// Client EOF ends the whole process, push listener included.
			defer stop()
			return srv.Serve(ctx)
		})
		log.Info("signal server started",
			zap.String("transport", "stdio"),
			zap.String("db", cfg.Store.DatabasePath))
	case "http":
		srv := gateway.NewHTTPServer(registry, cfg.Server.Listen)
		g.Go(func() error { return srv.ListenAndServe(ctx) })
		log.Info("signal server started",
			zap.String("transport", "http"),
			zap.String("listen", cfg.Server.Listen),
			zap.String("db", cfg.Store.DatabasePath))
	}

	if cfg.Push.Enabled {
		push := gateway.NewPushServer(registry, cfg.Push.Listen, nil)
		g.Go(func() error { return push.ListenAndServe(ctx) })
		log.Info("push endpoint started", zap.String("listen", cfg.Push.Listen))
	}

	err = g.Wait()
	if err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("signal server stopped")
	return nil
}
