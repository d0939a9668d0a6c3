package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matsen/bibfix/internal/config"
	"github.com/matsen/bibfix/internal/server"
)

var (
	serveAddr string
	serveRoot string
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, "+config.DefaultServerAddr+")")
	serveCmd.Flags().StringVar(&serveRoot, "root", "", "Only serve files under this directory")
	addLookupFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve enrichment over HTTP",
	Long: `Serve enrichment over HTTP.

Endpoints:
  POST /v1/enrich/entry   {"key", "title", "doi", "arxiv_id", "type"}
  POST /v1/enrich/file    {"path", "output", "dry_run"} or {"content"}
  GET  /healthz
  GET  /metrics           Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a := mustSetup(cmd)
	defer a.Close()

	addr := a.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	opts := []server.Option{server.WithMetrics(a.metrics), server.WithLogger(a.logger)}
	if serveRoot != "" {
		opts = append(opts, server.WithRoot(config.ExpandPath(serveRoot)))
	}
	srv := server.New(a.enricher, opts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if humanOutput {
		outputHuman("bibfix listening on %s\n", addr)
	}
	if err := srv.Start(ctx, addr); err != nil {
		a.logger.Error("server stopped", zap.Error(err))
		a.Close()
		exitWithError(ExitError, "serving: %v", err)
	}
	return nil
}
