package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/switchyard/internal/config"
	"github.com/ShayCichocki/switchyard/internal/logging"
	"github.com/ShayCichocki/switchyard/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the flow API over HTTP",
	Long: `Start the HTTP server.

Routes:
  POST /api/v1/flow            start or resume a run, streamed as server-sent events
  GET  /api/v1/threads/{id}    inspect a suspended run
  GET  /healthz                liveness
  GET  /metrics                Prometheus metrics

Edits to the config file change the log level without a restart.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger.Logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := config.Watch(configPath, func(next *config.Config, err error) {
		if err != nil {
			logger.Warn().Err(err).Msg("config reload failed")
			return
		}
		if err := logging.SetLevel(next.Logging.Level); err != nil {
			logger.Warn().Err(err).Msg("config reload: bad log level")
			return
		}
		logger.Info().Str("level", next.Logging.Level).Msg("log level reloaded")
	}); err != nil {
		logger.Warn().Err(err).Msg("config watch disabled")
	}

	go sweepCheckpoints(ctx, a.store, cfg.Checkpoint.Retention, time.Hour, logger.Logger)

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := server.New(a.orch, a.store, server.Config{
		Addr:            addr,
		BodyLimit:       cfg.Server.BodyLimit,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger.Logger)

	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info().Msg("stopped")
	return nil
}
