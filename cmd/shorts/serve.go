package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/heimdex/heimdex-shorts/internal/api"
	"github.com/heimdex/heimdex-shorts/internal/config"
	"github.com/heimdex/heimdex-shorts/internal/logging"
	"github.com/heimdex/heimdex-shorts/internal/playback"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.config()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.EnvConfig) error {
	startTime := time.Now()

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting heimdex shorts",
		"version", config.Version,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
		"job_store", cfg.JobStore(),
	)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	probeCtx, probeCancel := context.WithTimeout(ctx, 30*time.Second)
	if caps, err := a.doctor.Refresh(probeCtx); err != nil {
		logger.Warn("initial doctor probe failed", "error", err)
	} else {
		logger.Info("tool capabilities detected",
			"extraction", caps.HasExtraction,
			"synthesis", caps.HasSynthesis,
		)
		if !caps.HasExtraction {
			logger.Warn("clip extraction unavailable, clips will be synthesized placeholders")
		}
	}
	probeCancel()

	apiServer := api.NewServer(api.ServerConfig{
		Host:           cfg.Host(),
		Port:           cfg.Port(),
		Version:        config.Version,
		AllowedOrigins: cfg.AllowedOrigins(),
		Service:        a.service,
		Runner:         a.runner,
		Jobs:           a.jobs,
		Playback:       playback.NewServer(logger),
		Doctor:         a.doctor,
		Logger:         logger,
		StartTime:      startTime,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	if err := a.runner.Shutdown(shutdownCtx); err != nil {
		logger.Warn("jobs cancelled at shutdown", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
