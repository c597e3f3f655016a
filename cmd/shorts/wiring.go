package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/heimdex/heimdex-shorts/internal/catalog"
	"github.com/heimdex/heimdex-shorts/internal/cloud"
	"github.com/heimdex/heimdex-shorts/internal/config"
	"github.com/heimdex/heimdex-shorts/internal/db"
	"github.com/heimdex/heimdex-shorts/internal/logging"
	"github.com/heimdex/heimdex-shorts/internal/pipeline"
	"github.com/heimdex/heimdex-shorts/internal/pipelines"
	"github.com/heimdex/heimdex-shorts/internal/planner"
)

// app holds the long-lived components of a serving process.
type app struct {
	workspace *pipeline.Workspace
	doctor    *pipelines.CachedDoctor
	service   *catalog.Service
	jobs      catalog.JobRepository
	runner    *catalog.Runner
	database  *db.DB
}

func (a *app) Close() {
	if a.database != nil {
		a.database.Close()
	}
	a.workspace.Unlock()
}

func newSubprocessRunner(cfg config.Config, logger *slog.Logger) *pipelines.SubprocessRunner {
	pcfg := pipelines.DefaultConfig(logger)
	pcfg.FFmpegPath = cfg.FFmpegPath()
	pcfg.YtDlpPath = cfg.YtDlpPath()
	return pipelines.NewRunner(pcfg)
}

// newFetcher uses the Data API when a key is configured and the keyless
// client otherwise.
func newFetcher(cfg config.Config, logger *slog.Logger) cloud.MetadataFetcher {
	if cfg.YouTubeAPIKey() != "" {
		return cloud.NewDataAPIFetcher(cfg.MetadataBaseURL(), cfg.YouTubeAPIKey(), logger)
	}
	logger.Info("no YouTube API key configured, using keyless metadata client")
	return cloud.NewInnertubeFetcher(logger)
}

func newJobStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (catalog.JobRepository, *db.DB, error) {
	if cfg.JobStore() != config.JobStoreSQLite {
		return catalog.NewMemoryJobStore(), nil, nil
	}

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	store := catalog.NewSQLiteJobStore(database.Conn())

	n, err := store.RecoverInterrupted(ctx)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to recover interrupted jobs: %w", err)
	}
	if n > 0 {
		logger.Warn("completed jobs interrupted by restart", "count", n)
	}
	return store, database, nil
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	ws, err := pipeline.NewWorkspace(cfg.ClipsDir())
	if err != nil {
		return nil, err
	}
	// Taken before the job store opens: recovery must never touch jobs that
	// another live process owns.
	if err := ws.Lock(); err != nil {
		return nil, err
	}

	sub := newSubprocessRunner(cfg, logger)
	doctor := pipelines.NewCachedDoctor(sub, logger)

	producer := &pipeline.Fallback{
		Primary: pipeline.NewExtractor(sub, ws, pipeline.ExtractorConfig{
			FFmpegPath:       cfg.FFmpegPath(),
			YtDlpPath:        cfg.YtDlpPath(),
			DownloadTimeout:  cfg.DownloadTimeout(),
			TranscodeTimeout: cfg.TranscodeTimeout(),
			Logger:           logging.WithComponent(logger, "extractor"),
		}),
		Secondary: pipeline.NewSynthesizer(sub, ws, pipeline.SynthesizerConfig{
			FFmpegPath: cfg.FFmpegPath(),
			Timeout:    cfg.TranscodeTimeout(),
			Logger:     logging.WithComponent(logger, "synthesizer"),
		}),
		Logger: logging.WithComponent(logger, "producer"),
	}

	store := catalog.NewClipStore()
	service := catalog.NewService(store, newFetcher(cfg, logger), planner.NewFromClock(), producer, logger)
	uploader := cloud.NewHTTPClient(cfg.UploadBaseURL(), store, logging.WithComponent(logger, "uploader"))

	jobs, database, err := newJobStore(ctx, cfg, logger)
	if err != nil {
		ws.Unlock()
		return nil, err
	}

	runner := catalog.NewRunner(service, jobs, uploader, catalog.RunnerConfig{
		MaxConcurrent: cfg.MaxConcurrentJobs(),
		JobTimeout:    cfg.JobTimeout(),
		PacingDelay:   cfg.PacingDelay(),
	}, logger)

	return &app{
		workspace: ws,
		doctor:    doctor,
		service:   service,
		jobs:      jobs,
		runner:    runner,
		database:  database,
	}, nil
}
