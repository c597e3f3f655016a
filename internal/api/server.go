package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/heimdex/heimdex-shorts/internal/catalog"
	"github.com/heimdex/heimdex-shorts/internal/clips"
	"github.com/heimdex/heimdex-shorts/internal/pipelines"
	"github.com/heimdex/heimdex-shorts/internal/playback"
)

// ClipService plans clips and hands out their artifacts.
type ClipService interface {
	Analyze(ctx context.Context, rawURL string) (*catalog.Analysis, error)
	Artifact(ctx context.Context, key clips.Key) (clips.Artifact, error)
}

// JobRunner accepts job submissions.
type JobRunner interface {
	Submit(ctx context.Context, sub catalog.Submission) (*catalog.Job, error)
	Running() int
	Queued() int
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Host           string
	Port           int
	Version        string
	AllowedOrigins []string
	Service        ClipService
	Runner         JobRunner
	Jobs           catalog.JobRepository
	Playback       playback.ArtifactServer
	Doctor         *pipelines.CachedDoctor
	Logger         *slog.Logger
	StartTime      time.Time
	// EventInterval is the SSE snapshot period; zero means 500ms.
	EventInterval time.Duration
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:        net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler:     router,
			ReadTimeout: 15 * time.Second,
			// Downloads and event streams are long-lived.
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
