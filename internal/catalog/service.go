package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/heimdex/heimdex-shorts/internal/clips"
	"github.com/heimdex/heimdex-shorts/internal/cloud"
	"github.com/heimdex/heimdex-shorts/internal/logging"
	"github.com/heimdex/heimdex-shorts/internal/pipeline"
	"golang.org/x/sync/singleflight"
)

// Planner proposes clips for a source video.
type Planner interface {
	Plan(meta clips.SourceMetadata) []clips.Descriptor
}

// Analysis is the result of planning clips for one source video.
type Analysis struct {
	PlanID   string               `json:"plan_id"`
	Metadata clips.SourceMetadata `json:"metadata"`
	Clips    []clips.Descriptor   `json:"clips"`
}

type Service struct {
	store    *ClipStore
	fetcher  cloud.MetadataFetcher
	planner  Planner
	producer pipeline.Producer
	logger   *slog.Logger
	group    singleflight.Group
}

func NewService(store *ClipStore, fetcher cloud.MetadataFetcher, planner Planner, producer pipeline.Producer, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		fetcher:  fetcher,
		planner:  planner,
		producer: producer,
		logger:   logging.WithComponent(logger, "catalog"),
	}
}

func (s *Service) Store() *ClipStore {
	return s.store
}

// Analyze fetches metadata for a video URL, plans clips for it and records
// each planned clip in the clip store under a fresh plan id.
func (s *Service) Analyze(ctx context.Context, rawURL string) (*Analysis, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	videoID, err := cloud.ExtractVideoID(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	meta, err := s.fetcher.FetchMetadata(ctx, videoID)
	if err != nil {
		if errors.Is(err, cloud.ErrVideoNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: fetch metadata for %s: %w", ErrUpstream, videoID, err)
	}

	planned := s.planner.Plan(meta)
	planID := NewID()
	for _, d := range planned {
		s.store.Put(clips.Key{Plan: planID, Clip: d.ID}, clips.RecordFromDescriptor(rawURL, d))
	}

	s.logger.Info("clips planned",
		"plan_id", planID,
		"video_id", videoID,
		"duration", meta.Duration,
		"clips", len(planned),
	)

	return &Analysis{PlanID: planID, Metadata: meta, Clips: planned}, nil
}

// Artifact returns the produced file for key, producing it on first use.
// A cached artifact whose file has disappeared is produced again.
func (s *Service) Artifact(ctx context.Context, key clips.Key) (clips.Artifact, error) {
	if err := clips.ValidatePlan(key.Plan); err != nil {
		return clips.Artifact{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if a, ok := s.store.Artifact(key); ok {
		if _, err := os.Stat(a.Path); err == nil {
			return a, nil
		}
		s.logger.Warn("cached artifact missing on disk", "clip", key.String(), "path", a.Path)
	}
	return s.Produce(ctx, key)
}

// Produce realizes the artifact for key from its stored record, or through
// the fallback producer when no record exists, and caches the result.
// Concurrent calls for the same key share one production.
func (s *Service) Produce(ctx context.Context, key clips.Key) (clips.Artifact, error) {
	if err := clips.ValidatePlan(key.Plan); err != nil {
		return clips.Artifact{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	v, err, _ := s.group.Do(key.String(), func() (any, error) {
		req := pipeline.Request{Key: key}
		rec, err := s.store.Get(key)
		switch {
		case err == nil:
			req.Record = &rec
		case errors.Is(err, ErrClipNotFound):
		default:
			return nil, err
		}

		a, err := s.producer.Produce(ctx, req)
		if err != nil {
			return nil, err
		}
		s.store.PutArtifact(key, a)
		return a, nil
	})
	if err != nil {
		return clips.Artifact{}, err
	}
	return v.(clips.Artifact), nil
}
