package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/heimdex/heimdex-shorts/internal/clips"
	"github.com/heimdex/heimdex-shorts/internal/cloud"
	"github.com/heimdex/heimdex-shorts/internal/pipeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeFetcher struct {
	meta  clips.SourceMetadata
	err   error
	calls atomic.Int32
}

func (f *fakeFetcher) FetchMetadata(ctx context.Context, videoID string) (clips.SourceMetadata, error) {
	f.calls.Add(1)
	if f.err != nil {
		return clips.SourceMetadata{}, f.err
	}
	m := f.meta
	m.VideoID = videoID
	return m, nil
}

// fakeProducer writes "<kind>:<key>" into dir. Records it was handed are kept
// for inspection.
type fakeProducer struct {
	dir   string
	fail  bool
	delay time.Duration
	calls atomic.Int32

	mu      sync.Mutex
	records map[clips.Key]*clips.Record
}

func (f *fakeProducer) Produce(ctx context.Context, req pipeline.Request) (clips.Artifact, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	if f.records == nil {
		f.records = make(map[clips.Key]*clips.Record)
	}
	f.records[req.Key] = req.Record
	f.mu.Unlock()

	if f.fail {
		return clips.Artifact{}, errors.New("disk full")
	}

	kind := "synth"
	if req.Record != nil {
		kind = "extract"
	}
	content := fmt.Sprintf("%s:%s:%d", kind, req.Key.String(), f.calls.Load())
	path := filepath.Join(f.dir, fmt.Sprintf("clip_%d_%d.mp4", req.Key.Clip, f.calls.Load()))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return clips.Artifact{}, err
	}
	return clips.Artifact{Path: path, Ext: "mp4", Size: int64(len(content))}, nil
}

func (f *fakeProducer) record(key clips.Key) *clips.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[key]
}

// fakeUploader publishes every clip except failClip, which the platform
// rejects.
type fakeUploader struct {
	artifacts cloud.ArtifactLookup
	block     chan struct{}
	failClip  int
	calls     atomic.Int32
}

func (f *fakeUploader) Upload(ctx context.Context, req cloud.UploadRequest) (cloud.Published, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return cloud.Published{}, ctx.Err()
		}
	}
	if f.artifacts != nil {
		if _, ok := f.artifacts.Artifact(req.Key); !ok {
			return cloud.Published{}, cloud.ErrMissingArtifact
		}
	}
	if req.Key.Clip == f.failClip {
		return cloud.Published{}, &cloud.UploadError{StatusCode: 403, Body: "quotaExceeded"}
	}
	id := fmt.Sprintf("vid%d", req.Key.Clip)
	return cloud.Published{VideoID: id, URL: cloud.ShortsURLPrefix + id, Message: cloud.SuccessMessage}, nil
}

func waitForJob(t *testing.T, repo JobRepository, id string) *Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := repo.GetJob(context.Background(), id)
		if err != nil {
			t.Fatalf("GetJob() error = %v", err)
		}
		if job.Done() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not complete", id)
	return nil
}
