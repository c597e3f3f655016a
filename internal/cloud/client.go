// Package cloud talks to the video platform: it fetches source metadata and
// publishes produced clips on the caller's behalf.
package cloud

import (
	"context"
	"errors"

	"github.com/heimdex/heimdex-shorts/internal/clips"
)

var (
	ErrVideoNotFound     = errors.New("video not found")
	ErrUnsupportedURL    = errors.New("unsupported video url")
	ErrMissingArtifact   = errors.New("clip file not found")
	ErrMissingCredential = errors.New("missing access token")
)

// MetadataFetcher resolves a platform video id to its metadata.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, videoID string) (clips.SourceMetadata, error)
}

// Uploader publishes a produced clip.
type Uploader interface {
	Upload(ctx context.Context, req UploadRequest) (Published, error)
}

// ArtifactLookup finds the produced file for a clip.
type ArtifactLookup interface {
	Artifact(key clips.Key) (clips.Artifact, bool)
}

type UploadRequest struct {
	Key         clips.Key
	Title       string
	Description string
	Tags        []string
	Credential  string
}

type Published struct {
	VideoID string
	URL     string
	Message string
}
