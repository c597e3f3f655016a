// Package pipeline produces clip artifacts. A primary producer extracts the
// requested segment from the remote source; a fallback producer synthesizes a
// placeholder so that downstream stages always have something to work with.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/heimdex/heimdex-shorts/internal/clips"
)

const (
	extVideo       = "mp4"
	extPlaceholder = "txt"
)

var (
	ErrNoSource    = errors.New("no source record for clip")
	ErrEmptyOutput = errors.New("command produced no output")
)

// Request identifies the clip to produce. Record is nil when the clip has no
// stored source.
type Request struct {
	Key    clips.Key
	Record *clips.Record
}

// Producer realizes an artifact for a clip.
type Producer interface {
	Produce(ctx context.Context, req Request) (clips.Artifact, error)
}

// CommandError is a failed external command.
type CommandError struct {
	Stage      string
	ExitCode   int
	StderrTail string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s exited %d: %s", e.Stage, e.ExitCode, e.StderrTail)
}

// Fallback tries Primary and, on any error, Secondary.
type Fallback struct {
	Primary   Producer
	Secondary Producer
	Logger    *slog.Logger
}

func (f *Fallback) Produce(ctx context.Context, req Request) (clips.Artifact, error) {
	if f.Primary != nil {
		a, err := f.Primary.Produce(ctx, req)
		if err == nil {
			return a, nil
		}
		if errors.Is(err, ErrNoSource) {
			f.Logger.Info("no source for clip, synthesizing", "clip", req.Key.String())
		} else {
			f.Logger.Warn("extraction failed, falling back to synthesis",
				"clip", req.Key.String(),
				"error", err,
			)
		}
	}

	a, err := f.Secondary.Produce(ctx, req)
	if err != nil {
		return clips.Artifact{}, fmt.Errorf("fallback producer: %w", err)
	}
	return a, nil
}

func logProduced(logger *slog.Logger, key clips.Key, a clips.Artifact) {
	logger.Info("clip artifact ready",
		"clip", key.String(),
		"ext", a.Ext,
		"placeholder", a.Placeholder,
		"size", humanize.Bytes(uint64(a.Size)),
	)
}
