package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/heimdex/heimdex-shorts/internal/clips"
	"github.com/heimdex/heimdex-shorts/internal/pipelines"
)

const SynthSeconds = 10

type SynthesizerConfig struct {
	FFmpegPath string
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Synthesizer renders a local placeholder video showing the clip number. If
// ffmpeg cannot run it writes a text placeholder instead, so Produce only
// fails when the workspace itself is unwritable.
type Synthesizer struct {
	cfg    SynthesizerConfig
	runner pipelines.Runner
	ws     *Workspace
}

func NewSynthesizer(runner pipelines.Runner, ws *Workspace, cfg SynthesizerConfig) *Synthesizer {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	return &Synthesizer{cfg: cfg, runner: runner, ws: ws}
}

func (s *Synthesizer) Produce(ctx context.Context, req Request) (clips.Artifact, error) {
	if err := s.ws.prepare(req.Key); err != nil {
		return clips.Artifact{}, err
	}

	out := s.ws.ClipPath(req.Key, extVideo)

	if s.runner != nil {
		rctx, cancel := withTimeout(ctx, s.cfg.Timeout)
		result := s.runner.Run(rctx, s.cfg.FFmpegPath, SynthesizeArgs(req.Key.Clip, out)...)
		cancel()

		if result.IsSuccess() {
			if a, err := statArtifact(out, extVideo); err == nil {
				logProduced(s.cfg.Logger, req.Key, a)
				return a, nil
			}
		}
		s.cfg.Logger.Warn("synthesis failed, writing text placeholder",
			"clip", req.Key.String(),
			"exit_code", result.ExitCode,
		)
	}

	// A partial video would shadow the placeholder on lookup.
	os.Remove(out)

	path := s.ws.ClipPath(req.Key, extPlaceholder)
	if err := os.WriteFile(path, []byte(PlaceholderText(req.Key.Clip)), 0644); err != nil {
		return clips.Artifact{}, fmt.Errorf("write placeholder: %w", err)
	}

	a, err := statArtifact(path, extPlaceholder)
	if err != nil {
		return clips.Artifact{}, err
	}
	logProduced(s.cfg.Logger, req.Key, a)
	return a, nil
}

// SynthesizeArgs renders SynthSeconds of blue 720x1280 video with the clip
// number centred on it.
func SynthesizeArgs(clipID int, out string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=blue:size=720x1280:duration=%d", SynthSeconds),
		"-vf", fmt.Sprintf("drawtext=text='Clip %d':fontcolor=white:fontsize=60:x=(w-text_w)/2:y=(h-text_h)/2", clipID),
		"-c:v", "libx264",
		"-t", fmt.Sprint(SynthSeconds),
		out,
	}
}

func PlaceholderText(clipID int) string {
	return fmt.Sprintf("Sample clip %d - Video processing not available", clipID)
}
