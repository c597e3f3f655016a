package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/heimdex/heimdex-shorts/internal/clips"
	"github.com/heimdex/heimdex-shorts/internal/pipelines"
)

const (
	// TargetFilter letterboxes into a 720x1280 (9:16) frame on black.
	TargetFilter = "scale=720:1280:force_original_aspect_ratio=decrease,pad=720:1280:(ow-iw)/2:(oh-ih)/2:black"
	SourceFormat = "best[height<=720]"
)

type ExtractorConfig struct {
	FFmpegPath       string
	YtDlpPath        string
	DownloadTimeout  time.Duration
	TranscodeTimeout time.Duration
	Logger           *slog.Logger
}

// Extractor downloads the requested window with yt-dlp and reframes it with
// ffmpeg.
type Extractor struct {
	cfg    ExtractorConfig
	runner pipelines.Runner
	ws     *Workspace
}

func NewExtractor(runner pipelines.Runner, ws *Workspace, cfg ExtractorConfig) *Extractor {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.YtDlpPath == "" {
		cfg.YtDlpPath = "yt-dlp"
	}
	return &Extractor{cfg: cfg, runner: runner, ws: ws}
}

func (e *Extractor) Produce(ctx context.Context, req Request) (clips.Artifact, error) {
	if req.Record == nil || req.Record.SourceURL == "" {
		return clips.Artifact{}, ErrNoSource
	}
	if err := e.ws.prepare(req.Key); err != nil {
		return clips.Artifact{}, err
	}

	rec := *req.Record
	start := max(rec.StartSeconds, 0)
	// Inverted or malformed ranges become zero-length and are attempted anyway.
	duration := rec.Duration()

	raw := e.ws.RawPath(req.Key)
	out := e.ws.ClipPath(req.Key, extVideo)

	e.cfg.Logger.Info("extracting clip",
		"clip", req.Key.String(),
		"start_s", start,
		"duration_s", duration,
	)

	if err := e.download(ctx, rec.SourceURL, raw, start, duration); err != nil {
		return clips.Artifact{}, err
	}
	if err := e.transcode(ctx, raw, out, duration); err != nil {
		return clips.Artifact{}, err
	}

	a, err := statArtifact(out, extVideo)
	if err != nil {
		return clips.Artifact{}, fmt.Errorf("transcode output: %w", err)
	}

	// The raw download is only removed once the final file exists.
	if err := os.Remove(raw); err != nil && !os.IsNotExist(err) {
		e.cfg.Logger.Warn("failed to remove raw download", "clip", req.Key.String(), "error", err)
	}

	logProduced(e.cfg.Logger, req.Key, a)
	return a, nil
}

func (e *Extractor) download(ctx context.Context, url, raw string, start, duration int) error {
	ctx, cancel := withTimeout(ctx, e.cfg.DownloadTimeout)
	defer cancel()

	result := e.runner.Run(ctx, e.cfg.YtDlpPath, DownloadArgs(url, raw, start, duration)...)
	if !result.IsSuccess() {
		return &CommandError{Stage: "download", ExitCode: result.ExitCode, StderrTail: result.StderrTail}
	}
	if _, err := statArtifact(raw, extVideo); err != nil {
		return fmt.Errorf("download output: %w", err)
	}
	return nil
}

func (e *Extractor) transcode(ctx context.Context, raw, out string, duration int) error {
	ctx, cancel := withTimeout(ctx, e.cfg.TranscodeTimeout)
	defer cancel()

	result := e.runner.Run(ctx, e.cfg.FFmpegPath, TranscodeArgs(raw, out, duration)...)
	if !result.IsSuccess() {
		return &CommandError{Stage: "transcode", ExitCode: result.ExitCode, StderrTail: result.StderrTail}
	}
	return nil
}

// DownloadArgs restricts yt-dlp to the window [start, start+duration) at no
// more than 720p.
func DownloadArgs(url, raw string, start, duration int) []string {
	return []string{
		"--no-playlist",
		"--force-overwrites",
		"-f", SourceFormat,
		"--downloader", "ffmpeg",
		"--downloader-args", fmt.Sprintf("ffmpeg_i:-ss %d -t %d", start, duration),
		"-o", raw,
		url,
	}
}

// TranscodeArgs reframes raw into the target frame and caps the length.
func TranscodeArgs(raw, out string, duration int) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", raw,
		"-vf", TargetFilter,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-t", strconv.Itoa(min(duration, clips.MaxShortSeconds)),
		out,
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
