package pipelines

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
	maxStdoutBytes = 8 * 1024
)

// Runner executes external binaries. It is the single seam between the clip
// producers and the operating system, so tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, binary string, args ...string) RunResult
}

// Config holds the runner's configuration.
type Config struct {
	FFmpegPath    string // default "ffmpeg"
	YtDlpPath     string // default "yt-dlp"
	DoctorTimeout time.Duration
	Logger        *slog.Logger
	DebugPaths    bool // if true, log full file paths; otherwise sanitise
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig(logger *slog.Logger) Config {
	return Config{
		FFmpegPath:    "ffmpeg",
		YtDlpPath:     "yt-dlp",
		DoctorTimeout: 30 * time.Second,
		Logger:        logger,
	}
}

// SubprocessRunner is the production implementation of Runner.
type SubprocessRunner struct {
	cfg Config
}

func NewRunner(cfg Config) *SubprocessRunner {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.YtDlpPath == "" {
		cfg.YtDlpPath = "yt-dlp"
	}
	if cfg.DoctorTimeout <= 0 {
		cfg.DoctorTimeout = 30 * time.Second
	}
	return &SubprocessRunner{cfg: cfg}
}

func (r *SubprocessRunner) FFmpeg() string { return r.cfg.FFmpegPath }

func (r *SubprocessRunner) YtDlp() string { return r.cfg.YtDlpPath }

// Run executes binary with args and never returns an error: every failure,
// including a missing binary or an expired context, is folded into RunResult.
func (r *SubprocessRunner) Run(ctx context.Context, binary string, args ...string) RunResult {
	start := time.Now()

	cmd := exec.CommandContext(ctx, binary, args...)

	// Capture output with bounded buffers
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = io.Writer(&limitedWriter{w: &stdoutBuf, limit: maxStdoutBytes})
	cmd.Stderr = io.Writer(&limitedWriter{w: &stderrBuf, limit: maxStderrBytes})

	deadline, _ := ctx.Deadline()
	r.cfg.Logger.Debug("executing command",
		"binary", filepath.Base(binary),
		"args", r.safeArgs(args),
		"deadline", deadline,
	)

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	stderrTail := stderrBuf.String()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
			if stderrTail == "" {
				stderrTail = err.Error()
			}
		}
		if exitCode == 0 {
			exitCode = -1
		}
	}

	timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded)
	if timedOut {
		stderrTail = strings.TrimSpace(stderrTail + "\ncommand timed out")
	}

	if exitCode != 0 {
		r.cfg.Logger.Warn("command failed",
			"binary", filepath.Base(binary),
			"exit_code", exitCode,
			"timed_out", timedOut,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrTail, 512),
		)
	} else {
		r.cfg.Logger.Debug("command succeeded",
			"binary", filepath.Base(binary),
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	return RunResult{
		ExitCode:   exitCode,
		Stdout:     stdoutBuf.String(),
		StderrTail: stderrTail,
		Duration:   elapsed,
		TimedOut:   timedOut,
	}
}

// RunDoctor probes ffmpeg and yt-dlp by asking each for its version.
func (r *SubprocessRunner) RunDoctor(ctx context.Context) (*Capabilities, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.DoctorTimeout)
	defer cancel()

	caps := &Capabilities{
		FFmpeg: r.probe(ctx, r.cfg.FFmpegPath, "-version"),
		YtDlp:  r.probe(ctx, r.cfg.YtDlpPath, "--version"),
	}
	caps.HasSynthesis = caps.FFmpeg.Available
	caps.HasExtraction = caps.FFmpeg.Available && caps.YtDlp.Available
	caps.ProbedAt = time.Now()

	r.cfg.Logger.Info("doctor probe complete",
		"ffmpeg", caps.FFmpeg.Available,
		"ytdlp", caps.YtDlp.Available,
		"extraction", caps.HasExtraction,
		"synthesis", caps.HasSynthesis,
	)

	return caps, nil
}

func (r *SubprocessRunner) probe(ctx context.Context, binary, versionFlag string) ToolInfo {
	path, err := exec.LookPath(binary)
	if err != nil {
		return ToolInfo{Error: err.Error()}
	}

	result := r.Run(ctx, path, versionFlag)
	if !result.IsSuccess() {
		return ToolInfo{Path: r.safePath(path), Error: truncate(result.StderrTail, 256)}
	}
	return ToolInfo{Available: true, Path: r.safePath(path), Version: firstLine(result.Stdout)}
}

func (r *SubprocessRunner) safeArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if filepath.IsAbs(a) {
			out[i] = r.safePath(a)
		} else {
			out[i] = a
		}
	}
	return out
}

func (r *SubprocessRunner) safePath(path string) string {
	if r.cfg.DebugPaths {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Base(path)
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return filepath.Base(path)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
