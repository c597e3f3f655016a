// Package pipelines runs the external media tools (ffmpeg, yt-dlp) as
// subprocesses with bounded output capture, and probes which of them are
// installed.
package pipelines

import "time"

// Capabilities reports which external tools are usable.
type Capabilities struct {
	FFmpeg ToolInfo `json:"ffmpeg"`
	YtDlp  ToolInfo `json:"ytdlp"`

	HasExtraction bool      `json:"has_extraction"`
	HasSynthesis  bool      `json:"has_synthesis"`
	ProbedAt      time.Time `json:"probed_at"`
}

// ToolInfo is the probe outcome for one binary.
type ToolInfo struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Path      string `json:"path,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RunResult is the structured outcome of executing a subprocess.
type RunResult struct {
	ExitCode   int           `json:"exit_code"`
	Stdout     string        `json:"stdout,omitempty"`      // last N bytes of stdout
	StderrTail string        `json:"stderr_tail,omitempty"` // last N bytes of stderr
	Duration   time.Duration `json:"duration"`
	TimedOut   bool          `json:"timed_out,omitempty"`
}

// IsSuccess returns true when the subprocess exited cleanly.
func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }
