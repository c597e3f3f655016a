package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/heimdex/heimdex-shorts/internal/logging"
	"github.com/heimdex/heimdex-shorts/internal/pipelines"
	"github.com/spf13/cobra"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that ffmpeg and yt-dlp are available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.config()
			if err != nil {
				return err
			}
			logger := logging.NewStderrLogger(cfg.LogLevel())

			probeCtx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			caps, err := newSubprocessRunner(cfg, logger).RunDoctor(probeCtx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, caps)
			}
			printCapabilities(out, caps)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print capabilities as JSON")
	return cmd
}

func printCapabilities(w io.Writer, caps *pipelines.Capabilities) {
	rows := [][]string{
		toolRow("ffmpeg", caps.FFmpeg),
		toolRow("yt-dlp", caps.YtDlp),
	}
	fmt.Fprintln(w, renderTable([]string{"Tool", "Status", "Version", "Path"}, rows, nil))

	switch {
	case caps.HasExtraction:
		fmt.Fprintln(w, "Clip extraction: ready")
	case caps.HasSynthesis:
		fmt.Fprintln(w, "Clip extraction: unavailable, clips will be synthesized")
	default:
		fmt.Fprintln(w, "Clip extraction: unavailable, clips will be text placeholders")
	}
}

func toolRow(name string, t pipelines.ToolInfo) []string {
	if !t.Available {
		return []string{name, "missing", t.Error, ""}
	}
	return []string{name, "ok", t.Version, logging.SanitizePath(t.Path)}
}
