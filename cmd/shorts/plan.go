package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/heimdex/heimdex-shorts/internal/catalog"
	"github.com/heimdex/heimdex-shorts/internal/clips"
	"github.com/heimdex/heimdex-shorts/internal/logging"
	"github.com/heimdex/heimdex-shorts/internal/planner"
	"github.com/spf13/cobra"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var seed uint64

	cmd := &cobra.Command{
		Use:   "plan <video-url>",
		Short: "Fetch a video's metadata and print the clips that would be cut from it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.config()
			if err != nil {
				return err
			}
			logger := logging.NewStderrLogger(cfg.LogLevel())

			p := planner.NewFromClock()
			if cmd.Flags().Changed("seed") {
				p = planner.New(seed)
			}

			// Analyze never produces artifacts, so no producer is wired.
			svc := catalog.NewService(catalog.NewClipStore(), newFetcher(cfg, logger), p, nil, logger)
			analysis, err := svc.Analyze(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, analysis)
			}
			printAnalysis(out, analysis)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the analysis as JSON")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed the planner for reproducible output")
	return cmd
}

func printAnalysis(w io.Writer, a *catalog.Analysis) {
	fmt.Fprintf(w, "%s (%s)\n", a.Metadata.Title, a.Metadata.VideoID)
	fmt.Fprintf(w, "Duration: %s   Plan: %s\n\n", clips.FormatTimestamp(clips.ParseISODuration(a.Metadata.Duration)), a.PlanID)

	rows := make([][]string, 0, len(a.Clips))
	for _, d := range a.Clips {
		length := clips.Seconds(d.EndTime) - clips.Seconds(d.StartTime)
		rows = append(rows, []string{
			strconv.Itoa(d.ID),
			d.StartTime,
			d.EndTime,
			fmt.Sprintf("%ds", length),
			d.Title,
			strings.Join(d.SuggestedTags, ", "),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"#", "Start", "End", "Length", "Title", "Tags"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft},
	))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
