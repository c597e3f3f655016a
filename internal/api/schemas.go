package api

import (
	"time"

	"github.com/heimdex/heimdex-shorts/internal/catalog"
	"github.com/heimdex/heimdex-shorts/internal/clips"
	"github.com/heimdex/heimdex-shorts/internal/pipelines"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State       string                  `json:"state"`
	JobsRunning int                     `json:"jobs_running"`
	JobsQueued  int                     `json:"jobs_queued"`
	Pipelines   *PipelineStatusResponse `json:"pipelines,omitempty"`
}

type PipelineStatusResponse struct {
	FFmpeg        ToolResponse `json:"ffmpeg"`
	YtDlp         ToolResponse `json:"ytdlp"`
	HasExtraction bool         `json:"has_extraction"`
	HasSynthesis  bool         `json:"has_synthesis"`
	LastProbeAt   string       `json:"last_probe_at,omitempty"`
}

type ToolResponse struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

type AnalyzeRequest struct {
	URL string `json:"url"`
}

type AnalyzeResponse struct {
	PlanID   string               `json:"plan_id"`
	Metadata clips.SourceMetadata `json:"metadata"`
	Clips    []clips.Descriptor   `json:"clips"`
}

type UploadRequest struct {
	Clips       []clips.Descriptor `json:"clips"`
	AccessToken string             `json:"access_token"`
	OriginalURL string             `json:"original_url,omitempty"`
	PlanID      string             `json:"plan_id,omitempty"`
}

type UploadResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	StatusURL string `json:"status_url"`
	EventsURL string `json:"events_url"`
}

type JobResponse struct {
	ID        string               `json:"id"`
	Status    string               `json:"status"`
	PlanID    string               `json:"plan_id,omitempty"`
	Results   []catalog.ClipResult `json:"results"`
	CreatedAt string               `json:"created_at"`
	UpdatedAt string               `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func AnalysisToResponse(a *catalog.Analysis) AnalyzeResponse {
	return AnalyzeResponse{PlanID: a.PlanID, Metadata: a.Metadata, Clips: a.Clips}
}

func JobToResponse(j *catalog.Job) JobResponse {
	results := j.Results
	if results == nil {
		results = []catalog.ClipResult{}
	}
	return JobResponse{
		ID:        j.ID,
		Status:    j.Status,
		PlanID:    j.PlanID,
		Results:   results,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.Format(time.RFC3339),
	}
}

func CapabilitiesToResponse(caps *pipelines.Capabilities) *PipelineStatusResponse {
	resp := &PipelineStatusResponse{
		FFmpeg:        toolToResponse(caps.FFmpeg),
		YtDlp:         toolToResponse(caps.YtDlp),
		HasExtraction: caps.HasExtraction,
		HasSynthesis:  caps.HasSynthesis,
	}
	if !caps.ProbedAt.IsZero() {
		resp.LastProbeAt = caps.ProbedAt.Format(time.RFC3339)
	}
	return resp
}

func toolToResponse(t pipelines.ToolInfo) ToolResponse {
	return ToolResponse{Available: t.Available, Version: t.Version, Error: t.Error}
}
