package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/heimdex/heimdex-shorts/internal/catalog"
	"github.com/heimdex/heimdex-shorts/internal/clips"
	"github.com/heimdex/heimdex-shorts/internal/cloud"
)

const (
	defaultEventInterval = 500 * time.Millisecond
	maxListLimit         = 200
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist(cfg.AllowedOrigins))

	r.Get("/health", healthHandler(cfg))
	r.Get("/status", statusHandler(cfg))

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", analyzeHandler(cfg))
		r.Post("/upload", uploadHandler(cfg))
		r.Get("/status/{jobID}", getJobHandler(cfg))
		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/events/{jobID}", jobEventsHandler(cfg))
		r.Get("/download/{clipID}", downloadHandler(cfg))
		r.Head("/download/{clipID}", downloadHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{State: "idle"}

		if cfg.Runner != nil {
			resp.JobsRunning = cfg.Runner.Running()
			resp.JobsQueued = cfg.Runner.Queued()
			if resp.JobsRunning+resp.JobsQueued > 0 {
				resp.State = "processing"
			}
		}

		if cfg.Doctor != nil {
			caps, err := cfg.Doctor.Get(r.Context())
			if err == nil && caps != nil {
				resp.Pipelines = CapabilitiesToResponse(caps)
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func analyzeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnalyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.URL == "" {
			WriteError(w, http.StatusBadRequest, "URL is required", "BAD_REQUEST")
			return
		}

		analysis, err := cfg.Service.Analyze(r.Context(), req.URL)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		WriteJSON(w, http.StatusOK, AnalysisToResponse(analysis))
	}
}

func uploadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if len(req.Clips) == 0 || req.AccessToken == "" {
			WriteError(w, http.StatusBadRequest, "Missing required data", "BAD_REQUEST")
			return
		}

		job, err := cfg.Runner.Submit(r.Context(), catalog.Submission{
			Clips:      req.Clips,
			Credential: req.AccessToken,
			SourceURL:  req.OriginalURL,
			PlanID:     req.PlanID,
		})
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		WriteJSON(w, http.StatusAccepted, UploadResponse{
			JobID:     job.ID,
			Status:    job.Status,
			StatusURL: fmt.Sprintf("/api/status/%s", job.ID),
			EventsURL: fmt.Sprintf("/api/events/%s", job.ID),
		})
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "jobID")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "job id required", "BAD_REQUEST")
			return
		}

		job, err := cfg.Jobs.GetJob(r.Context(), id)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
				return
			}
			limit = min(n, maxListLimit)
		}

		jobs, err := cfg.Jobs.ListJobs(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// jobEventsHandler streams the job snapshot as server-sent events until the
// job completes or the client goes away.
func jobEventsHandler(cfg ServerConfig) http.HandlerFunc {
	interval := cfg.EventInterval
	if interval <= 0 {
		interval = defaultEventInterval
	}

	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "jobID")
		ctx := r.Context()

		job, err := cfg.Jobs.GetJob(ctx, id)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		rc := http.NewResponseController(w)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			data, err := json.Marshal(JobToResponse(job))
			if err != nil {
				cfg.Logger.Error("failed to encode job event", "job_id", id, "error", err)
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			if err := rc.Flush(); err != nil {
				cfg.Logger.Debug("event stream flush failed", "job_id", id, "error", err)
				return
			}
			if job.Done() {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			job, err = cfg.Jobs.GetJob(ctx, id)
			if err != nil {
				fmt.Fprintf(w, "event: error\ndata: %s\n\n", err.Error())
				rc.Flush()
				return
			}
		}
	}
}

// downloadHandler serves the clip artifact, producing it on first request.
func downloadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clipID, err := strconv.Atoi(chi.URLParam(r, "clipID"))
		if err != nil || clipID < 1 {
			WriteError(w, http.StatusBadRequest, "clip id must be a positive integer", "BAD_REQUEST")
			return
		}
		key := clips.Key{Plan: r.URL.Query().Get("plan"), Clip: clipID}

		artifact, err := cfg.Service.Artifact(r.Context(), key)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		if err := cfg.Playback.ServeArtifact(w, r, clipID, artifact); err != nil {
			cfg.Logger.Error("download error", "error", err, "clip", key.String())
			if errors.Is(err, os.ErrNotExist) {
				WriteError(w, http.StatusNotFound, "clip file not found", "NOT_FOUND")
				return
			}
			WriteError(w, http.StatusInternalServerError, "failed to serve clip", "INTERNAL_ERROR")
		}
	}
}

func writeServiceError(w http.ResponseWriter, cfg ServerConfig, err error) {
	switch {
	case errors.Is(err, catalog.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	case errors.Is(err, cloud.ErrVideoNotFound):
		WriteError(w, http.StatusNotFound, "Video not found", "VIDEO_NOT_FOUND")
	case errors.Is(err, catalog.ErrJobNotFound):
		WriteError(w, http.StatusNotFound, "Job not found", "NOT_FOUND")
	case errors.Is(err, catalog.ErrUpstream):
		cfg.Logger.Warn("upstream failure", "error", err)
		WriteError(w, http.StatusBadGateway, err.Error(), "UPSTREAM_ERROR")
	case errors.Is(err, catalog.ErrPlanBusy):
		WriteError(w, http.StatusConflict, err.Error(), "CONFLICT")
	case errors.Is(err, catalog.ErrRunnerClosed):
		WriteError(w, http.StatusServiceUnavailable, err.Error(), "UNAVAILABLE")
	default:
		cfg.Logger.Error("request failed", "error", err)
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}
