package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/heimdex/heimdex-shorts/internal/clips"
	"github.com/heimdex/heimdex-shorts/internal/cloud"
	"github.com/heimdex/heimdex-shorts/internal/logging"
	"golang.org/x/sync/semaphore"
)

var (
	ErrRunnerClosed = errors.New("job runner is shut down")
	// ErrPlanBusy rejects a second concurrent job for one plan. Both jobs
	// would write the same clip files.
	ErrPlanBusy = errors.New("plan already has an active job")
)

// Submission is one request to produce and publish a set of clips.
type Submission struct {
	Clips      []clips.Descriptor
	Credential string
	SourceURL  string
	PlanID     string
}

func (s Submission) validate() error {
	if len(s.Clips) == 0 {
		return fmt.Errorf("%w: no clips submitted", ErrInvalidInput)
	}
	if s.Credential == "" {
		return fmt.Errorf("%w: %v", ErrInvalidInput, cloud.ErrMissingCredential)
	}
	if err := clips.ValidatePlan(s.PlanID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	seen := make(map[int]bool, len(s.Clips))
	for _, c := range s.Clips {
		if c.ID < 1 {
			return fmt.Errorf("%w: clip id %d must be positive", ErrInvalidInput, c.ID)
		}
		if seen[c.ID] {
			return fmt.Errorf("%w: duplicate clip id %d", ErrInvalidInput, c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}

func (s Submission) clipIDs() []int {
	ids := make([]int, len(s.Clips))
	for i, c := range s.Clips {
		ids[i] = c.ID
	}
	return ids
}

type RunnerConfig struct {
	MaxConcurrent int
	JobTimeout    time.Duration
	PacingDelay   time.Duration
}

// Runner executes submitted jobs in the background. Each job runs on its own
// goroutine and processes its clips sequentially; at most MaxConcurrent jobs
// run at once, the rest wait their turn.
type Runner struct {
	service  *Service
	jobs     JobRepository
	uploader cloud.Uploader
	cfg      RunnerConfig
	logger   *slog.Logger

	sem     *semaphore.Weighted
	baseCtx context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	closed  bool
	active  map[string]string // plan id -> job id
	wg      sync.WaitGroup
	running atomic.Int64
	queued  atomic.Int64
}

func NewRunner(service *Service, jobs JobRepository, uploader cloud.Uploader, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		service:  service,
		jobs:     jobs,
		uploader: uploader,
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "runner"),
		active:   make(map[string]string),
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

// Submit records a new job and starts it in the background. It returns as
// soon as the job is stored.
func (r *Runner) Submit(ctx context.Context, sub Submission) (*Job, error) {
	if err := sub.validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &Job{
		ID:        NewID(),
		Status:    JobStatusProcessing,
		PlanID:    sub.PlanID,
		SourceURL: sub.SourceURL,
		ClipIDs:   sub.clipIDs(),
		Results:   []ClipResult{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRunnerClosed
	}
	if sub.PlanID != clips.SharedPlan {
		if other, ok := r.active[sub.PlanID]; ok {
			return nil, fmt.Errorf("%w: job %s", ErrPlanBusy, other)
		}
	}
	if err := r.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if sub.PlanID != clips.SharedPlan {
		r.active[sub.PlanID] = job.ID
	}

	r.logger.Info("job submitted",
		"job_id", job.ID,
		"plan_id", sub.PlanID,
		"clips", len(sub.Clips),
		"credential", logging.SanitizeToken(sub.Credential),
	)

	r.queued.Add(1)
	r.wg.Add(1)
	go r.run(job.ID, sub)

	return job.clone(), nil
}

func (r *Runner) run(jobID string, sub Submission) {
	defer r.wg.Done()
	defer r.release(sub.PlanID)
	logger := logging.WithJobID(r.logger, jobID)

	if err := r.sem.Acquire(r.baseCtx, 1); err != nil {
		r.queued.Add(-1)
		r.complete(jobID, finalizeResults(sub.clipIDs(), nil, "job cancelled before start"), logger)
		return
	}
	r.queued.Add(-1)
	r.running.Add(1)
	defer func() {
		r.running.Add(-1)
		r.sem.Release(1)
	}()

	ctx := r.baseCtx
	if r.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.JobTimeout)
		defer cancel()
	}

	start := time.Now()
	logger.Info("job started")

	results := make([]ClipResult, 0, len(sub.Clips))
	for _, d := range sub.Clips {
		res := r.processClip(ctx, jobID, sub, d, results)
		results = append(results, res)
		r.publish(ctx, jobID, results, logger)
	}

	r.complete(jobID, results, logger)

	failed := 0
	for _, res := range results {
		if res.Status == ClipStatusFailed {
			failed++
		}
	}
	logger.Info("job completed",
		"clips", len(results),
		"failed", failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// processClip walks one clip through its stages and returns its terminal
// result. Each stage replaces the job's results with done plus the
// in-flight entry.
func (r *Runner) processClip(ctx context.Context, jobID string, sub Submission, d clips.Descriptor, done []ClipResult) ClipResult {
	key := clips.Key{Plan: sub.PlanID, Clip: d.ID}
	logger := logging.WithClip(logging.WithJobID(r.logger, jobID), sub.PlanID, d.ID)

	stage := func(status string, progress int) {
		logger.Debug("clip stage", "status", status, "progress", progress)
		snapshot := append(append(make([]ClipResult, 0, len(done)+1), done...),
			ClipResult{ClipID: d.ID, Status: status, Progress: progress})
		r.publish(ctx, jobID, snapshot, logger)
	}

	if err := ctx.Err(); err != nil {
		return failedResult(d.ID, interruption(err))
	}

	stage(ClipStatusDownloading, ProgressDownloading)

	// Shared keys are reused by every job that sends no plan id, so the
	// submission always replaces them. Plan keys keep what Analyze stored.
	if sub.SourceURL != "" {
		rec := clips.RecordFromDescriptor(sub.SourceURL, d)
		switch {
		case sub.PlanID == clips.SharedPlan:
			r.service.Store().Put(key, rec)
			logger.Debug("clip record derived from submission", "start", d.StartTime, "end", d.EndTime)
		case r.service.Store().PutIfAbsent(key, rec):
			logger.Debug("clip record derived from submission", "start", d.StartTime, "end", d.EndTime)
		}
	}
	if _, err := r.service.Produce(ctx, key); err != nil {
		logger.Error("clip production failed", "error", err)
		return failedResult(d.ID, fmt.Sprintf("produce clip: %v", err))
	}

	if err := r.pace(ctx); err != nil {
		return failedResult(d.ID, interruption(err))
	}
	stage(ClipStatusProcessing, ProgressProcessing)

	if err := r.pace(ctx); err != nil {
		return failedResult(d.ID, interruption(err))
	}
	stage(ClipStatusUploading, ProgressUploading)

	pub, err := r.uploader.Upload(ctx, cloud.UploadRequest{
		Key:         key,
		Title:       d.Title,
		Description: d.Description,
		Tags:        d.SuggestedTags,
		Credential:  sub.Credential,
	})
	if err != nil {
		logger.Warn("clip upload failed", "error", err)
		return failedResult(d.ID, err.Error())
	}

	logger.Info("clip published", "video_id", pub.VideoID, "url", pub.URL)
	return ClipResult{
		ClipID:       d.ID,
		Status:       ClipStatusCompleted,
		Progress:     ProgressDone,
		PublishedURL: pub.URL,
		Message:      pub.Message,
	}
}

func (r *Runner) release(planID string) {
	if planID == clips.SharedPlan {
		return
	}
	r.mu.Lock()
	delete(r.active, planID)
	r.mu.Unlock()
}

func (r *Runner) pace(ctx context.Context) error {
	if r.cfg.PacingDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(r.cfg.PacingDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// publish stores a results snapshot. Store writes outlive the job deadline
// so that a timed-out job still reports where it stopped.
func (r *Runner) publish(ctx context.Context, jobID string, results []ClipResult, logger *slog.Logger) {
	if err := r.jobs.PublishResults(context.WithoutCancel(ctx), jobID, results); err != nil {
		logger.Error("failed to publish job results", "error", err)
	}
}

func (r *Runner) complete(jobID string, results []ClipResult, logger *slog.Logger) {
	if err := r.jobs.CompleteJob(context.Background(), jobID, results); err != nil {
		logger.Error("failed to complete job", "error", err)
	}
}

func interruption(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "job timed out"
	}
	return "job cancelled"
}

// Running returns the number of jobs currently executing.
func (r *Runner) Running() int {
	return int(r.running.Load())
}

// Queued returns the number of jobs waiting for a worker slot.
func (r *Runner) Queued() int {
	return int(r.queued.Load())
}

// Wait blocks until every submitted job has completed.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown stops accepting jobs and waits for running ones to finish. If ctx
// expires first, running jobs are cancelled; their remaining clips end
// failed and the jobs still complete.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.logger.Warn("shutdown deadline reached, cancelling jobs",
			"running", r.Running(),
			"queued", r.Queued(),
		)
		r.cancel()
		<-done
		return ctx.Err()
	}
}
