package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/heimdex/heimdex-shorts/internal/db"
)

func setupSQLiteStore(t *testing.T) *SQLiteJobStore {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewSQLiteJobStore(database.Conn())
}

func newTestJob(id string, created time.Time) *Job {
	return &Job{
		ID:        id,
		Status:    JobStatusProcessing,
		ClipIDs:   []int{1, 2, 3},
		Results:   []ClipResult{},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestJobRepositories(t *testing.T) {
	stores := map[string]func(t *testing.T) JobRepository{
		"memory": func(t *testing.T) JobRepository { return NewMemoryJobStore() },
		"sqlite": func(t *testing.T) JobRepository { return setupSQLiteStore(t) },
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := newStore(t)
			now := time.Now().UTC()

			if err := repo.CreateJob(ctx, newTestJob("job-1", now.Add(-time.Minute))); err != nil {
				t.Fatalf("CreateJob() error = %v", err)
			}
			if err := repo.CreateJob(ctx, newTestJob("job-2", now)); err != nil {
				t.Fatalf("CreateJob() error = %v", err)
			}

			if _, err := repo.GetJob(ctx, "missing"); !errors.Is(err, ErrJobNotFound) {
				t.Errorf("GetJob(missing) error = %v, want ErrJobNotFound", err)
			}

			inflight := []ClipResult{{ClipID: 1, Status: ClipStatusDownloading, Progress: ProgressDownloading}}
			if err := repo.PublishResults(ctx, "job-1", inflight); err != nil {
				t.Fatalf("PublishResults() error = %v", err)
			}
			// The caller's slice must not alias stored state.
			inflight[0].Status = "mutated"

			job, err := repo.GetJob(ctx, "job-1")
			if err != nil {
				t.Fatalf("GetJob() error = %v", err)
			}
			if job.Status != JobStatusProcessing {
				t.Errorf("Status = %s, want processing", job.Status)
			}
			if len(job.Results) != 1 || job.Results[0].Status != ClipStatusDownloading {
				t.Errorf("Results = %+v", job.Results)
			}
			if len(job.ClipIDs) != 3 {
				t.Errorf("ClipIDs = %v", job.ClipIDs)
			}

			final := []ClipResult{
				{ClipID: 1, Status: ClipStatusCompleted, Progress: 100, PublishedURL: "https://youtube.com/shorts/x"},
				{ClipID: 2, Status: ClipStatusFailed, Progress: 100, Error: "upload failed: 401 - nope"},
			}
			if err := repo.CompleteJob(ctx, "job-1", final); err != nil {
				t.Fatalf("CompleteJob() error = %v", err)
			}
			job, _ = repo.GetJob(ctx, "job-1")
			if !job.Done() {
				t.Errorf("Status = %s, want completed", job.Status)
			}
			if job.Results[0].PublishedURL == "" || job.Results[1].Error == "" {
				t.Errorf("Results = %+v", job.Results)
			}

			if err := repo.CompleteJob(ctx, "missing", nil); !errors.Is(err, ErrJobNotFound) {
				t.Errorf("CompleteJob(missing) error = %v, want ErrJobNotFound", err)
			}

			jobs, err := repo.ListJobs(ctx, 10)
			if err != nil {
				t.Fatalf("ListJobs() error = %v", err)
			}
			if len(jobs) != 2 || jobs[0].ID != "job-2" {
				t.Errorf("ListJobs() = %d jobs, first %v; want newest first", len(jobs), jobs)
			}
			jobs, _ = repo.ListJobs(ctx, 1)
			if len(jobs) != 1 {
				t.Errorf("ListJobs(1) returned %d jobs", len(jobs))
			}
		})
	}
}

func TestMemoryJobStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryJobStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := NewID()
			repo.CreateJob(ctx, newTestJob(id, time.Now()))
			for p := 0; p < 10; p++ {
				repo.PublishResults(ctx, id, []ClipResult{{ClipID: 1, Progress: p}})
				repo.ListJobs(ctx, 5)
				repo.GetJob(ctx, id)
			}
		}(i)
	}
	wg.Wait()

	jobs, _ := repo.ListJobs(ctx, 100)
	if len(jobs) != 20 {
		t.Errorf("ListJobs() = %d, want 20", len(jobs))
	}
}

func TestSQLiteJobStore_RecoverInterrupted(t *testing.T) {
	ctx := context.Background()
	repo := setupSQLiteStore(t)

	repo.CreateJob(ctx, newTestJob("stale", time.Now()))
	repo.PublishResults(ctx, "stale", []ClipResult{
		{ClipID: 1, Status: ClipStatusCompleted, Progress: 100},
		{ClipID: 2, Status: ClipStatusUploading, Progress: 75},
	})
	repo.CreateJob(ctx, newTestJob("done", time.Now()))
	repo.CompleteJob(ctx, "done", []ClipResult{{ClipID: 1, Status: ClipStatusFailed, Progress: 100}})

	n, err := repo.RecoverInterrupted(ctx)
	if err != nil {
		t.Fatalf("RecoverInterrupted() error = %v", err)
	}
	if n != 1 {
		t.Errorf("RecoverInterrupted() = %d, want 1", n)
	}

	job, _ := repo.GetJob(ctx, "stale")
	if !job.Done() {
		t.Fatalf("Status = %s, want completed", job.Status)
	}
	if len(job.Results) != 3 {
		t.Fatalf("Results = %+v, want 3 entries", job.Results)
	}
	if job.Results[0].Status != ClipStatusCompleted {
		t.Errorf("clip 1 status = %s, want completed", job.Results[0].Status)
	}
	for _, res := range job.Results[1:] {
		if res.Status != ClipStatusFailed || res.Error != "interrupted by restart" {
			t.Errorf("clip %d = %+v, want failed by restart", res.ClipID, res)
		}
	}
}
