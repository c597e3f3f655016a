package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// JobRepository stores job snapshots. Implementations must be safe for
// concurrent use and must never hand out memory shared with the store.
type JobRepository interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	// PublishResults atomically replaces the job's results.
	PublishResults(ctx context.Context, id string, results []ClipResult) error
	// CompleteJob stores the final results and marks the job completed.
	CompleteJob(ctx context.Context, id string, results []ClipResult) error
}

const defaultListLimit = 50

// MemoryJobStore keeps jobs for the lifetime of the process.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*Job)}
}

func (s *MemoryJobStore) CreateJob(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job.clone()
	return nil
}

func (s *MemoryJobStore) GetJob(ctx context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j.clone(), nil
}

func (s *MemoryJobStore) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	s.mu.RLock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j.clone())
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(a, b int) bool {
		return jobs[a].CreatedAt.After(jobs[b].CreatedAt)
	})
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (s *MemoryJobStore) PublishResults(ctx context.Context, id string, results []ClipResult) error {
	return s.update(id, "", results)
}

func (s *MemoryJobStore) CompleteJob(ctx context.Context, id string, results []ClipResult) error {
	return s.update(id, JobStatusCompleted, results)
}

func (s *MemoryJobStore) update(id, status string, results []ClipResult) error {
	snapshot := append([]ClipResult{}, results...)

	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	j.Results = snapshot
	if status != "" {
		j.Status = status
	}
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// SQLiteJobStore keeps jobs in the database opened by the db package.
// Results are stored as a JSON column and replaced in a single UPDATE.
type SQLiteJobStore struct {
	db *sql.DB
}

func NewSQLiteJobStore(db *sql.DB) *SQLiteJobStore {
	return &SQLiteJobStore{db: db}
}

const jobColumns = `id, status, plan_id, source_url, clip_ids, results, created_at, updated_at`

func (r *SQLiteJobStore) CreateJob(ctx context.Context, j *Job) error {
	clipIDs, err := json.Marshal(nonNilInts(j.ClipIDs))
	if err != nil {
		return fmt.Errorf("marshal clip ids: %w", err)
	}
	results, err := json.Marshal(nonNilResults(j.Results))
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Status, nullString(j.PlanID), nullString(j.SourceURL), string(clipIDs), string(results),
		j.CreatedAt.UTC().Format(time.RFC3339Nano), j.UpdatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (r *SQLiteJobStore) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	return j, err
}

func (r *SQLiteJobStore) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM jobs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *SQLiteJobStore) PublishResults(ctx context.Context, id string, results []ClipResult) error {
	return r.update(ctx, id, "", results)
}

func (r *SQLiteJobStore) CompleteJob(ctx context.Context, id string, results []ClipResult) error {
	return r.update(ctx, id, JobStatusCompleted, results)
}

func (r *SQLiteJobStore) update(ctx context.Context, id, status string, results []ClipResult) error {
	data, err := json.Marshal(nonNilResults(results))
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET results = ?, status = COALESCE(NULLIF(?, ''), status), updated_at = ?
		WHERE id = ?
	`, string(data), status, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// RecoverInterrupted completes jobs left processing by a previous process.
// Clips without a terminal result are marked failed.
func (r *SQLiteJobStore) RecoverInterrupted(ctx context.Context) (int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE status = ?`, JobStatusProcessing)
	if err != nil {
		return 0, err
	}
	var stale []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return 0, err
		}
		stale = append(stale, j)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, j := range stale {
		if err := r.CompleteJob(ctx, j.ID, finalizeResults(j.ClipIDs, j.Results, "interrupted by restart")); err != nil {
			return 0, fmt.Errorf("recover job %s: %w", j.ID, err)
		}
	}
	return len(stale), nil
}

// finalizeResults keeps terminal results in submission order and fails
// every clip that never reached a terminal state.
func finalizeResults(clipIDs []int, results []ClipResult, reason string) []ClipResult {
	byID := make(map[int]ClipResult, len(results))
	for _, res := range results {
		if res.Terminal() {
			byID[res.ClipID] = res
		}
	}
	out := make([]ClipResult, 0, len(clipIDs))
	for _, id := range clipIDs {
		if res, ok := byID[id]; ok {
			out = append(out, res)
		} else {
			out = append(out, failedResult(id, reason))
		}
	}
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var planID, sourceURL sql.NullString
	var clipIDs, results, createdAt, updatedAt string

	if err := row.Scan(&j.ID, &j.Status, &planID, &sourceURL, &clipIDs, &results, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	j.PlanID = planID.String
	j.SourceURL = sourceURL.String
	if err := json.Unmarshal([]byte(clipIDs), &j.ClipIDs); err != nil {
		return nil, fmt.Errorf("parse clip ids for job %s: %w", j.ID, err)
	}
	if err := json.Unmarshal([]byte(results), &j.Results); err != nil {
		return nil, fmt.Errorf("parse results for job %s: %w", j.ID, err)
	}
	j.Results = nonNilResults(j.Results)
	j.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &j, nil
}

func nonNilResults(r []ClipResult) []ClipResult {
	if r == nil {
		return []ClipResult{}
	}
	return r
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
