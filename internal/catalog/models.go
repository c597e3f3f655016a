package catalog

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"

	ClipStatusDownloading = "downloading"
	ClipStatusProcessing  = "processing"
	ClipStatusUploading   = "uploading"
	ClipStatusCompleted   = "completed"
	ClipStatusFailed      = "failed"

	ProgressDownloading = 25
	ProgressProcessing  = 50
	ProgressUploading   = 75
	ProgressDone        = 100
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrJobNotFound  = errors.New("job not found")
	ErrClipNotFound = errors.New("clip not found")
	ErrUpstream     = errors.New("upstream request failed")
)

// ClipResult is one clip's progress within a job.
type ClipResult struct {
	ClipID       int    `json:"id"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	PublishedURL string `json:"youtube_url,omitempty"`
	Message      string `json:"message,omitempty"`
	Error        string `json:"error,omitempty"`
}

func (r ClipResult) Terminal() bool {
	return r.Status == ClipStatusCompleted || r.Status == ClipStatusFailed
}

// Job tracks one submission. Results is replaced wholesale on every stage
// transition; readers always get a copy.
type Job struct {
	ID        string       `json:"id"`
	Status    string       `json:"status"`
	PlanID    string       `json:"plan_id,omitempty"`
	SourceURL string       `json:"source_url,omitempty"`
	ClipIDs   []int        `json:"clip_ids"`
	Results   []ClipResult `json:"results"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (j *Job) clone() *Job {
	c := *j
	c.ClipIDs = append([]int(nil), j.ClipIDs...)
	c.Results = append([]ClipResult{}, j.Results...)
	return &c
}

// Done reports whether the pipeline for this job has finished.
func (j *Job) Done() bool {
	return j.Status == JobStatusCompleted
}

func NewID() string {
	return uuid.NewString()
}

func failedResult(clipID int, msg string) ClipResult {
	return ClipResult{ClipID: clipID, Status: ClipStatusFailed, Progress: ProgressDone, Error: msg}
}
