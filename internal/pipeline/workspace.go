package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
	"github.com/heimdex/heimdex-shorts/internal/clips"
)

const (
	sharedDir    = "shared"
	lockFilename = ".lock"
)

var ErrWorkspaceLocked = errors.New("clips workspace is in use by another process")

// Workspace owns the on-disk clip namespace:
//
//	<base>/<plan or "shared">/clip_<id>.<ext>
//	<base>/<plan or "shared">/temp_video_<id>.mp4
type Workspace struct {
	base string
	lock *flock.Flock
}

func NewWorkspace(base string) (*Workspace, error) {
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, fmt.Errorf("failed to create clips dir: %w", err)
	}
	return &Workspace{
		base: base,
		lock: flock.New(filepath.Join(base, lockFilename)),
	}, nil
}

func (w *Workspace) Base() string {
	return w.base
}

// Lock takes an exclusive, non-blocking lock on the workspace.
func (w *Workspace) Lock() error {
	ok, err := w.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire workspace lock: %w", err)
	}
	if !ok {
		return ErrWorkspaceLocked
	}
	return nil
}

func (w *Workspace) Unlock() error {
	return w.lock.Unlock()
}

func (w *Workspace) Dir(plan string) string {
	if plan == clips.SharedPlan {
		return filepath.Join(w.base, sharedDir)
	}
	return filepath.Join(w.base, plan)
}

func (w *Workspace) ClipPath(key clips.Key, ext string) string {
	return filepath.Join(w.Dir(key.Plan), "clip_"+strconv.Itoa(key.Clip)+"."+ext)
}

func (w *Workspace) RawPath(key clips.Key) string {
	return filepath.Join(w.Dir(key.Plan), "temp_video_"+strconv.Itoa(key.Clip)+".mp4")
}

func (w *Workspace) prepare(key clips.Key) error {
	if err := clips.ValidatePlan(key.Plan); err != nil {
		return err
	}
	if err := os.MkdirAll(w.Dir(key.Plan), 0755); err != nil {
		return fmt.Errorf("failed to create clip dir: %w", err)
	}
	return nil
}

func statArtifact(path, ext string) (clips.Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return clips.Artifact{}, err
	}
	if info.IsDir() || info.Size() == 0 {
		return clips.Artifact{}, ErrEmptyOutput
	}
	return clips.Artifact{
		Path:        path,
		Ext:         ext,
		Placeholder: ext == extPlaceholder,
		Size:        info.Size(),
	}, nil
}
