// Package playback streams produced clip artifacts to HTTP clients.
package playback

import (
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/heimdex/heimdex-shorts/internal/clips"
)

type ArtifactServer interface {
	ServeArtifact(w http.ResponseWriter, r *http.Request, clipID int, a clips.Artifact) error
}

type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	return &Server{logger: logger}
}

// ServeArtifact sends a as a download named clip_<id>.<ext>. Range and
// conditional requests are honoured. A missing file is returned as an error
// wrapping os.ErrNotExist before anything is written.
func (s *Server) ServeArtifact(w http.ResponseWriter, r *http.Request, clipID int, a clips.Artifact) error {
	file, err := os.Open(a.Path)
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat artifact: %w", err)
	}

	name := a.Filename(clipID)
	w.Header().Set("Content-Type", a.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))

	s.logger.Debug("serving artifact",
		"file", name,
		"size", humanize.Bytes(uint64(stat.Size())),
		"range", r.Header.Get("Range"),
	)

	http.ServeContent(w, r, name, stat.ModTime(), file)
	return nil
}
