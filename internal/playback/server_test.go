package playback

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/heimdex/heimdex-shorts/internal/clips"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeArtifact(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}
	return path
}

func TestServeArtifact_Attachment(t *testing.T) {
	path := writeArtifact(t, "clip_2.mp4", "0123456789")
	s := NewServer(testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/download/2", nil)
	rec := httptest.NewRecorder()
	if err := s.ServeArtifact(rec, req, 2, clips.Artifact{Path: path, Ext: "mp4"}); err != nil {
		t.Fatalf("ServeArtifact() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "video/mp4" {
		t.Errorf("Content-Type = %s, want video/mp4", got)
	}
	if got := rec.Header().Get("Content-Disposition"); got != "attachment; filename=clip_2.mp4" {
		t.Errorf("Content-Disposition = %s", got)
	}
	if rec.Body.String() != "0123456789" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestServeArtifact_Placeholder(t *testing.T) {
	path := writeArtifact(t, "clip_7.txt", "Sample clip 7")
	s := NewServer(testLogger())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/download/7", nil)
	if err := s.ServeArtifact(rec, req, 7, clips.Artifact{Path: path, Ext: "txt", Placeholder: true}); err != nil {
		t.Fatalf("ServeArtifact() error = %v", err)
	}

	if got := rec.Header().Get("Content-Disposition"); got != "attachment; filename=clip_7.txt" {
		t.Errorf("Content-Disposition = %s", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/plain" {
		t.Errorf("Content-Type = %s", got)
	}
}

func TestServeArtifact_Range(t *testing.T) {
	path := writeArtifact(t, "clip_1.mp4", "0123456789")
	s := NewServer(testLogger())

	tests := []struct {
		name       string
		rangeHdr   string
		wantStatus int
		wantBody   string
		wantRange  string
	}{
		{"first bytes", "bytes=0-3", http.StatusPartialContent, "0123", "bytes 0-3/10"},
		{"open ended", "bytes=6-", http.StatusPartialContent, "6789", "bytes 6-9/10"},
		{"suffix", "bytes=-2", http.StatusPartialContent, "89", "bytes 8-9/10"},
		{"unsatisfiable", "bytes=20-30", http.StatusRequestedRangeNotSatisfiable, "", "bytes */10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/download/1", nil)
			req.Header.Set("Range", tt.rangeHdr)
			rec := httptest.NewRecorder()

			if err := s.ServeArtifact(rec, req, 1, clips.Artifact{Path: path, Ext: "mp4"}); err != nil {
				t.Fatalf("ServeArtifact() error = %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Content-Range"); got != tt.wantRange {
				t.Errorf("Content-Range = %s, want %s", got, tt.wantRange)
			}
			if tt.wantBody != "" {
				body, _ := io.ReadAll(rec.Body)
				if string(body) != tt.wantBody {
					t.Errorf("body = %q, want %q", body, tt.wantBody)
				}
			}
		})
	}
}

func TestServeArtifact_Missing(t *testing.T) {
	s := NewServer(testLogger())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/download/1", nil)

	err := s.ServeArtifact(rec, req, 1, clips.Artifact{Path: filepath.Join(t.TempDir(), "gone.mp4"), Ext: "mp4"})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ServeArtifact() error = %v, want os.ErrNotExist", err)
	}
	if rec.Body.Len() != 0 {
		t.Error("body written for missing artifact")
	}
}
