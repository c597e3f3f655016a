package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		EnvConfigFile, EnvHost, EnvPort, EnvLogLevel, EnvDataDir, EnvYouTubeAPIKey,
		EnvMaxConcurrentJobs, EnvJobTimeout, EnvPacingDelay, EnvDownloadTimeout,
		EnvTranscodeTimeout, EnvFFmpegPath, EnvYtDlpPath, EnvJobStore, EnvDBPath,
		EnvAllowedOrigins, EnvMetadataBaseURL, EnvUploadBaseURL,
	} {
		t.Setenv(k, "")
	}
}

func TestNew_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port(), DefaultPort)
	}
	if cfg.Host() != DefaultHost {
		t.Errorf("Host = %q, want %q", cfg.Host(), DefaultHost)
	}
	if cfg.MaxConcurrentJobs() != 3 {
		t.Errorf("MaxConcurrentJobs = %d, want 3", cfg.MaxConcurrentJobs())
	}
	if cfg.PacingDelay() != time.Second {
		t.Errorf("PacingDelay = %v, want 1s", cfg.PacingDelay())
	}
	if cfg.JobStore() != JobStoreMemory {
		t.Errorf("JobStore = %q, want memory", cfg.JobStore())
	}
	if cfg.YouTubeAPIKey() != "" {
		t.Errorf("YouTubeAPIKey = %q, want empty", cfg.YouTubeAPIKey())
	}
	if filepath.Base(cfg.ClipsDir()) != ClipsDirname {
		t.Errorf("ClipsDir = %q", cfg.ClipsDir())
	}
}

func TestNew_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPort, "9000")
	t.Setenv(EnvYouTubeAPIKey, "api-key")
	t.Setenv(EnvJobTimeout, "5m")
	t.Setenv(EnvPacingDelay, "0s")
	t.Setenv(EnvJobStore, "sqlite")
	t.Setenv(EnvAllowedOrigins, "http://localhost:3000, https://app.example.com")
	t.Setenv(EnvDataDir, "/tmp/shorts-data")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port())
	}
	if cfg.YouTubeAPIKey() != "api-key" {
		t.Errorf("YouTubeAPIKey = %q", cfg.YouTubeAPIKey())
	}
	if cfg.JobTimeout() != 5*time.Minute {
		t.Errorf("JobTimeout = %v, want 5m", cfg.JobTimeout())
	}
	if cfg.PacingDelay() != 0 {
		t.Errorf("PacingDelay = %v, want 0", cfg.PacingDelay())
	}
	if cfg.JobStore() != JobStoreSQLite {
		t.Errorf("JobStore = %q, want sqlite", cfg.JobStore())
	}
	want := []string{"http://localhost:3000", "https://app.example.com"}
	if !reflect.DeepEqual(cfg.AllowedOrigins(), want) {
		t.Errorf("AllowedOrigins = %v, want %v", cfg.AllowedOrigins(), want)
	}
	if cfg.ClipsDir() != filepath.Join("/tmp/shorts-data", "clips") {
		t.Errorf("ClipsDir = %q", cfg.ClipsDir())
	}
}

func TestNew_InvalidValues(t *testing.T) {
	tests := []struct {
		env, value string
	}{
		{EnvPort, "abc"},
		{EnvPort, "70000"},
		{EnvMaxConcurrentJobs, "0"},
		{EnvJobTimeout, "soon"},
		{EnvJobStore, "postgres"},
	}
	for _, tt := range tests {
		t.Run(tt.env+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.env, tt.value)
			if _, err := New(); err == nil {
				t.Errorf("expected error for %s=%q", tt.env, tt.value)
			}
		})
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "shorts.toml")
	content := strings.Join([]string{
		`port = 7000`,
		`log_level = "debug"`,
		`max_concurrent_jobs = 5`,
		`job_timeout = "45m"`,
		`ffmpeg_path = "/opt/ffmpeg"`,
		`allowed_origins = ["*"]`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 7000 {
		t.Errorf("Port = %d, want 7000", cfg.Port())
	}
	if cfg.LogLevel() != "warn" {
		t.Errorf("LogLevel = %q, env should win over file", cfg.LogLevel())
	}
	if cfg.MaxConcurrentJobs() != 5 {
		t.Errorf("MaxConcurrentJobs = %d, want 5", cfg.MaxConcurrentJobs())
	}
	if cfg.JobTimeout() != 45*time.Minute {
		t.Errorf("JobTimeout = %v, want 45m", cfg.JobTimeout())
	}
	if cfg.FFmpegPath() != "/opt/ffmpeg" {
		t.Errorf("FFmpegPath = %q", cfg.FFmpegPath())
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins(), []string{"*"}) {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins())
	}
}

func TestLoad_MissingFileIsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port(), DefaultPort)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.toml")
	os.WriteFile(path, []byte("port = \"not a number\""), 0644)
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}
