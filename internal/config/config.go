// Package config provides configuration management for the shorts service.
// Values come from built-in defaults, then an optional TOML file, then
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	// Default values
	DefaultHost              = "127.0.0.1"
	DefaultPort              = 8787
	DefaultLogLevel          = "info"
	DefaultDataDir           = ".heimdex-shorts"
	DefaultMaxConcurrentJobs = 3
	DefaultJobTimeout        = 30 * time.Minute
	DefaultPacingDelay       = time.Second
	DefaultDownloadTimeout   = 10 * time.Minute
	DefaultTranscodeTimeout  = 10 * time.Minute
	DefaultFFmpegPath        = "ffmpeg"
	DefaultYtDlpPath         = "yt-dlp"
	DefaultJobStore          = JobStoreMemory

	JobStoreMemory = "memory"
	JobStoreSQLite = "sqlite"

	// Environment variable names
	EnvConfigFile        = "SHORTS_CONFIG"
	EnvHost              = "SHORTS_HOST"
	EnvPort              = "SHORTS_PORT"
	EnvLogLevel          = "SHORTS_LOG_LEVEL"
	EnvDataDir           = "SHORTS_DATA_DIR"
	EnvYouTubeAPIKey     = "YOUTUBE_API_KEY"
	EnvMaxConcurrentJobs = "SHORTS_MAX_CONCURRENT_JOBS"
	EnvJobTimeout        = "SHORTS_JOB_TIMEOUT"
	EnvPacingDelay       = "SHORTS_PACING_DELAY"
	EnvDownloadTimeout   = "SHORTS_DOWNLOAD_TIMEOUT"
	EnvTranscodeTimeout  = "SHORTS_TRANSCODE_TIMEOUT"
	EnvFFmpegPath        = "SHORTS_FFMPEG"
	EnvYtDlpPath         = "SHORTS_YTDLP"
	EnvJobStore          = "SHORTS_JOB_STORE"
	EnvDBPath            = "SHORTS_DB_PATH"
	EnvAllowedOrigins    = "SHORTS_ALLOWED_ORIGINS"
	EnvMetadataBaseURL   = "SHORTS_METADATA_BASE_URL"
	EnvUploadBaseURL     = "SHORTS_UPLOAD_BASE_URL"

	ClipsDirname = "clips"
)

// Config defines the application configuration interface
type Config interface {
	Host() string
	Port() int
	LogLevel() string
	DataDir() string
	ClipsDir() string
	YouTubeAPIKey() string
	MetadataBaseURL() string
	UploadBaseURL() string
	MaxConcurrentJobs() int
	JobTimeout() time.Duration
	PacingDelay() time.Duration
	DownloadTimeout() time.Duration
	TranscodeTimeout() time.Duration
	FFmpegPath() string
	YtDlpPath() string
	JobStore() string
	DBPath() string
	AllowedOrigins() []string
}

// fileConfig mirrors the TOML file. Durations are strings such as "30m".
type fileConfig struct {
	Host              string   `toml:"host"`
	Port              int      `toml:"port"`
	LogLevel          string   `toml:"log_level"`
	DataDir           string   `toml:"data_dir"`
	YouTubeAPIKey     string   `toml:"youtube_api_key"`
	MaxConcurrentJobs int      `toml:"max_concurrent_jobs"`
	JobTimeout        string   `toml:"job_timeout"`
	PacingDelay       string   `toml:"pacing_delay"`
	DownloadTimeout   string   `toml:"download_timeout"`
	TranscodeTimeout  string   `toml:"transcode_timeout"`
	FFmpegPath        string   `toml:"ffmpeg_path"`
	YtDlpPath         string   `toml:"ytdlp_path"`
	JobStore          string   `toml:"job_store"`
	DBPath            string   `toml:"db_path"`
	AllowedOrigins    []string `toml:"allowed_origins"`
	MetadataBaseURL   string   `toml:"metadata_base_url"`
	UploadBaseURL     string   `toml:"upload_base_url"`
}

// EnvConfig holds the resolved configuration.
type EnvConfig struct {
	host              string
	port              int
	logLevel          string
	dataDir           string
	youtubeAPIKey     string
	metadataBaseURL   string
	uploadBaseURL     string
	maxConcurrentJobs int
	jobTimeout        time.Duration
	pacingDelay       time.Duration
	downloadTimeout   time.Duration
	transcodeTimeout  time.Duration
	ffmpegPath        string
	ytdlpPath         string
	jobStore          string
	dbPath            string
	allowedOrigins    []string
}

// New loads the file named by SHORTS_CONFIG (if any) and applies environment
// overrides.
func New() (*EnvConfig, error) {
	return Load(os.Getenv(EnvConfigFile))
}

// Load applies defaults, then the TOML file at path (a missing file is not an
// error), then environment variables.
func Load(path string) (*EnvConfig, error) {
	cfg := &EnvConfig{
		host:              DefaultHost,
		port:              DefaultPort,
		logLevel:          DefaultLogLevel,
		dataDir:           defaultDataDir(),
		maxConcurrentJobs: DefaultMaxConcurrentJobs,
		jobTimeout:        DefaultJobTimeout,
		pacingDelay:       DefaultPacingDelay,
		downloadTimeout:   DefaultDownloadTimeout,
		transcodeTimeout:  DefaultTranscodeTimeout,
		ffmpegPath:        DefaultFFmpegPath,
		ytdlpPath:         DefaultYtDlpPath,
		jobStore:          DefaultJobStore,
	}

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *EnvConfig) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	setString(&c.host, fc.Host)
	setString(&c.logLevel, fc.LogLevel)
	setString(&c.dataDir, fc.DataDir)
	setString(&c.youtubeAPIKey, fc.YouTubeAPIKey)
	setString(&c.ffmpegPath, fc.FFmpegPath)
	setString(&c.ytdlpPath, fc.YtDlpPath)
	setString(&c.jobStore, fc.JobStore)
	setString(&c.dbPath, fc.DBPath)
	setString(&c.metadataBaseURL, fc.MetadataBaseURL)
	setString(&c.uploadBaseURL, fc.UploadBaseURL)
	if fc.Port != 0 {
		c.port = fc.Port
	}
	if fc.MaxConcurrentJobs != 0 {
		c.maxConcurrentJobs = fc.MaxConcurrentJobs
	}
	if len(fc.AllowedOrigins) > 0 {
		c.allowedOrigins = fc.AllowedOrigins
	}

	durations := []struct {
		key string
		val string
		dst *time.Duration
	}{
		{"job_timeout", fc.JobTimeout, &c.jobTimeout},
		{"pacing_delay", fc.PacingDelay, &c.pacingDelay},
		{"download_timeout", fc.DownloadTimeout, &c.downloadTimeout},
		{"transcode_timeout", fc.TranscodeTimeout, &c.transcodeTimeout},
	}
	for _, d := range durations {
		if d.val == "" {
			continue
		}
		v, err := time.ParseDuration(d.val)
		if err != nil {
			return fmt.Errorf("invalid %s in config: %w", d.key, err)
		}
		*d.dst = v
	}

	return nil
}

func (c *EnvConfig) applyEnv() error {
	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		c.port = port
	}

	if n := os.Getenv(EnvMaxConcurrentJobs); n != "" {
		v, err := strconv.Atoi(n)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMaxConcurrentJobs, err)
		}
		c.maxConcurrentJobs = v
	}

	setString(&c.host, os.Getenv(EnvHost))
	setString(&c.logLevel, os.Getenv(EnvLogLevel))
	setString(&c.dataDir, os.Getenv(EnvDataDir))
	setString(&c.youtubeAPIKey, os.Getenv(EnvYouTubeAPIKey))
	setString(&c.ffmpegPath, os.Getenv(EnvFFmpegPath))
	setString(&c.ytdlpPath, os.Getenv(EnvYtDlpPath))
	setString(&c.jobStore, os.Getenv(EnvJobStore))
	setString(&c.dbPath, os.Getenv(EnvDBPath))
	setString(&c.metadataBaseURL, os.Getenv(EnvMetadataBaseURL))
	setString(&c.uploadBaseURL, os.Getenv(EnvUploadBaseURL))

	if origins := os.Getenv(EnvAllowedOrigins); origins != "" {
		c.allowedOrigins = splitList(origins)
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{EnvJobTimeout, &c.jobTimeout},
		{EnvPacingDelay, &c.pacingDelay},
		{EnvDownloadTimeout, &c.downloadTimeout},
		{EnvTranscodeTimeout, &c.transcodeTimeout},
	}
	for _, d := range durations {
		raw := os.Getenv(d.env)
		if raw == "" {
			continue
		}
		v, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.env, err)
		}
		*d.dst = v
	}

	return nil
}

func (c *EnvConfig) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port %d: port must be between 1 and 65535", c.port)
	}
	if c.maxConcurrentJobs < 1 {
		return fmt.Errorf("invalid max_concurrent_jobs %d: must be at least 1", c.maxConcurrentJobs)
	}
	if c.jobTimeout <= 0 {
		return fmt.Errorf("invalid job_timeout %s: must be positive", c.jobTimeout)
	}
	if c.pacingDelay < 0 {
		return fmt.Errorf("invalid pacing_delay %s: must not be negative", c.pacingDelay)
	}
	switch c.jobStore {
	case JobStoreMemory, JobStoreSQLite:
	default:
		return fmt.Errorf("invalid job_store %q: must be %q or %q", c.jobStore, JobStoreMemory, JobStoreSQLite)
	}
	return nil
}

func (c *EnvConfig) Host() string {
	return c.host
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// ClipsDir returns the directory produced clips are written to
func (c *EnvConfig) ClipsDir() string {
	return filepath.Join(c.dataDir, ClipsDirname)
}

// YouTubeAPIKey returns the data API key; empty selects the keyless client
func (c *EnvConfig) YouTubeAPIKey() string {
	return c.youtubeAPIKey
}

func (c *EnvConfig) MetadataBaseURL() string {
	return c.metadataBaseURL
}

func (c *EnvConfig) UploadBaseURL() string {
	return c.uploadBaseURL
}

func (c *EnvConfig) MaxConcurrentJobs() int {
	return c.maxConcurrentJobs
}

func (c *EnvConfig) JobTimeout() time.Duration {
	return c.jobTimeout
}

func (c *EnvConfig) PacingDelay() time.Duration {
	return c.pacingDelay
}

func (c *EnvConfig) DownloadTimeout() time.Duration {
	return c.downloadTimeout
}

func (c *EnvConfig) TranscodeTimeout() time.Duration {
	return c.transcodeTimeout
}

func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

func (c *EnvConfig) YtDlpPath() string {
	return c.ytdlpPath
}

// JobStore returns "memory" or "sqlite"
func (c *EnvConfig) JobStore() string {
	return c.jobStore
}

// DBPath returns the SQLite file for the sqlite job store; empty means a
// process-lifetime in-memory database
func (c *EnvConfig) DBPath() string {
	return c.dbPath
}

func (c *EnvConfig) AllowedOrigins() []string {
	return c.allowedOrigins
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
