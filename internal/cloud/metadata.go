package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/heimdex/heimdex-shorts/internal/clips"
	"github.com/kkdai/youtube/v2"
)

const DefaultDataAPIBaseURL = "https://www.googleapis.com"

// APIError is a non-success answer from the metadata API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("metadata request failed: HTTP %d: %s", e.StatusCode, e.Body)
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ExtractVideoID accepts youtube.com/watch?v=ID, youtu.be/ID and
// youtube.com/shorts/ID links.
func ExtractVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty url", ErrUnsupportedURL)
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURL, raw)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	switch host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/shorts/"):
			id = strings.Trim(strings.TrimPrefix(u.Path, "/shorts/"), "/")
		}
	}

	if id == "" || !videoIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURL, raw)
	}
	return id, nil
}

// DataAPIFetcher reads metadata from the platform's keyed data API.
type DataAPIFetcher struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewDataAPIFetcher(baseURL, apiKey string, logger *slog.Logger) *DataAPIFetcher {
	if baseURL == "" {
		baseURL = DefaultDataAPIBaseURL
	}
	return &DataAPIFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

type videoListResponse struct {
	Items []struct {
		Snippet struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Thumbnails  map[string]struct {
				URL string `json:"url"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

func (f *DataAPIFetcher) FetchMetadata(ctx context.Context, videoID string) (clips.SourceMetadata, error) {
	q := url.Values{}
	q.Set("part", "snippet,statistics,contentDetails")
	q.Set("id", videoID)
	q.Set("key", f.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/youtube/v3/videos?"+q.Encode(), nil)
	if err != nil {
		return clips.SourceMetadata{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return clips.SourceMetadata{}, fmt.Errorf("metadata request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return clips.SourceMetadata{}, fmt.Errorf("read metadata response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return clips.SourceMetadata{}, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var list videoListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return clips.SourceMetadata{}, fmt.Errorf("parse metadata response: %w", err)
	}
	if len(list.Items) == 0 {
		return clips.SourceMetadata{}, fmt.Errorf("%w: %s", ErrVideoNotFound, videoID)
	}

	item := list.Items[0]
	duration := item.ContentDetails.Duration
	if duration == "" {
		duration = "PT0S"
	}

	f.logger.Debug("fetched video metadata", "video_id", videoID, "duration", duration)

	return clips.SourceMetadata{
		VideoID:     videoID,
		Title:       item.Snippet.Title,
		Description: item.Snippet.Description,
		Thumbnail:   item.Snippet.Thumbnails["high"].URL,
		Duration:    duration,
	}, nil
}

// InnertubeFetcher reads metadata without an API key.
type InnertubeFetcher struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func NewInnertubeFetcher(logger *slog.Logger) *InnertubeFetcher {
	return &InnertubeFetcher{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

func (f *InnertubeFetcher) FetchMetadata(ctx context.Context, videoID string) (clips.SourceMetadata, error) {
	// youtube.Client mutates itself per request; only the transport is shared.
	client := youtube.Client{HTTPClient: f.httpClient}
	video, err := client.GetVideoContext(ctx, videoID)
	if err != nil {
		var playability *youtube.ErrPlayabiltyStatus
		if errors.As(err, &playability) ||
			errors.Is(err, youtube.ErrVideoPrivate) ||
			errors.Is(err, youtube.ErrVideoIDMinLength) ||
			errors.Is(err, youtube.ErrInvalidCharactersInVideoID) {
			return clips.SourceMetadata{}, fmt.Errorf("%w: %s: %v", ErrVideoNotFound, videoID, err)
		}
		return clips.SourceMetadata{}, fmt.Errorf("fetch video %s: %w", videoID, err)
	}

	f.logger.Debug("fetched video metadata", "video_id", videoID, "duration", video.Duration)

	return clips.SourceMetadata{
		VideoID:     videoID,
		Title:       video.Title,
		Description: video.Description,
		Thumbnail:   largestThumbnail(video.Thumbnails),
		Duration:    clips.FormatISODuration(video.Duration),
	}, nil
}

func largestThumbnail(thumbs youtube.Thumbnails) string {
	best := ""
	var bestWidth uint
	for _, t := range thumbs {
		if best == "" || t.Width > bestWidth {
			best, bestWidth = t.URL, t.Width
		}
	}
	return best
}
