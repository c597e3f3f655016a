package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/heimdex/heimdex-shorts/internal/logging"
)

const (
	DefaultUploadBaseURL = "https://www.googleapis.com"
	ShortsURLPrefix      = "https://youtube.com/shorts/"
	SuccessMessage       = "Successfully uploaded to YouTube"

	uploadPath     = "/upload/youtube/v3/videos?part=snippet,status&uploadType=multipart"
	categoryPeople = "22"
)

// UploadError is a non-success answer from the platform, kept verbatim.
type UploadError struct {
	StatusCode int
	Body       string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed: %d - %s", e.StatusCode, e.Body)
}

// HTTPClient uploads clips with a single multipart request per clip.
type HTTPClient struct {
	baseURL    string
	artifacts  ArtifactLookup
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL string, artifacts ArtifactLookup, logger *slog.Logger) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultUploadBaseURL
	}
	return &HTTPClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		artifacts: artifacts,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
		logger: logger,
	}
}

type videoResource struct {
	Snippet videoSnippet `json:"snippet"`
	Status  videoStatus  `json:"status"`
}

type videoSnippet struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	CategoryID  string   `json:"categoryId"`
}

type videoStatus struct {
	PrivacyStatus           string `json:"privacyStatus"`
	SelfDeclaredMadeForKids bool   `json:"selfDeclaredMadeForKids"`
}

type uploadResponse struct {
	ID string `json:"id"`
}

// Upload sends the clip's artifact with its metadata. There is no retry: the
// first failure is returned to the caller.
func (c *HTTPClient) Upload(ctx context.Context, req UploadRequest) (Published, error) {
	if strings.TrimSpace(req.Credential) == "" {
		return Published{}, ErrMissingCredential
	}

	artifact, ok := c.artifacts.Artifact(req.Key)
	if !ok {
		return Published{}, ErrMissingArtifact
	}

	file, err := os.Open(artifact.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Published{}, ErrMissingArtifact
		}
		return Published{}, fmt.Errorf("open clip file: %w", err)
	}

	metadata, err := json.Marshal(videoResource{
		Snippet: videoSnippet{
			Title:       req.Title,
			Description: req.Description,
			Tags:        req.Tags,
			CategoryID:  categoryPeople,
		},
		Status: videoStatus{PrivacyStatus: "public"},
	})
	if err != nil {
		file.Close()
		return Published{}, fmt.Errorf("marshal video metadata: %w", err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer file.Close()
		pw.CloseWithError(writeMultipart(mw, metadata, artifact.ContentType(), file))
	}()

	// The writer goroutine owns the file; wait for it on every path so the
	// handle is released before Upload returns.
	defer func() {
		pr.Close()
		<-done
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, pr)
	if err != nil {
		return Published{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.Credential)
	httpReq.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())

	c.logger.Info("uploading clip",
		"clip", req.Key.String(),
		"size", humanize.Bytes(uint64(artifact.Size)),
		"placeholder", artifact.Placeholder,
		"token", logging.SanitizeToken(req.Credential),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Published{}, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		return Published{}, &UploadError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result uploadResponse
	if err := json.Unmarshal(respBody, &result); err != nil || result.ID == "" {
		return Published{}, &UploadError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	c.logger.Info("clip uploaded", "clip", req.Key.String(), "video_id", result.ID)

	return Published{
		VideoID: result.ID,
		URL:     ShortsURLPrefix + result.ID,
		Message: SuccessMessage,
	}, nil
}

func writeMultipart(mw *multipart.Writer, metadata []byte, contentType string, media io.Reader) error {
	meta, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"application/json; charset=UTF-8"},
	})
	if err != nil {
		return err
	}
	if _, err := meta.Write(metadata); err != nil {
		return err
	}

	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {contentType},
	})
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, media); err != nil {
		return err
	}
	return mw.Close()
}
