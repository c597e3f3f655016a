// Package clips defines the shared clip domain types: the planned clip
// descriptor, the stored source record, the storage key and the produced
// artifact.
package clips

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MaxShortSeconds is the platform's maximum short-form duration.
const MaxShortSeconds = 60

// SharedPlan is the namespace used when a caller does not supply a plan id.
const SharedPlan = ""

// Descriptor is one planned clip as exchanged with clients.
type Descriptor struct {
	ID            int      `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	StartTime     string   `json:"startTime"`
	EndTime       string   `json:"endTime"`
	SuggestedTags []string `json:"suggestedTags"`
	Reasoning     string   `json:"reasoning,omitempty"`
	AspectRatio   string   `json:"aspect_ratio,omitempty"`
}

// Record is the Clip Store entry describing where a clip comes from.
type Record struct {
	SourceURL    string
	StartSeconds int
	EndSeconds   int
	Title        string
}

// Duration returns the extraction length, clamped to MaxShortSeconds.
// Inverted or malformed ranges yield zero.
func (r Record) Duration() int {
	d := r.EndSeconds - r.StartSeconds
	if d < 0 {
		return 0
	}
	if d > MaxShortSeconds {
		return MaxShortSeconds
	}
	return d
}

// RecordFromDescriptor builds a Record for sourceURL from a descriptor's
// timestamps. Malformed timestamps become zero offsets.
func RecordFromDescriptor(sourceURL string, d Descriptor) Record {
	return Record{
		SourceURL:    sourceURL,
		StartSeconds: Seconds(d.StartTime),
		EndSeconds:   Seconds(d.EndTime),
		Title:        d.Title,
	}
}

// Key addresses a clip in the Clip Store and on disk.
type Key struct {
	Plan string
	Clip int
}

func (k Key) String() string {
	if k.Plan == SharedPlan {
		return fmt.Sprintf("clip_%d", k.Clip)
	}
	return fmt.Sprintf("%s/clip_%d", k.Plan, k.Clip)
}

// Artifact is a produced clip file. Ext is authoritative over the requested
// media type: placeholder artifacts carry ".txt".
type Artifact struct {
	Path        string
	Ext         string
	Placeholder bool
	Size        int64
}

// Filename returns the download name clip_<id>.<ext>.
func (a Artifact) Filename(clipID int) string {
	return fmt.Sprintf("clip_%d.%s", clipID, strings.TrimPrefix(a.Ext, "."))
}

// ContentType returns the media type used for uploads and downloads.
func (a Artifact) ContentType() string {
	if a.Placeholder {
		return "text/plain"
	}
	return "video/mp4"
}

// SourceMetadata is what the metadata fetcher reports about a source video.
type SourceMetadata struct {
	VideoID     string `json:"video_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Thumbnail   string `json:"thumbnail"`
	Duration    string `json:"duration"`
}

// ValidatePlan accepts the shared namespace or a UUID plan id. Plan ids
// become directory names, so anything else is rejected.
func ValidatePlan(plan string) error {
	if plan == SharedPlan {
		return nil
	}
	id, err := uuid.Parse(plan)
	if err != nil || id.String() != plan {
		return fmt.Errorf("invalid plan id %q", plan)
	}
	return nil
}
