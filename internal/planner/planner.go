// Package planner turns fetched source metadata into a fixed set of short
// clip descriptors: time windows, synthesized titles and descriptions, and
// tag lists.
package planner

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/heimdex/heimdex-shorts/internal/clips"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	ClipsPerPlan   = 3
	windowAttempts = 8

	Reasoning   = "Perfect 60-second segment for YouTube Shorts"
	AspectRatio = "9:16"
)

// Planner is safe for concurrent use. Output is a pure function of the seed
// and the sequence of inputs.
type Planner struct {
	mu    sync.Mutex
	rng   *rand.Rand
	caser cases.Caser
}

// New returns a Planner whose choices are reproducible for a given seed.
func New(seed uint64) *Planner {
	return &Planner{
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		caser: cases.Title(language.Und, cases.NoLower),
	}
}

// NewFromClock seeds a Planner from the wall clock.
func NewFromClock() *Planner {
	return New(uint64(time.Now().UnixNano()))
}

type window struct {
	start, end int
}

func (w window) overlap(o window) int {
	lo := max(w.start, o.start)
	hi := min(w.end, o.end)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// Plan produces exactly ClipsPerPlan descriptors with ids 1..ClipsPerPlan.
func (p *Planner) Plan(meta clips.SourceMetadata) []clips.Descriptor {
	p.mu.Lock()
	defer p.mu.Unlock()

	duration := clips.ParseISODuration(meta.Duration)
	keywords := ExtractKeywords(meta.Title, meta.Description)
	tags := Tags(keywords)

	chosen := make([]window, 0, ClipsPerPlan)
	out := make([]clips.Descriptor, 0, ClipsPerPlan)

	for i := 1; i <= ClipsPerPlan; i++ {
		w := p.pickWindow(duration, chosen)
		chosen = append(chosen, w)

		start := clips.FormatTimestamp(w.start)
		end := clips.FormatTimestamp(w.end)

		out = append(out, clips.Descriptor{
			ID:            i,
			Title:         p.title(meta.Title, i),
			Description:   p.description(meta.Title, meta.Description, start, end),
			StartTime:     start,
			EndTime:       end,
			SuggestedTags: append([]string(nil), tags...),
			Reasoning:     Reasoning,
			AspectRatio:   AspectRatio,
		})
	}

	return out
}

// pickWindow prefers a window that does not overlap any already chosen one.
// When none is found within windowAttempts the least-overlapping candidate wins.
func (p *Planner) pickWindow(duration int, chosen []window) window {
	if duration <= 0 {
		// Unknown length: plan the leading segment.
		return window{start: 0, end: clips.MaxShortSeconds}
	}

	maxStart := max(0, duration-clips.MaxShortSeconds)

	var best window
	bestOverlap := -1
	for attempt := 0; attempt < windowAttempts; attempt++ {
		start := 0
		if maxStart > 0 {
			start = p.rng.IntN(maxStart + 1)
		}
		w := window{start: start, end: min(start+clips.MaxShortSeconds, duration)}

		total := 0
		for _, c := range chosen {
			total += w.overlap(c)
		}
		if bestOverlap < 0 || total < bestOverlap {
			best, bestOverlap = w, total
		}
		if total == 0 || maxStart == 0 {
			break
		}
	}
	return best
}
