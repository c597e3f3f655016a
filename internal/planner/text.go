package planner

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

const (
	MaxTitleRunes       = 60
	MaxDescriptionRunes = 5000
	MaxKeywords         = 10
	MaxKeywordTags      = 5
	previewRunes        = 100
)

var BaseTags = []string{"shorts", "viral", "trending", "youtubeshorts", "clip"}

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
}

// ExtractKeywords returns up to MaxKeywords distinct words from the title and
// description, in order of first appearance.
func ExtractKeywords(title, description string) []string {
	text := strings.ToLower(title + " " + description)
	text = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return r
	}, text)

	seen := make(map[string]struct{})
	var keywords []string
	for _, word := range strings.Fields(text) {
		if utf8.RuneCountInString(word) <= 2 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		keywords = append(keywords, word)
		if len(keywords) == MaxKeywords {
			break
		}
	}
	return keywords
}

// Tags merges the base tags with the first MaxKeywordTags keywords.
func Tags(keywords []string) []string {
	n := min(len(keywords), MaxKeywordTags)
	tags := make([]string, 0, len(BaseTags)+n)
	tags = append(tags, BaseTags...)
	return append(tags, keywords[:n]...)
}

func titleWords(caser cases.Caser, title string) []string {
	var words []string
	for _, w := range strings.Fields(title) {
		if utf8.RuneCountInString(w) > 3 {
			words = append(words, caser.String(w))
			if len(words) == 3 {
				break
			}
		}
	}
	if len(words) == 0 {
		words = []string{"Epic"}
	}
	return words
}

func (p *Planner) title(original string, n int) string {
	words := titleWords(p.caser, original)
	joined := strings.Join(words, " ")
	templates := []string{
		fmt.Sprintf("%s - Part %d", joined, n),
		fmt.Sprintf("Best of %s #%d", joined, n),
		fmt.Sprintf("%s Moment #%d", words[0], n),
		fmt.Sprintf("Viral %s Clip", strings.Join(words[:min(2, len(words))], " ")),
		fmt.Sprintf("%s Highlights #%d", joined, n),
	}
	return SanitizeText(templates[p.rng.IntN(len(templates))], MaxTitleRunes)
}

func (p *Planner) description(title, description, start, end string) string {
	preview := description
	if utf8.RuneCountInString(description) > previewRunes {
		preview = string([]rune(description)[:previewRunes]) + "..."
	}

	templates := []string{
		fmt.Sprintf("🔥 Best moment from '%s' (%s-%s)\n\n%s\n\n#Shorts #Viral #Trending", title, start, end, preview),
		fmt.Sprintf("⚡ Epic highlight from the full video!\n\nOriginal: %s\nTimestamp: %s-%s\n\n%s\n\n#YouTubeShorts #Clip", title, start, end, preview),
		fmt.Sprintf("🎯 Don't miss this moment from '%s'\n\n⏰ %s-%s\n\n%s\n\n#Shorts #MustWatch", title, start, end, preview),
		fmt.Sprintf("💥 Viral moment alert! From '%s'\n\nFull video timestamp: %s-%s\n\n%s\n\n#Viral #Shorts", title, start, end, preview),
	}
	return truncateRunes(templates[p.rng.IntN(len(templates))], MaxDescriptionRunes)
}

func truncateRunes(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return s
}
