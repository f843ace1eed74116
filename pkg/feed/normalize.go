package feed

import (
	"crypto/sha1" //nolint:gosec // non-cryptographic id generation
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/Adda-Baaj/akhbar/internal/domain"
)

// tagPattern is a plain tag strip, not an HTML parser. Malformed markup may leak through.
var tagPattern = regexp.MustCompile(`<[^>]+>`)

// StripTags removes anything shaped like <tag>.
func StripTags(s string) string {
	return tagPattern.ReplaceAllString(s, "")
}

// Truncate caps s at limit characters (runes).
func Truncate(s string, limit int) string {
	if limit < 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// Text returns the entry's title and description with markup stripped and whitespace trimmed.
// The description is not length-capped here so classification sees the full text.
func Text(e Entry) (title, description string) {
	return strings.TrimSpace(StripTags(e.Title)), strings.TrimSpace(StripTags(e.Summary))
}

// Attribution carries the per-source and per-classification fields of a headline.
type Attribution struct {
	Source         string
	Website        string
	Category       string
	IsBreaking     bool
	DescriptionCap int
}

// Clock returns the current time.
type Clock func() time.Time

// Normalizer turns entries into headlines. Entries without a usable timestamp
// are stamped with the clock's time at processing.
type Normalizer struct {
	now Clock
}

// NewNormalizer builds a Normalizer; a nil clock uses time.Now.
func NewNormalizer(now Clock) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{now: now}
}

// Now reports the normalizer's current time.
func (n *Normalizer) Now() time.Time { return n.now() }

// ResolveTimestamp picks published, then updated, then now.
func (n *Normalizer) ResolveTimestamp(e Entry) time.Time {
	if e.Published != nil && !e.Published.IsZero() {
		return *e.Published
	}
	if e.Updated != nil && !e.Updated.IsZero() {
		return *e.Updated
	}
	return n.now()
}

// Headline builds the normalized headline for an entry whose text was produced by Text.
func (n *Normalizer) Headline(e Entry, title, description string, a Attribution) domain.Headline {
	capped := description
	if a.DescriptionCap > 0 {
		capped = strings.TrimSpace(Truncate(description, a.DescriptionCap))
	}

	return domain.Headline{
		ID:          HeadlineID(e.Link, a.Source, title),
		Title:       title,
		Description: capped,
		Source:      a.Source,
		PublishedAt: n.ResolveTimestamp(e),
		Category:    a.Category,
		IsBreaking:  a.IsBreaking,
		URL:         e.Link,
		ImageURL:    e.ImageURL(),
		Website:     a.Website,
	}
}

// nonWord matches anything that is not a letter, digit, underscore or whitespace.
var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// TitleKey is the lowercased title with punctuation removed. Whitespace is kept as is.
func TitleKey(title string) string {
	return nonWord.ReplaceAllString(strings.ToLower(title), "")
}

// HeadlineID derives a stable id from the article link. Linkless entries are
// keyed by source and TitleKey so repeated refreshes agree on the id.
func HeadlineID(link, source, title string) string {
	key := strings.TrimSpace(link)
	if key == "" {
		key = source + "\n" + TitleKey(title)
	}
	sum := sha1.Sum([]byte(key)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}
