package aggregator

import (
	"github.com/Adda-Baaj/akhbar/internal/domain"
	"github.com/Adda-Baaj/akhbar/pkg/feed"
)

// TitleKey is the comparison key for duplicate detection: the lowercased
// title with punctuation removed. Whitespace is kept as is.
func TitleKey(title string) string {
	return feed.TitleKey(title)
}

// Dedupe keeps the first headline for every TitleKey and preserves order.
func Dedupe(items []domain.Headline) []domain.Headline {
	seen := make(map[string]struct{}, len(items))
	out := make([]domain.Headline, 0, len(items))
	for _, h := range items {
		key := TitleKey(h.Title)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, h)
	}
	return out
}
