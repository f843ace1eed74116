package api

import (
	"strings"

	"github.com/Adda-Baaj/akhbar/internal/classifier"
	"github.com/Adda-Baaj/akhbar/internal/domain"
)

// Search post-filters headlines. A non-empty query must occur case-insensitively in
// the title or description; a category other than "" or classifier.AllCategories
// must match exactly. Both filters combine.
func Search(items []domain.Headline, query, category string) []domain.Headline {
	q := strings.ToLower(query)
	filterCategory := category != "" && category != classifier.AllCategories

	out := make([]domain.Headline, 0, len(items))
	for _, h := range items {
		if q != "" && !strings.Contains(strings.ToLower(h.Title), q) && !strings.Contains(strings.ToLower(h.Description), q) {
			continue
		}
		if filterCategory && h.Category != category {
			continue
		}
		out = append(out, h)
	}
	return out
}
