// Package domain contains the models shared by the aggregation pipelines.
package domain

import "time"

// Mode selects the policy an aggregation pass applies.
type Mode string

const (
	ModeBreaking Mode = "breaking"
	ModeLebanon  Mode = "lebanon"
)

// Description caps, in characters, per aggregation mode.
const (
	BreakingDescriptionCap = 500
	LebanonDescriptionCap  = 300
)

// DescriptionCap returns the description length cap for the mode.
func (m Mode) DescriptionCap() int {
	if m == ModeLebanon {
		return LebanonDescriptionCap
	}
	return BreakingDescriptionCap
}

// Headline is a normalized feed entry. It is built once per aggregation pass and never mutated afterwards.
type Headline struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	Category    string    `json:"category"`
	IsBreaking  bool      `json:"is_breaking"`
	URL         string    `json:"url,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Website     string    `json:"website,omitempty"`
}
