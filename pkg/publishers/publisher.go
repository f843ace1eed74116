// Package publishers delivers refreshed breaking headlines to external sinks.
package publishers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Adda-Baaj/akhbar/internal/domain"
	"github.com/Adda-Baaj/akhbar/internal/logger"
)

// EventKindBreaking tags events carrying a breaking headline.
const EventKindBreaking = "breaking_headline"

// Logger is the logging contract publishers use.
type Logger = logger.Logger

// Publisher delivers events to one sink.
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// Event is the wire payload sent to every sink.
type Event struct {
	EventID     string    `json:"event_id"`
	Kind        string    `json:"kind"`
	HeadlineID  string    `json:"headline_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Source      string    `json:"source"`
	Category    string    `json:"category"`
	URL         string    `json:"url,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	EmittedAt   time.Time `json:"emitted_at"`
}

// NewEvent wraps a breaking headline for delivery.
func NewEvent(h domain.Headline, emittedAt time.Time) Event {
	return Event{
		EventID:     uuid.NewString(),
		Kind:        EventKindBreaking,
		HeadlineID:  h.ID,
		Title:       h.Title,
		Description: h.Description,
		Source:      h.Source,
		Category:    h.Category,
		URL:         h.URL,
		ImageURL:    h.ImageURL,
		PublishedAt: h.PublishedAt.UTC(),
		EmittedAt:   emittedAt.UTC(),
	}
}

// Attributes are the routing attributes attached to queue messages.
func (e Event) Attributes() map[string]string {
	attrs := map[string]string{
		"kind":        e.Kind,
		"headline_id": e.HeadlineID,
	}
	if e.Source != "" {
		attrs["source"] = e.Source
	}
	if e.Category != "" {
		attrs["category"] = e.Category
	}
	return attrs
}

func ensureLogger(log Logger) Logger {
	return logger.Ensure(log)
}
