// Package aggregator fans feed retrieval out across the Source Registry,
// classifies and merges what comes back, and absorbs every per-source failure.
package aggregator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Adda-Baaj/akhbar/internal/classifier"
	"github.com/Adda-Baaj/akhbar/internal/domain"
	"github.com/Adda-Baaj/akhbar/internal/logger"
	"github.com/Adda-Baaj/akhbar/pkg/feed"
	"github.com/Adda-Baaj/akhbar/pkg/providers"
)

const (
	// BreakingLimit caps the merged breaking-news result.
	BreakingLimit = 50
	// LebanonPerSourceLimit caps each newspaper's headline list.
	LebanonPerSourceLimit = 10
	// DefaultSourceDeadline bounds one newspaper's primary and fallback attempts together.
	DefaultSourceDeadline = 45 * time.Second
)

// FeedFetcher retrieves one raw feed document.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

// SourceRegistry exposes the configured providers.
type SourceRegistry interface {
	ByKind(kind providers.Kind) []providers.Provider
	ByName(name string) (providers.Provider, error)
}

// Engine runs the aggregation pipelines. It holds no state between calls.
type Engine struct {
	fetcher    FeedFetcher
	registry   SourceRegistry
	normalizer *feed.Normalizer
	deadline   time.Duration
	log        logger.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock injects the clock used for entries that carry no timestamp.
func WithClock(now feed.Clock) Option {
	return func(e *Engine) { e.normalizer = feed.NewNormalizer(now) }
}

// WithSourceDeadline bounds the total time spent on one newspaper, fallbacks
// included. Once it passes the newspaper gets its placeholder. Non-positive
// values keep DefaultSourceDeadline.
func WithSourceDeadline(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.deadline = d
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) { e.log = logger.Ensure(log) }
}

// New builds an Engine over the given fetcher and registry.
func New(fetcher FeedFetcher, registry SourceRegistry, opts ...Option) *Engine {
	if fetcher == nil {
		fetcher = feed.NewFetcher(nil, feed.DefaultTimeout, "")
	}
	e := &Engine{
		fetcher:    fetcher,
		registry:   registry,
		normalizer: feed.NewNormalizer(nil),
		deadline:   DefaultSourceDeadline,
		log:        logger.NopLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FetchAllBreaking fetches every general source concurrently and returns the
// newest-first, title-deduplicated breaking headlines, at most BreakingLimit.
func (e *Engine) FetchAllBreaking(ctx context.Context) []domain.Headline {
	sources := e.registry.ByKind(providers.KindGeneral)
	perSource := fanOut(ctx, sources, e.collectGeneral, e.recoverer)

	var merged []domain.Headline
	for _, items := range perSource {
		merged = append(merged, items...)
	}

	breaking := make([]domain.Headline, 0, len(merged))
	for _, h := range merged {
		if h.IsBreaking {
			breaking = append(breaking, h)
		}
	}

	sortNewestFirst(breaking)
	unique := Dedupe(breaking)
	if len(unique) > BreakingLimit {
		unique = unique[:BreakingLimit]
	}

	e.log.InfoObj("breaking aggregation finished", "breaking_aggregated", map[string]any{
		"sources":    len(sources),
		"candidates": len(merged),
		"breaking":   len(breaking),
		"returned":   len(unique),
	})
	return unique
}

// FetchAllLebanon fetches every Lebanese newspaper concurrently. Every registered
// newspaper appears in the result, keyed by name.
func (e *Engine) FetchAllLebanon(ctx context.Context) map[string][]domain.Headline {
	sources := e.registry.ByKind(providers.KindLebanon)
	perSource := fanOut(ctx, sources, e.collectLebanon, e.recoverer)

	out := make(map[string][]domain.Headline, len(sources))
	total := 0
	for i, p := range sources {
		items := perSource[i]
		if items == nil {
			items = []domain.Headline{}
		}
		out[p.Name] = items
		total += len(items)
	}

	e.log.InfoObj("lebanon aggregation finished", "lebanon_aggregated", map[string]any{
		"newspapers": len(out),
		"headlines":  total,
	})
	return out
}

// FetchLebanonSource runs the Lebanese pipeline for a single newspaper.
// It fails only when the name is not registered.
func (e *Engine) FetchLebanonSource(ctx context.Context, name string) (providers.Provider, []domain.Headline, error) {
	p, err := e.registry.ByName(name)
	if err != nil {
		return providers.Provider{}, nil, err
	}
	if p.Kind != providers.KindLebanon {
		return providers.Provider{}, nil, fmt.Errorf("%w: %q is not a lebanese newspaper", providers.ErrUnknownSource, name)
	}

	items := fanOut(ctx, []providers.Provider{p}, e.collectLebanon, e.recoverer)[0]
	if items == nil {
		items = []domain.Headline{}
	}
	return p, items, nil
}

type collectFunc func(ctx context.Context, p providers.Provider) []domain.Headline

// fanOut runs collect for every provider concurrently and waits for all of them.
// Results keep registry order; a panicking collector contributes nil.
func fanOut(ctx context.Context, sources []providers.Provider, collect collectFunc, onPanic func(providers.Provider, any)) [][]domain.Headline {
	results := make([][]domain.Headline, len(sources))

	var wg sync.WaitGroup
	for i, p := range sources {
		wg.Add(1)
		go func(i int, p providers.Provider) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = nil
					onPanic(p, r)
				}
			}()
			results[i] = collect(ctx, p)
		}(i, p)
	}
	wg.Wait()

	return results
}

func (e *Engine) recoverer(p providers.Provider, r any) {
	e.log.ErrorObj("source pipeline panicked", "source_panic", map[string]any{
		"source": p.Name,
		"panic":  fmt.Sprint(r),
	})
}

// collectGeneral produces up to feed.GeneralEntryLimit classified candidates for a general source.
func (e *Engine) collectGeneral(ctx context.Context, p providers.Provider) []domain.Headline {
	body, err := e.fetcher.Fetch(ctx, p.SourceURL, providers.Headers(p))
	if err != nil {
		e.log.WarnObj("source fetch failed", "source_fetch_failed", map[string]any{
			"source": p.Name,
			"url":    p.SourceURL,
			"error":  err.Error(),
		})
		return nil
	}

	entries := feed.Parse(body, feed.GeneralEntryLimit)
	if len(entries) == 0 {
		e.log.WarnObj("source feed yielded no entries", "source_parse_empty", map[string]any{
			"source": p.Name,
			"url":    p.SourceURL,
		})
		return nil
	}

	fixed, hasFixed := p.FixedCategory()
	out := make([]domain.Headline, 0, len(entries))
	for _, entry := range entries {
		title, description := feed.Text(entry)
		if title == "" {
			e.log.DebugObj("skipping entry without title", "entry_skipped", map[string]any{
				"source": p.Name,
				"link":   entry.Link,
			})
			continue
		}

		category := fixed
		if !hasFixed {
			category = classifier.Categorize(title, description)
		}

		out = append(out, e.normalizer.Headline(entry, title, description, feed.Attribution{
			Source:         p.Name,
			Website:        p.Website,
			Category:       category,
			IsBreaking:     classifier.IsBreaking(title, description, p.BreakingKeywords),
			DescriptionCap: domain.ModeBreaking.DescriptionCap(),
		}))
	}

	e.log.InfoObj("source fetched", "source_fetched", map[string]any{
		"source":   p.Name,
		"articles": len(out),
	})
	return out
}

// collectLebanon produces the sorted, political-only, capped headline list for one newspaper.
// Fallback URLs are tried when the primary fails to fetch and also when it
// answers with nothing parseable, so a primary serving HTML or an empty
// document is treated like a dead feed. All attempts share the source deadline.
func (e *Engine) collectLebanon(ctx context.Context, p providers.Provider) []domain.Headline {
	ctx, cancel := context.WithTimeout(ctx, e.deadline)
	defer cancel()

	entries, ok := e.fetchEntries(ctx, p, p.SourceURL, feed.PoliticalEntryLimit)
	if !ok {
		entries, ok = e.fallback(ctx, p)
	}
	if !ok {
		e.log.WarnObj("all feed urls failed, returning placeholder", "source_placeholder", map[string]any{
			"source":       p.Name,
			"deadline_hit": ctx.Err() != nil,
		})
		return []domain.Headline{e.placeholder(p)}
	}

	category, hasFixed := p.FixedCategory()
	out := make([]domain.Headline, 0, len(entries))
	for _, entry := range entries {
		title, description := feed.Text(entry)
		if title == "" || !classifier.IsPolitical(title, description) {
			continue
		}
		if !hasFixed {
			category = classifier.Categorize(title, description)
		}

		out = append(out, e.normalizer.Headline(entry, title, description, feed.Attribution{
			Source:         p.Name,
			Website:        p.Website,
			Category:       category,
			DescriptionCap: domain.ModeLebanon.DescriptionCap(),
		}))
	}

	sortNewestFirst(out)
	if len(out) > LebanonPerSourceLimit {
		out = out[:LebanonPerSourceLimit]
	}

	e.log.InfoObj("political headlines fetched", "source_fetched", map[string]any{
		"source":    p.Name,
		"entries":   len(entries),
		"headlines": len(out),
	})
	return out
}

// fallback tries the provider's fallback URLs in order and stops at the first
// one that answers and carries at least one entry.
func (e *Engine) fallback(ctx context.Context, p providers.Provider) ([]feed.Entry, bool) {
	for _, url := range p.FallbackURLs() {
		if ctx.Err() != nil {
			return nil, false
		}
		e.log.DebugObj("trying fallback feed url", "fallback_attempt", map[string]any{
			"source": p.Name,
			"url":    url,
		})
		if entries, ok := e.fetchEntries(ctx, p, url, feed.FallbackEntryLimit); ok {
			e.log.InfoObj("alternative feed found", "fallback_found", map[string]any{
				"source": p.Name,
				"url":    url,
			})
			return entries, true
		}
	}
	return nil, false
}

// fetchEntries fetches and parses url; ok is false on fetch failure or when nothing parses.
func (e *Engine) fetchEntries(ctx context.Context, p providers.Provider, url string, limit int) ([]feed.Entry, bool) {
	body, err := e.fetcher.Fetch(ctx, url, providers.Headers(p))
	if err != nil {
		e.log.WarnObj("source fetch failed", "source_fetch_failed", map[string]any{
			"source": p.Name,
			"url":    url,
			"error":  err.Error(),
		})
		return nil, false
	}

	entries := feed.Parse(body, limit)
	if len(entries) == 0 {
		e.log.WarnObj("source feed yielded no entries", "source_parse_empty", map[string]any{
			"source": p.Name,
			"url":    url,
		})
		return nil, false
	}
	return entries, true
}

// placeholder is the single entry reported for a newspaper none of whose feeds answered.
func (e *Engine) placeholder(p providers.Provider) domain.Headline {
	category, ok := p.FixedCategory()
	if !ok {
		category = classifier.DefaultCategory
	}
	title := fmt.Sprintf("لا يمكن جلب الأخبار من %s حالياً", p.Name)
	return domain.Headline{
		ID:          feed.HeadlineID("", p.Name, title),
		Title:       title,
		Description: "يرجى المحاولة لاحقاً أو زيارة الموقع مباشرة",
		Source:      p.Name,
		PublishedAt: e.normalizer.Now(),
		Category:    category,
		URL:         p.Website,
		Website:     p.Website,
	}
}

// sortNewestFirst orders by publish time descending; ties keep their merge order.
func sortNewestFirst(items []domain.Headline) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
}
