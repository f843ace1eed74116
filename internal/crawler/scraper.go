// Package crawler fills in missing headline metadata from the article page.
package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Adda-Baaj/akhbar/internal/domain"
	"github.com/Adda-Baaj/akhbar/internal/logger"
	"github.com/Adda-Baaj/akhbar/pkg/feed"
	"github.com/Adda-Baaj/akhbar/pkg/httpclient"
)

const (
	maxPageBytes = 1 << 20 // 1 MiB
	maxWorkers   = 8
)

// Enricher looks up og:image and og:description on article pages.
type Enricher struct {
	client httpclient.Client
	delay  time.Duration
	log    logger.Logger
}

// NewEnricher builds an Enricher. Requests are spaced by delay; zero disables spacing.
func NewEnricher(client httpclient.Client, delay time.Duration, log logger.Logger) *Enricher {
	if client == nil {
		client = httpclient.NewRestyClient(feed.DefaultTimeout)
	}
	return &Enricher{client: client, delay: delay, log: logger.Ensure(log)}
}

// Enrich returns a copy of headlines where those lacking an image or a description
// have them filled from the article page. Headlines whose lookup fails, or that have
// no URL, are returned unchanged. Cancellation returns what was enriched so far.
func (e *Enricher) Enrich(ctx context.Context, headlines []domain.Headline) []domain.Headline {
	out := make([]domain.Headline, len(headlines))
	copy(out, headlines)

	var pending []int
	for i, h := range headlines {
		if needsEnrichment(h) {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return out
	}

	var limiter <-chan time.Time
	if e.delay > 0 {
		ticker := time.NewTicker(e.delay)
		defer ticker.Stop()
		limiter = ticker.C
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range min(len(pending), maxWorkers) {
		wg.Add(1)
		go e.worker(ctx, limiter, jobs, out, &wg)
	}

dispatch:
	for _, idx := range pending {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- idx:
		}
	}
	close(jobs)
	wg.Wait()

	return out
}

func needsEnrichment(h domain.Headline) bool {
	return h.URL != "" && (h.ImageURL == "" || h.Description == "")
}

// worker owns out[idx] for every idx it receives.
func (e *Enricher) worker(ctx context.Context, limiter <-chan time.Time, jobs <-chan int, out []domain.Headline, wg *sync.WaitGroup) {
	defer wg.Done()

	for idx := range jobs {
		if limiter != nil {
			select {
			case <-ctx.Done():
				return
			case <-limiter:
			}
		}

		h := out[idx]
		meta, err := e.lookup(ctx, h.URL)
		if err != nil {
			e.log.WarnObj("article metadata lookup failed", "enrich_failed", map[string]any{
				"source": h.Source,
				"url":    h.URL,
				"error":  err.Error(),
			})
			continue
		}

		if h.ImageURL == "" && meta.image != "" {
			h.ImageURL = resolveURL(meta.image, h.URL)
		}
		if h.Description == "" && meta.description != "" {
			h.Description = strings.TrimSpace(feed.Truncate(meta.description, domain.BreakingDescriptionCap))
		}
		out[idx] = h
	}
}

type pageMeta struct {
	image       string
	description string
}

func (e *Enricher) lookup(ctx context.Context, pageURL string) (pageMeta, error) {
	resp, err := e.client.Get(ctx, pageURL, map[string]string{"Accept": "text/html"})
	if err != nil {
		return pageMeta{}, fmt.Errorf("fetch article: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return pageMeta{}, fmt.Errorf("fetch article: status %d", resp.StatusCode())
	}

	body := resp.Body()
	if len(body) > maxPageBytes {
		body = body[:maxPageBytes]
	}
	return parseMeta(body)
}

func parseMeta(body []byte) (pageMeta, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return pageMeta{}, fmt.Errorf("parse html: %w", err)
	}

	content := func(sel string) string {
		if val, ok := doc.Find(sel).First().Attr("content"); ok {
			return strings.TrimSpace(val)
		}
		return ""
	}

	return pageMeta{
		image:       firstNonEmpty(content(`meta[property="og:image"]`), content(`meta[name="twitter:image"]`)),
		description: firstNonEmpty(content(`meta[property="og:description"]`), content(`meta[name="description"]`)),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// resolveURL resolves a possibly relative reference against the article URL.
func resolveURL(raw, base string) string {
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if ref.IsAbs() {
		return ref.String()
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return raw
	}
	return baseURL.ResolveReference(ref).String()
}
