package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Adda-Baaj/akhbar/pkg/httpclient"
)

// DefaultTimeout bounds a single feed request.
const DefaultTimeout = 30 * time.Second

// FailureKind classifies a failed feed retrieval.
type FailureKind string

const (
	Unreachable      FailureKind = "unreachable"
	NonSuccessStatus FailureKind = "non_success_status"
	Timeout          FailureKind = "timeout"
)

// FetchError is the failure value returned by Fetcher.Fetch.
type FetchError struct {
	Kind       FailureKind
	URL        string
	StatusCode int
	Snippet    string
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case NonSuccessStatus:
		return fmt.Sprintf("feed %s returned status %d body: %s", e.URL, e.StatusCode, e.Snippet)
	case Timeout:
		return fmt.Sprintf("feed %s timed out: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("feed %s unreachable: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher retrieves raw feed documents over a shared HTTP client.
type Fetcher struct {
	client    httpclient.Client
	timeout   time.Duration
	userAgent string
}

// NewFetcher builds a Fetcher. A nil client gets a lazily pooled resty client; a non-positive timeout uses DefaultTimeout.
func NewFetcher(client httpclient.Client, timeout time.Duration, userAgent string) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if client == nil {
		client = httpclient.NewRestyClient(timeout)
	}
	return &Fetcher{
		client:    client,
		timeout:   timeout,
		userAgent: strings.TrimSpace(userAgent),
	}
}

// Fetch returns the body of url on HTTP 200. Every failure comes back as a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.client.Get(ctx, url, f.headers(headers))
	if err != nil {
		kind := Unreachable
		if isTimeout(ctx, err) {
			kind = Timeout
		}
		return nil, &FetchError{Kind: kind, URL: url, Err: err}
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return nil, &FetchError{
			Kind:       NonSuccessStatus,
			URL:        url,
			StatusCode: resp.StatusCode(),
			Snippet:    responseSnippet(body),
		}
	}

	return body, nil
}

func (f *Fetcher) headers(extra map[string]string) map[string]string {
	out := make(map[string]string, len(extra)+2)
	out["Accept"] = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"
	if f.userAgent != "" {
		out["User-Agent"] = f.userAgent
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// responseSnippet returns a truncated snippet of the response body for logging.
func responseSnippet(body []byte) string {
	const maxLen = 256
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
