package httpclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// Response is the subset of an HTTP response the fetchers rely on.
type Response interface {
	StatusCode() int
	Body() []byte
}

// Client performs GET requests with per-call headers.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
}

// RestyClient is a Client backed by a single resty client. The underlying
// connection pool is built on first use and shared by every caller afterwards.
type RestyClient struct {
	timeout time.Duration

	mu sync.Mutex
	rc *resty.Client
}

// NewRestyClient returns a lazily initialised resty-backed client with the given request timeout.
func NewRestyClient(timeout time.Duration) *RestyClient {
	return &RestyClient{timeout: timeout}
}

func (c *RestyClient) client() *resty.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rc == nil {
		c.rc = resty.New().
			SetTimeout(c.timeout).
			SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	}
	return c.rc
}

// Get issues a GET request. Non-2xx statuses are returned as responses, not errors.
func (c *RestyClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	req := c.client().R().SetContext(ctx)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}

	resp, err := req.Get(url)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	return resp, nil
}

// Close releases idle pooled connections. It is a no-op when the pool was never built.
// Safe to call while requests are in flight.
func (c *RestyClient) Close() {
	c.mu.Lock()
	rc := c.rc
	c.mu.Unlock()
	if rc == nil {
		return
	}
	rc.GetClient().CloseIdleConnections()
}
