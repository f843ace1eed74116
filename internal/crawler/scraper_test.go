package crawler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Adda-Baaj/akhbar/internal/crawler"
	"github.com/Adda-Baaj/akhbar/internal/domain"
	"github.com/Adda-Baaj/akhbar/pkg/httpclient"
)

const articlePage = `<!doctype html>
<html><head>
<meta property="og:image" content="/images/lead.jpg">
<meta property="og:description" content="وصف من الصفحة">
</head><body>article</body></html>`

func TestEnrichFillsMissingFields(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/article":
			_, _ = w.Write([]byte(articlePage))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	in := []domain.Headline{
		{ID: "1", Title: "a", URL: srv.URL + "/article"},
		{ID: "2", Title: "b", URL: srv.URL + "/missing"},
		{ID: "3", Title: "c", URL: srv.URL + "/article", ImageURL: "https://cdn.test/x.jpg", Description: "موجود"},
		{ID: "4", Title: "d"},
	}

	e := crawler.NewEnricher(httpclient.NewRestyClient(time.Second), 0, nil)
	out := e.Enrich(context.Background(), in)

	require.Len(t, out, 4)
	require.Equal(t, srv.URL+"/images/lead.jpg", out[0].ImageURL)
	require.Equal(t, "وصف من الصفحة", out[0].Description)
	require.Equal(t, in[1], out[1])
	require.Equal(t, in[2], out[2])
	require.Equal(t, in[3], out[3])
	require.EqualValues(t, 2, hits.Load())

	// input is left untouched
	require.Empty(t, in[0].ImageURL)
}

func TestEnrichCapsDescription(t *testing.T) {
	long := strings.Repeat("ع", 800)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><head><meta name="description" content="` + long + `"></head></html>`))
	}))
	defer srv.Close()

	out := crawler.NewEnricher(nil, time.Millisecond, nil).Enrich(context.Background(), []domain.Headline{
		{ID: "1", URL: srv.URL, ImageURL: "https://cdn.test/y.jpg"},
	})
	require.Len(t, []rune(out[0].Description), domain.BreakingDescriptionCap)
}

func TestEnrichCancelledReturnsOriginals(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := []domain.Headline{{ID: "1", URL: "http://127.0.0.1:1/never"}}
	out := crawler.NewEnricher(nil, time.Hour, nil).Enrich(ctx, in)
	require.Equal(t, in, out)
}
