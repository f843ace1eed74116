package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Adda-Baaj/akhbar/internal/api"
	"github.com/Adda-Baaj/akhbar/internal/domain"
	"github.com/Adda-Baaj/akhbar/pkg/providers"
)

var now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type fakeAggregator struct {
	breaking []domain.Headline
	lebanon  map[string][]domain.Headline
	sources  []providers.Provider
}

func (f *fakeAggregator) FetchAllBreaking(context.Context) []domain.Headline { return f.breaking }

func (f *fakeAggregator) FetchAllLebanon(context.Context) map[string][]domain.Headline {
	return f.lebanon
}

func (f *fakeAggregator) FetchLebanonSource(_ context.Context, name string) (providers.Provider, []domain.Headline, error) {
	for _, p := range f.sources {
		if p.Name == name {
			return p, f.lebanon[name], nil
		}
	}
	return providers.Provider{}, nil, fmt.Errorf("%w: %q", providers.ErrUnknownSource, name)
}

func (f *fakeAggregator) ByKind(kind providers.Kind) []providers.Provider {
	var out []providers.Provider
	for _, p := range f.sources {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

type recordingRefresher struct {
	mu    sync.Mutex
	modes []domain.Mode
}

func (r *recordingRefresher) Trigger(mode domain.Mode) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modes = append(r.modes, mode)
	return true
}

func fixture() *fakeAggregator {
	return &fakeAggregator{
		breaking: []domain.Headline{
			{ID: "1", Title: "عاجل: الحكومة تستقيل", Description: "بيان رسمي", Category: "سياسة", IsBreaking: true, PublishedAt: now},
			{ID: "2", Title: "عاجل: Market Crash", Description: "أسعار النفط تنهار", Category: "اقتصاد", IsBreaking: true, PublishedAt: now},
			{ID: "3", Title: "عاجل: مباراة", Description: "فوز على فريق الحكومة", Category: "رياضة", IsBreaking: true, PublishedAt: now},
		},
		lebanon: map[string][]domain.Headline{
			"النهار":  {{ID: "n1", Title: "وزير", Source: "النهار"}, {ID: "n2", Title: "مجلس", Source: "النهار"}},
			"الأخبار": {{ID: "a1", Title: "لا يمكن جلب الأخبار من الأخبار حالياً", Source: "الأخبار"}},
		},
		sources: []providers.Provider{
			{ID: "annahar", Name: "النهار", Kind: providers.KindLebanon, Website: "https://www.annahar.com", Category: "سياسة"},
			{ID: "al-akhbar", Name: "الأخبار", Kind: providers.KindLebanon, Website: "https://al-akhbar.com", Category: "سياسة"},
			{ID: "aljazeera", Name: "الجزيرة", Kind: providers.KindGeneral},
		},
	}
}

func newTestServer(t *testing.T, agg *fakeAggregator, refresher api.Refresher) *httptest.Server {
	t.Helper()
	s := api.New(agg, agg, api.WithClock(func() time.Time { return now }), api.WithRefresher(refresher))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, rawURL string, wantStatus int, out any) {
	t.Helper()
	resp, err := http.Get(rawURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, wantStatus, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, fixture(), nil)

	var body map[string]string
	getJSON(t, srv.URL+"/api/", http.StatusOK, &body)
	require.Equal(t, "healthy", body["status"])
	require.NotEmpty(t, body["message"])
}

func TestBreakingCountMatchesItems(t *testing.T) {
	srv := newTestServer(t, fixture(), nil)

	var body struct {
		Items       []domain.Headline `json:"items"`
		Count       int               `json:"count"`
		GeneratedAt time.Time         `json:"generated_at"`
	}
	getJSON(t, srv.URL+"/api/news/breaking", http.StatusOK, &body)
	require.Len(t, body.Items, 3)
	require.Equal(t, len(body.Items), body.Count)
	require.True(t, now.Equal(body.GeneratedAt))
}

func TestBreakingEmptyIsArray(t *testing.T) {
	srv := newTestServer(t, &fakeAggregator{}, nil)

	var body map[string]any
	getJSON(t, srv.URL+"/api/news/breaking", http.StatusOK, &body)
	require.Equal(t, []any{}, body["items"])
	require.EqualValues(t, 0, body["count"])
}

func TestSearchEndpoint(t *testing.T) {
	srv := newTestServer(t, fixture(), nil)

	tests := []struct {
		name     string
		query    url.Values
		wantIDs  []string
		category any
	}{
		{name: "no filters", query: url.Values{}, wantIDs: []string{"1", "2", "3"}},
		{name: "query in description", query: url.Values{"q": {"الحكومة"}}, wantIDs: []string{"1", "3"}},
		{name: "case insensitive", query: url.Values{"q": {"market"}}, wantIDs: []string{"2"}},
		{name: "category", query: url.Values{"category": {"اقتصاد"}}, wantIDs: []string{"2"}, category: "اقتصاد"},
		{name: "all categories", query: url.Values{"category": {"الكل"}}, wantIDs: []string{"1", "2", "3"}, category: "الكل"},
		{name: "intersection", query: url.Values{"q": {"الحكومة"}, "category": {"رياضة"}}, wantIDs: []string{"3"}, category: "رياضة"},
		{name: "no match", query: url.Values{"q": {"غير موجود"}}, wantIDs: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body struct {
				Results  []domain.Headline `json:"results"`
				Count    int               `json:"count"`
				Category any               `json:"category"`
			}
			getJSON(t, srv.URL+"/api/news/search?"+tt.query.Encode(), http.StatusOK, &body)

			ids := make([]string, 0, len(body.Results))
			for _, h := range body.Results {
				ids = append(ids, h.ID)
			}
			require.Equal(t, tt.wantIDs, ids)
			require.Equal(t, len(body.Results), body.Count)
			require.Equal(t, tt.category, body.Category)
		})
	}
}

func TestRefreshIsFireAndForget(t *testing.T) {
	rec := &recordingRefresher{}
	srv := newTestServer(t, fixture(), rec)

	for _, path := range []string{"/api/news/refresh", "/api/lebanon/refresh"} {
		resp, err := http.Post(srv.URL+path, "application/json", nil)
		require.NoError(t, err)

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()

		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		require.Equal(t, true, body["success"])
		require.NotEmpty(t, body["message"])
	}

	require.Equal(t, []domain.Mode{domain.ModeBreaking, domain.ModeLebanon}, rec.modes)
}

func TestLebanonHeadlines(t *testing.T) {
	srv := newTestServer(t, fixture(), nil)

	var body struct {
		Newspapers map[string]struct {
			Headlines []domain.Headline `json:"headlines"`
			Count     int               `json:"count"`
			Website   string            `json:"website"`
		} `json:"newspapers"`
		TotalNewspapers int    `json:"total_newspapers"`
		TotalHeadlines  int    `json:"total_headlines"`
		Country         string `json:"country"`
	}
	getJSON(t, srv.URL+"/api/lebanon/headlines", http.StatusOK, &body)

	require.Equal(t, 2, body.TotalNewspapers)
	require.Equal(t, 3, body.TotalHeadlines)
	require.Equal(t, "لبنان", body.Country)
	require.Equal(t, 2, body.Newspapers["النهار"].Count)
	require.Equal(t, "https://www.annahar.com", body.Newspapers["النهار"].Website)
}

func TestLebanonNewspaper(t *testing.T) {
	srv := newTestServer(t, fixture(), nil)

	var body struct {
		Newspaper string            `json:"newspaper"`
		Headlines []domain.Headline `json:"headlines"`
		Count     int               `json:"count"`
		Website   string            `json:"website"`
	}
	getJSON(t, srv.URL+"/api/lebanon/newspaper/"+url.PathEscape("النهار"), http.StatusOK, &body)
	require.Equal(t, "النهار", body.Newspaper)
	require.Equal(t, 2, body.Count)
	require.Equal(t, "https://www.annahar.com", body.Website)

	var missing map[string]string
	getJSON(t, srv.URL+"/api/lebanon/newspaper/"+url.PathEscape("غير موجودة"), http.StatusNotFound, &missing)
	require.NotEmpty(t, missing["error"])
}

func TestLebanonNewspapersList(t *testing.T) {
	srv := newTestServer(t, fixture(), nil)

	var body struct {
		Newspapers []map[string]string `json:"newspapers"`
		Count      int                 `json:"count"`
		Country    string              `json:"country"`
	}
	getJSON(t, srv.URL+"/api/lebanon/newspapers", http.StatusOK, &body)
	require.Equal(t, 2, body.Count)
	require.Equal(t, "النهار", body.Newspapers[0]["name"])
	require.Equal(t, "سياسة", body.Newspapers[0]["category"])
	require.Equal(t, "لبنان", body.Country)
}
