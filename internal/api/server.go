// Package api is the HTTP Query Surface over the aggregation engine.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Adda-Baaj/akhbar/internal/domain"
	"github.com/Adda-Baaj/akhbar/internal/logger"
	"github.com/Adda-Baaj/akhbar/pkg/providers"
)

const lebanonCountry = "لبنان"

// Aggregator is the engine surface the API consumes.
type Aggregator interface {
	FetchAllBreaking(ctx context.Context) []domain.Headline
	FetchAllLebanon(ctx context.Context) map[string][]domain.Headline
	FetchLebanonSource(ctx context.Context, name string) (providers.Provider, []domain.Headline, error)
}

// Directory lists registered sources without network I/O.
type Directory interface {
	ByKind(kind providers.Kind) []providers.Provider
}

// Refresher starts a background run of a pipeline and returns immediately.
type Refresher interface {
	Trigger(mode domain.Mode) bool
}

// Server wires HTTP handlers to the engine.
type Server struct {
	agg       Aggregator
	dir       Directory
	refresher Refresher
	log       logger.Logger
	now       func() time.Time
}

// Option customises a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Server) { s.log = logger.Ensure(log) }
}

// WithClock sets the clock used for response timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRefresher sets the background refresher used by the refresh endpoints.
func WithRefresher(r Refresher) Option {
	return func(s *Server) {
		if r != nil {
			s.refresher = r
		}
	}
}

// New builds a Server. Without a refresher, refresh runs the pipeline on a detached goroutine.
func New(agg Aggregator, dir Directory, opts ...Option) *Server {
	s := &Server{
		agg: agg,
		dir: dir,
		log: logger.NopLogger{},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.refresher == nil {
		s.refresher = detachedRefresher{agg: agg}
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/", s.handleHealth)

		r.Route("/news", func(r chi.Router) {
			r.Get("/breaking", s.handleBreaking)
			r.Get("/search", s.handleSearch)
			r.Post("/refresh", s.handleRefresh(domain.ModeBreaking, "تم بدء تحديث الأخبار العاجلة"))
		})

		r.Route("/lebanon", func(r chi.Router) {
			r.Get("/headlines", s.handleLebanonHeadlines)
			r.Get("/newspapers", s.handleNewspapers)
			r.Get("/newspaper/{name}", s.handleNewspaper)
			r.Post("/refresh", s.handleRefresh(domain.ModeLebanon, "تم بدء تحديث عناوين الصحف اللبنانية"))
		})
	})

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

type breakingResponse struct {
	Items       []domain.Headline `json:"items"`
	Count       int               `json:"count"`
	GeneratedAt time.Time         `json:"generated_at"`
}

type searchResponse struct {
	Results     []domain.Headline `json:"results"`
	Count       int               `json:"count"`
	SearchQuery *string           `json:"search_query"`
	Category    *string           `json:"category"`
}

type refreshResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Started   bool      `json:"started"`
	Timestamp time.Time `json:"timestamp"`
}

type newspaperHeadlines struct {
	Headlines []domain.Headline `json:"headlines"`
	Count     int               `json:"count"`
	Website   string            `json:"website"`
}

type lebanonResponse struct {
	Newspapers      map[string]newspaperHeadlines `json:"newspapers"`
	TotalNewspapers int                           `json:"total_newspapers"`
	TotalHeadlines  int                           `json:"total_headlines"`
	LastUpdated     time.Time                     `json:"last_updated"`
	Country         string                        `json:"country"`
}

type newspaperResponse struct {
	Newspaper   string            `json:"newspaper"`
	Headlines   []domain.Headline `json:"headlines"`
	Count       int               `json:"count"`
	Website     string            `json:"website"`
	LastUpdated time.Time         `json:"last_updated"`
}

type newspaperInfo struct {
	Name     string `json:"name"`
	Website  string `json:"website"`
	Category string `json:"category"`
}

type newspapersResponse struct {
	Newspapers []newspaperInfo `json:"newspapers"`
	Count      int             `json:"count"`
	Country    string          `json:"country"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Message: "Breaking News & Lebanon Headlines API is running",
		Status:  "healthy",
	})
}

func (s *Server) handleBreaking(w http.ResponseWriter, r *http.Request) {
	items := s.agg.FetchAllBreaking(r.Context())
	writeJSON(w, http.StatusOK, breakingResponse{
		Items:       nonNil(items),
		Count:       len(items),
		GeneratedAt: s.now(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := optionalParam(r, "q")
	category := optionalParam(r, "category")

	results := Search(s.agg.FetchAllBreaking(r.Context()), deref(query), deref(category))
	writeJSON(w, http.StatusOK, searchResponse{
		Results:     results,
		Count:       len(results),
		SearchQuery: query,
		Category:    category,
	})
}

func (s *Server) handleRefresh(mode domain.Mode, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		started := s.refresher.Trigger(mode)
		s.log.InfoObj("refresh requested", "refresh_requested", map[string]any{
			"mode":    string(mode),
			"started": started,
		})
		writeJSON(w, http.StatusAccepted, refreshResponse{
			Success:   true,
			Message:   message,
			Started:   started,
			Timestamp: s.now(),
		})
	}
}

func (s *Server) handleLebanonHeadlines(w http.ResponseWriter, r *http.Request) {
	byName := s.agg.FetchAllLebanon(r.Context())

	websites := make(map[string]string)
	for _, p := range s.dir.ByKind(providers.KindLebanon) {
		websites[p.Name] = p.Website
	}

	out := lebanonResponse{
		Newspapers:  make(map[string]newspaperHeadlines, len(byName)),
		LastUpdated: s.now(),
		Country:     lebanonCountry,
	}
	for name, items := range byName {
		out.Newspapers[name] = newspaperHeadlines{
			Headlines: nonNil(items),
			Count:     len(items),
			Website:   websites[name],
		}
		out.TotalHeadlines += len(items)
	}
	out.TotalNewspapers = len(out.Newspapers)

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleNewspaper(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	p, items, err := s.agg.FetchLebanonSource(r.Context(), name)
	if err != nil {
		if errors.Is(err, providers.ErrUnknownSource) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "الصحيفة غير موجودة"})
			return
		}
		s.log.ErrorObj("newspaper lookup failed", "newspaper_lookup_failed", map[string]any{
			"newspaper": name,
			"error":     err.Error(),
		})
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "خطأ في جلب عناوين الصحيفة"})
		return
	}

	writeJSON(w, http.StatusOK, newspaperResponse{
		Newspaper:   p.Name,
		Headlines:   nonNil(items),
		Count:       len(items),
		Website:     p.Website,
		LastUpdated: s.now(),
	})
}

func (s *Server) handleNewspapers(w http.ResponseWriter, _ *http.Request) {
	sources := s.dir.ByKind(providers.KindLebanon)
	out := newspapersResponse{
		Newspapers: make([]newspaperInfo, 0, len(sources)),
		Country:    lebanonCountry,
	}
	for _, p := range sources {
		out.Newspapers = append(out.Newspapers, newspaperInfo{Name: p.Name, Website: p.Website, Category: p.Category})
	}
	out.Count = len(out.Newspapers)

	writeJSON(w, http.StatusOK, out)
}

// optionalParam distinguishes an absent query parameter from an empty one.
func optionalParam(r *http.Request, key string) *string {
	values, ok := r.URL.Query()[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := strings.TrimSpace(values[0])
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonNil(items []domain.Headline) []domain.Headline {
	if items == nil {
		return []domain.Headline{}
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// detachedRefresher runs the pipeline on its own goroutine without coalescing.
type detachedRefresher struct {
	agg Aggregator
}

func (d detachedRefresher) Trigger(mode domain.Mode) bool {
	go func() {
		ctx := context.Background()
		switch mode {
		case domain.ModeBreaking:
			d.agg.FetchAllBreaking(ctx)
		case domain.ModeLebanon:
			d.agg.FetchAllLebanon(ctx)
		}
	}()
	return true
}
