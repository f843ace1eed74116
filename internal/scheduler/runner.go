// Package scheduler runs aggregation pipelines in the background, either on
// demand from the refresh endpoints or on a cron schedule, and hands freshly
// seen breaking headlines to the publishers.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Adda-Baaj/akhbar/internal/domain"
	"github.com/Adda-Baaj/akhbar/internal/logger"
	"github.com/Adda-Baaj/akhbar/pkg/publishers"
)

// DefaultTimeout bounds a single background refresh.
const DefaultTimeout = 2 * time.Minute

// Pipelines is the engine surface the runner drives.
type Pipelines interface {
	FetchAllBreaking(ctx context.Context) []domain.Headline
	FetchAllLebanon(ctx context.Context) map[string][]domain.Headline
}

// Enricher fills in missing headline metadata before publishing.
type Enricher interface {
	Enrich(ctx context.Context, headlines []domain.Headline) []domain.Headline
}

// Ledger remembers which headlines were already published.
type Ledger interface {
	Unseen(ids []string) ([]string, error)
	MarkPublished(ids []string, at time.Time) error
	Prune(cutoff time.Time) (int, error)
}

// Runner launches detached refreshes. At most one refresh per mode is in flight;
// triggers arriving meanwhile are absorbed by it.
type Runner struct {
	engine     Pipelines
	timeout    time.Duration
	publishers []publishers.Publisher
	ledger     Ledger
	retention  time.Duration
	enricher   Enricher
	log        logger.Logger
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running map[domain.Mode]bool
	wg      sync.WaitGroup
	cron    *cron.Cron
}

// Option customises a Runner.
type Option func(*Runner)

// WithTimeout bounds each refresh; non-positive values keep DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithPublishers sets the sinks fed after each breaking refresh.
func WithPublishers(pubs []publishers.Publisher) Option {
	return func(r *Runner) { r.publishers = pubs }
}

// WithLedger enables at-most-once publishing; entries older than retention are pruned.
func WithLedger(l Ledger, retention time.Duration) Option {
	return func(r *Runner) {
		r.ledger = l
		r.retention = retention
	}
}

// WithEnricher enriches headlines before they are published.
func WithEnricher(e Enricher) Option {
	return func(r *Runner) { r.enricher = e }
}

// WithLogger sets the runner logger.
func WithLogger(log logger.Logger) Option {
	return func(r *Runner) { r.log = logger.Ensure(log) }
}

// WithClock sets the clock used for ledger timestamps and events.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// New builds a Runner over the engine.
func New(engine Pipelines, opts ...Option) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		engine:  engine,
		timeout: DefaultTimeout,
		log:     logger.NopLogger{},
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		running: make(map[domain.Mode]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Trigger starts a background refresh of mode and returns immediately.
// It reports false when a refresh of that mode is already running or the runner is stopped.
func (r *Runner) Trigger(mode domain.Mode) bool {
	r.mu.Lock()
	if r.running[mode] || r.ctx.Err() != nil {
		r.mu.Unlock()
		r.log.DebugObj("refresh already in flight", "refresh_coalesced", map[string]any{"mode": string(mode)})
		return false
	}
	r.running[mode] = true
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.running, mode)
			r.mu.Unlock()
		}()
		defer func() {
			if rec := recover(); rec != nil {
				r.log.ErrorObj("background refresh panicked", "refresh_panic", map[string]any{
					"mode":  string(mode),
					"panic": fmt.Sprint(rec),
				})
			}
		}()

		ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
		defer cancel()
		r.Run(ctx, mode)
	}()
	return true
}

// Run executes one refresh of mode synchronously.
func (r *Runner) Run(ctx context.Context, mode domain.Mode) {
	started := r.now()

	switch mode {
	case domain.ModeBreaking:
		items := r.engine.FetchAllBreaking(ctx)
		r.log.InfoObj("breaking refresh finished", "refresh_done", map[string]any{
			"mode":        string(mode),
			"headlines":   len(items),
			"duration_ms": r.now().Sub(started).Milliseconds(),
		})
		r.publish(ctx, items)
	case domain.ModeLebanon:
		byName := r.engine.FetchAllLebanon(ctx)
		total := 0
		for _, items := range byName {
			total += len(items)
		}
		r.log.InfoObj("lebanon refresh finished", "refresh_done", map[string]any{
			"mode":        string(mode),
			"newspapers":  len(byName),
			"headlines":   total,
			"duration_ms": r.now().Sub(started).Milliseconds(),
		})
	default:
		r.log.WarnObj("unknown refresh mode", "refresh_unknown_mode", map[string]any{"mode": string(mode)})
	}
}

// publish sends headlines not yet in the ledger to every publisher and records the delivered ones.
func (r *Runner) publish(ctx context.Context, items []domain.Headline) {
	if len(r.publishers) == 0 || len(items) == 0 {
		return
	}

	fresh, err := r.unseen(items)
	if err != nil {
		r.log.ErrorObj("ledger lookup failed, skipping publish", "ledger_error", map[string]any{"error": err.Error()})
		return
	}
	if len(fresh) == 0 {
		return
	}
	if r.enricher != nil {
		fresh = r.enricher.Enrich(ctx, fresh)
	}

	at := r.now()
	delivered := make([]string, 0, len(fresh))
	for _, h := range fresh {
		if err := publishers.PublishAll(ctx, r.publishers, publishers.NewEvent(h, at)); err != nil {
			r.log.WarnObj("headline publish failed", "publish_failed", map[string]any{
				"headline_id": h.ID,
				"source":      h.Source,
				"error":       err.Error(),
			})
			continue
		}
		delivered = append(delivered, h.ID)
	}

	r.log.InfoObj("headlines published", "publish_done", map[string]any{
		"candidates": len(fresh),
		"delivered":  len(delivered),
	})

	if r.ledger == nil {
		return
	}
	if err := r.ledger.MarkPublished(delivered, at); err != nil {
		r.log.ErrorObj("ledger write failed", "ledger_error", map[string]any{"error": err.Error()})
	}
	if r.retention > 0 {
		if n, err := r.ledger.Prune(at.Add(-r.retention)); err != nil {
			r.log.WarnObj("ledger prune failed", "ledger_error", map[string]any{"error": err.Error()})
		} else if n > 0 {
			r.log.DebugObj("ledger pruned", "ledger_pruned", map[string]any{"removed": n})
		}
	}
}

func (r *Runner) unseen(items []domain.Headline) ([]domain.Headline, error) {
	if r.ledger == nil {
		return items, nil
	}

	ids := make([]string, len(items))
	for i, h := range items {
		ids[i] = h.ID
	}
	fresh, err := r.ledger.Unseen(ids)
	if err != nil {
		return nil, err
	}

	keep := make(map[string]struct{}, len(fresh))
	for _, id := range fresh {
		keep[id] = struct{}{}
	}
	out := make([]domain.Headline, 0, len(fresh))
	for _, h := range items {
		if _, ok := keep[h.ID]; ok {
			out = append(out, h)
		}
	}
	return out, nil
}

// StartCron triggers a breaking refresh on every tick of spec (standard 5-field cron syntax).
func (r *Runner) StartCron(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { r.Trigger(domain.ModeBreaking) }); err != nil {
		return fmt.Errorf("parse refresh cron %q: %w", spec, err)
	}

	r.mu.Lock()
	r.cron = c
	r.mu.Unlock()

	c.Start()
	r.log.InfoObj("refresh cron started", "cron_started", map[string]any{"spec": spec})
	return nil
}

// Stop halts the cron, cancels in-flight refreshes and waits for them until ctx ends.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.cancel()
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for refreshes: %w", ctx.Err())
	}
}
