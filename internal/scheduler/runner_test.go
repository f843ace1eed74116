package scheduler_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Adda-Baaj/akhbar/internal/domain"
	"github.com/Adda-Baaj/akhbar/internal/scheduler"
	"github.com/Adda-Baaj/akhbar/internal/store"
	"github.com/Adda-Baaj/akhbar/pkg/publishers"
)

type fakePipelines struct {
	breaking     []domain.Headline
	release      chan struct{}
	breakingRuns atomic.Int32
	lebanonRuns  atomic.Int32
}

func (f *fakePipelines) FetchAllBreaking(ctx context.Context) []domain.Headline {
	f.breakingRuns.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
		}
	}
	return f.breaking
}

func (f *fakePipelines) FetchAllLebanon(context.Context) map[string][]domain.Headline {
	f.lebanonRuns.Add(1)
	return map[string][]domain.Headline{"النهار": {{ID: "n"}}}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishers.Event
	failOn string
}

func (p *fakePublisher) ID() string   { return "fake" }
func (p *fakePublisher) Type() string { return "fake" }
func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) Publish(_ context.Context, evt publishers.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if evt.HeadlineID == p.failOn {
		return errors.New("sink down")
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *fakePublisher) headlineIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, len(p.events))
	for i, e := range p.events {
		ids[i] = e.HeadlineID
	}
	return ids
}

type stampEnricher struct{}

func (stampEnricher) Enrich(_ context.Context, hs []domain.Headline) []domain.Headline {
	out := make([]domain.Headline, len(hs))
	for i, h := range hs {
		h.ImageURL = "https://img.test/" + h.ID
		out[i] = h
	}
	return out
}

func TestTriggerCoalescesConcurrentRefreshes(t *testing.T) {
	engine := &fakePipelines{release: make(chan struct{})}
	r := scheduler.New(engine)

	require.True(t, r.Trigger(domain.ModeBreaking))
	require.Eventually(t, func() bool { return engine.breakingRuns.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.False(t, r.Trigger(domain.ModeBreaking))
	require.True(t, r.Trigger(domain.ModeLebanon))

	close(engine.release)
	require.NoError(t, r.Stop(context.Background()))

	require.EqualValues(t, 1, engine.breakingRuns.Load())
	require.EqualValues(t, 1, engine.lebanonRuns.Load())
	require.False(t, r.Trigger(domain.ModeBreaking))
}

func TestTriggerReturnsImmediately(t *testing.T) {
	engine := &fakePipelines{release: make(chan struct{})}
	r := scheduler.New(engine, scheduler.WithTimeout(20*time.Millisecond))

	start := time.Now()
	require.True(t, r.Trigger(domain.ModeBreaking))
	require.Less(t, time.Since(start), 10*time.Millisecond)

	// the refresh timeout unblocks the pipeline
	require.Eventually(t, func() bool { return r.Trigger(domain.ModeBreaking) }, time.Second, 5*time.Millisecond)
	close(engine.release)
	require.NoError(t, r.Stop(context.Background()))
}

func TestRunPublishesOnlyUnseenHeadlines(t *testing.T) {
	ledger, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer ledger.Close()

	engine := &fakePipelines{breaking: []domain.Headline{
		{ID: "a", Title: "عاجل 1", URL: "https://x.test/a"},
		{ID: "b", Title: "عاجل 2", URL: "https://x.test/b"},
		{ID: "c", Title: "عاجل 3", URL: "https://x.test/c"},
	}}
	pub := &fakePublisher{failOn: "b"}
	r := scheduler.New(engine,
		scheduler.WithPublishers([]publishers.Publisher{pub}),
		scheduler.WithLedger(ledger, time.Hour),
		scheduler.WithEnricher(stampEnricher{}),
	)

	r.Run(context.Background(), domain.ModeBreaking)
	require.Equal(t, []string{"a", "c"}, pub.headlineIDs())
	require.Equal(t, "https://img.test/a", pub.events[0].ImageURL)

	// b failed and is retried; a and c are already in the ledger
	pub.failOn = ""
	r.Run(context.Background(), domain.ModeBreaking)
	require.Equal(t, []string{"a", "c", "b"}, pub.headlineIDs())

	r.Run(context.Background(), domain.ModeBreaking)
	require.Len(t, pub.headlineIDs(), 3)
}

func TestRunWithoutLedgerPublishesEverything(t *testing.T) {
	engine := &fakePipelines{breaking: []domain.Headline{{ID: "a"}, {ID: "b"}}}
	pub := &fakePublisher{}
	r := scheduler.New(engine, scheduler.WithPublishers([]publishers.Publisher{pub}))

	r.Run(context.Background(), domain.ModeBreaking)
	r.Run(context.Background(), domain.ModeBreaking)
	require.Equal(t, []string{"a", "b", "a", "b"}, pub.headlineIDs())
}

func TestRunLebanonDoesNotPublish(t *testing.T) {
	engine := &fakePipelines{}
	pub := &fakePublisher{}
	r := scheduler.New(engine, scheduler.WithPublishers([]publishers.Publisher{pub}))

	r.Run(context.Background(), domain.ModeLebanon)
	require.EqualValues(t, 1, engine.lebanonRuns.Load())
	require.Empty(t, pub.headlineIDs())
}

func TestStartCronRejectsBadSpec(t *testing.T) {
	r := scheduler.New(&fakePipelines{})
	require.Error(t, r.StartCron("not a cron"))
	require.NoError(t, r.StartCron("@every 1h"))
	require.NoError(t, r.Stop(context.Background()))
}
