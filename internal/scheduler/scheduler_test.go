package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/newslens/pkg/analysis"
	"github.com/elonfeng/newslens/pkg/source"
)

type stubSource struct {
	name    string
	entries []source.Entry
	err     error
}

func (s stubSource) Name() string { return s.name }

func (s stubSource) Collect(context.Context) ([]source.Entry, error) { return s.entries, s.err }

type stubIngester struct {
	mu    sync.Mutex
	calls int
	seen  []source.Entry
}

func (i *stubIngester) Ingest(_ context.Context, entries []source.Entry) (analysis.IngestStats, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls++
	i.seen = append(i.seen, entries...)
	return analysis.IngestStats{Fetched: len(entries), Inserted: len(entries)}, nil
}

func (i *stubIngester) Calls() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.calls
}

type stubPruner struct {
	cutoff time.Time
	n      int64
	err    error
}

func (p *stubPruner) DeleteArticlesBefore(_ context.Context, cutoff time.Time) (int64, error) {
	p.cutoff = cutoff
	return p.n, p.err
}

func TestCollect(t *testing.T) {
	ing := &stubIngester{}
	sources := []source.Source{
		stubSource{name: "a", entries: []source.Entry{{Link: "1"}, {Link: "2"}}},
		stubSource{name: "broken", err: errors.New("down")},
		stubSource{name: "b", entries: []source.Entry{{Link: "3"}}},
	}
	s := New(sources, ing, nil, Config{}, zerolog.Nop())

	stats := s.Collect(context.Background())
	assert.Equal(t, analysis.IngestStats{Fetched: 3, Inserted: 3}, stats)
	assert.Equal(t, 2, ing.Calls())
	assert.Len(t, ing.seen, 3)
}

func TestCleanup(t *testing.T) {
	p := &stubPruner{n: 4}
	s := New(nil, &stubIngester{}, p, Config{Retention: 48 * time.Hour}, zerolog.Nop())
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	assert.Equal(t, int64(4), s.Cleanup(context.Background()))
	assert.Equal(t, now.Add(-48*time.Hour), p.cutoff)

	p.err = errors.New("locked")
	assert.Zero(t, s.Cleanup(context.Background()))

	disabled := &stubPruner{}
	s = New(nil, &stubIngester{}, disabled, Config{}, zerolog.Nop())
	assert.Zero(t, s.Cleanup(context.Background()))
	assert.True(t, disabled.cutoff.IsZero())
}

func TestRunCollectsImmediatelyAndStops(t *testing.T) {
	ing := &stubIngester{}
	s := New([]source.Source{stubSource{name: "a", entries: []source.Entry{{Link: "1"}}}}, ing, nil,
		Config{CollectInterval: 10 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return ing.Calls() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
