// Package scheduler runs feed ingestion and retention cleanup on a timer.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/elonfeng/newslens/pkg/analysis"
	"github.com/elonfeng/newslens/pkg/source"
)

// Ingester stores and scores collected entries.
type Ingester interface {
	Ingest(ctx context.Context, entries []source.Entry) (analysis.IngestStats, error)
}

// Pruner deletes articles older than a cutoff.
type Pruner interface {
	DeleteArticlesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler runs periodic collection and retention cleanup.
type Scheduler struct {
	sources    []source.Source
	ingester   Ingester
	pruner     Pruner
	collectInt time.Duration
	cleanupInt time.Duration
	retention  time.Duration
	now        func() time.Time
	log        zerolog.Logger

	// collectMu keeps a manual collection from overlapping a scheduled one.
	collectMu sync.Mutex
}

// Config holds the scheduler intervals. Zero intervals get defaults; a zero
// retention disables cleanup.
type Config struct {
	CollectInterval time.Duration
	CleanupInterval time.Duration
	Retention       time.Duration
}

// New creates a new scheduler.
func New(sources []source.Source, ingester Ingester, pruner Pruner, cfg Config, log zerolog.Logger) *Scheduler {
	if cfg.CollectInterval <= 0 {
		cfg.CollectInterval = 30 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 24 * time.Hour
	}
	return &Scheduler{
		sources:    sources,
		ingester:   ingester,
		pruner:     pruner,
		collectInt: cfg.CollectInterval,
		cleanupInt: cfg.CleanupInterval,
		retention:  cfg.Retention,
		now:        time.Now,
		log:        log,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	collectTicker := time.NewTicker(s.collectInt)
	cleanupTicker := time.NewTicker(s.cleanupInt)
	defer collectTicker.Stop()
	defer cleanupTicker.Stop()

	// Run immediately on start.
	s.log.Info().Msg("initial collection")
	s.Collect(ctx)
	s.Cleanup(ctx)

	s.log.Info().
		Dur("collect_every", s.collectInt).
		Dur("cleanup_every", s.cleanupInt).
		Dur("retention", s.retention).
		Msg("scheduler running")

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-collectTicker.C:
			s.Collect(ctx)
		case <-cleanupTicker.C:
			s.Cleanup(ctx)
		}
	}
}

// Collect fetches every source and ingests the entries. Source failures are
// logged and skipped.
func (s *Scheduler) Collect(ctx context.Context) analysis.IngestStats {
	s.collectMu.Lock()
	defer s.collectMu.Unlock()

	var total analysis.IngestStats
	for _, src := range s.sources {
		entries, err := src.Collect(ctx)
		if err != nil {
			s.log.Error().Err(err).Str("source", src.Name()).Msg("collection failed")
			continue
		}

		stats, err := s.ingester.Ingest(ctx, entries)
		if err != nil {
			s.log.Error().Err(err).Str("source", src.Name()).Msg("ingestion aborted")
		}
		s.log.Info().
			Str("source", src.Name()).
			Int("entries", len(entries)).
			Int("inserted", stats.Inserted).
			Msg("source collected")

		total.Fetched += stats.Fetched
		total.Inserted += stats.Inserted
		total.Duplicates += stats.Duplicates
		total.Skipped += stats.Skipped
		total.Failed += stats.Failed
		total.Alerts += stats.Alerts
	}
	return total
}

// Cleanup deletes articles older than the retention period.
func (s *Scheduler) Cleanup(ctx context.Context) int64 {
	if s.retention <= 0 || s.pruner == nil {
		return 0
	}
	cutoff := s.now().Add(-s.retention)
	n, err := s.pruner.DeleteArticlesBefore(ctx, cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("retention cleanup failed")
		return 0
	}
	if n > 0 {
		s.log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("old articles removed")
	}
	return n
}
