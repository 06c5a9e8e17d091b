package theme

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/elonfeng/newslens/internal/metrics"
)

// Source lists the current theme definitions.
type Source interface {
	ListThemes(ctx context.Context) ([]Theme, error)
}

// Taxonomy caches the theme list loaded from a Source. The first Get after
// construction or Invalidate reloads it; concurrent loads are collapsed into
// one. A load that started before an Invalidate never overwrites the cache.
type Taxonomy struct {
	src     Source
	log     zerolog.Logger
	metrics *metrics.Metrics
	group   singleflight.Group

	mu     sync.RWMutex
	themes []Theme
	loaded bool
	gen    uint64
}

// TaxonomyOption configures a Taxonomy.
type TaxonomyOption func(*Taxonomy)

// WithTaxonomyLogger sets the logger.
func WithTaxonomyLogger(l zerolog.Logger) TaxonomyOption {
	return func(t *Taxonomy) { t.log = l }
}

// WithTaxonomyMetrics sets the metrics sink.
func WithTaxonomyMetrics(m *metrics.Metrics) TaxonomyOption {
	return func(t *Taxonomy) { t.metrics = m }
}

// NewTaxonomy returns an empty cache over src.
func NewTaxonomy(src Source, opts ...TaxonomyOption) *Taxonomy {
	t := &Taxonomy{src: src, log: zerolog.Nop()}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Get returns the cached themes, loading them if needed. The returned slice
// is shared and must not be modified.
func (t *Taxonomy) Get(ctx context.Context) ([]Theme, error) {
	t.mu.RLock()
	if t.loaded {
		themes := t.themes
		t.mu.RUnlock()
		return themes, nil
	}
	gen := t.gen
	t.mu.RUnlock()

	v, err, _ := t.group.Do("taxonomy:"+strconv.FormatUint(gen, 10), func() (any, error) {
		return t.load(ctx, gen)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Theme), nil
}

func (t *Taxonomy) load(ctx context.Context, gen uint64) ([]Theme, error) {
	t.mu.RLock()
	if t.loaded && t.gen == gen {
		themes := t.themes
		t.mu.RUnlock()
		return themes, nil
	}
	t.mu.RUnlock()

	rows, err := t.src.ListThemes(ctx)
	if err != nil {
		t.metrics.IncTaxonomyReload(metrics.StatusFailure)
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}

	themes := make([]Theme, 0, len(rows))
	for _, th := range rows {
		th.Keywords = NormalizeKeywords(th.Keywords)
		themes = append(themes, th)
	}

	t.mu.Lock()
	stored := t.gen == gen
	if stored {
		t.themes = themes
		t.loaded = true
	}
	t.mu.Unlock()

	t.metrics.IncTaxonomyReload(metrics.StatusSuccess)
	t.log.Debug().Int("themes", len(themes)).Bool("stored", stored).Msg("taxonomy loaded")
	return themes, nil
}

// Invalidate drops the cached themes. The next Get reloads from the source.
func (t *Taxonomy) Invalidate() {
	t.mu.Lock()
	t.themes = nil
	t.loaded = false
	t.gen++
	t.mu.Unlock()
	t.log.Debug().Msg("taxonomy invalidated")
}
