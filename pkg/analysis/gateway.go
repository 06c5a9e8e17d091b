// Package analysis ties the sentiment ensemble and the theme scorer to the
// article store: it scores articles, persists the results and drives batch
// re-analysis and feed ingestion.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/elonfeng/newslens/internal/store"
	"github.com/elonfeng/newslens/pkg/sentiment"
)

// DefaultPersistThreshold is the minimum theme relevance that gets stored.
const DefaultPersistThreshold = 0.01

// ErrInvalidArgument marks caller input that can never succeed, such as a
// non-positive article id or a confidence outside [0, 1].
var ErrInvalidArgument = sentiment.ErrInvalidArgument

// argError tags an error from another package as an invalid argument while
// keeping its own message and identity.
type argError struct{ err error }

func (e argError) Error() string { return e.err.Error() }

func (e argError) Unwrap() []error { return []error{ErrInvalidArgument, e.err} }

func invalidArgument(err error) error {
	if err == nil || errors.Is(err, ErrInvalidArgument) {
		return err
	}
	return argError{err: err}
}

// Persistence is the subset of the store the gateway writes through.
type Persistence interface {
	UpdateSentiment(ctx context.Context, articleID int64, score float64, sentimentType string, confidence float64, model string) error
	ReplaceThemeAnalyses(ctx context.Context, articleID int64, analyses []store.ThemeAnalysis) error
}

// Gateway validates and writes scoring results for stored articles.
type Gateway struct {
	db        Persistence
	threshold float64
	log       zerolog.Logger
}

// NewGateway creates a gateway. A negative or NaN threshold falls back to
// DefaultPersistThreshold.
func NewGateway(db Persistence, threshold float64, log zerolog.Logger) *Gateway {
	if threshold < 0 || math.IsNaN(threshold) {
		threshold = DefaultPersistThreshold
	}
	return &Gateway{db: db, threshold: threshold, log: log}
}

// Threshold returns the minimum relevance PersistThemes keeps.
func (g *Gateway) Threshold() float64 { return g.threshold }

// Persist overwrites the sentiment of an article. Writing the same result
// twice leaves the same row.
func (g *Gateway) Persist(ctx context.Context, articleID int64, r sentiment.Result) error {
	if articleID <= 0 {
		return fmt.Errorf("%w: article id %d", ErrInvalidArgument, articleID)
	}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("persist sentiment of article %d: %w", articleID, err)
	}
	if err := g.db.UpdateSentiment(ctx, articleID, r.Score, string(r.Type), r.Confidence, r.Model); err != nil {
		return fmt.Errorf("persist sentiment of article %d: %w", articleID, err)
	}
	return nil
}

// PersistThemes replaces every theme association of an article with the
// scores at or above the threshold. The old rows are removed even when no
// score qualifies, all in one transaction.
func (g *Gateway) PersistThemes(ctx context.Context, articleID int64, scores map[string]float64) error {
	if articleID <= 0 {
		return fmt.Errorf("%w: article id %d", ErrInvalidArgument, articleID)
	}

	analyses := make([]store.ThemeAnalysis, 0, len(scores))
	for id, c := range scores {
		if id == "" {
			return fmt.Errorf("%w: empty theme id", ErrInvalidArgument)
		}
		if math.IsNaN(c) || c < 0 || c > 1 {
			return fmt.Errorf("%w: confidence %v for theme %s", ErrInvalidArgument, c, id)
		}
		if c < g.threshold {
			continue
		}
		analyses = append(analyses, store.ThemeAnalysis{ArticleID: articleID, ThemeID: id, Confidence: c})
	}
	sort.Slice(analyses, func(i, j int) bool { return analyses[i].ThemeID < analyses[j].ThemeID })

	if err := g.db.ReplaceThemeAnalyses(ctx, articleID, analyses); err != nil {
		return fmt.Errorf("persist themes of article %d: %w", articleID, err)
	}
	g.log.Debug().Int64("article_id", articleID).Int("themes", len(analyses)).Msg("themes persisted")
	return nil
}
