package theme

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/elonfeng/newslens/internal/metrics"
)

const (
	// MinRelevance is the lowest normalized score reported for a theme.
	MinRelevance = 0.01
	// DefaultTotalDocs stands in for the corpus size when it is unknown or zero.
	DefaultTotalDocs = 1000
)

// IDFMode selects how the document frequency of a keyword is estimated.
type IDFMode string

const (
	// IDFDocument uses the keyword's frequency in the scored document itself.
	// This dampens repetition rather than measuring rarity; it is the default
	// for compatibility with stored scores.
	IDFDocument IDFMode = "document"
	// IDFCorpus counts the stored articles that contain the keyword.
	IDFCorpus IDFMode = "corpus"
)

// CorpusStats gives the scorer access to corpus-wide counts.
type CorpusStats interface {
	CountArticles(ctx context.Context) (int, error)
	DocumentFrequency(ctx context.Context, term string) (int, error)
}

// Match explains how one theme was scored.
type Match struct {
	ThemeID       string   `json:"theme_id"`
	Matched       []string `json:"matched"`
	TotalKeywords int      `json:"total_keywords"`
	Coverage      float64  `json:"coverage"`
	Raw           float64  `json:"raw"`
	Score         float64  `json:"score"`
}

// Scorer computes theme relevance for articles.
type Scorer struct {
	taxonomy  *Taxonomy
	corpus    CorpusStats
	mode      IDFMode
	totalDocs int
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

// ScorerOption configures a Scorer.
type ScorerOption func(*Scorer)

// WithIDFMode selects the document frequency estimate.
func WithIDFMode(m IDFMode) ScorerOption { return func(s *Scorer) { s.mode = m } }

// WithDefaultTotalDocs overrides DefaultTotalDocs.
func WithDefaultTotalDocs(n int) ScorerOption {
	return func(s *Scorer) {
		if n > 0 {
			s.totalDocs = n
		}
	}
}

// WithScorerLogger sets the logger.
func WithScorerLogger(l zerolog.Logger) ScorerOption { return func(s *Scorer) { s.log = l } }

// WithScorerMetrics sets the metrics sink.
func WithScorerMetrics(m *metrics.Metrics) ScorerOption { return func(s *Scorer) { s.metrics = m } }

// NewScorer returns a scorer reading themes from taxonomy. corpus may be nil,
// in which case the default corpus size is used and corpus IDF is unavailable.
func NewScorer(taxonomy *Taxonomy, corpus CorpusStats, opts ...ScorerOption) *Scorer {
	s := &Scorer{
		taxonomy:  taxonomy,
		corpus:    corpus,
		mode:      IDFDocument,
		totalDocs: DefaultTotalDocs,
		log:       zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Score returns the themes whose normalized relevance reaches MinRelevance.
// Empty content yields an empty map. Load failures are logged and also yield
// an empty map; callers that persist the result should use Compute.
func (s *Scorer) Score(ctx context.Context, title, content string) Scores {
	scores, err := s.Compute(ctx, title, content)
	if err != nil {
		s.log.Error().Err(err).Msg("theme scoring skipped")
	}
	return scores
}

// Compute is Score that reports a failure to load the taxonomy instead of
// returning an empty result indistinguishable from "nothing matched".
func (s *Scorer) Compute(ctx context.Context, title, content string) (Scores, error) {
	scores := make(Scores)
	matches, err := s.explain(ctx, title, content)
	if err != nil {
		return scores, err
	}
	for _, m := range matches {
		if m.Score >= MinRelevance {
			scores[m.ThemeID] = m.Score
		}
	}
	s.metrics.AddThemeMatches(len(scores))
	return scores, nil
}

// Explain returns the scoring details of every theme with at least one
// matching keyword, including those below MinRelevance.
func (s *Scorer) Explain(ctx context.Context, title, content string) []Match {
	matches, err := s.explain(ctx, title, content)
	if err != nil {
		s.log.Error().Err(err).Msg("theme scoring skipped")
	}
	return matches
}

func (s *Scorer) explain(ctx context.Context, title, content string) ([]Match, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	themes, err := s.taxonomy.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load themes: %w", err)
	}

	freq, total := Frequencies(Tokenize(title + " " + content))
	totalDocs := float64(s.corpusSize(ctx))

	var out []Match
	for _, th := range themes {
		if len(th.Keywords) == 0 {
			continue
		}
		m := Match{ThemeID: th.ID, TotalKeywords: len(th.Keywords)}
		for _, kw := range th.Keywords {
			tf := freq[kw]
			if tf == 0 {
				continue
			}
			m.Matched = append(m.Matched, kw)
			m.Raw += tfidf(tf, s.docFreq(ctx, kw, tf), totalDocs)
		}
		if len(m.Matched) == 0 {
			continue
		}
		m.Coverage = float64(len(m.Matched)) / float64(m.TotalKeywords)
		// A keyword seen more often than there are documents has a negative IDF;
		// the theme is then treated as irrelevant rather than taking a square root of it.
		if m.Raw > 0 {
			m.Score = math.Min(math.Sqrt(m.Raw/float64(max(1, total)))*m.Coverage, 1.0)
		}
		s.log.Debug().
			Str("theme", th.ID).
			Int("matched", len(m.Matched)).
			Int("keywords", m.TotalKeywords).
			Float64("score", m.Score).
			Msg("theme scored")
		out = append(out, m)
	}
	return out, nil
}

func (s *Scorer) corpusSize(ctx context.Context) int {
	if s.corpus == nil {
		return s.totalDocs
	}
	n, err := s.corpus.CountArticles(ctx)
	if err != nil {
		s.log.Warn().Err(err).Int("default", s.totalDocs).Msg("corpus size unavailable")
		return s.totalDocs
	}
	if n <= 0 {
		return s.totalDocs
	}
	return n
}

func (s *Scorer) docFreq(ctx context.Context, keyword string, tf int) int {
	if s.mode == IDFCorpus && s.corpus != nil {
		df, err := s.corpus.DocumentFrequency(ctx, keyword)
		if err == nil {
			return max(1, df)
		}
		s.log.Warn().Err(err).Str("keyword", keyword).Msg("document frequency unavailable, using in-document count")
	}
	return max(1, tf)
}

func tfidf(tf, df int, totalDocs float64) float64 {
	if tf == 0 || df == 0 {
		return 0
	}
	return math.Log(1+float64(tf)) * math.Log(totalDocs/float64(df))
}
