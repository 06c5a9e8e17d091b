package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/newslens/internal/metrics"
	"github.com/elonfeng/newslens/internal/store"
	"github.com/elonfeng/newslens/pkg/alert"
	"github.com/elonfeng/newslens/pkg/sentiment"
	"github.com/elonfeng/newslens/pkg/source"
	"github.com/elonfeng/newslens/pkg/theme"
)

const defaultWorkers = 4

// Analysis is the scoring of one article.
type Analysis struct {
	Sentiment sentiment.Result `json:"sentiment"`
	Themes    theme.Scores     `json:"themes"`
}

// ReanalyzeStats summarizes a re-analysis run.
type ReanalyzeStats struct {
	Total          int `json:"total"`
	Analyzed       int `json:"analyzed"`
	ThemesDetected int `json:"themes_detected"`
	Failed         int `json:"failed"`
}

// IngestStats summarizes one ingestion batch.
type IngestStats struct {
	Fetched    int `json:"fetched"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
	Alerts     int `json:"alerts"`
}

// Service scores articles and keeps the store in sync with the results.
type Service struct {
	store     store.Store
	sentiment *sentiment.Ensemble
	scorer    *theme.Scorer
	taxonomy  *theme.Taxonomy
	gateway   *Gateway
	alerts    *alert.Manager
	rules     alert.Rules
	workers   int
	threshold float64
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithAlerts notifies m about ingested articles that match rules.
func WithAlerts(m *alert.Manager, rules alert.Rules) Option {
	return func(s *Service) {
		s.alerts = m
		s.rules = rules
	}
}

// WithWorkers bounds how many articles Reanalyze scores at once.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithPersistThreshold sets the minimum stored theme relevance.
func WithPersistThreshold(t float64) Option { return func(s *Service) { s.threshold = t } }

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.log = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// NewService wires the scorers to the store.
func NewService(st store.Store, ens *sentiment.Ensemble, scorer *theme.Scorer, tax *theme.Taxonomy, opts ...Option) *Service {
	s := &Service{
		store:     st,
		sentiment: ens,
		scorer:    scorer,
		taxonomy:  tax,
		workers:   defaultWorkers,
		threshold: DefaultPersistThreshold,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.gateway = NewGateway(st, s.threshold, s.log)
	return s
}

// Gateway returns the persistence gateway.
func (s *Service) Gateway() *Gateway { return s.gateway }

// AnalyzeArticle returns the sentiment of an article.
func (s *Service) AnalyzeArticle(ctx context.Context, title, content string) sentiment.Result {
	return s.sentiment.AnalyzeArticle(ctx, title, content)
}

// ScoreThemes returns the theme relevances of an article.
func (s *Service) ScoreThemes(ctx context.Context, title, content string) theme.Scores {
	return s.scorer.Score(ctx, title, content)
}

// Analyze scores an article without storing anything.
func (s *Service) Analyze(ctx context.Context, title, content string) (Analysis, error) {
	if !utf8.ValidString(title) || !utf8.ValidString(content) {
		return Analysis{}, fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidArgument)
	}
	return Analysis{
		Sentiment: s.AnalyzeArticle(ctx, title, content),
		Themes:    s.ScoreThemes(ctx, title, content),
	}, nil
}

// Process scores a stored article and persists both results. When the theme
// list cannot be loaded the sentiment is still stored but the article's theme
// associations are left as they were and an error is returned.
func (s *Service) Process(ctx context.Context, articleID int64, title, content string) (Analysis, error) {
	if articleID <= 0 {
		return Analysis{}, fmt.Errorf("%w: article id %d", ErrInvalidArgument, articleID)
	}
	if !utf8.ValidString(title) || !utf8.ValidString(content) {
		return Analysis{}, fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidArgument)
	}

	a := Analysis{Sentiment: s.AnalyzeArticle(ctx, title, content)}
	themes, themeErr := s.scorer.Compute(ctx, title, content)
	a.Themes = themes

	if err := s.gateway.Persist(ctx, articleID, a.Sentiment); err != nil {
		return a, err
	}
	if themeErr != nil {
		return a, fmt.Errorf("score themes of article %d: %w", articleID, themeErr)
	}
	if err := s.gateway.PersistThemes(ctx, articleID, a.Themes); err != nil {
		return a, err
	}
	return a, nil
}

// Reanalyze drops the cached taxonomy and rescores every stored article.
// Per-article failures are counted and logged; only a cancelled context or
// a failure to list articles aborts the run.
func (s *Service) Reanalyze(ctx context.Context) (ReanalyzeStats, error) {
	s.taxonomy.Invalidate()

	articles, err := s.store.ListArticles(ctx, store.ListOpts{Limit: -1})
	if err != nil {
		return ReanalyzeStats{}, fmt.Errorf("list articles: %w", err)
	}

	var analyzed, detected, failed atomic.Int64
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i := range articles {
		a := &articles[i]
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res, err := s.Process(ctx, a.ID, a.Title, a.Content)
			if err != nil {
				failed.Add(1)
				s.log.Warn().Err(err).Int64("article_id", a.ID).Msg("reanalyze article failed")
				return nil
			}
			analyzed.Add(1)
			detected.Add(int64(s.countPersisted(res.Themes)))
			return nil
		})
	}
	_ = g.Wait()

	stats := ReanalyzeStats{
		Total:          len(articles),
		Analyzed:       int(analyzed.Load()),
		ThemesDetected: int(detected.Load()),
		Failed:         int(failed.Load()),
	}
	s.log.Info().
		Int("total", stats.Total).
		Int("analyzed", stats.Analyzed).
		Int("themes_detected", stats.ThemesDetected).
		Int("failed", stats.Failed).
		Dur("took", time.Since(start)).
		Msg("reanalysis finished")

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

func (s *Service) countPersisted(scores theme.Scores) int {
	n := 0
	for _, c := range scores {
		if c >= s.gateway.Threshold() {
			n++
		}
	}
	return n
}

// Ingest stores and scores freshly collected entries. Entries without a link
// are skipped and links already stored are left untouched.
func (s *Service) Ingest(ctx context.Context, entries []source.Entry) (IngestStats, error) {
	stats := IngestStats{Fetched: len(entries)}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		link := strings.TrimSpace(e.Link)
		if link == "" {
			stats.Skipped++
			continue
		}

		article := &store.Article{
			Title:   strings.ToValidUTF8(strings.TrimSpace(e.Title), "�"),
			Content: strings.ToValidUTF8(strings.TrimSpace(e.Content), "�"),
			Link:    link,
			PubDate: e.PublishedAt,
			FeedURL: e.FeedURL,
		}
		if article.PubDate.IsZero() {
			article.PubDate = time.Now().UTC()
		}

		if err := s.store.InsertArticle(ctx, article); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				stats.Duplicates++
				s.metrics.IncArticlesIngested(metrics.StatusDuplicate)
				continue
			}
			stats.Failed++
			s.metrics.IncArticlesIngested(metrics.StatusFailure)
			s.log.Warn().Err(err).Str("link", link).Msg("insert article failed")
			continue
		}

		res, err := s.Process(ctx, article.ID, article.Title, article.Content)
		if err != nil {
			stats.Failed++
			s.metrics.IncArticlesIngested(metrics.StatusFailure)
			s.log.Warn().Err(err).Int64("article_id", article.ID).Msg("score article failed")
			continue
		}
		stats.Inserted++
		s.metrics.IncArticlesIngested(metrics.StatusSuccess)

		if s.notify(ctx, article, res) {
			stats.Alerts++
		}
	}

	s.log.Info().
		Int("fetched", stats.Fetched).
		Int("inserted", stats.Inserted).
		Int("duplicates", stats.Duplicates).
		Int("failed", stats.Failed).
		Int("alerts", stats.Alerts).
		Msg("ingestion finished")
	return stats, nil
}

// notify broadcasts an alert if the rules match and reports whether they did.
func (s *Service) notify(ctx context.Context, a *store.Article, res Analysis) bool {
	if !s.alerts.HasNotifiers() {
		return false
	}
	reasons := s.rules.Evaluate(string(res.Sentiment.Type), res.Sentiment.Confidence, res.Themes)
	if len(reasons) == 0 {
		return false
	}

	n := &alert.Notification{
		Title:       a.Title,
		Body:        excerpt(a.Content, 280),
		URL:         a.Link,
		PublishedAt: a.PubDate,
		Score:       res.Sentiment.Score,
		Sentiment:   string(res.Sentiment.Type),
		Confidence:  res.Sentiment.Confidence,
		Themes:      res.Themes,
		Reasons:     reasons,
	}
	if err := s.alerts.Broadcast(ctx, n); err != nil {
		s.log.Warn().Err(err).Str("link", a.Link).Msg("alert delivery failed")
	}
	return true
}

func excerpt(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxRunes]) + "..."
}
