package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/elonfeng/newslens/internal/config"
	"github.com/elonfeng/newslens/internal/logging"
	"github.com/elonfeng/newslens/internal/metrics"
	"github.com/elonfeng/newslens/internal/scheduler"
	"github.com/elonfeng/newslens/internal/store"
	"github.com/elonfeng/newslens/pkg/alert"
	"github.com/elonfeng/newslens/pkg/analysis"
	"github.com/elonfeng/newslens/pkg/sentiment"
	"github.com/elonfeng/newslens/pkg/source"
	"github.com/elonfeng/newslens/pkg/theme"
)

// app holds the wired components shared by every command.
type app struct {
	cfg        *config.Config
	db         *store.SQLiteStore
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	taxonomy   *theme.Taxonomy
	classifier *sentiment.Adapter
	service    *analysis.Service
	themes     *analysis.Themes
	log        zerolog.Logger
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// newApp loads the config, opens the store and wires the scoring pipeline.
// The classifier, when enabled, starts loading in the background with ctx.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &app{
		cfg:      cfg,
		db:       db,
		registry: prometheus.NewRegistry(),
		metrics:  metrics.NewMetrics(),
		log:      logging.Component("app"),
	}
	if err := a.metrics.Register(a.registry); err != nil {
		db.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a.taxonomy = theme.NewTaxonomy(db,
		theme.WithTaxonomyLogger(logging.Component("taxonomy")),
		theme.WithTaxonomyMetrics(a.metrics),
	)
	scorer := theme.NewScorer(a.taxonomy, db,
		theme.WithIDFMode(theme.IDFMode(cfg.Themes.IDFMode)),
		theme.WithDefaultTotalDocs(cfg.Themes.DefaultTotalDocs),
		theme.WithScorerLogger(logging.Component("themes")),
		theme.WithScorerMetrics(a.metrics),
	)

	opts := []sentiment.Option{
		sentiment.WithLogger(logging.Component("sentiment")),
		sentiment.WithMetrics(a.metrics),
	}
	if !cfg.Sentiment.Statistical {
		opts = append(opts, sentiment.WithStatistical(nil))
	}
	if cc := cfg.Sentiment.Classifier; cc.Enabled {
		remote := sentiment.RemoteConfig{URL: cc.URL, Token: cc.Token, Timeout: cc.ParseTimeout()}
		clfLog := logging.Component("classifier")
		a.classifier = sentiment.NewAdapter(
			sentiment.RemoteLoader(remote, a.metrics, clfLog),
			sentiment.WithMaxInputRunes(cc.MaxInputRunes),
			sentiment.WithAdapterLogger(clfLog),
		)
		a.classifier.Start(ctx)
		opts = append(opts, sentiment.WithClassifier(a.classifier))
	}
	ensemble := sentiment.NewEnsemble(opts...)

	a.service = analysis.NewService(db, ensemble, scorer, a.taxonomy,
		analysis.WithAlerts(buildAlertManager(cfg), alert.Rules{
			MinConfidence:      cfg.Alerts.MinConfidence,
			WatchThemes:        cfg.Alerts.WatchThemes,
			MinThemeConfidence: cfg.Alerts.MinThemeConfidence,
		}),
		analysis.WithWorkers(cfg.Themes.Workers),
		analysis.WithPersistThreshold(cfg.Themes.PersistThreshold),
		analysis.WithLogger(logging.Component("analysis")),
		analysis.WithMetrics(a.metrics),
	)
	a.themes = analysis.NewThemes(db, a.taxonomy, logging.Component("themes"))

	return a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// waitClassifier gives a one-shot command the chance to use the classifier.
func (a *app) waitClassifier(ctx context.Context) {
	if a.classifier == nil {
		return
	}
	timeout := a.cfg.Sentiment.Classifier.ParseTimeout()
	select {
	case <-a.classifier.Done():
		if err := a.classifier.Err(); err != nil {
			a.log.Warn().Err(err).Msg("classifier unavailable, scoring without it")
		}
	case <-time.After(timeout):
		a.log.Warn().Dur("timeout", timeout).Msg("classifier still loading, scoring without it")
	case <-ctx.Done():
	}
}

func buildSources(cfg *config.Config, only []string) ([]source.Source, error) {
	wanted := make(map[string]bool, len(only))
	for _, name := range only {
		wanted[name] = true
	}

	var feeds []source.Feed
	for _, f := range cfg.Feeds {
		if len(wanted) > 0 && !wanted[f.Name] {
			continue
		}
		feeds = append(feeds, source.Feed{
			Name:   f.Name,
			URL:    f.URL,
			Filter: source.NewFilter(f.Include, f.Exclude),
		})
	}
	if len(only) > 0 && len(feeds) == 0 {
		return nil, fmt.Errorf("no matching feeds for: %v", only)
	}
	if len(feeds) == 0 {
		return nil, nil
	}

	return []source.Source{
		source.NewRSS(feeds,
			source.WithMaxAge(cfg.Schedule.ParseMaxAge()),
			source.WithRSSLogger(logging.Component("rss")),
		),
	}, nil
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func (a *app) scheduler(sources []source.Source) *scheduler.Scheduler {
	return scheduler.New(sources, a.service, a.db, scheduler.Config{
		CollectInterval: a.cfg.Schedule.ParseCollectInterval(),
		CleanupInterval: a.cfg.Schedule.ParseCleanupInterval(),
		Retention:       a.cfg.Schedule.ParseRetention(),
	}, logging.Component("scheduler"))
}
