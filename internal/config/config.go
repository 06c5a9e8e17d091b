package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Feeds     []FeedItem      `yaml:"feeds" validate:"dive"`
	Sentiment SentimentConfig `yaml:"sentiment"`
	Themes    ThemesConfig    `yaml:"themes"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// ScheduleConfig configures ingestion and retention intervals.
type ScheduleConfig struct {
	CollectInterval string `yaml:"collect_interval"`
	CleanupInterval string `yaml:"cleanup_interval"`
	Retention       string `yaml:"retention"`
	// MaxAge skips feed entries older than this. Empty means no limit.
	MaxAge string `yaml:"max_age"`
}

// ParseCollectInterval returns the collect interval as time.Duration.
func (s ScheduleConfig) ParseCollectInterval() time.Duration {
	return parseDuration(s.CollectInterval, 30*time.Minute)
}

// ParseCleanupInterval returns the cleanup interval as time.Duration.
func (s ScheduleConfig) ParseCleanupInterval() time.Duration {
	return parseDuration(s.CleanupInterval, 24*time.Hour)
}

// ParseRetention returns how long articles are kept. Accepts a "d" suffix for days.
// Zero means articles are never deleted.
func (s ScheduleConfig) ParseRetention() time.Duration {
	r := strings.TrimSpace(s.Retention)
	if r == "" || r == "0" {
		return 0
	}
	if days, ok := strings.CutSuffix(r, "d"); ok {
		var n int
		if _, err := fmt.Sscanf(days, "%d", &n); err == nil && n > 0 {
			return time.Duration(n) * 24 * time.Hour
		}
		return 30 * 24 * time.Hour
	}
	return parseDuration(r, 30*24*time.Hour)
}

// ParseMaxAge returns the feed entry age limit, zero meaning none.
func (s ScheduleConfig) ParseMaxAge() time.Duration {
	return parseDuration(s.MaxAge, 0)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// FeedItem is a single RSS/Atom feed entry.
type FeedItem struct {
	Name string `yaml:"name" validate:"required"`
	URL  string `yaml:"url" validate:"required,url"`
	// Include keeps only entries mentioning one of these terms when set.
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// SentimentConfig configures the sentiment ensemble.
type SentimentConfig struct {
	// Statistical enables the two general-purpose polarity estimators.
	Statistical bool             `yaml:"statistical"`
	Classifier  ClassifierConfig `yaml:"classifier"`
}

// ClassifierConfig configures the optional remote 3-class classifier.
type ClassifierConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url" validate:"required_if=Enabled true,omitempty,url"`
	Token         string `yaml:"token"`
	Timeout       string `yaml:"timeout"`
	MaxInputRunes int    `yaml:"max_input_runes" validate:"gte=0"`
}

// ParseTimeout returns the per-call timeout of the remote classifier.
func (c ClassifierConfig) ParseTimeout() time.Duration {
	return parseDuration(c.Timeout, 10*time.Second)
}

// ThemesConfig configures the thematic relevance scorer.
type ThemesConfig struct {
	PersistThreshold float64 `yaml:"persist_threshold" validate:"gte=0,lte=1"`
	DefaultTotalDocs int     `yaml:"default_total_docs" validate:"gte=1"`
	// IDFMode is "document" (same-document proxy) or "corpus".
	IDFMode string `yaml:"idf_mode" validate:"oneof=document corpus"`
	// Workers bounds concurrency during re-analysis.
	Workers int `yaml:"workers" validate:"gte=1,lte=64"`
}

// AlertsConfig configures alert destinations and rules.
type AlertsConfig struct {
	MinConfidence      float64       `yaml:"min_confidence" validate:"gte=0,lte=1"`
	WatchThemes        []string      `yaml:"watch_themes"`
	MinThemeConfidence float64       `yaml:"min_theme_confidence" validate:"gte=0,lte=1"`
	Slack              SlackConfig   `yaml:"slack"`
	Webhook            WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url" validate:"required_if=Enabled true"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url" validate:"required_if=Enabled true"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" validate:"gte=0,lte=65535"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./newslens.db"},
		Schedule: ScheduleConfig{
			CollectInterval: "30m",
			CleanupInterval: "24h",
			Retention:       "30d",
		},
		Feeds: []FeedItem{
			{Name: "Le Monde International", URL: "https://www.lemonde.fr/international/rss_full.xml"},
			{Name: "France 24", URL: "https://www.france24.com/fr/rss"},
			{Name: "BBC World", URL: "https://feeds.bbci.co.uk/news/world/rss.xml"},
		},
		Sentiment: SentimentConfig{
			Statistical: true,
			Classifier: ClassifierConfig{
				Timeout:       "10s",
				MaxInputRunes: 512,
			},
		},
		Themes: ThemesConfig{
			PersistThreshold: 0.01,
			DefaultTotalDocs: 1000,
			IDFMode:          "document",
			Workers:          4,
		},
		Alerts: AlertsConfig{
			MinConfidence:      0.6,
			MinThemeConfidence: 0.3,
		},
		Server: ServerConfig{Port: 8080},
		Log:    LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads configuration from a YAML file, applies env var overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NEWSLENS_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("NEWSLENS_CLASSIFIER_URL"); v != "" {
		cfg.Sentiment.Classifier.URL = v
		cfg.Sentiment.Classifier.Enabled = true
	}
	if v := os.Getenv("NEWSLENS_CLASSIFIER_TOKEN"); v != "" {
		cfg.Sentiment.Classifier.Token = v
	}
	if v := os.Getenv("NEWSLENS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
}
