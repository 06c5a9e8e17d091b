package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/elonfeng/newslens/internal/logging"
)

// Feed is a named RSS/Atom feed URL with its own keyword filter.
type Feed struct {
	Name   string
	URL    string
	Filter *Filter
}

// RSS collects news entries from RSS/Atom feeds.
type RSS struct {
	client *http.Client
	parser *gofeed.Parser
	feeds  []Feed
	maxAge time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

// RSSOption configures an RSS collector.
type RSSOption func(*RSS)

// WithMaxAge skips entries published more than d ago. Zero keeps everything.
func WithMaxAge(d time.Duration) RSSOption { return func(r *RSS) { r.maxAge = d } }

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) RSSOption { return func(r *RSS) { r.client = c } }

// WithRSSLogger sets the logger.
func WithRSSLogger(l zerolog.Logger) RSSOption { return func(r *RSS) { r.log = l } }

// NewRSS creates a new RSS collector.
func NewRSS(feeds []Feed, opts ...RSSOption) *RSS {
	r := &RSS{
		client: &http.Client{Timeout: 30 * time.Second},
		parser: gofeed.NewParser(),
		feeds:  feeds,
		now:    time.Now,
		log:    logging.Component("rss"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RSS) Name() string { return "rss" }

// Collect fetches every feed. A failing feed is logged and skipped; the
// error is returned only when all feeds failed.
func (r *RSS) Collect(ctx context.Context) ([]Entry, error) {
	var (
		all    []Entry
		failed int
		last   error
	)

	for _, feed := range r.feeds {
		entries, err := r.collectFeed(ctx, feed)
		if err != nil {
			r.log.Warn().Err(err).Str("feed", feed.Name).Msg("feed collection failed")
			failed++
			last = err
			continue
		}
		r.log.Debug().Str("feed", feed.Name).Int("entries", len(entries)).Msg("feed collected")
		all = append(all, entries...)
	}

	if len(r.feeds) > 0 && failed == len(r.feeds) {
		return nil, fmt.Errorf("all %d feeds failed: %w", failed, last)
	}
	return all, nil
}

func (r *RSS) collectFeed(ctx context.Context, feed Feed) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create rss request %s: %w", feed.Name, err)
	}
	req.Header.Set("User-Agent", "newslens/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rss %s: %w", feed.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rss %s status %d", feed.Name, resp.StatusCode)
	}

	parsed, err := r.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse rss %s: %w", feed.Name, err)
	}

	now := r.now().UTC()
	var entries []Entry

	for _, item := range parsed.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" && len(item.Links) > 0 {
			link = strings.TrimSpace(item.Links[0])
		}
		if link == "" {
			continue
		}

		published := now
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			published = item.UpdatedParsed.UTC()
		}
		if r.maxAge > 0 && published.Before(now.Add(-r.maxAge)) {
			continue
		}

		content := itemContent(item)
		if !feed.Filter.Allows(item.Title + " " + content) {
			continue
		}

		entries = append(entries, Entry{
			Title:       strings.TrimSpace(item.Title),
			Content:     content,
			Link:        link,
			PublishedAt: published,
			FeedName:    feed.Name,
			FeedURL:     feed.URL,
		})
	}

	return entries, nil
}

// itemContent prefers the summary, then the full content.
// gofeed maps RSS description and Atom summary to Description.
func itemContent(item *gofeed.Item) string {
	if s := strings.TrimSpace(item.Description); s != "" {
		return s
	}
	return strings.TrimSpace(item.Content)
}
