// Package source collects news entries from external feeds.
package source

import (
	"context"
	"time"
)

// Entry is one fetched news item, before it is stored or scored.
type Entry struct {
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Link        string    `json:"link"`
	PublishedAt time.Time `json:"published_at"`
	FeedName    string    `json:"feed_name"`
	FeedURL     string    `json:"feed_url"`
}

// Source is the interface every collector must implement.
type Source interface {
	Name() string
	Collect(ctx context.Context) ([]Entry, error)
}
