package alert

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"
)

// Notification is the data sent to alert destinations.
type Notification struct {
	Title       string             `json:"title"`
	Body        string             `json:"body"`
	URL         string             `json:"url"`
	PublishedAt time.Time          `json:"published_at"`
	Score       float64            `json:"score"`
	Sentiment   string             `json:"sentiment"`
	Confidence  float64            `json:"confidence"`
	Themes      map[string]float64 `json:"themes,omitempty"`
	Reasons     []string           `json:"reasons"`
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Rules decide which scored articles are worth a notification.
type Rules struct {
	// MinConfidence is the confidence a negative article needs to alert.
	MinConfidence float64
	// WatchThemes alert whenever an article reaches MinThemeConfidence on one of them.
	WatchThemes        []string
	MinThemeConfidence float64
}

// Evaluate returns why an article should alert, or nil if it should not.
func (r Rules) Evaluate(category string, confidence float64, themes map[string]float64) []string {
	var reasons []string
	if category == "negative" && confidence >= r.MinConfidence {
		reasons = append(reasons, fmt.Sprintf("negative sentiment (confidence %.2f)", confidence))
	}

	ids := make([]string, 0, len(themes))
	for id := range themes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if slices.Contains(r.WatchThemes, id) && themes[id] >= r.MinThemeConfidence {
			reasons = append(reasons, fmt.Sprintf("watched theme %s (%.2f)", id, themes[id]))
		}
	}
	return reasons
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return m != nil && len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}
