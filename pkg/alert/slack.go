package alert

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Slack sends notifications via Slack incoming webhook.
type Slack struct {
	client     *http.Client
	webhookURL string
}

// NewSlack creates a new Slack notifier.
func NewSlack(webhookURL string) *Slack {
	return &Slack{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, n *Notification) error {
	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{
				"type": "plain_text",
				"text": fmt.Sprintf("📰 %s", n.Title),
			},
		},
		{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*Sentiment:* %s (%.2f, confidence %.2f)\n%s",
					n.Sentiment, n.Score, n.Confidence, strings.Join(n.Reasons, "\n")),
			},
		},
	}

	var elements []map[string]any
	if n.URL != "" {
		elements = append(elements, map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("<%s|Read article>", n.URL),
		})
	}
	if len(n.Themes) > 0 {
		elements = append(elements, map[string]any{
			"type": "mrkdwn",
			"text": "*Themes:* " + formatThemes(n.Themes),
		})
	}
	if len(elements) > 0 {
		blocks = append(blocks, map[string]any{
			"type":     "context",
			"elements": elements,
		})
	}

	payload := map[string]any{"blocks": blocks}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook status %d", resp.StatusCode)
	}

	return nil
}

// formatThemes renders themes by descending relevance.
func formatThemes(themes map[string]float64) string {
	ids := make([]string, 0, len(themes))
	for id := range themes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if themes[ids[i]] != themes[ids[j]] {
			return themes[ids[i]] > themes[ids[j]]
		}
		return ids[i] < ids[j]
	})
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%s %.2f", id, themes[id])
	}
	return strings.Join(parts, ", ")
}
