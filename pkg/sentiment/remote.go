package sentiment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/elonfeng/newslens/internal/metrics"
)

const breakerName = "classifier"

// RemoteConfig configures a RemoteClassifier.
type RemoteConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// RemoteClassifier calls an inference endpoint that accepts {"inputs": text}
// and answers with label/score pairs, either flat or nested one level
// ([[{"label":"LABEL_2","score":0.91}, ...]]).
type RemoteClassifier struct {
	client  *http.Client
	url     string
	token   string
	cb      *gobreaker.CircuitBreaker[Prediction]
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewRemoteClassifier creates a remote classifier guarded by a circuit breaker.
func NewRemoteClassifier(cfg RemoteConfig, m *metrics.Metrics, log zerolog.Logger) *RemoteClassifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	rc := &RemoteClassifier{
		client:  &http.Client{Timeout: cfg.Timeout},
		url:     cfg.URL,
		token:   cfg.Token,
		metrics: m,
		log:     log,
	}
	m.SetCircuitBreakerState(breakerName, 0)
	rc.cb = gobreaker.NewCircuitBreaker[Prediction](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			m.SetCircuitBreakerState(name, stateValue(to))
		},
	})
	return rc
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}

// Classify implements Classifier.
func (rc *RemoteClassifier) Classify(ctx context.Context, text string) (Prediction, error) {
	pred, err := rc.cb.Execute(func() (Prediction, error) {
		return rc.call(ctx, text)
	})
	switch {
	case err == nil:
		rc.metrics.IncClassifierRequest(metrics.StatusSuccess)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		rc.metrics.IncClassifierRequest(metrics.StatusRejected)
	default:
		rc.metrics.IncClassifierRequest(metrics.StatusFailure)
	}
	return pred, err
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func (rc *RemoteClassifier) call(ctx context.Context, text string) (Prediction, error) {
	body, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return Prediction{}, fmt.Errorf("encode classifier request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rc.url, bytes.NewReader(body))
	if err != nil {
		return Prediction{}, fmt.Errorf("create classifier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if rc.token != "" {
		req.Header.Set("Authorization", "Bearer "+rc.token)
	}

	resp, err := rc.client.Do(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("call classifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Prediction{}, fmt.Errorf("classifier status %d", resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Prediction{}, fmt.Errorf("decode classifier response: %w", err)
	}
	scores, err := decodeScores(raw)
	if err != nil {
		return Prediction{}, err
	}
	return topPrediction(scores)
}

func decodeScores(raw json.RawMessage) ([]labelScore, error) {
	var nested [][]labelScore
	if err := json.Unmarshal(raw, &nested); err == nil {
		if len(nested) == 0 {
			return nil, errors.New("classifier: empty response")
		}
		return nested[0], nil
	}
	var flat []labelScore
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("decode classifier scores: %w", err)
	}
	return flat, nil
}

func topPrediction(scores []labelScore) (Prediction, error) {
	var (
		best  Prediction
		found bool
	)
	for _, s := range scores {
		label, err := ParseLabel(s.Label)
		if err != nil {
			return Prediction{}, err
		}
		if !found || s.Score > best.Confidence {
			best = Prediction{Label: label, Confidence: clamp(s.Score, 0, 1)}
			found = true
		}
	}
	if !found {
		return Prediction{}, errors.New("classifier: no labels returned")
	}
	return best, nil
}

// RemoteLoader returns a Loader that builds a RemoteClassifier and warms it
// up with one request, so the adapter only turns ready once the endpoint answers.
func RemoteLoader(cfg RemoteConfig, m *metrics.Metrics, log zerolog.Logger) Loader {
	return func(ctx context.Context) (Classifier, error) {
		rc := NewRemoteClassifier(cfg, m, log)
		if _, err := rc.call(ctx, "warmup request for the sentiment classifier"); err != nil {
			return nil, fmt.Errorf("warm up classifier %s: %w", cfg.URL, err)
		}
		return rc, nil
	}
}
