package sentiment

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/newslens/internal/metrics"
)

func newClassifierServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var req map[string]string
		assert.NoError(t, json.Unmarshal(raw, &req))
		assert.NotEmpty(t, req["inputs"])

		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestRemoteClassifierNested(t *testing.T) {
	srv, _ := newClassifierServer(t, http.StatusOK,
		`[[{"label":"LABEL_0","score":0.81},{"label":"LABEL_1","score":0.15},{"label":"LABEL_2","score":0.04}]]`)
	m := metrics.NewMetrics()
	rc := NewRemoteClassifier(RemoteConfig{URL: srv.URL, Token: "secret"}, m, zerolog.Nop())

	pred, err := rc.Classify(context.Background(), "Guerre et invasion")
	require.NoError(t, err)
	assert.Equal(t, Prediction{Label: LabelNegative, Confidence: 0.81}, pred)
}

func TestRemoteClassifierFlat(t *testing.T) {
	srv, _ := newClassifierServer(t, http.StatusOK,
		`[{"label":"neutral","score":0.2},{"label":"positive","score":0.7}]`)
	rc := NewRemoteClassifier(RemoteConfig{URL: srv.URL, Token: "secret"}, nil, zerolog.Nop())

	pred, err := rc.Classify(context.Background(), "Accord de paix")
	require.NoError(t, err)
	assert.Equal(t, Prediction{Label: LabelPositive, Confidence: 0.7}, pred)
}

func TestRemoteClassifierErrors(t *testing.T) {
	tests := map[string]struct {
		status int
		body   string
	}{
		"status":        {http.StatusServiceUnavailable, `{"error":"loading"}`},
		"unknown label": {http.StatusOK, `[{"label":"mixed","score":0.9}]`},
		"empty":         {http.StatusOK, `[]`},
		"garbage":       {http.StatusOK, `not json`},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			srv, _ := newClassifierServer(t, tt.status, tt.body)
			rc := NewRemoteClassifier(RemoteConfig{URL: srv.URL, Token: "secret"}, nil, zerolog.Nop())
			_, err := rc.Classify(context.Background(), "texte de test")
			assert.Error(t, err)
		})
	}
}

func TestRemoteClassifierBreakerOpens(t *testing.T) {
	srv, hits := newClassifierServer(t, http.StatusInternalServerError, `oops`)
	rc := NewRemoteClassifier(RemoteConfig{URL: srv.URL, Token: "secret"}, nil, zerolog.Nop())

	for range 5 {
		_, err := rc.Classify(context.Background(), "texte de test")
		require.Error(t, err)
	}
	_, err := rc.Classify(context.Background(), "texte de test")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(5), hits.Load())
}

func TestRemoteLoader(t *testing.T) {
	t.Run("ready after warmup", func(t *testing.T) {
		srv, hits := newClassifierServer(t, http.StatusOK, `[{"label":"LABEL_1","score":0.9}]`)
		a := NewAdapter(RemoteLoader(RemoteConfig{URL: srv.URL, Token: "secret"}, nil, zerolog.Nop()))
		a.Start(context.Background())
		waitDone(t, a)

		require.True(t, a.Ready())
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("unavailable endpoint", func(t *testing.T) {
		srv, _ := newClassifierServer(t, http.StatusNotFound, ``)
		a := NewAdapter(RemoteLoader(RemoteConfig{URL: srv.URL, Token: "secret"}, nil, zerolog.Nop()))
		a.Start(context.Background())
		waitDone(t, a)

		assert.False(t, a.Ready())
		assert.Error(t, a.Err())
	})
}
