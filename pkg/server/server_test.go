package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/newslens/internal/metrics"
	"github.com/elonfeng/newslens/internal/store"
	"github.com/elonfeng/newslens/pkg/analysis"
	"github.com/elonfeng/newslens/pkg/sentiment"
	"github.com/elonfeng/newslens/pkg/theme"
)

type stubCollector struct{ calls int }

func (c *stubCollector) Collect(context.Context) analysis.IngestStats {
	c.calls++
	return analysis.IngestStats{Fetched: 2, Inserted: 1, Duplicates: 1}
}

type testEnv struct {
	handler   http.Handler
	store     *store.SQLiteStore
	service   *analysis.Service
	collector *stubCollector
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics()
	require.NoError(t, m.Register(reg))

	tax := theme.NewTaxonomy(st, theme.WithTaxonomyMetrics(m))
	// No corpus: the test database is too small for a meaningful IDF.
	scorer := theme.NewScorer(tax, nil, theme.WithDefaultTotalDocs(1000))
	svc := analysis.NewService(st, sentiment.NewEnsemble(sentiment.WithMetrics(m)), scorer, tax, analysis.WithMetrics(m))
	c := &stubCollector{}

	srv := New(Config{
		Store:     st,
		Service:   svc,
		Themes:    analysis.NewThemes(st, tax, zerolog.Nop()),
		Collector: c,
		Gatherer:  reg,
		Logger:    zerolog.Nop(),
	})
	return &testEnv{handler: srv.Handler(), store: st, service: svc, collector: c}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAnalyze(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/analyze", map[string]string{
		"title":   "Guerre et sanctions",
		"content": "Le conflit à la frontière provoque une crise grave et des sanctions sévères.",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decodeBody[analysis.Analysis](t, rec)
	assert.True(t, res.Sentiment.Type.Valid())
	assert.Contains(t, res.Sentiment.Model, "lexicon")
	assert.Contains(t, res.Themes, "geopolitique")

	count, err := env.store.CountArticles(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/analyze", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader("{not json"))
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArticlesAndSentiment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := &store.Article{
		Title:   "Attentat à Paris",
		Content: "La police enquête sur un attentat, la menace terroriste reste élevée.",
		Link:    "https://example.com/a",
		PubDate: time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, env.store.InsertArticle(ctx, a))
	_, err := env.service.Process(ctx, a.ID, a.Title, a.Content)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/v1/articles?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[struct {
		Data  []store.Article `json:"data"`
		Count int             `json:"count"`
	}](t, rec)
	assert.Equal(t, 1, list.Count)
	require.NotNil(t, list.Data[0].SentimentType)

	rec = env.do(t, http.MethodGet, "/api/v1/articles?theme=securite", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	byTheme := decodeBody[struct {
		Data []store.ThemedArticle `json:"data"`
	}](t, rec)
	require.Len(t, byTheme.Data, 1)
	assert.Positive(t, byTheme.Data[0].ThemeConfidence)

	rec = env.do(t, http.MethodGet, "/api/v1/articles/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/articles/99", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/articles/abc", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/articles?limit=-1", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/articles?since=yesterday", nil).Code)

	rec = env.do(t, http.MethodGet, "/api/v1/sentiment", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dist := decodeBody[struct {
		Data map[string]int `json:"data"`
	}](t, rec)
	total := 0
	for _, n := range dist.Data {
		total += n
	}
	assert.Equal(t, 1, total)
}

func TestThemeLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/themes", map[string]any{
		"id":       "sport",
		"name":     "Sport",
		"keywords": []string{"Football", "rugby"},
		"color":    "#112233",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[theme.Theme](t, rec)
	assert.Equal(t, []string{"football", "rugby"}, created.Keywords)

	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, "/api/v1/themes", map[string]any{"id": "sport", "name": "Again"}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/v1/themes", map[string]any{"id": "x", "name": "X", "color": "red"}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/v1/themes", map[string]any{"name": "No id"}).Code)

	rec = env.do(t, http.MethodPost, "/api/v1/analyze", map[string]string{"title": "Football", "content": "Le match de football était serré jusqu'au bout."})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeBody[analysis.Analysis](t, rec).Themes, "sport")

	rec = env.do(t, http.MethodPut, "/api/v1/themes/sport", map[string]any{"name": "Sports", "keywords": []string{"tennis"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[theme.Theme](t, rec)
	assert.Equal(t, "Sports", updated.Name)
	assert.Equal(t, "#112233", updated.Color)

	rec = env.do(t, http.MethodPost, "/api/v1/analyze", map[string]string{"title": "Football", "content": "Le match de football était serré jusqu'au bout."})
	assert.NotContains(t, decodeBody[analysis.Analysis](t, rec).Themes, "sport")

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, "/api/v1/themes/missing", map[string]any{"name": "X"}).Code)

	rec = env.do(t, http.MethodGet, "/api/v1/themes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, len(store.DefaultThemes)+1, decodeBody[struct {
		Count int `json:"count"`
	}](t, rec).Count)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/v1/themes/sport", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/themes/sport", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/v1/themes/sport", nil).Code)

	rec = env.do(t, http.MethodGet, "/api/v1/themes/statistics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, len(store.DefaultThemes), decodeBody[struct {
		Count int `json:"count"`
	}](t, rec).Count)
}

func TestReanalyzeAndCollect(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/reanalyze", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, analysis.ReanalyzeStats{}, decodeBody[analysis.ReanalyzeStats](t, rec))

	rec = env.do(t, http.MethodPost, "/api/v1/collect", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, analysis.IngestStats{Fetched: 2, Inserted: 1, Duplicates: 1}, decodeBody[analysis.IngestStats](t, rec))
	assert.Equal(t, 1, env.collector.calls)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/analyze", map[string]string{"content": "Une excellente nouvelle pour l'économie mondiale."})

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "newslens_sentiment_scored_total")
	assert.Contains(t, rec.Body.String(), "newslens_taxonomy_reloads_total")
}
