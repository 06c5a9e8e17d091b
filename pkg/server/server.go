// Package server exposes scoring, articles and theme management over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/elonfeng/newslens/internal/store"
	"github.com/elonfeng/newslens/pkg/analysis"
)

// Collector runs one ingestion pass on demand.
type Collector interface {
	Collect(ctx context.Context) analysis.IngestStats
}

// Server provides the HTTP API.
type Server struct {
	store     store.Store
	service   *analysis.Service
	themes    *analysis.Themes
	collector Collector
	gatherer  prometheus.Gatherer
	validate  *validator.Validate
	port      int
	log       zerolog.Logger
}

// Config wires a Server. Collector and Gatherer are optional.
type Config struct {
	Store     store.Store
	Service   *analysis.Service
	Themes    *analysis.Themes
	Collector Collector
	Gatherer  prometheus.Gatherer
	Port      int
	Logger    zerolog.Logger
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		store:     cfg.Store,
		service:   cfg.Service,
		themes:    cfg.Themes,
		collector: cfg.Collector,
		gatherer:  cfg.Gatherer,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		port:      cfg.Port,
		log:       cfg.Logger,
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/articles", s.handleArticles)
		r.Get("/articles/{id}", s.handleArticle)
		r.Get("/sentiment", s.handleSentiment)
		r.Post("/reanalyze", s.handleReanalyze)
		r.Post("/collect", s.handleCollect)

		r.Route("/themes", func(r chi.Router) {
			r.Get("/", s.handleListThemes)
			r.Post("/", s.handleCreateTheme)
			r.Get("/statistics", s.handleThemeStatistics)
			r.Get("/{id}", s.handleGetTheme)
			r.Put("/{id}", s.handleUpdateTheme)
			r.Delete("/{id}", s.handleDeleteTheme)
		})
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("newslens server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads a JSON body into v and validates it.
func (s *Server) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %v", analysis.ErrInvalidArgument, err)
	}
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", analysis.ErrInvalidArgument, err)
	}
	return nil
}

// writeError maps domain errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, analysis.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
