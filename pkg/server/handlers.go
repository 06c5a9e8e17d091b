package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/elonfeng/newslens/internal/store"
	"github.com/elonfeng/newslens/pkg/analysis"
	"github.com/elonfeng/newslens/pkg/theme"
)

type analyzeRequest struct {
	Title   string `json:"title" validate:"max=1000"`
	Content string `json:"content" validate:"required_without=Title"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.service.Analyze(r.Context(), req.Title, req.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 100
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, fmt.Errorf("%w: limit %q", analysis.ErrInvalidArgument, v))
			return
		}
		limit = min(n, 1000)
	}

	if themeID := q.Get("theme"); themeID != "" {
		minConfidence := 0.0
		if v := q.Get("min_confidence"); v != "" {
			c, err := strconv.ParseFloat(v, 64)
			if err != nil || c < 0 || c > 1 {
				s.writeError(w, fmt.Errorf("%w: min_confidence %q", analysis.ErrInvalidArgument, v))
				return
			}
			minConfidence = c
		}
		articles, err := s.store.ArticlesByTheme(r.Context(), themeID, minConfidence, limit)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": articles, "count": len(articles)})
		return
	}

	opts := store.ListOpts{Limit: limit}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			s.writeError(w, fmt.Errorf("%w: since %q", analysis.ErrInvalidArgument, since))
			return
		}
		opts.Since = t
	}
	articles, err := s.store.ListArticles(r.Context(), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": articles, "count": len(articles)})
}

func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, fmt.Errorf("%w: article id %q", analysis.ErrInvalidArgument, chi.URLParam(r, "id")))
		return
	}
	a, err := s.store.GetArticle(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	themes, err := s.store.GetThemeAnalyses(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"article": a, "themes": themes})
}

func (s *Server) handleSentiment(w http.ResponseWriter, r *http.Request) {
	dist, err := s.store.SentimentDistribution(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": dist})
}

func (s *Server) handleReanalyze(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Reanalyze(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no feeds configured"})
		return
	}
	writeJSON(w, http.StatusOK, s.collector.Collect(r.Context()))
}

type themeRequest struct {
	ID          string   `json:"id" validate:"required,max=64,excludesall=/?#"`
	Name        string   `json:"name" validate:"required,max=200"`
	Keywords    []string `json:"keywords" validate:"dive,max=200"`
	Color       string   `json:"color" validate:"omitempty,hexcolor"`
	Description string   `json:"description" validate:"max=2000"`
}

type themeUpdateRequest struct {
	Name        *string  `json:"name" validate:"omitempty,max=200"`
	Keywords    []string `json:"keywords" validate:"omitempty,dive,max=200"`
	Color       *string  `json:"color" validate:"omitempty,hexcolor"`
	Description *string  `json:"description" validate:"omitempty,max=2000"`
}

func (s *Server) handleListThemes(w http.ResponseWriter, r *http.Request) {
	themes, err := s.themes.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": themes, "count": len(themes)})
}

func (s *Server) handleCreateTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	t := theme.Theme{
		ID:          req.ID,
		Name:        req.Name,
		Keywords:    req.Keywords,
		Color:       req.Color,
		Description: req.Description,
	}
	if err := s.themes.Create(r.Context(), t); err != nil {
		s.writeError(w, err)
		return
	}
	created, err := s.themes.Get(r.Context(), req.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	t, err := s.themes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTheme(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req themeUpdateRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	u := store.ThemeUpdate{
		Name:        req.Name,
		Keywords:    req.Keywords,
		Color:       req.Color,
		Description: req.Description,
	}
	if err := s.themes.Update(r.Context(), id, u); err != nil {
		s.writeError(w, err)
		return
	}
	updated, err := s.themes.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTheme(w http.ResponseWriter, r *http.Request) {
	if err := s.themes.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleThemeStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.themes.Statistics(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": stats, "count": len(stats)})
}
