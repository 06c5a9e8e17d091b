package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/elonfeng/newslens/internal/store"
	"github.com/elonfeng/newslens/pkg/theme"
)

// StatsMinConfidence is the relevance an association needs to count in
// theme statistics.
const StatsMinConfidence = 0.3

// ThemeStore is the theme side of the store.
type ThemeStore interface {
	ListThemes(ctx context.Context) ([]theme.Theme, error)
	GetTheme(ctx context.Context, id string) (*theme.Theme, error)
	CreateTheme(ctx context.Context, t theme.Theme) error
	UpdateTheme(ctx context.Context, id string, u store.ThemeUpdate) error
	DeleteTheme(ctx context.Context, id string) error
	ThemeStatistics(ctx context.Context, minConfidence float64) ([]store.ThemeStat, error)
}

// Themes manages the taxonomy. Every successful mutation invalidates the
// cached taxonomy so the next scoring sees it.
type Themes struct {
	store    ThemeStore
	taxonomy *theme.Taxonomy
	log      zerolog.Logger
}

// NewThemes creates the theme management collaborator.
func NewThemes(st ThemeStore, tax *theme.Taxonomy, log zerolog.Logger) *Themes {
	return &Themes{store: st, taxonomy: tax, log: log}
}

func (t *Themes) List(ctx context.Context) ([]theme.Theme, error) {
	return t.store.ListThemes(ctx)
}

func (t *Themes) Get(ctx context.Context, id string) (*theme.Theme, error) {
	return t.store.GetTheme(ctx, id)
}

// Create validates and stores a new theme.
func (t *Themes) Create(ctx context.Context, th theme.Theme) error {
	th.ID = strings.TrimSpace(th.ID)
	th.Name = strings.TrimSpace(th.Name)
	th.Keywords = theme.NormalizeKeywords(th.Keywords)
	if err := th.Validate(); err != nil {
		return invalidArgument(err)
	}
	if err := t.store.CreateTheme(ctx, th); err != nil {
		return err
	}
	t.warnUnmatchable(th.ID, th.Keywords)
	t.invalidate("create", th.ID)
	return nil
}

// Update applies a partial update. Name, when given, must not be blank.
func (t *Themes) Update(ctx context.Context, id string, u store.ThemeUpdate) error {
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return fmt.Errorf("%w: theme name is empty", ErrInvalidArgument)
		}
		u.Name = &name
	}
	if u.Keywords != nil {
		u.Keywords = theme.NormalizeKeywords(u.Keywords)
	}
	if err := t.store.UpdateTheme(ctx, id, u); err != nil {
		return err
	}
	t.warnUnmatchable(id, u.Keywords)
	t.invalidate("update", id)
	return nil
}

// Delete removes a theme and its associations.
func (t *Themes) Delete(ctx context.Context, id string) error {
	if err := t.store.DeleteTheme(ctx, id); err != nil {
		return err
	}
	t.invalidate("delete", id)
	return nil
}

// Statistics counts the articles linked to each theme with at least
// StatsMinConfidence relevance.
func (t *Themes) Statistics(ctx context.Context) ([]store.ThemeStat, error) {
	return t.store.ThemeStatistics(ctx, StatsMinConfidence)
}

func (t *Themes) warnUnmatchable(id string, keywords []string) {
	if bad := theme.Unmatchable(keywords); len(bad) > 0 {
		t.log.Warn().Str("theme", id).Strs("keywords", bad).Msg("keywords can never match and lower coverage")
	}
}

func (t *Themes) invalidate(op, id string) {
	t.taxonomy.Invalidate()
	t.log.Info().Str("op", op).Str("theme", id).Msg("taxonomy invalidated")
}
