package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/elonfeng/newslens/pkg/theme"
)

type themeRow struct {
	ID           string `db:"id"`
	Name         string `db:"name"`
	KeywordsJSON string `db:"keywords"`
	Color        string `db:"color"`
	Description  string `db:"description"`
}

func (r themeRow) theme() theme.Theme {
	t := theme.Theme{ID: r.ID, Name: r.Name, Color: r.Color, Description: r.Description}
	if err := json.Unmarshal([]byte(r.KeywordsJSON), &t.Keywords); err != nil {
		t.Keywords = nil
	}
	return t
}

func encodeKeywords(keywords []string) (string, error) {
	kw := theme.NormalizeKeywords(keywords)
	data, err := json.Marshal(kw)
	if err != nil {
		return "", fmt.Errorf("encode keywords: %w", err)
	}
	return string(data), nil
}

const themeColumns = "id, name, keywords, color, description"

func (s *SQLiteStore) ListThemes(ctx context.Context) ([]theme.Theme, error) {
	var rows []themeRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT "+themeColumns+" FROM themes ORDER BY name, id"); err != nil {
		return nil, fmt.Errorf("list themes: %w", err)
	}
	themes := make([]theme.Theme, 0, len(rows))
	for _, r := range rows {
		themes = append(themes, r.theme())
	}
	return themes, nil
}

func (s *SQLiteStore) GetTheme(ctx context.Context, id string) (*theme.Theme, error) {
	var r themeRow
	err := s.db.GetContext(ctx, &r, "SELECT "+themeColumns+" FROM themes WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("theme %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get theme %s: %w", id, err)
	}
	t := r.theme()
	return &t, nil
}

// CreateTheme inserts a theme. It returns ErrDuplicate if the id is taken.
func (s *SQLiteStore) CreateTheme(ctx context.Context, t theme.Theme) error {
	kw, err := encodeKeywords(t.Keywords)
	if err != nil {
		return err
	}
	color := t.Color
	if color == "" {
		color = "#6366f1"
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO themes (id, name, keywords, color, description)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, t.ID, t.Name, kw, color, t.Description)
	if err != nil {
		return fmt.Errorf("create theme %s: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("create theme %s: %w", t.ID, ErrDuplicate)
	}
	return nil
}

// UpdateTheme applies a partial update.
func (s *SQLiteStore) UpdateTheme(ctx context.Context, id string, u ThemeUpdate) error {
	query := "UPDATE themes SET id = id"
	var args []any

	if u.Name != nil {
		query += ", name = ?"
		args = append(args, *u.Name)
	}
	if u.Keywords != nil {
		kw, err := encodeKeywords(u.Keywords)
		if err != nil {
			return err
		}
		query += ", keywords = ?"
		args = append(args, kw)
	}
	if u.Color != nil {
		query += ", color = ?"
		args = append(args, *u.Color)
	}
	if u.Description != nil {
		query += ", description = ?"
		args = append(args, *u.Description)
	}
	query += " WHERE id = ?"
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update theme %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update theme %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteTheme removes a theme and its analyses.
func (s *SQLiteStore) DeleteTheme(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM themes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete theme %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete theme %s: %w", id, ErrNotFound)
	}
	return nil
}
