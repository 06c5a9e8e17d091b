// Package theme scores articles against a user-defined taxonomy of themes
// using keyword TF-IDF over unigrams and bigrams.
package theme

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidArgument marks a malformed theme definition.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Theme is a named set of keywords.
type Theme struct {
	ID          string   `json:"id" db:"id"`
	Name        string   `json:"name" db:"name"`
	Keywords    []string `json:"keywords" db:"-"`
	Color       string   `json:"color" db:"color"`
	Description string   `json:"description" db:"description"`
}

// Scores maps theme id to relevance in (0, 1].
type Scores map[string]float64

// Validate checks the fields every stored theme must have.
func (t Theme) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: theme id is empty", ErrInvalidArgument)
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: theme name is empty", ErrInvalidArgument)
	}
	return nil
}

var wordJoiners = strings.NewReplacer("-", " ", "'", " ", "’", " ")

// NormalizeKeywords lowercases and trims keywords, turns hyphens and
// apostrophes into spaces, and drops empty ones and duplicates.
func NormalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		k = strings.Join(strings.Fields(wordJoiners.Replace(strings.ToLower(k))), " ")
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Unmatchable returns the keywords that scoring can never find, such as stop
// words, words of two letters or fewer, digits, or phrases of three words.
// They still count towards a theme's keyword total.
func Unmatchable(keywords []string) []string {
	var out []string
	for _, k := range keywords {
		if !Matchable(k) {
			out = append(out, k)
		}
	}
	return out
}
