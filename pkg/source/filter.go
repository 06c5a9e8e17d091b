package source

import "strings"

// Filter drops entries by keyword. An entry is kept when it contains none of
// the exclude terms and, if include terms are set, at least one of them.
// Matching is case-insensitive substring matching on title and content.
type Filter struct {
	include []string
	exclude []string
}

// NewFilter creates a filter. Empty terms are ignored.
func NewFilter(include, exclude []string) *Filter {
	return &Filter{include: lowerAll(include), exclude: lowerAll(exclude)}
}

func lowerAll(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Allows reports whether an entry with this text passes the filter.
// A nil filter allows everything.
func (f *Filter) Allows(text string) bool {
	if f == nil {
		return true
	}
	lower := strings.ToLower(text)

	for _, ex := range f.exclude {
		if strings.Contains(lower, ex) {
			return false
		}
	}

	if len(f.include) == 0 {
		return true
	}
	for _, kw := range f.include {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
