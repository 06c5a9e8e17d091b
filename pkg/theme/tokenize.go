package theme

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// French and English function words and auxiliaries.
var stopWords = toSet(
	// fr
	"le", "la", "les", "un", "une", "des", "du", "de", "et", "ou", "mais", "donc", "or", "ni", "car",
	"je", "tu", "il", "elle", "on", "nous", "vous", "ils", "elles", "me", "te", "se", "lui", "leur",
	"y", "en", "ce", "cette", "ces", "cet", "dans", "sur", "sous", "entre", "avant", "après",
	"pendant", "pour", "contre", "depuis", "jusque", "très", "plus", "moins", "aussi", "autant",
	"mieux", "être", "avoir", "faire", "aller", "venir", "pouvoir", "vouloir", "devoir",
	// en
	"the", "and", "but", "in", "at", "to", "for", "of", "with", "by", "is", "are", "was", "were",
	"be", "been", "have", "has", "had", "do", "does", "did", "will", "would", "could", "should",
	"may", "might", "must",
)

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// Tokenize lowercases text, splits it into runs of letters and drops stop
// words and words of two characters or fewer.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	words := fields[:0]
	for _, w := range fields {
		if utf8.RuneCountInString(w) <= 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		words = append(words, w)
	}
	return words
}

// Frequencies counts unigrams and adjacent bigrams ("w1 w2") of the filtered
// words. The second value is the total number of counted tokens.
func Frequencies(words []string) (map[string]int, int) {
	freq := make(map[string]int, 2*len(words))
	total := 0
	for i, w := range words {
		freq[w]++
		total++
		if i+1 < len(words) {
			freq[w+" "+words[i+1]]++
			total++
		}
	}
	return freq, total
}

// ContainsTerm reports whether the filtered words of term occur consecutively
// among the filtered words of text.
func ContainsTerm(text, term string) bool {
	want := Tokenize(term)
	if len(want) == 0 {
		return false
	}
	words := Tokenize(text)
	for i := 0; i+len(want) <= len(words); i++ {
		if slices.Equal(words[i:i+len(want)], want) {
			return true
		}
	}
	return false
}

// Matchable reports whether a normalized keyword can ever appear in
// Frequencies: one or two filtered words, spelled as Tokenize emits them.
func Matchable(keyword string) bool {
	words := Tokenize(keyword)
	return len(words) >= 1 && len(words) <= 2 && strings.Join(words, " ") == keyword
}
