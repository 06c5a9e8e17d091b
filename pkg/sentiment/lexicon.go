package sentiment

import (
	"strings"
	"unicode"
)

// Curated bilingual term lists. Multi-word terms are matched as whole token
// sequences, so "chiffre d'affaires" matches "Chiffre d’affaires" but not "chiffres".
var (
	positiveTerms = []string{
		// fr
		"accord", "paix", "croissance", "succès", "victoire", "progrès", "amélioration",
		"reprise", "coopération", "stabilité", "espoir", "innovation", "solidarité",
		"réussite", "libération", "cessez-le-feu", "excédent", "embauches", "optimisme",
		"favorable", "encourageant", "prospérité", "réconciliation",
		// en
		"agreement", "peace", "growth", "success", "victory", "progress", "improvement",
		"recovery", "cooperation", "stability", "hope", "breakthrough", "ceasefire",
		"surplus", "optimism", "boost", "rally", "prosperity", "reconciliation", "welcomed",
	}

	negativeTerms = []string{
		// fr
		"guerre", "invasion", "conflit", "crise", "attentat", "attaque", "mort", "morts",
		"victimes", "récession", "chômage", "violence", "violences", "menace", "sanctions",
		"échec", "faillite", "tensions", "explosion", "bombardement", "bombardements",
		"massacre", "terrorisme", "pénurie", "licenciements", "déficit", "grève", "émeutes",
		// en
		"war", "conflict", "crisis", "attack", "death", "deaths", "killed", "victims",
		"recession", "unemployment", "threat", "failure", "bankruptcy", "tension",
		"bombing", "terrorism", "shortage", "layoffs", "deficit", "strike", "riots",
	}

	// Dry reporting vocabulary: currencies, ratios, reporting periods.
	neutralEconomicTerms = []string{
		// fr
		"trimestre", "trimestriel", "semestre", "semestriel", "exercice", "annuel", "mensuel",
		"chiffre d'affaires", "résultat net", "résultat opérationnel", "bilan", "dividende",
		"euros", "euro", "dollars", "dollar", "millions", "milliards", "taux", "ratio",
		"pourcentage", "points de base", "marge", "bénéfice par action",
		// en
		"quarter", "quarterly", "fiscal", "annual", "revenue", "net income", "earnings",
		"dividend", "million", "billion", "percent", "basis points", "margin", "ratios",
		"earnings per share", "year-over-year",
	}
)

// LexiconMatch counts term occurrences in a text.
type LexiconMatch struct {
	Positive        int
	Negative        int
	NeutralEconomic int
}

// Emotional returns the number of positive plus negative hits.
func (m LexiconMatch) Emotional() int { return m.Positive + m.Negative }

// KeywordScore is clamp((pos-neg)/(pos+neg+1), -1, 1).
func (m LexiconMatch) KeywordScore() float64 {
	return clampUnit(float64(m.Positive-m.Negative) / float64(m.Positive+m.Negative+1))
}

// EconomicallyNeutral reports dry financial reporting: at least three neutral
// economic terms and fewer than two emotional hits.
func (m LexiconMatch) EconomicallyNeutral() bool {
	return m.NeutralEconomic >= 3 && m.Emotional() < 2
}

type termClass int

const (
	classPositive termClass = iota
	classNegative
	classNeutralEconomic
)

type term struct {
	tokens []string
	class  termClass
}

// Lexicon matches curated terms on token boundaries, case-insensitively.
type Lexicon struct {
	// first token -> candidate terms starting with it
	index map[string][]term
}

// NewLexicon builds a lexicon from explicit term lists.
func NewLexicon(positive, negative, neutralEconomic []string) *Lexicon {
	l := &Lexicon{index: make(map[string][]term)}
	l.add(positive, classPositive)
	l.add(negative, classNegative)
	l.add(neutralEconomic, classNeutralEconomic)
	return l
}

// DefaultLexicon returns the built-in French/English lexicon.
func DefaultLexicon() *Lexicon {
	return NewLexicon(positiveTerms, negativeTerms, neutralEconomicTerms)
}

func (l *Lexicon) add(terms []string, class termClass) {
	for _, t := range terms {
		toks := words(t)
		if len(toks) == 0 {
			continue
		}
		l.index[toks[0]] = append(l.index[toks[0]], term{tokens: toks, class: class})
	}
}

// Match counts every occurrence of every term in text.
func (l *Lexicon) Match(text string) LexiconMatch {
	var m LexiconMatch
	toks := words(text)
	for i, tok := range toks {
		for _, t := range l.index[tok] {
			if !hasPrefix(toks[i:], t.tokens) {
				continue
			}
			switch t.class {
			case classPositive:
				m.Positive++
			case classNegative:
				m.Negative++
			case classNeutralEconomic:
				m.NeutralEconomic++
			}
		}
	}
	return m
}

func hasPrefix(toks, prefix []string) bool {
	if len(prefix) > len(toks) {
		return false
	}
	for i := range prefix {
		if toks[i] != prefix[i] {
			return false
		}
	}
	return true
}

// words lowercases s and splits it on anything that is not a letter or digit.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
