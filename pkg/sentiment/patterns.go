package sentiment

import "regexp"

const (
	patternStep = 0.2
	patternCap  = 0.8
)

var (
	// rising trends with a figure, record language, superlatives
	risingPattern = regexp.MustCompile(`(?i)` +
		`(?:hausse|augmentation|progression|croissance|bond|rise|rose|increase|growth|gain|jump|surge)\pL*\s+(?:de\s+|by\s+|of\s+)?\+?\d+(?:[.,]\d+)?\s?(?:%|pour\s?cent|percent)` +
		`|\+\d+(?:[.,]\d+)?\s?(?:%|pour\s?cent|percent)` +
		`|\brecords?\b|\bhistorique\b|all-time\s+high|plus\s+haut\s+historique` +
		`|\b(?:meilleure?s?|best|highest|strongest)\b`)

	// falling trends with a figure, catastrophe language
	fallingPattern = regexp.MustCompile(`(?i)` +
		`(?:baisse|chute|recul|diminution|repli|fall|fell|drop|decline|plunge|slump)\pL*\s+(?:de\s+|by\s+|of\s+)?-?\d+(?:[.,]\d+)?\s?(?:%|pour\s?cent|percent)` +
		`|(?:^|\s)-\d+(?:[.,]\d+)?\s?(?:%|pour\s?cent|percent)` +
		`|\bcatastroph\pL*|\beffondrement\b|\bcrash\b|\bkrach\b|d[ée]sastre\pL*|\bdisasters?\b|\bdevastating\b|d[ée]vastat\pL*`)
)

// PatternDetector adds a bounded adjustment for trend and catastrophe language
// that plain keyword counting misses.
type PatternDetector struct {
	rising  *regexp.Regexp
	falling *regexp.Regexp
}

// DefaultPatterns returns the built-in bilingual pattern detector.
func DefaultPatterns() *PatternDetector {
	return &PatternDetector{rising: risingPattern, falling: fallingPattern}
}

// Adjustment returns the net signed adjustment in [-0.8, 0.8]. Each match is
// worth 0.2 and each direction is capped at 0.8.
func (p *PatternDetector) Adjustment(text string) float64 {
	up := float64(len(p.rising.FindAllStringIndex(text, -1))) * patternStep
	down := float64(len(p.falling.FindAllStringIndex(text, -1))) * patternStep
	if up > patternCap {
		up = patternCap
	}
	if down > patternCap {
		down = patternCap
	}
	return up - down
}
