package sentiment

import (
	"math"
	"strings"
)

// Estimator is a general-purpose polarity estimator returning a value in [-1, 1].
type Estimator interface {
	Name() string
	Polarity(text string) float64
}

// Statistical averages independent estimators into a single signal.
type Statistical struct {
	estimators []Estimator
}

// NewStatistical returns a scorer over the given estimators, or over the
// built-in valence and intensity estimators when none are given.
func NewStatistical(estimators ...Estimator) *Statistical {
	if len(estimators) == 0 {
		estimators = []Estimator{NewValence(), NewIntensity()}
	}
	return &Statistical{estimators: estimators}
}

// Polarity returns the mean polarity of all estimators.
func (s *Statistical) Polarity(text string) float64 {
	if len(s.estimators) == 0 {
		return 0
	}
	var sum float64
	for _, e := range s.estimators {
		sum += clampUnit(e.Polarity(text))
	}
	return clampUnit(sum / float64(len(s.estimators)))
}

var negations = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "none": {}, "nor": {}, "without": {}, "cannot": {}, "isn": {}, "don": {}, "doesn": {}, "didn": {}, "wasn": {},
	"ne": {}, "pas": {}, "jamais": {}, "aucun": {}, "aucune": {}, "sans": {}, "ni": {}, "rien": {},
}

func isNegation(tok string) bool {
	_, ok := negations[tok]
	return ok
}

// Valence is a rule-based estimator in the style of VADER: word valences on a
// [-4, 4] scale, boosted by intensifiers, flipped by nearby negations, and
// normalised with x/sqrt(x²+alpha).
type Valence struct {
	lexicon  map[string]float64
	boosters map[string]float64
	alpha    float64
}

// NewValence returns the built-in valence estimator.
func NewValence() *Valence {
	return &Valence{lexicon: valenceLexicon, boosters: valenceBoosters, alpha: 15}
}

func (v *Valence) Name() string { return "valence" }

// Polarity implements Estimator.
func (v *Valence) Polarity(text string) float64 {
	toks := words(text)
	var sum float64
	for i, tok := range toks {
		val, ok := v.lexicon[tok]
		if !ok {
			continue
		}
		// boosters decay with distance
		for d, scale := range []float64{1, 0.95, 0.9} {
			j := i - d - 1
			if j < 0 {
				break
			}
			if b, ok := v.boosters[toks[j]]; ok {
				if val < 0 {
					val -= b * scale
				} else {
					val += b * scale
				}
			}
		}
		for d := 1; d <= 3 && i-d >= 0; d++ {
			if isNegation(toks[i-d]) {
				val *= -0.74
				break
			}
		}
		sum += val
	}
	if sum == 0 {
		return 0
	}
	if bangs := math.Min(float64(strings.Count(text, "!")), 4); bangs > 0 {
		sum += math.Copysign(bangs*0.292, sum)
	}
	return clampUnit(sum / math.Sqrt(sum*sum+v.alpha))
}

// Intensity is a pattern estimator in the style of TextBlob: the mean of word
// polarities in [-1, 1], scaled by a preceding intensifier and halved and
// inverted after a negation.
type Intensity struct {
	lexicon      map[string]float64
	intensifiers map[string]float64
}

// NewIntensity returns the built-in intensity estimator.
func NewIntensity() *Intensity {
	return &Intensity{lexicon: intensityLexicon, intensifiers: intensityModifiers}
}

func (in *Intensity) Name() string { return "intensity" }

// Polarity implements Estimator.
func (in *Intensity) Polarity(text string) float64 {
	var (
		vals     []float64
		modifier = 1.0
		negate   bool
	)
	for _, tok := range words(text) {
		if m, ok := in.intensifiers[tok]; ok {
			modifier *= m
			continue
		}
		if isNegation(tok) {
			negate = true
			continue
		}
		p, ok := in.lexicon[tok]
		if !ok {
			modifier = 1
			continue
		}
		p *= modifier
		if negate {
			p *= -0.5
		}
		vals = append(vals, clampUnit(p))
		modifier, negate = 1, false
	}
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, p := range vals {
		sum += p
	}
	return clampUnit(sum / float64(len(vals)))
}

var valenceBoosters = map[string]float64{
	"very": 0.293, "extremely": 0.293, "highly": 0.293, "deeply": 0.293, "really": 0.293, "hugely": 0.293, "most": 0.293,
	"slightly": -0.293, "somewhat": -0.293, "barely": -0.293, "marginally": -0.293,
	"très": 0.293, "extrêmement": 0.293, "profondément": 0.293, "vraiment": 0.293, "fortement": 0.293, "particulièrement": 0.293,
	"légèrement": -0.293, "peu": -0.293, "quelque": -0.293,
}

var valenceLexicon = map[string]float64{
	// en
	"good": 1.9, "great": 3.1, "excellent": 3.2, "positive": 2.6, "success": 2.7, "successful": 2.8,
	"win": 2.8, "wins": 2.7, "hope": 1.9, "peace": 2.5, "agreement": 1.6, "support": 1.7,
	"improve": 1.9, "improved": 2.1, "growth": 1.6, "recovery": 1.7, "safe": 1.9, "strong": 2.3,
	"happy": 2.7, "celebrate": 2.7, "welcome": 2.0, "benefit": 2.0, "progress": 1.8,
	"bad": -2.5, "terrible": -3.1, "awful": -2.8, "negative": -2.7, "fail": -2.5, "failure": -2.3,
	"war": -2.9, "attack": -2.1, "crisis": -3.1, "death": -2.9, "killed": -3.5, "kill": -3.7,
	"fear": -2.2, "threat": -2.4, "violence": -3.1, "loss": -1.3, "losses": -1.3, "collapse": -2.2,
	"danger": -2.4, "worse": -2.1, "worst": -3.1, "angry": -2.3, "sad": -2.1, "poor": -2.1,
	// fr
	"bon": 1.9, "bonne": 1.9, "positif": 2.6, "succès": 2.7, "réussite": 2.8, "victoire": 2.8,
	"espoir": 1.9, "paix": 2.5, "accord": 1.6, "soutien": 1.7, "améliorer": 1.9, "amélioration": 2.1,
	"croissance": 1.6, "reprise": 1.5, "sûr": 1.9, "fort": 1.8, "heureux": 2.7, "célébrer": 2.7,
	"bienvenue": 2.0, "progrès": 1.8, "favorable": 1.8,
	"mauvais": -2.5, "mauvaise": -2.5, "négatif": -2.7, "échec": -2.5, "guerre": -2.9, "attaque": -2.1,
	"crise": -3.1, "mort": -2.9, "morts": -2.9, "tués": -3.5, "peur": -2.2, "menace": -2.4,
	"perte": -1.3, "pertes": -1.3, "effondrement": -2.2, "pire": -3.1, "colère": -2.3, "triste": -2.1,
	"invasion": -2.6, "conflit": -2.3,
}

var intensityModifiers = map[string]float64{
	"very": 1.3, "extremely": 1.5, "really": 1.2, "highly": 1.3, "quite": 1.1, "slightly": 0.7, "somewhat": 0.8,
	"très": 1.3, "extrêmement": 1.5, "vraiment": 1.2, "assez": 1.1, "légèrement": 0.7, "plutôt": 0.9,
}

var intensityLexicon = map[string]float64{
	// en
	"good": 0.7, "great": 0.8, "excellent": 1.0, "positive": 0.23, "successful": 0.75, "happy": 0.8,
	"strong": 0.43, "better": 0.5, "best": 1.0, "hopeful": 0.5, "stable": 0.2, "safe": 0.5, "peaceful": 0.5,
	"bad": -0.7, "terrible": -1.0, "awful": -1.0, "negative": -0.3, "poor": -0.4, "worse": -0.4,
	"worst": -1.0, "sad": -0.5, "angry": -0.5, "dangerous": -0.6, "deadly": -0.8, "violent": -0.8, "weak": -0.375,
	// fr
	"bon": 0.7, "bonne": 0.7, "excellente": 1.0, "positif": 0.23, "heureux": 0.8, "heureuse": 0.8,
	"fort": 0.43, "forte": 0.43, "meilleur": 0.5, "meilleure": 0.5, "sûr": 0.5, "pacifique": 0.5,
	"encourageant": 0.5, "historique": 0.1,
	"mauvais": -0.7, "mauvaise": -0.7, "négatif": -0.3, "négative": -0.3, "pire": -1.0, "triste": -0.5,
	"dangereux": -0.6, "dangereuse": -0.6, "meurtrier": -0.8, "meurtrière": -0.8, "violente": -0.8,
	"faible": -0.375, "grave": -0.6, "inquiétant": -0.6,
}
