// Package sentiment scores news text on a signed [-1, 1] scale by combining a
// curated keyword lexicon, a pattern detector, general-purpose statistical
// estimators and an optional 3-class classifier.
package sentiment

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/elonfeng/newslens/internal/metrics"
)

// Component names, also used to build Result.Model.
const (
	ComponentLexicon     = "lexicon"
	ComponentPatterns    = "patterns"
	ComponentStatistical = "statistical"
	ComponentClassifier  = "classifier"
)

// KeywordMatcher counts lexicon hits.
type KeywordMatcher interface {
	Match(text string) LexiconMatch
}

// PatternScorer returns a signed adjustment for trend language.
type PatternScorer interface {
	Adjustment(text string) float64
}

// PolarityScorer returns a polarity in [-1, 1].
type PolarityScorer interface {
	Polarity(text string) float64
}

// ClassifierCapability is a classifier that may not be loaded yet.
type ClassifierCapability interface {
	Ready() bool
	Classify(ctx context.Context, text string) (Prediction, error)
}

// Capabilities records which optional scorers an ensemble was built with.
type Capabilities struct {
	Statistical bool
	Classifier  bool
}

// Ensemble combines the scorers. It is safe for concurrent use.
type Ensemble struct {
	lexicon     KeywordMatcher
	patterns    PatternScorer
	statistical PolarityScorer
	classifier  ClassifierCapability
	caps        Capabilities
	log         zerolog.Logger
	metrics     *metrics.Metrics
}

// Option configures an Ensemble.
type Option func(*Ensemble)

// WithLexicon replaces the keyword lexicon.
func WithLexicon(l KeywordMatcher) Option { return func(e *Ensemble) { e.lexicon = l } }

// WithPatterns replaces the pattern detector.
func WithPatterns(p PatternScorer) Option { return func(e *Ensemble) { e.patterns = p } }

// WithStatistical sets the statistical scorer. nil disables it.
func WithStatistical(s PolarityScorer) Option { return func(e *Ensemble) { e.statistical = s } }

// WithClassifier sets the classifier. nil disables it.
func WithClassifier(c ClassifierCapability) Option { return func(e *Ensemble) { e.classifier = c } }

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option { return func(e *Ensemble) { e.log = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option { return func(e *Ensemble) { e.metrics = m } }

// NewEnsemble builds an ensemble with the built-in lexicon, patterns and
// statistical estimators and no classifier, then applies opts. Capabilities
// are fixed here and never re-checked.
func NewEnsemble(opts ...Option) *Ensemble {
	e := &Ensemble{
		lexicon:     DefaultLexicon(),
		patterns:    DefaultPatterns(),
		statistical: NewStatistical(),
		log:         zerolog.Nop(),
	}
	for _, o := range opts {
		o(e)
	}
	e.caps = Capabilities{
		Statistical: e.statistical != nil,
		Classifier:  e.classifier != nil,
	}
	return e
}

// Capabilities returns the optional scorers the ensemble was built with.
func (e *Ensemble) Capabilities() Capabilities { return e.caps }

// ArticleText is the text scored for an article: the title twice for emphasis, then the content.
func ArticleText(title, content string) string {
	return strings.TrimSpace(title + " " + title + " " + content)
}

// AnalyzeArticle scores an article's title and content.
func (e *Ensemble) AnalyzeArticle(ctx context.Context, title, content string) Result {
	return e.Score(ctx, ArticleText(title, content))
}

// Score returns the combined sentiment of text. Texts shorter than ten
// characters get a neutral result with model "none". Sub-scorer failures are
// logged and skipped; if nothing could score the text the model is "error".
func (e *Ensemble) Score(ctx context.Context, text string) Result {
	text = strings.TrimSpace(strings.ToValidUTF8(text, " "))
	if utf8.RuneCountInString(text) < minTextRunes {
		return noneResult()
	}

	var used []string

	var (
		match   LexiconMatch
		lexOK   bool
		keyword float64
	)
	lexOK = e.guard(ComponentLexicon, func() { match = e.lexicon.Match(text) })
	if lexOK {
		keyword = match.KeywordScore()
	}
	var adj float64
	patOK := e.patterns != nil && e.guard(ComponentPatterns, func() { adj = e.patterns.Adjustment(text) })
	if patOK {
		keyword = clampUnit(keyword + adj)
	}
	keywordOK := lexOK || patOK
	if keywordOK {
		used = append(used, ComponentLexicon)
	}

	var (
		clfScore, clfConf float64
		clfOK             bool
	)
	if e.caps.Classifier {
		var (
			pred  Prediction
			ready bool
			err   error
		)
		clfOK = e.guard(ComponentClassifier, func() {
			if ready = e.classifier.Ready(); ready {
				pred, err = e.classifier.Classify(ctx, text)
			}
		})
		clfOK = clfOK && ready
		if clfOK && err != nil {
			e.log.Warn().Err(err).Msg("classifier failed, scoring without it")
			e.metrics.IncSubscorerFailure(ComponentClassifier)
			clfOK = false
		}
		if clfOK {
			clfScore, clfConf = pred.Signed(), clamp(pred.Confidence, 0, 1)
		}
	}

	econNeutral := lexOK && match.EconomicallyNeutral()
	deadNeutral := econNeutral && math.Abs(keyword) < 0.1 && math.Abs(clfScore) < 0.5

	var final float64
	switch {
	case deadNeutral:
		final = 0
	case econNeutral:
		final = 0.7*keyword + 0.3*clfScore
	case clfOK && keywordOK:
		final = 0.5*keyword + 0.5*clfScore
	case clfOK:
		final = clfScore
	default:
		final = keyword
	}
	core := keywordOK || clfOK

	if !deadNeutral && e.caps.Statistical {
		var stat float64
		if e.guard(ComponentStatistical, func() { stat = e.statistical.Polarity(text) }) {
			if core {
				final = 0.8*final + 0.2*clampUnit(stat)
			} else {
				final = clampUnit(stat)
			}
			used = append(used, ComponentStatistical)
			core = true
		}
	}
	if clfOK {
		used = append(used, ComponentClassifier)
	}

	if !core {
		e.log.Error().Msg("every sentiment scorer failed")
		e.metrics.IncSentimentScored(ModelError, string(NeutralPositive))
		return errorResult()
	}

	final = clampUnit(final)
	confidence := math.Abs(final)
	if clfOK {
		confidence = (confidence + clfConf) / 2
	}
	res := Result{
		Score:      final,
		Type:       Categorize(final),
		Confidence: clamp(confidence, 0, 1),
		Model:      strings.Join(used, "+"),
	}
	e.metrics.IncSentimentScored(res.Model, string(res.Type))
	return res
}

// guard runs fn and converts a panic into a logged sub-scorer failure.
func (e *Ensemble) guard(component string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn().Str("component", component).Err(fmt.Errorf("%v", r)).Msg("sub-scorer failed")
			e.metrics.IncSubscorerFailure(component)
			ok = false
		}
	}()
	fn()
	return true
}
