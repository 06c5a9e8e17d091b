package sentiment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClassifier struct {
	ready bool
	pred  Prediction
	err   error
	calls int
}

func (f *fakeClassifier) Ready() bool { return f.ready }

func (f *fakeClassifier) Classify(_ context.Context, _ string) (Prediction, error) {
	f.calls++
	return f.pred, f.err
}

type panicMatcher struct{}

func (panicMatcher) Match(string) LexiconMatch { panic("lexicon exploded") }

type panicPolarity struct{}

func (panicPolarity) Polarity(string) float64 { panic("estimator exploded") }

type panicPatterns struct{}

func (panicPatterns) Adjustment(string) float64 { panic("patterns exploded") }

type panicReady struct{}

func (panicReady) Ready() bool { panic("ready exploded") }

func (panicReady) Classify(context.Context, string) (Prediction, error) { return Prediction{}, nil }

func TestScoreWarHeadlineIsNegative(t *testing.T) {
	e := NewEnsemble()
	res := e.Score(context.Background(), "Guerre et invasion dans la région")

	assert.Equal(t, Negative, res.Type)
	assert.Less(t, res.Score, -0.2)
	assert.Equal(t, "lexicon+statistical", res.Model)
	assert.InDelta(t, -res.Score, res.Confidence, 1e-9)
}

func TestScoreDryEarningsReportIsExactlyNeutral(t *testing.T) {
	e := NewEnsemble()
	text := "Au troisième trimestre, le chiffre d'affaires atteint 2 milliards d'euros et le résultat net reste stable."

	m := DefaultLexicon().Match(text)
	require.GreaterOrEqual(t, m.NeutralEconomic, 3)
	require.Zero(t, m.Emotional())

	res := e.Score(context.Background(), text)
	assert.Equal(t, 0.0, res.Score)
	assert.Equal(t, NeutralPositive, res.Type)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Equal(t, "lexicon", res.Model)
}

func TestScoreShortText(t *testing.T) {
	e := NewEnsemble()
	for _, text := range []string{"", "   ", "guerre", "  court  "} {
		res := e.Score(context.Background(), text)
		assert.Equal(t, Result{Score: 0, Type: NeutralPositive, Confidence: 0, Model: ModelNone}, res, "text %q", text)
	}
	assert.Equal(t, ModelNone, e.AnalyzeArticle(context.Background(), "", "").Model)
}

func TestScoreIsDeterministic(t *testing.T) {
	e := NewEnsemble()
	text := "La croissance repart mais la crise de l'énergie menace toujours l'industrie européenne."
	first := e.Score(context.Background(), text)
	for range 20 {
		assert.Equal(t, first, e.Score(context.Background(), text))
	}
}

func TestScoreRanges(t *testing.T) {
	e := NewEnsemble()
	texts := []string{
		"Record historique : la bourse gagne +12% et atteint son plus haut historique, le meilleur trimestre jamais vu",
		"Catastrophe, effondrement, krach : la guerre, la crise et les morts, un désastre dévastateur, chute de -40%",
		"Peace agreement welcomed as a breakthrough for cooperation and stability!!!",
		"This is not good, not good at all, terrible and awful and very bad news",
		"Le gouvernement publie son rapport annuel sur la politique agricole du pays",
	}
	for _, text := range texts {
		res := e.Score(context.Background(), text)
		assert.GreaterOrEqual(t, res.Score, -1.0, text)
		assert.LessOrEqual(t, res.Score, 1.0, text)
		assert.GreaterOrEqual(t, res.Confidence, 0.0, text)
		assert.LessOrEqual(t, res.Confidence, 1.0, text)
		assert.Equal(t, Categorize(res.Score), res.Type, text)
	}
}

func TestScoreWithReadyClassifier(t *testing.T) {
	clf := &fakeClassifier{ready: true, pred: Prediction{Label: LabelPositive, Confidence: 0.9}}
	e := NewEnsemble(WithClassifier(clf))
	require.True(t, e.Capabilities().Classifier)

	res := e.Score(context.Background(), "Un accord de paix historique a été signé entre les deux pays voisins")
	assert.Equal(t, 1, clf.calls)
	assert.Equal(t, "lexicon+statistical+classifier", res.Model)
	assert.Equal(t, Positive, res.Type)
	assert.InDelta(t, (res.Score+0.9)/2, res.Confidence, 1e-9)
}

func TestScoreClassifierNotReady(t *testing.T) {
	clf := &fakeClassifier{ready: false}
	e := NewEnsemble(WithClassifier(clf))

	res := e.Score(context.Background(), "Guerre et invasion dans la région")
	assert.Zero(t, clf.calls)
	assert.Equal(t, "lexicon+statistical", res.Model)
	assert.Equal(t, Negative, res.Type)
}

func TestScoreClassifierErrorIsSkipped(t *testing.T) {
	clf := &fakeClassifier{ready: true, err: errors.New("boom")}
	e := NewEnsemble(WithClassifier(clf))

	res := e.Score(context.Background(), "Guerre et invasion dans la région")
	assert.Equal(t, "lexicon+statistical", res.Model)
	assert.Equal(t, Negative, res.Type)
}

func TestScoreEconomicNeutralWithStrongClassifier(t *testing.T) {
	// The classifier is confident enough to break the dead-neutral short-circuit.
	clf := &fakeClassifier{ready: true, pred: Prediction{Label: LabelNegative, Confidence: 0.6}}
	e := NewEnsemble(WithClassifier(clf), WithStatistical(nil))

	res := e.Score(context.Background(), "Au troisième trimestre, le chiffre d'affaires atteint 2 milliards d'euros et le résultat net reste stable.")
	assert.InDelta(t, 0.3*-0.6, res.Score, 1e-9)
	assert.Equal(t, NeutralNegative, res.Type)
	assert.Equal(t, "lexicon+classifier", res.Model)
}

func TestScoreWithoutStatistical(t *testing.T) {
	e := NewEnsemble(WithStatistical(nil))
	assert.False(t, e.Capabilities().Statistical)

	res := e.Score(context.Background(), "Guerre et invasion dans la région")
	assert.InDelta(t, -2.0/3.0, res.Score, 1e-9)
	assert.Equal(t, "lexicon", res.Model)
}

func TestScoreSurvivesPanickingScorers(t *testing.T) {
	text := "Guerre et invasion dans la région"

	t.Run("lexicon and patterns", func(t *testing.T) {
		e := NewEnsemble(WithLexicon(panicMatcher{}), WithPatterns(panicPatterns{}))
		res := e.Score(context.Background(), text)
		assert.Equal(t, "statistical", res.Model)
		assert.Less(t, res.Score, 0.0)
	})

	t.Run("statistical", func(t *testing.T) {
		e := NewEnsemble(WithStatistical(panicPolarity{}))
		res := e.Score(context.Background(), text)
		assert.Equal(t, "lexicon", res.Model)
		assert.InDelta(t, -2.0/3.0, res.Score, 1e-9)
	})

	t.Run("classifier readiness", func(t *testing.T) {
		e := NewEnsemble(WithClassifier(panicReady{}), WithStatistical(nil))
		var res Result
		require.NotPanics(t, func() { res = e.Score(context.Background(), text) })
		assert.Equal(t, "lexicon", res.Model)
		assert.InDelta(t, -2.0/3.0, res.Score, 1e-9)
	})

	t.Run("everything", func(t *testing.T) {
		e := NewEnsemble(WithLexicon(panicMatcher{}), WithPatterns(panicPatterns{}), WithStatistical(panicPolarity{}))
		res := e.Score(context.Background(), text)
		assert.Equal(t, Result{Score: 0, Type: NeutralPositive, Confidence: 0, Model: ModelError}, res)
	})
}

func TestAnalyzeArticleWeighsTitle(t *testing.T) {
	assert.Equal(t, "Titre Titre corps", ArticleText("Titre", "corps"))
	assert.Equal(t, "Titre Titre", ArticleText("Titre", ""))

	e := NewEnsemble(WithStatistical(nil))
	// The negative title appears twice, the single positive word in the body cannot outweigh it.
	res := e.AnalyzeArticle(context.Background(), "Guerre dans le nord", "Les négociations pour la paix reprennent.")
	assert.Less(t, res.Score, 0.0)
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		score float64
		want  Category
	}{
		{1, Positive},
		{0.21, Positive},
		{0.2, NeutralPositive},
		{0, NeutralPositive},
		{-0.0001, NeutralNegative},
		{-0.2, NeutralNegative},
		{-0.2001, Negative},
		{-1, Negative},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Categorize(tt.score), "score %v", tt.score)
		assert.True(t, tt.want.Valid())
	}
	assert.False(t, Category("mixed").Valid())
}
