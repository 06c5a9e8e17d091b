package theme

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu      sync.Mutex
	themes  []Theme
	err     error
	calls   atomic.Int32
	block   chan struct{}
	started chan struct{}
}

func (f *fakeSource) ListThemes(context.Context) ([]Theme, error) {
	if f.calls.Add(1) == 1 && f.started != nil {
		close(f.started)
	}
	f.mu.Lock()
	err := f.err
	out := make([]Theme, len(f.themes))
	for i, th := range f.themes {
		th.Keywords = append([]string(nil), th.Keywords...)
		out[i] = th
	}
	f.mu.Unlock()

	if f.block != nil {
		<-f.block
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *fakeSource) set(themes ...Theme) {
	f.mu.Lock()
	f.themes = themes
	f.mu.Unlock()
}

type fakeCorpus struct {
	count    int
	countErr error
	df       map[string]int
	dfErr    error
}

func (f fakeCorpus) CountArticles(context.Context) (int, error) { return f.count, f.countErr }

func (f fakeCorpus) DocumentFrequency(_ context.Context, term string) (int, error) {
	return f.df[term], f.dfErr
}

var diplomatie = Theme{ID: "diplomatie", Name: "Diplomatie", Keywords: []string{"Accord", "paix", "négociation"}}

// fiftyWords contains accord and paix once each among fifty filtered words.
func fiftyWords() string {
	return "accord paix " + strings.TrimSpace(strings.Repeat("texte ", 48))
}

func TestScoreCoverageAndNormalization(t *testing.T) {
	src := &fakeSource{themes: []Theme{diplomatie}}
	s := NewScorer(NewTaxonomy(src), nil)

	words := Tokenize(fiftyWords())
	require.Len(t, words, 50)
	_, total := Frequencies(words)
	require.Equal(t, 99, total)

	matches := s.Explain(context.Background(), "", fiftyWords())
	require.Len(t, matches, 1)
	m := matches[0]
	assert.Equal(t, []string{"accord", "paix"}, m.Matched)
	assert.Equal(t, 3, m.TotalKeywords)
	assert.InDelta(t, 0.667, m.Coverage, 0.001)

	want := math.Sqrt(2*math.Log(2)*math.Log(1000)/99) * 2 / 3
	scores := s.Score(context.Background(), "", fiftyWords())
	require.Contains(t, scores, "diplomatie")
	assert.InDelta(t, want, scores["diplomatie"], 1e-9)
	assert.InDelta(t, 0.206, scores["diplomatie"], 0.005)
	assert.LessOrEqual(t, scores["diplomatie"], 1.0)
}

func TestScoreEmptyContent(t *testing.T) {
	src := &fakeSource{themes: []Theme{diplomatie}}
	s := NewScorer(NewTaxonomy(src), nil)

	for _, content := range []string{"", "   \n"} {
		scores := s.Score(context.Background(), "Accord de paix", content)
		assert.NotNil(t, scores)
		assert.Empty(t, scores)
	}
	assert.Zero(t, src.calls.Load())
}

func TestScoreIsDeterministic(t *testing.T) {
	src := &fakeSource{themes: []Theme{diplomatie}}
	s := NewScorer(NewTaxonomy(src), nil)
	first := s.Score(context.Background(), "Sommet", fiftyWords())
	for range 10 {
		assert.Equal(t, first, s.Score(context.Background(), "Sommet", fiftyWords()))
	}
}

func TestScoreUsesTitleAndBigrams(t *testing.T) {
	tech := Theme{ID: "technologie", Name: "Technologie", Keywords: []string{"intelligence artificielle", "logiciel"}}
	src := &fakeSource{themes: []Theme{tech}}
	s := NewScorer(NewTaxonomy(src), nil)

	matches := s.Explain(context.Background(), "L'intelligence artificielle", "progresse vite en Europe")
	require.Len(t, matches, 1)
	assert.Equal(t, []string{"intelligence artificielle"}, matches[0].Matched)
	assert.Equal(t, 0.5, matches[0].Coverage)
}

func TestScoreCorpusSize(t *testing.T) {
	src := &fakeSource{themes: []Theme{diplomatie}}
	content := fiftyWords()
	tax := NewTaxonomy(src)

	base := NewScorer(tax, nil).Score(context.Background(), "", content)["diplomatie"]

	t.Run("zero articles uses default", func(t *testing.T) {
		got := NewScorer(tax, fakeCorpus{count: 0}).Score(context.Background(), "", content)
		assert.InDelta(t, base, got["diplomatie"], 1e-12)
	})

	t.Run("count error uses default", func(t *testing.T) {
		got := NewScorer(tax, fakeCorpus{countErr: errors.New("db closed")}).Score(context.Background(), "", content)
		assert.InDelta(t, base, got["diplomatie"], 1e-12)
	})

	t.Run("larger corpus scores higher", func(t *testing.T) {
		got := NewScorer(tax, fakeCorpus{count: 50000}).Score(context.Background(), "", content)
		assert.Greater(t, got["diplomatie"], base)
	})

	t.Run("single document reports nothing", func(t *testing.T) {
		got := NewScorer(tax, fakeCorpus{count: 1}).Score(context.Background(), "", content)
		assert.Empty(t, got)
	})

	t.Run("repeated keyword in tiny corpus", func(t *testing.T) {
		s := NewScorer(tax, fakeCorpus{count: 1})
		matches := s.Explain(context.Background(), "", "accord accord paix")
		require.Len(t, matches, 1)
		assert.Less(t, matches[0].Raw, 0.0)
		assert.Zero(t, matches[0].Score)
		assert.False(t, math.IsNaN(matches[0].Score))
	})
}

func TestScoreCorpusIDF(t *testing.T) {
	src := &fakeSource{themes: []Theme{diplomatie}}
	tax := NewTaxonomy(src)
	content := fiftyWords()

	corpus := fakeCorpus{count: 1000, df: map[string]int{"accord": 10, "paix": 0}}
	s := NewScorer(tax, corpus, WithIDFMode(IDFCorpus))
	matches := s.Explain(context.Background(), "", content)
	require.Len(t, matches, 1)
	wantRaw := math.Log(2)*math.Log(1000.0/10) + math.Log(2)*math.Log(1000)
	assert.InDelta(t, wantRaw, matches[0].Raw, 1e-9)

	failing := fakeCorpus{count: 1000, dfErr: errors.New("boom")}
	fallback := NewScorer(tax, failing, WithIDFMode(IDFCorpus)).Explain(context.Background(), "", content)
	documentMode := NewScorer(tax, fakeCorpus{count: 1000}).Explain(context.Background(), "", content)
	assert.Equal(t, documentMode, fallback)
}

func TestScoreTaxonomyFailure(t *testing.T) {
	src := &fakeSource{err: errors.New("no table")}
	s := NewScorer(NewTaxonomy(src), nil)
	assert.Empty(t, s.Score(context.Background(), "", fiftyWords()))

	scores, err := s.Compute(context.Background(), "", fiftyWords())
	assert.ErrorContains(t, err, "no table")
	assert.Empty(t, scores)

	// Empty content never touches the taxonomy.
	scores, err = s.Compute(context.Background(), "titre", " ")
	assert.NoError(t, err)
	assert.Empty(t, scores)

	src.mu.Lock()
	src.err = nil
	src.themes = []Theme{diplomatie}
	src.mu.Unlock()
	scores, err = s.Compute(context.Background(), "", fiftyWords())
	require.NoError(t, err)
	assert.Contains(t, scores, "diplomatie")
}

func TestValidateAndNormalize(t *testing.T) {
	assert.NoError(t, diplomatie.Validate())
	assert.ErrorIs(t, Theme{Name: "x"}.Validate(), ErrInvalidArgument)
	assert.ErrorIs(t, Theme{ID: "x", Name: " "}.Validate(), ErrInvalidArgument)

	assert.Equal(t, []string{"accord", "intelligence artificielle"},
		NormalizeKeywords([]string{" Accord", "", "accord", "Intelligence   Artificielle "}))
	assert.Equal(t, []string{"cessez le feu", "covid 19", "aujourd hui", "semi conducteurs"},
		NormalizeKeywords([]string{"Cessez-le-feu", "covid-19", "aujourd’hui", "semi-conducteurs"}))

	assert.Equal(t, []string{"cessez le feu", "covid 19", "ue", "the"},
		Unmatchable([]string{"accord", "cessez le feu", "covid 19", "ue", "the", "semi conducteurs", "intelligence artificielle"}))
}
