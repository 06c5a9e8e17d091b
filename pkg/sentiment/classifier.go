package sentiment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Label is a 3-class classifier output.
type Label string

const (
	LabelPositive Label = "positive"
	LabelNeutral  Label = "neutral"
	LabelNegative Label = "negative"
)

// ParseLabel normalises the label vocabularies classifiers commonly emit:
// plain names in any case and the indexed LABEL_0/1/2 form (negative, neutral, positive).
func ParseLabel(s string) (Label, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive", "pos", "label_2":
		return LabelPositive, nil
	case "neutral", "neu", "label_1":
		return LabelNeutral, nil
	case "negative", "neg", "label_0":
		return LabelNegative, nil
	}
	return "", fmt.Errorf("unknown classifier label %q", s)
}

// Prediction is the top label and its probability.
type Prediction struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Signed maps the prediction onto [-1, 1]: +p for positive, -p for negative, 0 for neutral.
func (p Prediction) Signed() float64 {
	c := clamp(p.Confidence, 0, 1)
	switch p.Label {
	case LabelPositive:
		return c
	case LabelNegative:
		return -c
	}
	return 0
}

// Classifier is a loaded 3-class model.
type Classifier interface {
	Classify(ctx context.Context, text string) (Prediction, error)
}

// Loader builds a classifier. It may block for a long time.
type Loader func(ctx context.Context) (Classifier, error)

// Adapter wraps a classifier that loads in the background. Until loading has
// succeeded Ready reports false and Classify returns ErrNotReady.
type Adapter struct {
	loader   Loader
	maxRunes int
	log      zerolog.Logger

	once  sync.Once
	done  chan struct{}
	ready atomic.Bool
	clf   Classifier // written once before ready is set
	err   error      // written once before done is closed
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithMaxInputRunes truncates classifier input to n runes. Zero disables truncation.
func WithMaxInputRunes(n int) AdapterOption {
	return func(a *Adapter) { a.maxRunes = n }
}

// WithAdapterLogger sets the adapter logger.
func WithAdapterLogger(l zerolog.Logger) AdapterOption {
	return func(a *Adapter) { a.log = l }
}

// NewAdapter returns an adapter that has not started loading yet.
func NewAdapter(loader Loader, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		loader:   loader,
		maxRunes: 512,
		log:      zerolog.Nop(),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Start begins loading in a background goroutine. Later calls are no-ops.
func (a *Adapter) Start(ctx context.Context) {
	a.once.Do(func() {
		go a.load(ctx)
	})
}

func (a *Adapter) load(ctx context.Context) {
	defer close(a.done)
	defer func() {
		if r := recover(); r != nil {
			a.err = fmt.Errorf("classifier loader panicked: %v", r)
			a.log.Error().Err(a.err).Msg("classifier unavailable")
		}
	}()

	clf, err := a.loader(ctx)
	if err != nil {
		a.err = err
		a.log.Warn().Err(err).Msg("classifier unavailable, continuing without it")
		return
	}
	a.clf = clf
	a.ready.Store(true)
	a.log.Info().Msg("classifier ready")
}

// Ready reports whether the classifier finished loading successfully.
func (a *Adapter) Ready() bool { return a.ready.Load() }

// Done is closed once loading has finished, successfully or not.
func (a *Adapter) Done() <-chan struct{} { return a.done }

// Err returns the load error once Done is closed.
func (a *Adapter) Err() error {
	select {
	case <-a.done:
		return a.err
	default:
		return nil
	}
}

// Classify runs the classifier on text truncated to the configured rune limit.
func (a *Adapter) Classify(ctx context.Context, text string) (Prediction, error) {
	if !a.ready.Load() {
		return Prediction{}, ErrNotReady
	}
	return a.clf.Classify(ctx, truncateRunes(text, a.maxRunes))
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
