package sentiment

import (
	"errors"
	"fmt"
	"math"
)

// Category is the 4-way polarity label stored with every article.
type Category string

const (
	Positive        Category = "positive"
	NeutralPositive Category = "neutral_positive"
	NeutralNegative Category = "neutral_negative"
	Negative        Category = "negative"
)

// Model names reported for results that were not produced by any scorer.
const (
	ModelNone  = "none"
	ModelError = "error"
)

// minTextRunes is the shortest trimmed text that gets scored at all.
const minTextRunes = 10

var (
	// ErrNotReady is returned by the classifier adapter before its model has loaded.
	ErrNotReady = errors.New("classifier not ready")
	// ErrInvalidArgument marks malformed input that callers must fix.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Result is the output of the ensemble.
type Result struct {
	Score      float64  `json:"score"`
	Type       Category `json:"type"`
	Confidence float64  `json:"confidence"`
	Model      string   `json:"model"`
}

func noneResult() Result {
	return Result{Score: 0, Type: NeutralPositive, Confidence: 0, Model: ModelNone}
}

func errorResult() Result {
	return Result{Score: 0, Type: NeutralPositive, Confidence: 0, Model: ModelError}
}

// Categorize maps a score in [-1,1] to its category. The four ranges are
// contiguous: (0.2,1], [0,0.2], [-0.2,0), [-1,-0.2).
func Categorize(score float64) Category {
	switch {
	case math.IsNaN(score):
		return NeutralPositive
	case score > 0.2:
		return Positive
	case score >= 0:
		return NeutralPositive
	case score >= -0.2:
		return NeutralNegative
	default:
		return Negative
	}
}

// Valid reports whether c is one of the four categories.
func (c Category) Valid() bool {
	switch c {
	case Positive, NeutralPositive, NeutralNegative, Negative:
		return true
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(hi, v))
}

func clampUnit(v float64) float64 { return clamp(v, -1, 1) }

// Validate rejects results that must never be persisted: non-finite or
// out-of-range numbers, unknown categories and empty model names.
func (r Result) Validate() error {
	switch {
	case math.IsNaN(r.Score) || r.Score < -1 || r.Score > 1:
		return fmt.Errorf("%w: score %v outside [-1, 1]", ErrInvalidArgument, r.Score)
	case math.IsNaN(r.Confidence) || r.Confidence < 0 || r.Confidence > 1:
		return fmt.Errorf("%w: confidence %v outside [0, 1]", ErrInvalidArgument, r.Confidence)
	case !r.Type.Valid():
		return fmt.Errorf("%w: unknown category %q", ErrInvalidArgument, r.Type)
	case r.Model == "":
		return fmt.Errorf("%w: empty model", ErrInvalidArgument)
	}
	return nil
}
