package regress

import (
	"context"
	"fmt"
	"strings"
)

// Regressor is a single-output estimator over dense feature vectors.
type Regressor interface {
	Fit(ctx context.Context, X [][]float64, y []float64) error
	Predict(x []float64) float64
	NumFeatures() int
	Kind() Kind
}

// Kind is an integer enum.
type Kind int

const (
	KindUnknown Kind = iota
	KindLinear
	KindGradientBoosting
)

func (k Kind) Valid() bool {
	return k == KindLinear || k == KindGradientBoosting
}

func (k Kind) String() string {
	switch k {
	case KindLinear:
		return "linear"
	case KindGradientBoosting:
		return "gbm"
	default:
		return "unknown"
	}
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linear", "ridge":
		return KindLinear, nil
	case "gbm", "gradient_boosting", "boosting":
		return KindGradientBoosting, nil
	default:
		return KindUnknown, fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// Params covers both estimators; each one reads the fields it knows.
type Params struct {
	Alpha          float64 `json:"alpha"`
	NEstimators    int     `json:"n_estimators"`
	LearningRate   float64 `json:"learning_rate"`
	MaxDepth       int     `json:"max_depth"`
	MinSamplesLeaf int     `json:"min_samples_leaf"`
}

func DefaultParams() Params {
	return Params{
		Alpha:          0,
		NEstimators:    100,
		LearningRate:   0.1,
		MaxDepth:       3,
		MinSamplesLeaf: 1,
	}
}

func (p Params) Validate(k Kind) error {
	switch k {
	case KindLinear:
		if p.Alpha < 0 {
			return fmt.Errorf("%w: alpha must be >= 0", ErrInvalidParams)
		}
	case KindGradientBoosting:
		if p.NEstimators < 1 {
			return fmt.Errorf("%w: n_estimators must be >= 1", ErrInvalidParams)
		}
		if p.LearningRate <= 0 || p.LearningRate > 1 {
			return fmt.Errorf("%w: learning_rate must be in (0, 1]", ErrInvalidParams)
		}
		if p.MaxDepth < 1 {
			return fmt.Errorf("%w: max_depth must be >= 1", ErrInvalidParams)
		}
		if p.MinSamplesLeaf < 1 {
			return fmt.Errorf("%w: min_samples_leaf must be >= 1", ErrInvalidParams)
		}
	default:
		return fmt.Errorf("%w: %v", ErrInvalidKind, k)
	}
	return nil
}

// New returns an unfitted estimator of kind k.
func New(k Kind, p Params) (Regressor, error) {
	if err := p.Validate(k); err != nil {
		return nil, err
	}
	switch k {
	case KindLinear:
		return NewLinear(p.Alpha), nil
	default:
		return NewGradientBoosting(p), nil
	}
}

func checkShape(X [][]float64, y []float64) (n, p int, err error) {
	n = len(X)
	if n == 0 {
		return 0, 0, ErrEmpty
	}
	if len(y) != n {
		return 0, 0, fmt.Errorf("%w: %d rows, %d targets", ErrShape, n, len(y))
	}
	p = len(X[0])
	if p == 0 {
		return 0, 0, fmt.Errorf("%w: zero features", ErrShape)
	}
	for i, row := range X {
		if len(row) != p {
			return 0, 0, fmt.Errorf("%w: row %d has %d features, want %d", ErrShape, i, len(row), p)
		}
	}
	return n, p, nil
}
