package training

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Agrid-Dev/thermoptim/internal/dataset"
	"github.com/Agrid-Dev/thermoptim/internal/features"
	"github.com/Agrid-Dev/thermoptim/internal/regress"
)

var (
	ErrInsufficientData = features.ErrInsufficientData
	ErrTrainingFailed   = errors.New("training failed")
	ErrTrainingTimeout  = errors.New("training deadline exceeded")
	ErrInvalidConfig    = errors.New("invalid training config")
)

// Error carries the metrics computed before training stopped. Err is one of
// the package sentinels or dataset.ErrSchema.
type Error struct {
	Err     error
	Cause   error
	Partial *Metrics
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	if e.Partial != nil && e.Partial.Stage != "" {
		fmt.Fprintf(&b, " (after %s)", e.Partial.Stage)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// classify maps an estimator, transformer or context error to a sentinel.
func classify(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTrainingTimeout
	case errors.Is(err, ErrInsufficientData), errors.Is(err, regress.ErrEmpty):
		return ErrInsufficientData
	case errors.Is(err, regress.ErrShape), errors.Is(err, dataset.ErrSchema):
		return dataset.ErrSchema
	default:
		return ErrTrainingFailed
	}
}

func fail(cause error, m Metrics) error {
	p := m
	return &Error{Err: classify(cause), Cause: cause, Partial: &p}
}
