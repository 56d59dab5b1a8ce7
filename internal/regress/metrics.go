package regress

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MAE is the mean absolute error between predictions and targets.
func MAE(pred, y []float64) (float64, error) {
	if err := sameLen(pred, y); err != nil {
		return 0, err
	}
	return floats.Distance(pred, y, 1) / float64(len(y)), nil
}

// R2 is the coefficient of determination. A constant target scores 1 when
// predicted exactly and 0 otherwise.
func R2(pred, y []float64) (float64, error) {
	if err := sameLen(pred, y); err != nil {
		return 0, err
	}
	if len(y) < 2 || stat.Variance(y, nil) == 0 {
		if floats.Distance(pred, y, 1) == 0 {
			return 1, nil
		}
		return 0, nil
	}
	return stat.RSquaredFrom(pred, y, nil), nil
}

func sameLen(pred, y []float64) error {
	if len(y) == 0 {
		return ErrEmpty
	}
	if len(pred) != len(y) {
		return fmt.Errorf("%w: %d predictions, %d targets", ErrShape, len(pred), len(y))
	}
	return nil
}
