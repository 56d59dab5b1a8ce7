package regress

import "errors"

var (
	ErrNotConverged  = errors.New("estimator did not converge")
	ErrShape         = errors.New("feature/target shape mismatch")
	ErrEmpty         = errors.New("no training rows")
	ErrInvalidKind   = errors.New("invalid estimator kind")
	ErrInvalidParams = errors.New("invalid estimator parameters")
	ErrNotFitted     = errors.New("estimator is not fitted")
)
