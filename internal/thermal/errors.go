package thermal

import "errors"

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidOccupancy    = errors.New("invalid occupancy")
	ErrInvalidMinMax       = errors.New("invalid min/max bounds")
	ErrNegativeCoefficient = errors.New("energy coefficient must be greater or equal to zero")
)
