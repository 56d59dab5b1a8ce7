package thermal

import "fmt"

const (
	ComfortMin = 18.0
	ComfortMax = 26.0

	outdoorReference = 25.0
	outdoorFactor    = 0.1
	vacantOffset     = 2.0
)

// Bounds is an inclusive temperature range.
type Bounds struct {
	Min float64
	Max float64
}

// ComfortBounds is the range every recommended setpoint is clipped to.
var ComfortBounds = Bounds{Min: ComfortMin, Max: ComfortMax}

func (b Bounds) Validate() error {
	if !isFinite(b.Min) || !isFinite(b.Max) || b.Min > b.Max {
		return ErrInvalidMinMax
	}
	return nil
}

func (b Bounds) Clip(v float64) float64 {
	return min(max(v, b.Min), b.Max)
}

func (b Bounds) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// OptimalTemperature labels a sample with the setpoint that trades comfort
// against envelope load. Occupied spaces drift away from the preference as
// it gets hotter outside; vacant spaces relax by two degrees.
func OptimalTemperature(occupancy Occupancy, outdoor, pref float64) (float64, error) {
	if err := checkFinite(input{"outdoor", outdoor}, input{"pref", pref}); err != nil {
		return 0, err
	}
	var target float64
	switch occupancy {
	case Occupied:
		target = pref - (outdoor-outdoorReference)*outdoorFactor
	case Vacant:
		target = pref + vacantOffset
	default:
		return 0, fmt.Errorf("%w: occupancy %d", ErrInvalidInput, int(occupancy))
	}
	return ComfortBounds.Clip(target), nil
}
