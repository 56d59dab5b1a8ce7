package thermal

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Occupancy is an integer enum. The numeric value of Vacant and Occupied is
// the one used by the energy and setpoint formulas.
type Occupancy int

const (
	OccupancyMissing Occupancy = -1
	Vacant           Occupancy = 0
	Occupied         Occupancy = 1
)

func (o Occupancy) Valid() bool {
	return o == Vacant || o == Occupied
}

func (o Occupancy) String() string {
	switch o {
	case Vacant:
		return "vacant"
	case Occupied:
		return "occupied"
	case OccupancyMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// Float returns the 0/1 value used in the formulas.
func (o Occupancy) Float() float64 {
	if o == Occupied {
		return 1
	}
	return 0
}

// ParseOccupancy accepts 0/1, true/false, yes/no and the String forms.
// An empty string is a missing value, not an error.
func ParseOccupancy(s string) (Occupancy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "occupied":
		return Occupied, nil
	case "0", "false", "no", "vacant":
		return Vacant, nil
	case "":
		return OccupancyMissing, nil
	default:
		return OccupancyMissing, fmt.Errorf("%w: %q", ErrInvalidOccupancy, s)
	}
}

// MarshalJSON writes the String form, or null for a missing value.
func (o Occupancy) MarshalJSON() ([]byte, error) {
	if !o.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(o.String())
}

// UnmarshalJSON accepts whatever ParseOccupancy accepts, quoted or bare.
func (o *Occupancy) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		*o = OccupancyMissing
		return nil
	}
	v, err := ParseOccupancy(s)
	if err != nil {
		return err
	}
	*o = v
	return nil
}
