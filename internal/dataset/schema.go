package dataset

import (
	"fmt"
	"slices"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindTime
	KindFloat
	KindCategory
)

func (k Kind) String() string {
	switch k {
	case KindTime:
		return "time"
	case KindFloat:
		return "float"
	case KindCategory:
		return "category"
	default:
		return "unknown"
	}
}

type Field struct {
	Name string
	Kind Kind
}

// Schema is an ordered list of named, typed columns.
type Schema []Field

// Column names as they appear in tabular files.
const (
	ColTimestamp        = "timestamp"
	ColOutdoorTemp      = "outdoor_temp_c"
	ColHumidity         = "humidity_pct"
	ColOccupancy        = "occupancy"
	ColUserPrefTemp     = "user_pref_temp_c"
	ColIndoorTempBefore = "indoor_temp_before_c"

	ColOptimalTemp   = "optimal_indoor_temp_c"
	ColPredictedTemp = "predicted_optimal_temp_c"
	ColEnergyBefore  = "energy_before_kwh"
	ColEnergyAfter   = "energy_after_kwh"
	ColSavingsKWh    = "savings_kwh"
	ColSavingsPct    = "savings_pct"
)

// SampleSchema lists the raw sample columns in file order.
var SampleSchema = Schema{
	{ColTimestamp, KindTime},
	{ColOutdoorTemp, KindFloat},
	{ColHumidity, KindFloat},
	{ColOccupancy, KindCategory},
	{ColUserPrefTemp, KindFloat},
	{ColIndoorTempBefore, KindFloat},
}

// DerivedSchema lists the columns produced by labeling, prediction and
// evaluation, in file order.
var DerivedSchema = Schema{
	{ColOptimalTemp, KindFloat},
	{ColPredictedTemp, KindFloat},
	{ColEnergyBefore, KindFloat},
	{ColEnergyAfter, KindFloat},
	{ColSavingsKWh, KindFloat},
	{ColSavingsPct, KindFloat},
}

// FullSchema is the layout of an evaluated dataset.
var FullSchema = slices.Concat(SampleSchema, DerivedSchema)

func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = f.Name
	}
	return out
}

func (s Schema) Index(name string) int {
	return slices.IndexFunc(s, func(f Field) bool { return f.Name == name })
}

func (s Schema) Equal(o Schema) bool {
	return slices.Equal(s, o)
}

// Require fails with ErrSchema unless o is identical to s.
func (s Schema) Require(o Schema) error {
	if s.Equal(o) {
		return nil
	}
	return fmt.Errorf("%w: want %v, got %v", ErrSchema, s.Names(), o.Names())
}
