package dataset

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/Agrid-Dev/thermoptim/internal/thermal"
)

// Sample is one observation of the building and its occupant. Missing
// numeric values are NaN, a missing timestamp is the zero time.
type Sample struct {
	Timestamp        time.Time
	OutdoorTemp      float64
	Humidity         float64
	Occupancy        thermal.Occupancy
	UserPrefTemp     float64
	IndoorTempBefore float64
}

// Physical and comfort ranges applied when a sample is created.
var (
	OutdoorBounds  = thermal.Bounds{Min: 5, Max: 35}
	HumidityBounds = thermal.Bounds{Min: 30, Max: 80}
	PrefBounds     = thermal.Bounds{Min: 18, Max: 25}
	IndoorBounds   = thermal.Bounds{Min: 15, Max: 30}
)

// Clipped returns s with every present value clipped to its bounds.
func (s Sample) Clipped() Sample {
	s.OutdoorTemp = clipPresent(OutdoorBounds, s.OutdoorTemp)
	s.Humidity = clipPresent(HumidityBounds, s.Humidity)
	s.UserPrefTemp = clipPresent(PrefBounds, s.UserPrefTemp)
	s.IndoorTempBefore = clipPresent(IndoorBounds, s.IndoorTempBefore)
	return s
}

func clipPresent(b thermal.Bounds, v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return b.Clip(v)
}

// EnergyReading holds the before/after consumption of one record.
// SavingsPct is NaN when BeforeKWh is not positive.
type EnergyReading struct {
	BeforeKWh  float64
	AfterKWh   float64
	SavingsKWh float64
	SavingsPct float64
}

func (e EnergyReading) HasSavingsPct() bool { return !math.IsNaN(e.SavingsPct) }

func missingEnergy() EnergyReading {
	nan := math.NaN()
	return EnergyReading{BeforeKWh: nan, AfterKWh: nan, SavingsKWh: nan, SavingsPct: nan}
}

// Record is a sample plus everything derived from it.
type Record struct {
	Sample
	Label     float64
	Predicted float64
	Energy    EnergyReading
}

func NewRecord(s Sample) Record {
	return Record{
		Sample:    s,
		Label:     math.NaN(),
		Predicted: math.NaN(),
		Energy:    missingEnergy(),
	}
}

func (r Record) Labeled() bool       { return !math.IsNaN(r.Label) }
func (r Record) HasPrediction() bool { return !math.IsNaN(r.Predicted) }
func (r Record) Evaluated() bool     { return !math.IsNaN(r.Energy.BeforeKWh) }

// Dataset is an ordered, immutable collection of records. Every method that
// derives data returns a new Dataset.
type Dataset struct {
	records []Record
}

func New(records []Record) Dataset {
	return Dataset{records: slices.Clone(records)}
}

func FromSamples(samples []Sample) Dataset {
	rs := make([]Record, len(samples))
	for i, s := range samples {
		rs[i] = NewRecord(s)
	}
	return Dataset{records: rs}
}

func (d Dataset) Len() int { return len(d.records) }

func (d Dataset) At(i int) Record { return d.records[i] }

func (d Dataset) Records() []Record { return slices.Clone(d.records) }

func (d Dataset) Samples() []Sample {
	out := make([]Sample, len(d.records))
	for i, r := range d.records {
		out[i] = r.Sample
	}
	return out
}

// Labels returns the label of every record, NaN where missing.
func (d Dataset) Labels() []float64 {
	out := make([]float64, len(d.records))
	for i, r := range d.records {
		out[i] = r.Label
	}
	return out
}

func (d Dataset) Predictions() []float64 {
	out := make([]float64, len(d.records))
	for i, r := range d.records {
		out[i] = r.Predicted
	}
	return out
}

// Subset returns the records at idx, in idx order.
func (d Dataset) Subset(idx []int) Dataset {
	rs := make([]Record, len(idx))
	for i, j := range idx {
		rs[i] = d.records[j]
	}
	return Dataset{records: rs}
}

func (d Dataset) Slice(from, to int) Dataset {
	return Dataset{records: slices.Clone(d.records[from:to])}
}

func (d Dataset) Labeled() bool {
	for _, r := range d.records {
		if !r.Labeled() {
			return false
		}
	}
	return true
}

// WithLabels derives every label with thermal.OptimalTemperature. A label
// already present is kept only when the sample lacks the inputs to derive it
// (a file-supplied target for a row with missing values). Any other row that
// cannot be labeled aborts the whole operation.
func (d Dataset) WithLabels() (Dataset, error) {
	rs := slices.Clone(d.records)
	for i := range rs {
		label, err := rs[i].Sample.optimalTemperature()
		if err != nil {
			if rs[i].Labeled() && !rs[i].Sample.labelInputsPresent() {
				rs[i].Label = thermal.ComfortBounds.Clip(rs[i].Label)
				continue
			}
			return Dataset{}, fmt.Errorf("label row %d: %w", i, err)
		}
		rs[i].Label = label
	}
	return Dataset{records: rs}, nil
}

func (s Sample) optimalTemperature() (float64, error) {
	return thermal.OptimalTemperature(s.Occupancy, s.OutdoorTemp, s.UserPrefTemp)
}

func (s Sample) labelInputsPresent() bool {
	return s.Occupancy.Valid() && !math.IsNaN(s.OutdoorTemp) && !math.IsNaN(s.UserPrefTemp)
}

// WithPredictions attaches one prediction per record.
func (d Dataset) WithPredictions(pred []float64) (Dataset, error) {
	if len(pred) != len(d.records) {
		return Dataset{}, fmt.Errorf("%w: %d predictions for %d records", ErrSchema, len(pred), len(d.records))
	}
	rs := slices.Clone(d.records)
	for i := range rs {
		rs[i].Predicted = pred[i]
	}
	return Dataset{records: rs}, nil
}

// WithEnergy attaches one energy reading per record.
func (d Dataset) WithEnergy(readings []EnergyReading) (Dataset, error) {
	if len(readings) != len(d.records) {
		return Dataset{}, fmt.Errorf("%w: %d readings for %d records", ErrSchema, len(readings), len(d.records))
	}
	rs := slices.Clone(d.records)
	for i := range rs {
		rs[i].Energy = readings[i]
	}
	return Dataset{records: rs}, nil
}

// Schema lists the sample columns followed by every derived column that is
// populated on at least one record.
func (d Dataset) Schema() Schema {
	out := slices.Clone(SampleSchema)
	for _, f := range DerivedSchema {
		if d.hasColumn(f.Name) {
			out = append(out, f)
		}
	}
	return out
}

func (d Dataset) hasColumn(name string) bool {
	for _, r := range d.records {
		if v, _ := r.value(name); !math.IsNaN(v) {
			return true
		}
	}
	return false
}

// Columns returns the names accepted by Column, in schema order.
func (d Dataset) Columns() []string {
	return d.Schema().Names()
}

// Column returns a named column as floats. Timestamps are Unix seconds,
// occupancy is 0/1, and missing values are NaN.
func (d Dataset) Column(name string) ([]float64, error) {
	if FullSchema.Index(name) < 0 {
		return nil, fmt.Errorf("%w: unknown column %q", ErrSchema, name)
	}
	out := make([]float64, len(d.records))
	for i, r := range d.records {
		out[i], _ = r.value(name)
	}
	return out, nil
}

func (r Record) value(name string) (float64, bool) {
	switch name {
	case ColTimestamp:
		if r.Timestamp.IsZero() {
			return math.NaN(), true
		}
		return float64(r.Timestamp.Unix()), true
	case ColOutdoorTemp:
		return r.OutdoorTemp, true
	case ColHumidity:
		return r.Humidity, true
	case ColOccupancy:
		if !r.Occupancy.Valid() {
			return math.NaN(), true
		}
		return r.Occupancy.Float(), true
	case ColUserPrefTemp:
		return r.UserPrefTemp, true
	case ColIndoorTempBefore:
		return r.IndoorTempBefore, true
	case ColOptimalTemp:
		return r.Label, true
	case ColPredictedTemp:
		return r.Predicted, true
	case ColEnergyBefore:
		return r.Energy.BeforeKWh, true
	case ColEnergyAfter:
		return r.Energy.AfterKWh, true
	case ColSavingsKWh:
		return r.Energy.SavingsKWh, true
	case ColSavingsPct:
		return r.Energy.SavingsPct, true
	}
	return math.NaN(), false
}
