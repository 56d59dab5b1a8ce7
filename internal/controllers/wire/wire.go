// Package wire holds the JSON payloads shared by the HTTP and MQTT
// controllers. Undefined metrics (NaN) are encoded as null.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/Agrid-Dev/thermoptim/internal/dataset"
	"github.com/Agrid-Dev/thermoptim/internal/regress"
	"github.com/Agrid-Dev/thermoptim/internal/report"
	"github.com/Agrid-Dev/thermoptim/internal/run"
	"github.com/Agrid-Dev/thermoptim/internal/thermal"
)

var ErrMissingField = errors.New("missing field")

// Num maps NaN and infinities to nil.
func Num(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Nums applies Num to every element.
func Nums(vs []float64) []*float64 {
	out := make([]*float64, len(vs))
	for i, v := range vs {
		out[i] = Num(v)
	}
	return out
}

type Metrics struct {
	Stage      string         `json:"stage"`
	Estimator  string         `json:"estimator"`
	Params     regress.Params `json:"params"`
	TrainRows  int            `json:"train_rows"`
	TestRows   int            `json:"test_rows"`
	Candidates int            `json:"candidates"`
	CVMAE      *float64       `json:"cv_mae"`
	MAE        *float64       `json:"mae"`
	R2         *float64       `json:"r2"`
	DurationMS int64          `json:"duration_ms"`
}

type Snapshot struct {
	RunID     string               `json:"run_id"`
	CreatedAt time.Time            `json:"created_at"`
	Served    uint64               `json:"served"`
	Metrics   Metrics              `json:"metrics"`
	Report    report.SavingsReport `json:"report"`
}

func FromSnapshot(s run.Snapshot) Snapshot {
	m := s.Metrics
	return Snapshot{
		RunID:     s.ID,
		CreatedAt: s.CreatedAt,
		Served:    s.Served,
		Metrics: Metrics{
			Stage:      m.Stage,
			Estimator:  m.Estimator,
			Params:     m.Params,
			TrainRows:  m.TrainRows,
			TestRows:   m.TestRows,
			Candidates: m.Candidates,
			CVMAE:      Num(m.CVMAE),
			MAE:        Num(m.MAE),
			R2:         Num(m.R2),
			DurationMS: m.Duration.Milliseconds(),
		},
		Report: s.Report,
	}
}

// Sample is the request body of a recommendation. Every numeric field and
// the occupancy are required, the timestamp is optional.
type Sample struct {
	Timestamp        *time.Time        `json:"timestamp,omitempty"`
	OutdoorTemp      *float64          `json:"outdoor_temp_c"`
	Humidity         *float64          `json:"humidity_pct"`
	Occupancy        thermal.Occupancy `json:"occupancy"`
	UserPrefTemp     *float64          `json:"user_pref_temp_c"`
	IndoorTempBefore *float64          `json:"indoor_temp_before_c"`
}

func (s Sample) ToSample() (dataset.Sample, error) {
	out := dataset.Sample{Occupancy: s.Occupancy}
	if s.Timestamp != nil {
		out.Timestamp = *s.Timestamp
	}
	fields := []struct {
		name string
		src  *float64
		dst  *float64
	}{
		{dataset.ColOutdoorTemp, s.OutdoorTemp, &out.OutdoorTemp},
		{dataset.ColHumidity, s.Humidity, &out.Humidity},
		{dataset.ColUserPrefTemp, s.UserPrefTemp, &out.UserPrefTemp},
		{dataset.ColIndoorTempBefore, s.IndoorTempBefore, &out.IndoorTempBefore},
	}
	for _, f := range fields {
		if f.src == nil {
			return dataset.Sample{}, fmt.Errorf("%w %q", ErrMissingField, f.name)
		}
		*f.dst = *f.src
	}
	if !s.Occupancy.Valid() {
		return dataset.Sample{}, fmt.Errorf("%w %q", ErrMissingField, dataset.ColOccupancy)
	}
	return out, nil
}

// DecodeSample reads {"value": {...}} strictly. An absent occupancy is
// reported as missing rather than read as vacant.
func DecodeSample(r io.Reader) (dataset.Sample, error) {
	var req struct {
		Value json.RawMessage `json:"value"`
	}
	if err := decodeStrict(r, &req); err != nil {
		return dataset.Sample{}, err
	}
	if len(req.Value) == 0 || string(req.Value) == "null" {
		return dataset.Sample{}, fmt.Errorf("%w 'value'", ErrMissingField)
	}
	s := Sample{Occupancy: thermal.OccupancyMissing}
	if err := decodeStrict(bytes.NewReader(req.Value), &s); err != nil {
		return dataset.Sample{}, err
	}
	return s.ToSample()
}

func decodeStrict(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func DecodeSampleBytes(b []byte) (dataset.Sample, error) {
	return DecodeSample(bytes.NewReader(b))
}

type Recommendation struct {
	Setpoint        float64  `json:"recommended_setpoint_c"`
	EnergyBeforeKWh float64  `json:"energy_before_kwh"`
	EnergyAfterKWh  float64  `json:"energy_after_kwh"`
	SavingsKWh      float64  `json:"savings_kwh"`
	SavingsPct      *float64 `json:"savings_pct"`
}

func FromRecommendation(r run.Recommendation) Recommendation {
	return Recommendation{
		Setpoint:        r.Setpoint,
		EnergyBeforeKWh: r.Energy.BeforeKWh,
		EnergyAfterKWh:  r.Energy.AfterKWh,
		SavingsKWh:      r.Energy.SavingsKWh,
		SavingsPct:      Num(r.Energy.SavingsPct),
	}
}

type Column struct {
	Name   string     `json:"name"`
	Values []*float64 `json:"values"`
}
