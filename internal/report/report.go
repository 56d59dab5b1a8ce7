// Package report compares the energy needed at the observed indoor
// temperature with the energy needed at the recommended setpoint.
package report

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/Agrid-Dev/thermoptim/internal/dataset"
	"github.com/Agrid-Dev/thermoptim/internal/regress"
	"github.com/Agrid-Dev/thermoptim/internal/thermal"
)

// Predictor recommends a setpoint for a sample.
type Predictor interface {
	Predict(s dataset.Sample) (float64, error)
}

// SavingsReport aggregates the evaluated dataset. SavingsPct is nil when the
// total baseline consumption is zero.
type SavingsReport struct {
	Records           int      `json:"records" yaml:"records"`
	TotalBeforeKWh    float64  `json:"total_before_kwh" yaml:"total_before_kwh"`
	TotalAfterKWh     float64  `json:"total_after_kwh" yaml:"total_after_kwh"`
	TotalSavingsKWh   float64  `json:"total_savings_kwh" yaml:"total_savings_kwh"`
	SavingsPct        *float64 `json:"savings_pct" yaml:"savings_pct"`
	MeanRowSavingsPct *float64 `json:"mean_row_savings_pct" yaml:"mean_row_savings_pct"`
	MeanSetpoint      float64  `json:"mean_recommended_setpoint_c" yaml:"mean_recommended_setpoint_c"`
	MAE               *float64 `json:"mae,omitempty" yaml:"mae,omitempty"`
	R2                *float64 `json:"r2,omitempty" yaml:"r2,omitempty"`
}

// Summarize runs SummarizeWith on the default energy model.
func Summarize(d dataset.Dataset, p Predictor) (*SavingsReport, dataset.Dataset, error) {
	return SummarizeWith(d, p, thermal.DefaultEnergyModel())
}

// SummarizeWith predicts every record, computes its before/after consumption
// with m and aggregates. Any row failure aborts the whole summary.
func SummarizeWith(d dataset.Dataset, p Predictor, m thermal.EnergyModel) (*SavingsReport, dataset.Dataset, error) {
	pred := make([]float64, d.Len())
	for i := range d.Len() {
		v, err := p.Predict(d.At(i).Sample)
		if err != nil {
			return nil, dataset.Dataset{}, fmt.Errorf("predict row %d: %w", i, err)
		}
		pred[i] = v
	}
	withPred, err := d.WithPredictions(pred)
	if err != nil {
		return nil, dataset.Dataset{}, err
	}
	return Evaluate(withPred, m)
}

// Evaluate computes energy readings for a dataset that already carries
// predictions.
func Evaluate(d dataset.Dataset, m thermal.EnergyModel) (*SavingsReport, dataset.Dataset, error) {
	readings := make([]dataset.EnergyReading, d.Len())
	rep := &SavingsReport{Records: d.Len()}
	var rowPcts []float64
	for i := range d.Len() {
		r := d.At(i)
		if !r.HasPrediction() {
			return nil, dataset.Dataset{}, fmt.Errorf("%w: row %d has no prediction", dataset.ErrSchema, i)
		}
		er, err := Reading(m, r.Sample, r.Predicted)
		if err != nil {
			return nil, dataset.Dataset{}, fmt.Errorf("energy row %d: %w", i, err)
		}
		readings[i] = er
		rep.TotalBeforeKWh += er.BeforeKWh
		rep.TotalAfterKWh += er.AfterKWh
		if er.HasSavingsPct() {
			rowPcts = append(rowPcts, er.SavingsPct)
		}
	}
	rep.TotalSavingsKWh = rep.TotalBeforeKWh - rep.TotalAfterKWh
	if rep.TotalBeforeKWh > 0 {
		rep.SavingsPct = ptr(rep.TotalSavingsKWh / rep.TotalBeforeKWh * 100)
	}
	if len(rowPcts) > 0 {
		rep.MeanRowSavingsPct = ptr(stat.Mean(rowPcts, nil))
	}

	evaluated, err := d.WithEnergy(readings)
	if err != nil {
		return nil, dataset.Dataset{}, err
	}
	pred := evaluated.Predictions()
	if len(pred) > 0 {
		rep.MeanSetpoint = stat.Mean(pred, nil)
	}
	if evaluated.Len() > 0 && evaluated.Labeled() {
		y := evaluated.Labels()
		if mae, err := regress.MAE(pred, y); err == nil {
			rep.MAE = ptr(mae)
		}
		if r2, err := regress.R2(pred, y); err == nil {
			rep.R2 = ptr(r2)
		}
	}
	return rep, evaluated, nil
}

// Reading computes the consumption of one sample at its observed indoor
// temperature and at setpoint. Savings may be negative.
func Reading(m thermal.EnergyModel, s dataset.Sample, setpoint float64) (dataset.EnergyReading, error) {
	before, err := m.Estimate(s.IndoorTempBefore, s.OutdoorTemp, s.Humidity, s.Occupancy)
	if err != nil {
		return dataset.EnergyReading{}, fmt.Errorf("before: %w", err)
	}
	after, err := m.Estimate(setpoint, s.OutdoorTemp, s.Humidity, s.Occupancy)
	if err != nil {
		return dataset.EnergyReading{}, fmt.Errorf("after: %w", err)
	}
	er := dataset.EnergyReading{
		BeforeKWh:  before,
		AfterKWh:   after,
		SavingsKWh: before - after,
		SavingsPct: math.NaN(),
	}
	if before > 0 {
		er.SavingsPct = er.SavingsKWh / before * 100
	}
	return er, nil
}

// Totals recomputes the aggregate sums from an evaluated dataset.
func Totals(d dataset.Dataset) (before, after float64, err error) {
	b, err := d.Column(dataset.ColEnergyBefore)
	if err != nil {
		return 0, 0, err
	}
	a, err := d.Column(dataset.ColEnergyAfter)
	if err != nil {
		return 0, 0, err
	}
	if floats.HasNaN(b) || floats.HasNaN(a) {
		return 0, 0, errors.New("dataset is not evaluated")
	}
	return floats.Sum(b), floats.Sum(a), nil
}

func ptr(v float64) *float64 { return &v }

// WriteYAML encodes rep as YAML.
func (rep *SavingsReport) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}

func (rep *SavingsReport) SaveYAML(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return rep.WriteYAML(f)
}
