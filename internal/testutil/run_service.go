package testutil

import (
	"fmt"
	"math"
	"time"

	"github.com/Agrid-Dev/thermoptim/internal/dataset"
	"github.com/Agrid-Dev/thermoptim/internal/regress"
	"github.com/Agrid-Dev/thermoptim/internal/report"
	"github.com/Agrid-Dev/thermoptim/internal/run"
	"github.com/Agrid-Dev/thermoptim/internal/training"
)

// FakeRunService is a reusable fake implementing ports.RunService.
// Put ONLY what multiple test packages need here.
type FakeRunService struct {
	S run.Snapshot

	PredictCalled bool
	PredictArg    dataset.Sample
	PredictResult run.Recommendation
	PredictErr    error

	Cols map[string][]float64
}

func NewFakeRunService() *FakeRunService {
	pct := 12.5
	mae := 0.25
	r2 := 0.9
	return &FakeRunService{
		S: run.Snapshot{
			ID:        "6f1c2c0e-8a51-4a3b-9f4e-1d2c3b4a5f60",
			CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Metrics: training.Metrics{
				Stage:     training.StageEvaluate,
				Estimator: "gbm",
				Params:    regress.DefaultParams(),
				TrainRows: 80,
				TestRows:  20,
				CVMAE:     math.NaN(),
				MAE:       0.25,
				R2:        0.9,
			},
			Report: report.SavingsReport{
				Records:         100,
				TotalBeforeKWh:  400,
				TotalAfterKWh:   350,
				TotalSavingsKWh: 50,
				SavingsPct:      &pct,
				MeanSetpoint:    22.5,
				MAE:             &mae,
				R2:              &r2,
			},
		},
		PredictResult: run.Recommendation{
			Setpoint: 21.5,
			Energy: dataset.EnergyReading{
				BeforeKWh:  5,
				AfterKWh:   4,
				SavingsKWh: 1,
				SavingsPct: 20,
			},
		},
		Cols: map[string][]float64{
			dataset.ColOutdoorTemp: {10, 20, 30},
			dataset.ColSavingsPct:  {1, math.NaN(), 3},
		},
	}
}

func (f *FakeRunService) Get() run.Snapshot { return f.S }

func (f *FakeRunService) Predict(s dataset.Sample) (run.Recommendation, error) {
	f.PredictCalled = true
	f.PredictArg = s
	if f.PredictErr != nil {
		return run.Recommendation{}, f.PredictErr
	}
	f.S.Served++
	return f.PredictResult, nil
}

func (f *FakeRunService) Columns() []string {
	var out []string
	for _, name := range dataset.FullSchema.Names() {
		if _, ok := f.Cols[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

func (f *FakeRunService) Column(name string) ([]float64, error) {
	c, ok := f.Cols[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown column %q", dataset.ErrSchema, name)
	}
	return c, nil
}
