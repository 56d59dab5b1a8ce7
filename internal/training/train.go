// Package training fits a setpoint model on a labeled dataset: split,
// optional cross-validated grid search, final fit and held-out scoring.
package training

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Agrid-Dev/thermoptim/internal/dataset"
	"github.com/Agrid-Dev/thermoptim/internal/regress"
)

// Metrics describes one training run. CVMAE is NaN when no search ran.
type Metrics struct {
	Stage      string         `json:"stage" yaml:"stage"`
	Estimator  string         `json:"estimator" yaml:"estimator"`
	Params     regress.Params `json:"params" yaml:"params"`
	TrainRows  int            `json:"train_rows" yaml:"train_rows"`
	TestRows   int            `json:"test_rows" yaml:"test_rows"`
	Candidates int            `json:"candidates" yaml:"candidates"`
	CVMAE      float64        `json:"cv_mae" yaml:"cv_mae"`
	MAE        float64        `json:"mae" yaml:"mae"`
	R2         float64        `json:"r2" yaml:"r2"`
	Duration   time.Duration  `json:"duration" yaml:"duration"`
}

// Stages recorded in Metrics.Stage, in order.
const (
	StageLabel    = "label"
	StageSplit    = "split"
	StageSearch   = "search"
	StageFit      = "fit"
	StageEvaluate = "evaluate"
)

// Train labels d if needed, splits it, optionally searches cfg.Grid and
// fits the final model on the whole train partition.
func Train(ctx context.Context, cfg Config, d dataset.Dataset) (*Model, Metrics, error) {
	start := time.Now()
	m := Metrics{
		Estimator: cfg.Estimator.String(),
		Params:    cfg.Params,
		CVMAE:     math.NaN(),
		MAE:       math.NaN(),
		R2:        math.NaN(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, m, err
	}
	if cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Deadline)
		defer cancel()
	}
	finish := func(err error) (*Model, Metrics, error) {
		m.Duration = time.Since(start)
		return nil, m, fail(err, m)
	}

	if d.Len() == 0 {
		return finish(fmt.Errorf("%w: empty dataset", ErrInsufficientData))
	}
	if !d.Labeled() {
		labeled, err := d.WithLabels()
		if err != nil {
			return finish(err)
		}
		d = labeled
	}
	m.Stage = StageLabel

	minTrain := 2
	if cfg.Search {
		minTrain = max(minTrain, cfg.Folds)
	}
	train, test, err := Partition(d, cfg.TestFraction, cfg.Split, cfg.Seed, minTrain)
	if err != nil {
		return finish(err)
	}
	m.TrainRows, m.TestRows = train.Len(), test.Len()
	m.Stage = StageSplit

	params := cfg.Params
	if cfg.Search {
		res, err := Search(ctx, cfg, train)
		if err != nil {
			return finish(err)
		}
		params = res.Best()
		m.Params = params
		m.Candidates = len(res.Candidates)
		m.CVMAE = res.BestScore()
		m.Stage = StageSearch
	}

	model, err := fit(ctx, cfg.Estimator, params, train)
	if err != nil {
		return finish(err)
	}
	m.Stage = StageFit

	if m.MAE, m.R2, err = evaluate(ctx, model, test); err != nil {
		return finish(err)
	}
	m.Stage = StageEvaluate
	m.Duration = time.Since(start)
	return model, m, nil
}

// evaluate scores model on the test partition. The deadline is checked
// after scoring so that it bounds the whole Train call.
func evaluate(ctx context.Context, model *Model, test dataset.Dataset) (mae, r2 float64, err error) {
	mae, r2 = math.NaN(), math.NaN()
	pred, err := model.predictAll(test)
	if err != nil {
		return mae, r2, err
	}
	y := test.Labels()
	if mae, err = regress.MAE(pred, y); err != nil {
		return mae, r2, err
	}
	if r2, err = regress.R2(pred, y); err != nil {
		return mae, r2, err
	}
	return mae, r2, ctx.Err()
}
