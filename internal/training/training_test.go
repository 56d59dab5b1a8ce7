package training

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Agrid-Dev/thermoptim/internal/dataset"
	"github.com/Agrid-Dev/thermoptim/internal/features"
	"github.com/Agrid-Dev/thermoptim/internal/regress"
)

func newTestDataset(t *testing.T, n int) dataset.Dataset {
	t.Helper()
	d, err := dataset.Generate(42, n)
	require.NoError(t, err)
	return d
}

func newFastConfig() Config {
	cfg := DefaultConfig()
	cfg.Params = regress.Params{NEstimators: 30, LearningRate: 0.2, MaxDepth: 3, MinSamplesLeaf: 2}
	cfg.Grid = Grid{NEstimators: []int{10, 30}, MaxDepth: []int{2, 3}}
	return cfg
}

func TestTrain_GradientBoosting(t *testing.T) {
	d := newTestDataset(t, 300)
	model, m, err := Train(context.Background(), newFastConfig(), d)
	require.NoError(t, err)
	require.NotNil(t, model)

	assert.Equal(t, 240, m.TrainRows)
	assert.Equal(t, 60, m.TestRows)
	assert.Equal(t, StageEvaluate, m.Stage)
	assert.Less(t, m.MAE, 1.0)
	assert.Greater(t, m.R2, 0.7)
	assert.True(t, math.IsNaN(m.CVMAE))
}

func TestTrain_Linear(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Estimator = regress.KindLinear
	model, m, err := Train(context.Background(), cfg, newTestDataset(t, 300))
	require.NoError(t, err)
	assert.Equal(t, regress.KindLinear, model.Kind())
	assert.Greater(t, m.R2, 0.5)

	lin, ok := model.Estimator().(*regress.Linear)
	require.True(t, ok)
	assert.Len(t, lin.Coefficients(), len(features.Schema))
}

func TestTrain_Reproducible(t *testing.T) {
	cfg := newFastConfig()
	cfg.Search = true
	d := newTestDataset(t, 150)

	_, a, err := Train(context.Background(), cfg, d)
	require.NoError(t, err)
	cfg.Workers = 1
	_, b, err := Train(context.Background(), cfg, d)
	require.NoError(t, err)

	assert.Equal(t, a.MAE, b.MAE)
	assert.Equal(t, a.R2, b.R2)
	assert.Equal(t, a.CVMAE, b.CVMAE)
	assert.Equal(t, a.Params, b.Params)
	assert.Equal(t, 4, a.Candidates)
}

func TestTrain_ChronologicalSplit(t *testing.T) {
	cfg := newFastConfig()
	cfg.Split = SplitChronological
	_, m, err := Train(context.Background(), cfg, newTestDataset(t, 100))
	require.NoError(t, err)
	assert.Equal(t, 80, m.TrainRows)
	assert.Equal(t, 20, m.TestRows)
}

func TestTrain_InsufficientData(t *testing.T) {
	tests := []struct {
		name string
		n    int
		cfg  func(*Config)
	}{
		{"empty", 0, func(*Config) {}},
		{"too small to split", 2, func(*Config) {}},
		{"too small for folds", 4, func(c *Config) { c.Search = true; c.Folds = 5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newFastConfig()
			tt.cfg(&cfg)
			_, _, err := Train(context.Background(), cfg, newTestDataset(t, tt.n))
			assert.ErrorIs(t, err, ErrInsufficientData)

			var terr *Error
			require.ErrorAs(t, err, &terr)
			require.NotNil(t, terr.Partial)
		})
	}
}

func TestTrain_Timeout(t *testing.T) {
	cfg := newFastConfig()
	cfg.Search = true
	cfg.Deadline = time.Nanosecond
	_, _, err := Train(context.Background(), cfg, newTestDataset(t, 200))
	require.ErrorIs(t, err, ErrTrainingTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, StageSplit, terr.Partial.Stage)
	assert.Equal(t, 160, terr.Partial.TrainRows)
}

func TestEvaluate_DeadlineExpiredDuringScoring(t *testing.T) {
	cfg := newFastConfig()
	cfg.Split = SplitChronological
	d := newTestDataset(t, 100)
	model, _, err := Train(context.Background(), cfg, d)
	require.NoError(t, err)

	labeled, err := d.WithLabels()
	require.NoError(t, err)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	mae, r2, err := evaluate(ctx, model, labeled.Slice(80, 100))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, math.IsNaN(mae), "scores are still reported")
	assert.False(t, math.IsNaN(r2))
	assert.ErrorIs(t, fail(err, Metrics{Stage: StageFit}), ErrTrainingTimeout)
}

func TestTrain_LinearWithConstantHourFeatures(t *testing.T) {
	// Daily steps pin every timestamp to midnight, so both hour features are
	// constant across the train partition.
	d, err := dataset.Synthesize(dataset.SynthConfig{Seed: 1, N: 60, Step: 24 * time.Hour})
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Estimator = regress.KindLinear
	m, metrics, err := Train(context.Background(), cfg, d)
	require.NoError(t, err)
	assert.Equal(t, StageEvaluate, metrics.Stage)
	assert.False(t, math.IsNaN(metrics.MAE))

	lin, ok := m.Estimator().(*regress.Linear)
	require.True(t, ok)
	coef := lin.Coefficients()
	assert.InDelta(t, 0, coef[3], 1e-9, "hour_sin")
	assert.InDelta(t, 0, coef[4], 1e-9, "hour_cos")
}

func TestTrain_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TestFraction = 1.5
	cfg.Split = SplitUnknown
	_, _, err := Train(context.Background(), cfg, newTestDataset(t, 10))
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "test fraction")
	assert.Contains(t, err.Error(), "split")
}

func TestSearch_TieGoesToFirstCandidate(t *testing.T) {
	cfg := newFastConfig()
	cfg.Search = true
	cfg.Grid = Grid{NEstimators: []int{20, 20, 20}}
	d, err := newTestDataset(t, 90).WithLabels()
	require.NoError(t, err)

	res, err := Search(context.Background(), cfg, d)
	require.NoError(t, err)
	require.Len(t, res.Scores, 3)
	assert.Equal(t, res.Scores[0], res.Scores[2])
	assert.Equal(t, 0, res.BestIndex)
}

func TestSearch_IndependentOfWorkerCount(t *testing.T) {
	cfg := newFastConfig()
	cfg.Search = true
	d, err := newTestDataset(t, 120).WithLabels()
	require.NoError(t, err)

	var results []SearchResult
	for _, w := range []int{1, 2, 8} {
		cfg.Workers = w
		res, err := Search(context.Background(), cfg, d)
		require.NoError(t, err)
		results = append(results, res)
	}
	for _, r := range results[1:] {
		assert.Equal(t, results[0].Scores, r.Scores)
		assert.Equal(t, results[0].BestIndex, r.BestIndex)
	}
	for i, s := range results[0].Scores {
		assert.GreaterOrEqual(t, s, results[0].BestScore(), "candidate %d", i)
	}
}

func TestGridCandidates_Order(t *testing.T) {
	base := regress.DefaultParams()
	got := DefaultGrid().Candidates(regress.KindGradientBoosting, base)
	require.Len(t, got, 8)
	assert.Equal(t, regress.Params{NEstimators: 100, LearningRate: 0.01, MaxDepth: 3, MinSamplesLeaf: 1}, got[0])
	assert.Equal(t, regress.Params{NEstimators: 100, LearningRate: 0.01, MaxDepth: 5, MinSamplesLeaf: 1}, got[1])
	assert.Equal(t, regress.Params{NEstimators: 100, LearningRate: 0.1, MaxDepth: 3, MinSamplesLeaf: 1}, got[2])
	assert.Equal(t, 200, got[4].NEstimators)

	lin := DefaultGrid().Candidates(regress.KindLinear, base)
	require.Len(t, lin, 4)
	assert.Equal(t, 10.0, lin[3].Alpha)
}

func TestPartition(t *testing.T) {
	d := newTestDataset(t, 50)

	train, test, err := Partition(d, 0.2, SplitChronological, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, d.At(0).Timestamp, train.At(0).Timestamp)
	assert.Equal(t, d.At(40).Timestamp, test.At(0).Timestamp)

	a, _, err := Partition(d, 0.2, SplitShuffle, 9, 2)
	require.NoError(t, err)
	b, _, err := Partition(d, 0.2, SplitShuffle, 9, 2)
	require.NoError(t, err)
	assert.Equal(t, a.Records(), b.Records())
	assert.Equal(t, 40, a.Len())
}

func TestKFold(t *testing.T) {
	folds := kFold(10, 3)
	require.Len(t, folds, 3)
	assert.Equal(t, []int{0, 1, 2, 3}, folds[0].valid)
	assert.Equal(t, []int{4, 5, 6}, folds[1].valid)
	assert.Equal(t, []int{7, 8, 9}, folds[2].valid)
	assert.Len(t, folds[1].train, 7)
}

func TestModel_SchemaMismatch(t *testing.T) {
	model, _, err := Train(context.Background(), newFastConfig(), newTestDataset(t, 60))
	require.NoError(t, err)

	x := model.Features().Transform(newTestDataset(t, 1).At(0).Sample)
	_, err = model.PredictVector(features.Schema[:5], x[:5])
	assert.ErrorIs(t, err, dataset.ErrSchema)

	reordered := append(dataset.Schema{features.Schema[1], features.Schema[0]}, features.Schema[2:]...)
	_, err = model.PredictVector(reordered, x)
	assert.ErrorIs(t, err, dataset.ErrSchema)

	v, err := model.PredictVector(features.Schema, x)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, v, 18.0)
	assert.LessOrEqual(t, v, 26.0)
}

func TestModel_SaveLoad(t *testing.T) {
	d := newTestDataset(t, 80)
	for _, kind := range []regress.Kind{regress.KindLinear, regress.KindGradientBoosting} {
		cfg := newFastConfig()
		cfg.Estimator = kind
		model, _, err := Train(context.Background(), cfg, d)
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, model.Save(&buf))
		back, err := LoadModel(&buf)
		require.NoError(t, err)

		want, err := model.PredictDataset(d)
		require.NoError(t, err)
		got, err := back.PredictDataset(d)
		require.NoError(t, err)
		assert.Equal(t, want.Predictions(), got.Predictions())
		assert.Equal(t, model.Params(), back.Params())
	}

	_, err := LoadModel(bytes.NewBufferString(`{"version":1,"feature_schema":["a"]}`))
	assert.ErrorIs(t, err, dataset.ErrSchema)
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := fail(cause, Metrics{Stage: StageFit})
	assert.ErrorIs(t, err, ErrTrainingFailed)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "after fit")
}
