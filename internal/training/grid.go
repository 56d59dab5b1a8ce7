package training

import (
	"errors"
	"fmt"

	"github.com/Agrid-Dev/thermoptim/internal/regress"
)

// Grid lists candidate values per hyperparameter. An empty list keeps the
// base value from Config.Params.
type Grid struct {
	NEstimators    []int
	LearningRate   []float64
	MaxDepth       []int
	MinSamplesLeaf []int
	Alpha          []float64
}

func DefaultGrid() Grid {
	return Grid{
		NEstimators:  []int{100, 200},
		LearningRate: []float64{0.01, 0.1},
		MaxDepth:     []int{3, 5},
		Alpha:        []float64{0, 0.1, 1, 10},
	}
}

// Candidates enumerates the grid in a fixed nested order: n_estimators,
// learning_rate, max_depth, min_samples_leaf, alpha, the last varying
// fastest. Dimensions the estimator ignores are not expanded.
func (g Grid) Candidates(k regress.Kind, base regress.Params) []regress.Params {
	orBase := func(vals []int, b int) []int {
		if len(vals) == 0 {
			return []int{b}
		}
		return vals
	}
	orBaseF := func(vals []float64, b float64) []float64 {
		if len(vals) == 0 {
			return []float64{b}
		}
		return vals
	}

	nEst := []int{base.NEstimators}
	lr := []float64{base.LearningRate}
	depth := []int{base.MaxDepth}
	leaf := []int{base.MinSamplesLeaf}
	alpha := []float64{base.Alpha}
	switch k {
	case regress.KindLinear:
		alpha = orBaseF(g.Alpha, base.Alpha)
	case regress.KindGradientBoosting:
		nEst = orBase(g.NEstimators, base.NEstimators)
		lr = orBaseF(g.LearningRate, base.LearningRate)
		depth = orBase(g.MaxDepth, base.MaxDepth)
		leaf = orBase(g.MinSamplesLeaf, base.MinSamplesLeaf)
	}

	var out []regress.Params
	for _, n := range nEst {
		for _, l := range lr {
			for _, d := range depth {
				for _, m := range leaf {
					for _, a := range alpha {
						out = append(out, regress.Params{
							NEstimators:    n,
							LearningRate:   l,
							MaxDepth:       d,
							MinSamplesLeaf: m,
							Alpha:          a,
						})
					}
				}
			}
		}
	}
	return out
}

func (g Grid) Validate(k regress.Kind, base regress.Params) error {
	var errs []error
	for i, p := range g.Candidates(k, base) {
		if err := p.Validate(k); err != nil {
			errs = append(errs, fmt.Errorf("grid candidate %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
