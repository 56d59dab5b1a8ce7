package training

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/Agrid-Dev/thermoptim/internal/dataset"
	"github.com/Agrid-Dev/thermoptim/internal/features"
	"github.com/Agrid-Dev/thermoptim/internal/regress"
)

// SearchResult is the outcome of a cross-validated grid search.
type SearchResult struct {
	Candidates []regress.Params
	// Scores holds the mean validation MAE of each candidate.
	Scores    []float64
	BestIndex int
}

func (r SearchResult) Best() regress.Params { return r.Candidates[r.BestIndex] }

func (r SearchResult) BestScore() float64 { return r.Scores[r.BestIndex] }

// Search evaluates every (candidate, fold) pair on a bounded worker pool.
// Each task writes a single score into its own slot, so the reduction does
// not depend on completion order. Ties go to the lowest candidate index.
func Search(ctx context.Context, cfg Config, train dataset.Dataset) (SearchResult, error) {
	cands := cfg.Grid.Candidates(cfg.Estimator, cfg.Params)
	if train.Len() < cfg.Folds {
		return SearchResult{}, fmt.Errorf("%w: %d records for %d folds", ErrInsufficientData, train.Len(), cfg.Folds)
	}
	folds := kFold(train.Len(), cfg.Folds)
	scores := make([]float64, len(cands)*len(folds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers())
	for c := range cands {
		for f := range folds {
			g.Go(func() error {
				mae, err := evalFold(gctx, cfg.Estimator, cands[c], train, folds[f])
				if err != nil {
					return fmt.Errorf("candidate %d fold %d: %w", c, f, err)
				}
				scores[c*len(folds)+f] = mae
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return SearchResult{}, err
	}

	res := SearchResult{Candidates: cands, Scores: make([]float64, len(cands))}
	for c := range cands {
		res.Scores[c] = stat.Mean(scores[c*len(folds):(c+1)*len(folds)], nil)
		if res.Scores[c] < res.Scores[res.BestIndex] {
			res.BestIndex = c
		}
	}
	return res, nil
}

// evalFold refits the transformer on the fold's training part so validation
// rows never inform the scaling.
func evalFold(ctx context.Context, k regress.Kind, p regress.Params, d dataset.Dataset, f fold) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fitPart, validPart := d.Subset(f.train), d.Subset(f.valid)
	m, err := fit(ctx, k, p, fitPart)
	if err != nil {
		return 0, err
	}
	pred, err := m.predictAll(validPart)
	if err != nil {
		return 0, err
	}
	return regress.MAE(pred, validPart.Labels())
}

// fit builds a Model from a labeled partition.
func fit(ctx context.Context, k regress.Kind, p regress.Params, d dataset.Dataset) (*Model, error) {
	st, err := features.Fit(d)
	if err != nil {
		return nil, err
	}
	est, err := regress.New(k, p)
	if err != nil {
		return nil, err
	}
	X := st.TransformAll(d)
	y := d.Labels()
	if len(X) != len(y) {
		return nil, fmt.Errorf("%w: %d feature rows, %d labels", dataset.ErrSchema, len(X), len(y))
	}
	if err := est.Fit(ctx, X, y); err != nil {
		return nil, err
	}
	return newModel(est, st, p), nil
}
