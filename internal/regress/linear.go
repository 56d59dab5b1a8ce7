package regress

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// machEpsilon scales the cutoff below which singular values count as zero.
const machEpsilon = 0x1p-52

// Linear is ridge-regularised least squares with an unpenalised intercept.
// Alpha == 0 is ordinary least squares.
type Linear struct {
	Alpha     float64   `json:"alpha"`
	Intercept float64   `json:"intercept"`
	Coef      []float64 `json:"coef"`
}

func NewLinear(alpha float64) *Linear {
	return &Linear{Alpha: alpha}
}

func (m *Linear) Kind() Kind { return KindLinear }

func (m *Linear) NumFeatures() int { return len(m.Coef) }

// Coefficients returns a copy of the fitted slope per feature.
func (m *Linear) Coefficients() []float64 {
	return append([]float64(nil), m.Coef...)
}

// Fit solves the ridge problem on centred data through a thin SVD of Xc:
// β = V diag(s/(s²+α)) Uᵀyc. Singular values under the rank cutoff are
// dropped, so constant or collinear features get a zero (minimum norm)
// coefficient instead of failing the fit.
func (m *Linear) Fit(ctx context.Context, X [][]float64, y []float64) error {
	n, p, err := checkShape(X, y)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	xc := mat.NewDense(n, p, nil)
	for i, row := range X {
		xc.SetRow(i, row)
	}
	means := make([]float64, p)
	col := make([]float64, n)
	for j := range p {
		mat.Col(col, j, xc)
		means[j] = stat.Mean(col, nil)
		floats.AddConst(-means[j], col)
		xc.SetCol(j, col)
	}
	yMean := stat.Mean(y, nil)
	yc := mat.NewVecDense(n, nil)
	for i, v := range y {
		yc.SetVec(i, v-yMean)
	}

	var svd mat.SVD
	if ok := svd.Factorize(xc, mat.SVDThin); !ok {
		return fmt.Errorf("%w: singular value decomposition failed", ErrNotConverged)
	}
	sv := svd.Values(nil)
	if !isFiniteSlice(sv) {
		return fmt.Errorf("%w: non-finite singular values", ErrNotConverged)
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var uty mat.VecDense
	uty.MulVec(u.T(), yc)
	cutoff := 0.0
	if len(sv) > 0 {
		cutoff = float64(max(n, p)) * machEpsilon * sv[0]
	}
	w := mat.NewVecDense(len(sv), nil)
	for i, s := range sv {
		if s > cutoff {
			w.SetVec(i, uty.AtVec(i)*s/(s*s+m.Alpha))
		}
	}
	var beta mat.VecDense
	beta.MulVec(&v, w)

	coef := make([]float64, p)
	for j := range p {
		coef[j] = beta.AtVec(j)
	}
	intercept := yMean - floats.Dot(coef, means)
	if !isFiniteSlice(coef) || math.IsNaN(intercept) || math.IsInf(intercept, 0) {
		return fmt.Errorf("%w: non-finite coefficients", ErrNotConverged)
	}
	m.Coef = coef
	m.Intercept = intercept
	return nil
}

func (m *Linear) Predict(x []float64) float64 {
	return m.Intercept + floats.Dot(m.Coef, x)
}

func isFiniteSlice(v []float64) bool {
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
