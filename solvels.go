// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gravproc

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Machine epsilon used for the numerical rank tolerance
const EPS = 2.220446049250313e-16

// Regression method
type Method int

const (
	WLS Method = iota // Weighted least squares
	RLM               // Robust M-estimator (Huber) by IRLS
)

func (p *Method) Set(s string) error {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "WLS", "OLS", "0":
		*p = WLS
	case "RLM", "1":
		*p = RLM
	default:
		return fmt.Errorf("unknown method %q (WLS or RLM): %w", s, ErrInvalidOption)
	}
	return nil
}

func (p *Method) String() string {
	switch *p {
	case WLS:
		return "WLS"
	case RLM:
		return "RLM"
	default:
		return "UNKNOWN!"
	}
}

// LSSol holds the result of a least squares fit y ≈ X·β
type LSSol struct {
	Params    []float64  // Estimated parameters β (one per design column)
	StdErr    []float64  // Standard errors of the parameters
	Cov       *mat.Dense // Parameter covariance matrix
	Resid     []float64  // Raw residuals y - X·β
	Scale     float64    // WLS: residual variance; RLM: robust scale of the residuals
	Weights   []float64  // Observation weights of the final fit
	Iter      int        // IRLS iterations (0 for WLS)
	Converged bool       // Always true for WLS
}

// Solve the observation equation using weighted least squares
// - β = (X^t W X)^-1 X^t W y, computed through the SVD of W^1/2 X
// - Cov = σ² (X^t W X)^-1 with σ² = Σ w r² / (n - p)
// - w == nil means unit weights
func SolveLS(X mat.Matrix, y mat.Vector, w []float64) (*LSSol, error) {

	n, p := X.Dims()
	if y.Len() != n {
		return nil, fmt.Errorf("invalid matrix size. X(%d x %d), y(%d x 1)", n, p, y.Len())
	}
	yv := vecToSlice(y)

	fit, err := fitLS(X, yv, w)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = ones(n)
	}

	// Residual variance
	ss := 0.0
	for i, r := range fit.resid {
		ss += w[i] * SQ(r)
	}
	scale := math.NaN() // No residual degrees of freedom
	if n > p {
		scale = ss / float64(n-p)
	}

	var cov mat.Dense
	cov.Scale(scale, fit.covU)

	return &LSSol{
		Params:    fit.beta,
		StdErr:    diagSqrt(&cov),
		Cov:       &cov,
		Resid:     fit.resid,
		Scale:     scale,
		Weights:   w,
		Iter:      0,
		Converged: true,
	}, nil
}

// Solve dispatches to the selected method. w is used by WLS only.
func Solve(method Method, X mat.Matrix, y mat.Vector, w []float64, ropt *RLMOpt) (*LSSol, error) {
	switch method {
	case WLS:
		return SolveLS(X, y, w)
	case RLM:
		if ropt == nil {
			ropt = NewRLMOpt()
		}
		return SolveRLM(X, y, ropt)
	default:
		return nil, fmt.Errorf("method %d: %w", method, ErrInvalidOption)
	}
}

// Intermediate fit: parameters, residuals and the unscaled covariance (X^t W X)^-1
type lsFit struct {
	beta  []float64
	resid []float64
	covU  *mat.Dense
}

func fitLS(X mat.Matrix, y []float64, w []float64) (*lsFit, error) {

	n, p := X.Dims()
	if len(y) != n {
		return nil, fmt.Errorf("invalid matrix size. X(%d x %d), y(%d x 1)", n, p, len(y))
	}
	if w != nil && len(w) != n {
		return nil, fmt.Errorf("invalid weight size. X(%d x %d), w(%d x 1)", n, p, len(w))
	}
	if n < p {
		return nil, &SingularDesignError{Rows: n, Cols: p, Rank: n}
	}

	// W^1/2 X, W^1/2 y
	Xw := mat.DenseCopyOf(X)
	yw := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		sw := 1.0
		if w != nil {
			if w[i] < 0 || math.IsNaN(w[i]) {
				return nil, fmt.Errorf("invalid weight w[%d]=%g", i, w[i])
			}
			sw = math.Sqrt(w[i])
		}
		for j := 0; j < p; j++ {
			Xw.Set(i, j, sw*Xw.At(i, j))
		}
		yw.SetVec(i, sw*y[i])
	}

	var svd mat.SVD
	if ok := svd.Factorize(Xw, mat.SVDThin); !ok {
		return nil, fmt.Errorf("svd factorization failed. X(%d x %d)", n, p)
	}

	// Numerical rank (same tolerance as numpy.linalg.matrix_rank)
	s := svd.Values(nil)
	tol := s[0] * float64(max(n, p)) * EPS
	rank := 0
	for _, v := range s {
		if v > tol {
			rank++
		}
	}
	if rank < p {
		return nil, &SingularDesignError{Rows: n, Cols: p, Rank: rank}
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// β = V S^-1 U^t y
	var uty mat.VecDense
	uty.MulVec(u.T(), yw)
	for i := 0; i < p; i++ {
		uty.SetVec(i, uty.AtVec(i)/s[i])
	}
	var beta mat.VecDense
	beta.MulVec(&v, &uty)

	// (X^t W X)^-1 = V S^-2 V^t
	vs := mat.DenseCopyOf(&v)
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			vs.Set(i, j, vs.At(i, j)/s[j])
		}
	}
	var covU mat.Dense
	covU.Mul(vs, vs.T())

	// Residuals against the unweighted observations
	var fitted mat.VecDense
	fitted.MulVec(X, &beta)
	resid := make([]float64, n)
	for i := range resid {
		resid[i] = y[i] - fitted.AtVec(i)
	}

	return &lsFit{
		beta:  vecToSlice(&beta),
		resid: resid,
		covU:  &covU,
	}, nil
}

func diagSqrt(c mat.Matrix) []float64 {
	p, _ := c.Dims()
	d := make([]float64, p)
	for i := range d {
		d[i] = math.Sqrt(c.At(i, i))
	}
	return d
}
