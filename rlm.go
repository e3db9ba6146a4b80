// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

// Implements the robust M-estimator (Huber's T norm) fitted by iteratively
// reweighted least squares.
//
//   - Start: ordinary least squares
//   - Scale: MAD about zero, median(|r|) / 0.6745. When more than half of the
//     residuals vanish the MAD of the nonzero residuals is used instead
//   - Weights: w = 1 for |r/s| <= t, t / |r/s| otherwise
//   - Convergence: relative change of the deviance Σρ(r/s) <= Tol, or
//     relative change of the parameters <= Tol
//   - Covariance: Huber's H1 correction applied to (X^t X)^-1

package gravproc

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// RLMOpt contains the tuning of the robust fit
type RLMOpt struct {
	T       float64 // Huber tuning constant
	MaxIter int     // Maximum number of reweighting iterations
	Tol     float64 // Relative convergence threshold on the deviance and the parameters
}

// NewRLMOpt creates a new RLMOpt with default values
func NewRLMOpt() *RLMOpt {
	return &RLMOpt{
		T:       HUBER_T,
		MaxIter: MAX_LOOP_COUNT,
		Tol:     CONVERGENCE_THRESHOLD,
	}
}

// SolveRLM fits y ≈ X·β with the Huber M-estimator. A nil opt selects the defaults.
func SolveRLM(X mat.Matrix, y mat.Vector, opt *RLMOpt) (*LSSol, error) {

	if opt == nil {
		opt = NewRLMOpt()
	}
	n, p := X.Dims()
	yv := vecToSlice(y)

	// Initial ordinary least squares. Its (X^t X)^-1 is reused for the covariance.
	fit, err := fitLS(X, yv, nil)
	if err != nil {
		return nil, err
	}
	covU := fit.covU

	floor := SCALE_FLOOR * (1 + maxAbs(yv))
	w := ones(n)

	iter := 0
	delta := math.Inf(1)
	scale, prev := 0.0, 0.0
	converged := maxAbs(fit.resid) <= floor // Exact fit, nothing to reweight
	if !converged {
		scale = robustScale(fit.resid, floor)
		prev = huberDeviance(fit.resid, scale, opt.T)
	}
	for !converged && iter < opt.MaxIter {

		w = huberWeights(fit.resid, scale, opt.T)
		beta := fit.beta
		fit, err = fitLS(X, yv, w)
		if err != nil {
			return nil, err
		}
		iter++

		scale = robustScale(fit.resid, floor)
		if scale == 0 {
			converged = true
			break
		}
		dev := huberDeviance(fit.resid, scale, opt.T)
		if math.IsNaN(dev) || math.IsInf(dev, 0) {
			return nil, &ConvergenceError{Iter: iter, Delta: dev}
		}
		delta = math.Abs(dev - prev)
		prev = dev
		PrintD(4, "\t\tIRLS %2d: scale=%.6g deviance=%.9g\n", iter, scale, dev)
		if delta <= opt.Tol*math.Max(1, dev) || paramStep(beta, fit.beta) <= opt.Tol {
			converged = true
		}
	}
	if !converged {
		return nil, &ConvergenceError{Iter: iter, Delta: delta}
	}

	cov := h1Cov(fit.resid, scale, opt.T, n, p, covU)

	return &LSSol{
		Params:    fit.beta,
		StdErr:    diagSqrt(cov),
		Cov:       cov,
		Resid:     fit.resid,
		Scale:     scale,
		Weights:   w,
		Iter:      iter,
		Converged: true,
	}, nil
}

// Largest parameter change relative to the size of the new parameters
func paramStep(prev, cur []float64) float64 {
	return floats.Distance(prev, cur, math.Inf(1)) / (1 + maxAbs(cur))
}

// Residual scale for the reweighting. Zero only when every residual is
// within floor of zero. Singleton indicator levels fit exactly, so the MAD
// about zero collapses whenever they make up half of the observations; the
// scale then comes from the residuals that carry information.
func robustScale(resid []float64, floor float64) float64 {
	if s := madZero(resid); s > floor {
		return s
	}
	nz := make([]float64, 0, len(resid))
	for _, r := range resid {
		if math.Abs(r) > floor {
			nz = append(nz, r)
		}
	}
	if len(nz) == 0 {
		return 0
	}
	return madZero(nz)
}

// Huber's H1 covariance
// - k = 1 + p/n var(ψ')/mean(ψ')²
// - Cov = k² (Σψ²/(n-p)) s² / mean(ψ')² (X^t X)^-1
func h1Cov(resid []float64, scale, t float64, n, p int, covU *mat.Dense) *mat.Dense {

	var cov mat.Dense
	if scale == 0 {
		cov.Scale(0, covU)
		return &cov
	}

	psi := make([]float64, n)
	dpsi := make([]float64, n)
	for i, r := range resid {
		z := r / scale
		psi[i] = huberPsi(z, t)
		dpsi[i] = huberPsiDeriv(z, t)
	}
	m := stat.Mean(dpsi, nil)
	k := 1 + float64(p)/float64(n)*stat.PopVariance(dpsi, nil)/SQ(m)

	f := math.NaN() // No residual degrees of freedom
	if n > p {
		ssPsi := floats.Dot(psi, psi)
		f = SQ(k) * (ssPsi / float64(n-p)) * SQ(scale) / SQ(m)
	}
	cov.Scale(f, covU)
	return &cov
}

func huberWeights(resid []float64, scale, t float64) []float64 {
	w := make([]float64, len(resid))
	for i, r := range resid {
		z := math.Abs(r / scale)
		if z <= t {
			w[i] = 1
		} else {
			w[i] = t / z
		}
	}
	return w
}

func huberRho(z, t float64) float64 {
	if a := math.Abs(z); a > t {
		return t*a - 0.5*SQ(t)
	}
	return 0.5 * SQ(z)
}

func huberPsi(z, t float64) float64 {
	if math.Abs(z) > t {
		return math.Copysign(t, z)
	}
	return z
}

func huberPsiDeriv(z, t float64) float64 {
	if math.Abs(z) > t {
		return 0
	}
	return 1
}

func huberDeviance(resid []float64, scale, t float64) float64 {
	dev := 0.0
	for _, r := range resid {
		dev += huberRho(r/scale, t)
	}
	return dev
}

// Normalized median absolute deviation about zero
func madZero(resid []float64) float64 {
	a := make([]float64, len(resid))
	for i, r := range resid {
		a[i] = math.Abs(r)
	}
	return median(a) / MAD_NORM
}

// Median with the midpoint rule for even lengths. Sorts x in place.
func median(x []float64) float64 {
	n := len(x)
	if n == 0 {
		return math.NaN()
	}
	sort.Float64s(x)
	if n%2 == 1 {
		return x[n/2]
	}
	return 0.5 * (x[n/2-1] + x[n/2])
}
