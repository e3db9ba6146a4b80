// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

// Implements tie and drift estimation for relative gravimeter lines.

package gravproc

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/combin"
)

// Design block names of the line model
const (
	BLOCK_STATION = "station"
	BLOCK_DRIFT   = "drift"
	BLOCK_CONST   = "const"
)

// TieOpt contains options for tie estimation
type TieOpt struct {
	DriftDegree  int     // Degree of the drift polynomial in time
	Method       Method  // Regression method
	Anchor       string  // Reference station. Empty: first station of each line in acquisition order
	AbsoluteTime bool    // If true, Drift and Const refer to days since 1970/1/1, otherwise to days since the first reading of the line
	UseStdErr    bool    // If true, WLS weights readings by 1/StdErr² (when every reading of the line has one)
	SkipFailed   bool    // If true, failed lines are logged and skipped, otherwise the first failure aborts
	RLM          *RLMOpt // Robust fit tuning
}

// NewTieOpt creates a new TieOpt with default values
func NewTieOpt() *TieOpt {
	return &TieOpt{
		DriftDegree:  DRIFT_DEGREE, // Quadratic drift
		Method:       RLM,          // Robust fit
		Anchor:       "",           // First station
		AbsoluteTime: false,        // Days since the first reading
		UseStdErr:    false,        // Unit weights
		SkipFailed:   false,        // All or nothing
		RLM:          NewRLMOpt(),  // Huber defaults
	}
}

// Tie is the drift-free gravity difference between the reference station of a
// line and one other station of it
type Tie struct {
	Meter      string    // Instrument serial number
	Survey     string    // Survey name
	Line       string    // Measurement line
	FromPoint  string    // Reference station
	ToPoint    string    // Tied station
	FromHeight float64   // Instrument height at the reference station [mm]
	ToHeight   float64   // Instrument height at the tied station [mm]
	Gravity    float64   // Gravity difference to - from [µGal]
	StdGravity float64   // Standard error of Gravity [µGal]
	Drift      []float64 // Drift coefficients, highest power first [µGal/day^k]
	StdDrift   []float64 // Standard errors of Drift
	Const      float64   // Constant term of the line model [µGal]
	StdConst   float64   // Standard error of Const
	DataFile   string    // Source data file
	Created    time.Time // Creation date of the data file
	Operator   string    // Operator
}

// LineFit keeps the per-reading outcome of one line fit
type LineFit struct {
	Key       GroupKey  // Fit group
	Reference string    // Reference station
	Readings  []Reading // Line readings in acquisition order
	Resid     []float64 // Residual of each reading [µGal]
	Weights   []float64 // Final weight of each reading
	Iter      int       // Robust iterations
}

// TieSol contains the results of tie estimation
type TieSol struct {
	Ties    []Tie     // One tie per non-reference station and line
	Fits    []LineFit // One entry per fitted line
	Skipped []error   // Errors of lines skipped under SkipFailed
}

// EstimateTies fits every (meter, survey, line) group of readings with a
// station-offset plus drift-polynomial model and returns the ties
//
// Parameters:
//   - readings: Normalized readings (not modified)
//   - opt: Estimation options (nil for defaults)
//
// Returns:
//   - TieSol: Ties in sorted group order, line fits and skipped lines
//   - error: First line failure unless opt.SkipFailed, or an invalid option
func EstimateTies(readings []Reading, opt *TieOpt) (*TieSol, error) {

	if opt == nil {
		opt = NewTieOpt()
	}
	if opt.DriftDegree < 0 {
		return nil, fmt.Errorf("drift degree %d: %w", opt.DriftDegree, ErrInvalidOption)
	}

	sol := &TieSol{
		Ties:    []Tie{},
		Fits:    []LineFit{},
		Skipped: []error{},
	}

	for _, g := range groupLines(readings) {
		ties, fit, err := fitLine(g.key, g.readings, opt)
		if err != nil {
			err = withKey(err, g.key)
			if !opt.SkipFailed {
				return nil, fmt.Errorf("tie estimation failed: %w", err)
			}
			groupLog(g.key).WithError(err).Warn("line skipped")
			sol.Skipped = append(sol.Skipped, err)
			continue
		}
		sol.Ties = append(sol.Ties, ties...)
		sol.Fits = append(sol.Fits, *fit)
	}

	return sol, nil
}

// Readings of one fit group
type lineGroup struct {
	key      GroupKey
	readings []Reading
}

// groupLines splits readings by (meter, survey, line). Groups are sorted by key,
// members keep their input order and are then stably sorted by acquisition time.
func groupLines(readings []Reading) []lineGroup {

	idx := map[GroupKey]int{}
	groups := []lineGroup{}
	for _, rd := range readings {
		key := GroupKey{Meter: rd.Meter, Survey: rd.Survey, Line: rd.Line}
		i, ok := idx[key]
		if !ok {
			i = len(groups)
			idx[key] = i
			groups = append(groups, lineGroup{key: key})
		}
		groups[i].readings = append(groups[i].readings, rd)
	}

	slices.SortFunc(groups, func(a, b lineGroup) int {
		return cmpKey(a.key, b.key)
	})
	for _, g := range groups {
		slices.SortStableFunc(g.readings, func(a, b Reading) int {
			return a.DateTime.Compare(b.DateTime)
		})
	}
	return groups
}

func cmpKey(a, b GroupKey) int {
	if c := cmpName(a.Meter, b.Meter); c != 0 {
		return c
	}
	if c := cmpName(a.Survey, b.Survey); c != 0 {
		return c
	}
	return cmpName(a.Line, b.Line)
}

// fitLine fits one line and forms its ties
func fitLine(key GroupKey, rs []Reading, opt *TieOpt) ([]Tie, *LineFit, error) {

	n := len(rs)
	stations := make([]string, n)
	grav := make([]float64, n)
	t := make([]float64, n)
	heights := map[string]float64{} // First height recorded at each station
	for i, rd := range rs {
		stations[i] = rd.Station
		grav[i] = rd.CorrGrav
		t[i] = DaysSince(rd.DateTime, rs[0].DateTime)
		if _, ok := heights[rd.Station]; !ok {
			heights[rd.Station] = rd.InstrHeight
		}
	}

	// Reference station
	ref := rs[0].Station
	if opt.Anchor != "" {
		if !slices.Contains(stations, opt.Anchor) {
			return nil, nil, &MissingReferenceError{Anchor: opt.Anchor}
		}
		ref = opt.Anchor
	}
	levels := Levels(stations, ref)
	if len(levels) == 0 {
		return nil, nil, &MissingReferenceError{Stations: 1}
	}

	// Station offsets + drift polynomial + constant
	d := NewDesign(n)
	d.AddIndicator(BLOCK_STATION, stations, levels)
	d.AddPoly(BLOCK_DRIFT, t, opt.DriftDegree)
	d.AddConst(BLOCK_CONST)
	X := d.Matrix()
	PrintMat(4, "line design "+key.String(), X)

	ls, err := Solve(opt.Method, X, mat.NewVecDense(n, grav), lineWeights(rs, opt), opt.RLM)
	if err != nil {
		return nil, nil, err
	}

	sb := d.MustBlock(BLOCK_STATION)
	db := d.MustBlock(BLOCK_DRIFT)
	cb := d.MustBlock(BLOCK_CONST)
	gravity := sb.Slice(ls.Params)
	stdGravity := sb.Slice(ls.StdErr)
	drift := db.Slice(ls.Params)
	stdDrift := db.Slice(ls.StdErr)
	c, stdC := ls.Params[cb.Start], ls.StdErr[cb.Start]
	if opt.AbsoluteTime {
		drift, stdDrift, c, stdC = shiftDrift(ls, db, cb, DayCount(rs[0].DateTime))
	}

	PrintD(2, "\t%s: ref=%s offsets=%s drift=%s const=%.3f iter=%d\n",
		key, ref, fmtFloats(gravity), fmtFloats(drift), c, ls.Iter)

	ties := make([]Tie, len(levels))
	for i, st := range levels {
		ties[i] = Tie{
			Meter:      key.Meter,
			Survey:     key.Survey,
			Line:       key.Line,
			FromPoint:  ref,
			ToPoint:    st,
			FromHeight: heights[ref],
			ToHeight:   heights[st],
			Gravity:    gravity[i],
			StdGravity: stdGravity[i],
			Drift:      slices.Clone(drift),
			StdDrift:   slices.Clone(stdDrift),
			Const:      c,
			StdConst:   stdC,
			DataFile:   rs[0].DataFile,
			Created:    rs[0].Created,
			Operator:   rs[0].Operator,
		}
	}

	fit := &LineFit{
		Key:       key,
		Reference: ref,
		Readings:  rs,
		Resid:     ls.Resid,
		Weights:   ls.Weights,
		Iter:      ls.Iter,
	}
	return ties, fit, nil
}

// shiftDrift re-expands the fitted drift p(τ) + c, τ = t - t0, in powers of t.
// The line is always solved in τ; powers of the absolute day count would make
// the drift columns numerically collinear.
//   - d_j = Σ_{k>=j} C(k,j) (-t0)^(k-j) c_k
//   - Cov(d) = J Cov(c) J^t
func shiftDrift(ls *LSSol, db, cb Block, t0 float64) (drift, stdDrift []float64, c, stdC float64) {

	deg := db.Len
	// Parameter columns in ascending power, the constant first
	cols := make([]int, deg+1)
	cols[0] = cb.Start
	for k := 1; k <= deg; k++ {
		cols[k] = db.Start + deg - k
	}

	coef := mat.NewVecDense(deg+1, nil)
	cov := mat.NewDense(deg+1, deg+1, nil)
	J := mat.NewDense(deg+1, deg+1, nil)
	for j, cj := range cols {
		coef.SetVec(j, ls.Params[cj])
		for k, ck := range cols {
			cov.Set(j, k, ls.Cov.At(cj, ck))
			if k >= j {
				J.Set(j, k, float64(combin.Binomial(k, j))*math.Pow(-t0, float64(k-j)))
			}
		}
	}

	var d mat.VecDense
	d.MulVec(J, coef)
	var dcov mat.Dense
	dcov.Product(J, cov, J.T())
	std := diagSqrt(&dcov)

	drift = make([]float64, deg)
	stdDrift = make([]float64, deg)
	for i := range drift {
		drift[i] = d.AtVec(deg - i)
		stdDrift[i] = std[deg-i]
	}
	return drift, stdDrift, d.AtVec(0), std[0]
}

// Inverse variance weights when requested and available, otherwise nil (unit weights)
func lineWeights(rs []Reading, opt *TieOpt) []float64 {
	if !opt.UseStdErr || opt.Method != WLS {
		return nil
	}
	w := make([]float64, len(rs))
	for i, rd := range rs {
		if rd.StdErr <= 0 {
			return nil
		}
		w[i] = 1 / SQ(rd.StdErr)
	}
	return w
}
