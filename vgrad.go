// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

// Implements the vertical gradient (height response) fit over ties.

package gravproc

import (
	"fmt"
	"math"
	"strconv"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/mat"
)

// Design block names of the height model
const (
	BLOCK_HEIGHT = "height"
	BLOCK_OFFSET = "offset"
)

// VGOpt contains options for vertical gradient estimation
type VGOpt struct {
	Degree     int     // Degree of the height polynomial (no constant term)
	ByMeter    bool    // If true, fit each (meter, survey) separately, otherwise each survey
	Method     Method  // Regression method
	SkipFailed bool    // If true, failed groups are logged and skipped, otherwise the first failure aborts
	RLM        *RLMOpt // Robust fit tuning
}

// NewVGOpt creates a new VGOpt with default values
func NewVGOpt() *VGOpt {
	return &VGOpt{
		Degree:     VG_DEGREE,
		ByMeter:    false,
		Method:     RLM,
		SkipFailed: false,
		RLM:        NewRLMOpt(),
	}
}

// VGCoefs holds the height polynomial of one survey (or meter and survey).
// The polynomial is p(h) = a·h + b·h² + ... with h in meters and p in µGal.
type VGCoefs struct {
	Survey   string    // Survey name
	Meter    string    // Instrument serial number (by-meter fits only)
	Coefs    []float64 // a, b, ... (ascending power, constant dropped)
	StdCoefs []float64 // ua, ub, ...
	CovAB    float64   // Covariance of a and b
	Resid    []float64 // Fit residuals, (from, to) per tie [µGal]
	NumTies  int       // Number of ties used
}

// VGSol contains the results of vertical gradient estimation
type VGSol struct {
	Coefs   []VGCoefs // One entry per group in sorted order
	Skipped []error   // Errors of groups skipped under SkipFailed
}

// Names of the coefficient columns, "a", "b", ...
func CoefNames(degree int) []string {
	s := make([]string, degree)
	for i := range s {
		s[i] = string(rune('a' + i))
	}
	return s
}

// EstimateGradient fits the height response to ties
//
// Parameters:
//   - ties: Ties of one or more surveys (not modified)
//   - opt: Estimation options (nil for defaults)
//
// Returns:
//   - VGSol: Coefficients per survey (or meter and survey)
//   - error: First group failure unless opt.SkipFailed, or an invalid option
func EstimateGradient(ties []Tie, opt *VGOpt) (*VGSol, error) {

	if opt == nil {
		opt = NewVGOpt()
	}
	if opt.Degree < 1 {
		return nil, fmt.Errorf("vertical gradient degree %d: %w", opt.Degree, ErrInvalidOption)
	}

	sol := &VGSol{
		Coefs:   []VGCoefs{},
		Skipped: []error{},
	}
	for _, g := range groupTies(ties, opt.ByMeter) {
		c, err := fitHeights(g.key, g.ties, opt)
		if err != nil {
			err = withKey(err, g.key)
			if !opt.SkipFailed {
				return nil, fmt.Errorf("vertical gradient estimation failed: %w", err)
			}
			groupLog(g.key).WithError(err).Warn("survey skipped")
			sol.Skipped = append(sol.Skipped, err)
			continue
		}
		sol.Coefs = append(sol.Coefs, *c)
	}
	return sol, nil
}

// EstimateGradientFromReadings estimates the ties of readings and fits the
// height response to them
func EstimateGradientFromReadings(readings []Reading, topt *TieOpt, vopt *VGOpt) (*TieSol, *VGSol, error) {

	ts, err := EstimateTies(readings, topt)
	if err != nil {
		return nil, nil, err
	}
	vg, err := EstimateGradient(ts.Ties, vopt)
	if err != nil {
		return ts, nil, err
	}
	return ts, vg, nil
}

// Ties of one vertical gradient group
type tieGroup struct {
	key  GroupKey
	ties []Tie
}

func groupTies(ties []Tie, byMeter bool) []tieGroup {

	idx := map[GroupKey]int{}
	groups := []tieGroup{}
	for _, t := range ties {
		key := GroupKey{Survey: t.Survey}
		if byMeter {
			key.Meter = t.Meter
		}
		i, ok := idx[key]
		if !ok {
			i = len(groups)
			idx[key] = i
			groups = append(groups, tieGroup{key: key})
		}
		groups[i].ties = append(groups[i].ties, t)
	}
	slices.SortFunc(groups, func(a, b tieGroup) int {
		return cmpKey(a.key, b.key)
	})
	return groups
}

// fitHeights fits one group. Each tie contributes two samples, its from height
// with gravity 0 and its to height with the tie gravity. A dummy offset per
// (line, meter) absorbs the level of each line.
func fitHeights(key GroupKey, ts []Tie, opt *VGOpt) (*VGCoefs, error) {

	d, g := heightDesign(ts, opt.Degree)
	n := len(g)
	X := d.Matrix()
	PrintMat(4, "height design "+key.String(), X)

	ls, err := Solve(opt.Method, X, mat.NewVecDense(n, g), nil, opt.RLM)
	if err != nil {
		return nil, err
	}

	// Height block is x^deg ... x^1
	hb := d.MustBlock(BLOCK_HEIGHT)
	covab := 0.0
	if opt.Degree >= 2 {
		ia := hb.Start + opt.Degree - 1
		ib := hb.Start + opt.Degree - 2
		covab = ls.Cov.At(ia, ib)
	}

	c := &VGCoefs{
		Survey:   key.Survey,
		Meter:    key.Meter,
		Coefs:    reversed(hb.Slice(ls.Params)),
		StdCoefs: reversed(hb.Slice(ls.StdErr)),
		CovAB:    covab,
		Resid:    ls.Resid,
		NumTies:  len(ts),
	}
	PrintD(2, "\t%s: coefs=%s std=%s covab=%.6g iter=%d\n", key, fmtFloats(c.Coefs), fmtFloats(c.StdCoefs), covab, ls.Iter)
	return c, nil
}

// heightDesign lays out two samples per tie, (from height, 0) and
// (to height, gravity), heights converted from mm to m. Columns are the
// height powers followed by one offset per (line, meter).
func heightDesign(ts []Tie, degree int) (*Design, []float64) {

	n := 2 * len(ts)
	h := make([]float64, n)
	g := make([]float64, n)
	lm := make([]string, n)
	for i, t := range ts {
		h[2*i] = t.FromHeight * MM_TO_M
		h[2*i+1] = t.ToHeight * MM_TO_M
		g[2*i] = 0
		g[2*i+1] = t.Gravity
		lm[2*i] = lineMeter(t)
		lm[2*i+1] = lm[2*i]
	}

	d := NewDesign(n)
	d.AddPoly(BLOCK_HEIGHT, h, degree)
	d.AddIndicator(BLOCK_OFFSET, lm, Levels(lm, ""))
	return d, g
}

// Dummy category of a tie
func lineMeter(t Tie) string {
	return strconv.Quote(t.Line) + "_" + strconv.Quote(t.Meter)
}

func (c *VGCoefs) at(s []float64, k int) float64 {
	if k < len(s) {
		return s[k]
	}
	return 0
}

// A returns the linear coefficient [µGal/m]
func (c *VGCoefs) A() float64 { return c.at(c.Coefs, 0) }

// B returns the quadratic coefficient [µGal/m²], 0 for a linear fit
func (c *VGCoefs) B() float64 { return c.at(c.Coefs, 1) }

// UA returns the standard error of A
func (c *VGCoefs) UA() float64 { return c.at(c.StdCoefs, 0) }

// UB returns the standard error of B
func (c *VGCoefs) UB() float64 { return c.at(c.StdCoefs, 1) }

// Poly evaluates p(y) = a·y + b·y² + ... for y in meters
func (c *VGCoefs) Poly(y float64) float64 {
	p := 0.0
	for k := len(c.Coefs) - 1; k >= 0; k-- {
		p = (p + c.Coefs[k]) * y
	}
	return p
}

// RefGradient returns p(href), the mean gradient between 0 and href when
// href is 1 m. It is the value removed by Correction.
func (c *VGCoefs) RefGradient(href float64) float64 {
	return c.Poly(href)
}

// Correction returns gp(y) = p(y) - y·p(href)
func (c *VGCoefs) Correction(y, href float64) float64 {
	return c.Poly(y) - y*c.Poly(href)
}

// Uncertainty returns the standard uncertainty of Correction(y, href)
func (c *VGCoefs) Uncertainty(y, href float64) float64 {
	return Uncertainty(y, href, c.UA(), c.UB(), c.CovAB)
}

// Uncertainty propagates the coefficient errors to the gradient correction
//
//	u(y) = |href - y| · sqrt(ub² + (y + href)² · ua² + 2 · (href + y) · covab)
func Uncertainty(y, href, ua, ub, covab float64) float64 {
	if y == href {
		return 0
	}
	return math.Abs(href-y) * math.Sqrt(SQ(ub)+SQ(y+href)*SQ(ua)+2*(href+y)*covab)
}

// ResidPairs returns the residuals as (from, to) pairs, one per tie
func (c *VGCoefs) ResidPairs() [][2]float64 {
	p := make([][2]float64, len(c.Resid)/2)
	for i := range p {
		p[i] = [2]float64{c.Resid[2*i], c.Resid[2*i+1]}
	}
	return p
}
