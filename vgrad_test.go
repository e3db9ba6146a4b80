// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gravproc

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

// Height response p(h) = a·h + b·h² with h in meters
func heightPoly(a, b float64) func(mm float64) float64 {
	return func(mm float64) float64 {
		h := mm * MM_TO_M
		return a*h + b*h*h
	}
}

// Ties of one meter over two lines, exact for the given response
func vgTies(meter, survey string, p func(mm float64) float64) []Tie {
	lines := []struct {
		line string
		from float64
		to   []float64
	}{
		{"1", 200, []float64{700, 1200}},
		{"2", 300, []float64{800, 1300}},
	}
	ties := []Tie{}
	for _, l := range lines {
		for i, h := range l.to {
			ties = append(ties, Tie{
				Meter:      meter,
				Survey:     survey,
				Line:       l.line,
				FromPoint:  "h0",
				ToPoint:    "h" + string(rune('1'+i)),
				FromHeight: l.from,
				ToHeight:   h,
				Gravity:    p(h) - p(l.from),
			})
		}
	}
	return ties
}

func TestHeightDesign(t *testing.T) {
	ts := []Tie{
		{Meter: "40236", Line: "1", FromHeight: 0, ToHeight: 1500, Gravity: -450},
		{Meter: "40236", Line: "2", FromHeight: 250, ToHeight: 1000, Gravity: -200},
	}
	d, g := heightDesign(ts, 2)

	// h², h [m] then one offset per line
	want := mat.NewDense(4, 4, []float64{
		0, 0, 1, 0,
		2.25, 1.5, 1, 0,
		0.0625, 0.25, 0, 1,
		1, 1, 0, 1,
	})
	if X := d.Matrix(); !mat.EqualApprox(X, want, 1e-12) {
		t.Errorf("design =\n%v\nwant\n%v", mat.Formatted(X), mat.Formatted(want))
	}
	if !floats.Equal(g, []float64{0, -450, 0, -200}) {
		t.Errorf("response = %v, want [0 -450 0 -200]", g)
	}
	if b := d.MustBlock(BLOCK_OFFSET); b.Start != 2 || b.Len != 2 {
		t.Errorf("offset block = %+v", b)
	}
}

func TestEstimateGradientRecovery(t *testing.T) {
	ties := vgTies("40236", "Pulkovo", heightPoly(-300, 20))
	for _, m := range []Method{WLS, RLM} {
		opt := NewVGOpt()
		opt.Method = m
		sol, err := EstimateGradient(ties, opt)
		if err != nil {
			t.Fatalf("EstimateGradient(%s) error = %v", m.String(), err)
		}
		if len(sol.Coefs) != 1 {
			t.Fatalf("EstimateGradient(%s) = %d groups, want 1", m.String(), len(sol.Coefs))
		}
		c := sol.Coefs[0]
		if !floats.EqualApprox(c.Coefs, []float64{-300, 20}, 1e-6) {
			t.Errorf("Coefs = %v, want [-300 20]", c.Coefs)
		}
		if math.Abs(c.A()+300) > 1e-6 || math.Abs(c.B()-20) > 1e-6 {
			t.Errorf("A, B = %g, %g, want -300, 20", c.A(), c.B())
		}
		if len(c.Resid) != 2*len(ties) || c.NumTies != len(ties) {
			t.Errorf("len(Resid), NumTies = %d, %d, want %d, %d", len(c.Resid), c.NumTies, 2*len(ties), len(ties))
		}
		for i, r := range c.Resid {
			if math.Abs(r) > 1e-6 {
				t.Errorf("Resid[%d] = %g, want 0", i, r)
			}
		}
		if c.Survey != "Pulkovo" || c.Meter != "" {
			t.Errorf("group = %q, %q, want Pulkovo and no meter", c.Survey, c.Meter)
		}
		if len(c.StdCoefs) != 2 {
			t.Errorf("StdCoefs = %v, want 2 values", c.StdCoefs)
		}
	}
}

func TestEstimateGradientLinear(t *testing.T) {
	ties := vgTies("40236", "Pulkovo", heightPoly(-308.6, 0))
	opt := NewVGOpt()
	opt.Degree = 1
	sol, err := EstimateGradient(ties, opt)
	if err != nil {
		t.Fatalf("EstimateGradient() error = %v", err)
	}
	c := sol.Coefs[0]
	if len(c.Coefs) != 1 || math.Abs(c.A()+308.6) > 1e-6 {
		t.Errorf("Coefs = %v, want [-308.6]", c.Coefs)
	}
	if c.B() != 0 || c.UB() != 0 || c.CovAB != 0 {
		t.Errorf("B, UB, CovAB = %g, %g, %g, want 0", c.B(), c.UB(), c.CovAB)
	}
}

func TestEstimateGradientByMeter(t *testing.T) {
	ties := append(
		vgTies("40489", "Pulkovo", heightPoly(-310, 15)),
		vgTies("40236", "Pulkovo", heightPoly(-300, 20))...,
	)

	opt := NewVGOpt()
	opt.ByMeter = true
	sol, err := EstimateGradient(ties, opt)
	if err != nil {
		t.Fatalf("EstimateGradient() error = %v", err)
	}
	if len(sol.Coefs) != 2 {
		t.Fatalf("%d groups, want 2", len(sol.Coefs))
	}
	want := []struct {
		meter string
		coefs []float64
	}{
		{"40236", []float64{-300, 20}},
		{"40489", []float64{-310, 15}},
	}
	for i, w := range want {
		c := sol.Coefs[i]
		if c.Meter != w.meter || c.Survey != "Pulkovo" {
			t.Errorf("group %d = %q, %q, want %q, Pulkovo", i, c.Meter, c.Survey, w.meter)
		}
		if !floats.EqualApprox(c.Coefs, w.coefs, 1e-6) {
			t.Errorf("group %d Coefs = %v, want %v", i, c.Coefs, w.coefs)
		}
	}

	// Survey-wide fit: one group, one offset per (line, meter)
	opt = NewVGOpt()
	opt.Method = WLS
	sol, err = EstimateGradient(ties, opt)
	if err != nil {
		t.Fatalf("EstimateGradient() error = %v", err)
	}
	if len(sol.Coefs) != 1 || sol.Coefs[0].NumTies != len(ties) {
		t.Errorf("survey-wide fit = %d groups", len(sol.Coefs))
	}
}

func TestEstimateGradientOptions(t *testing.T) {
	ties := vgTies("40236", "Pulkovo", heightPoly(-300, 20))
	opt := NewVGOpt()
	opt.Degree = 0
	if _, err := EstimateGradient(ties, opt); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("EstimateGradient() error = %v, want ErrInvalidOption", err)
	}

	// Two heights cannot carry a quadratic response plus an offset
	flat := []Tie{{Meter: "1", Survey: "S", Line: "1", FromHeight: 200, ToHeight: 700, Gravity: -150}}
	_, err := EstimateGradient(flat, nil)
	var se *SingularDesignError
	if !errors.As(err, &se) {
		t.Fatalf("EstimateGradient() error = %v, want SingularDesignError", err)
	}
	if se.Key.Survey != "S" {
		t.Errorf("error key = %v, want survey S", se.Key)
	}

	opt = NewVGOpt()
	opt.SkipFailed = true
	sol, err := EstimateGradient(append(flat, ties...), opt)
	if err != nil {
		t.Fatalf("EstimateGradient() error = %v", err)
	}
	if len(sol.Coefs) != 1 || len(sol.Skipped) != 1 || sol.Coefs[0].Survey != "Pulkovo" {
		t.Errorf("%d groups, %d skipped, want 1, 1", len(sol.Coefs), len(sol.Skipped))
	}
}

func TestEstimateGradientFromReadings(t *testing.T) {
	p := heightPoly(-300, 20)
	rs := []Reading{}
	for _, l := range []struct {
		line    string
		heights map[string]float64
	}{
		{"1", map[string]float64{"h0": 200, "h1": 700, "h2": 1200}},
		{"2", map[string]float64{"h0": 300, "h1": 800, "h2": 1300}},
	} {
		offsets := map[string]float64{}
		for st, h := range l.heights {
			offsets[st] = p(h)
		}
		ls := lineSpec{
			meter:   "40236",
			survey:  "Pulkovo",
			line:    l.line,
			start:   testStart,
			seq:     []string{"h0", "h1", "h2", "h0", "h1", "h2", "h0"},
			offsets: offsets,
			heights: l.heights,
			drift:   func(d float64) float64 { return 12 * d },
		}
		rs = append(rs, ls.readings()...)
	}

	vopt := NewVGOpt()
	vopt.Method = WLS
	ts, vg, err := EstimateGradientFromReadings(rs, nil, vopt)
	if err != nil {
		t.Fatalf("EstimateGradientFromReadings() error = %v", err)
	}
	if len(ts.Ties) != 4 {
		t.Errorf("%d ties, want 4", len(ts.Ties))
	}
	if len(vg.Coefs) != 1 || !floats.EqualApprox(vg.Coefs[0].Coefs, []float64{-300, 20}, 1e-5) {
		t.Errorf("Coefs = %+v, want [-300 20]", vg.Coefs)
	}
}

func TestVGCoefsDerived(t *testing.T) {
	c := &VGCoefs{
		Coefs:    []float64{2, 3},
		StdCoefs: []float64{0.1, 0.2},
		CovAB:    0.01,
		Resid:    []float64{1, 2, 3, 4},
	}
	if got := c.Poly(2); got != 16 {
		t.Errorf("Poly(2) = %g, want 16", got)
	}
	if got := c.RefGradient(1); got != 5 {
		t.Errorf("RefGradient(1) = %g, want 5", got)
	}
	// gp(y) = p(y) - y·p(href) vanishes at 0 and href
	for _, y := range []float64{0, 1} {
		if got := c.Correction(y, 1); math.Abs(got) > 1e-15 {
			t.Errorf("Correction(%g, 1) = %g, want 0", y, got)
		}
	}
	if got := c.Correction(0.5, 1); !scalar.EqualWithinAbs(got, 1+0.75-2.5, 1e-15) {
		t.Errorf("Correction(0.5, 1) = %g, want %g", got, 1+0.75-2.5)
	}
	want := 0.5 * math.Sqrt(0.04+2.25*0.01+2*1.5*0.01)
	if got := c.Uncertainty(0.5, 1); !scalar.EqualWithinAbs(got, want, 1e-15) {
		t.Errorf("Uncertainty(0.5, 1) = %g, want %g", got, want)
	}
	if got := c.Uncertainty(1, 1); got != 0 {
		t.Errorf("Uncertainty(href, href) = %g, want 0", got)
	}
	if got := Uncertainty(0, 1, 1, 0, 0); got != 1 {
		t.Errorf("Uncertainty(0, 1, 1, 0, 0) = %g, want 1", got)
	}
	if got := c.ResidPairs(); !reflect.DeepEqual(got, [][2]float64{{1, 2}, {3, 4}}) {
		t.Errorf("ResidPairs() = %v", got)
	}
}

func TestCoefNames(t *testing.T) {
	if got := CoefNames(3); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("CoefNames(3) = %v", got)
	}
}
