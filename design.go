// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

// Builds regression design matrices from categorical groupings and numeric covariates.

package gravproc

import (
	"fmt"
	"math"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/mat"
)

// Block is a run of adjacent design columns sharing one meaning
// (station offsets, drift terms, height terms ...)
type Block struct {
	Name   string   // Block name
	Start  int      // First column
	Len    int      // Number of columns (may be 0)
	Labels []string // Column labels
}

// End returns the column after the last one of the block
func (b Block) End() int {
	return b.Start + b.Len
}

// Slice returns a copy of the elements of v belonging to the block
func (b Block) Slice(v []float64) []float64 {
	s := make([]float64, b.Len)
	copy(s, v[b.Start:b.End()])
	return s
}

// Design accumulates named column blocks for a fixed number of observations.
// Column order is the order in which blocks were added.
type Design struct {
	rows   int
	cols   [][]float64
	Blocks []Block
}

// NewDesign creates an empty design for the given number of observations
func NewDesign(rows int) *Design {
	return &Design{
		rows:   rows,
		cols:   [][]float64{},
		Blocks: []Block{},
	}
}

// Rows returns the number of observations
func (d *Design) Rows() int {
	return d.rows
}

// Cols returns the number of parameters
func (d *Design) Cols() int {
	return len(d.cols)
}

// Block looks a block up by name
func (d *Design) Block(name string) (Block, bool) {
	for _, b := range d.Blocks {
		if b.Name == name {
			return b, true
		}
	}
	return Block{}, false
}

// MustBlock is like Block but panics on unknown names (programming error)
func (d *Design) MustBlock(name string) Block {
	b, ok := d.Block(name)
	if !ok {
		panic(fmt.Sprintf("design: no block %q", name))
	}
	return b
}

func (d *Design) addColumns(name string, cols [][]float64, labels []string) {
	for _, c := range cols {
		if len(c) != d.rows {
			panic(fmt.Sprintf("design: block %q has %d rows, want %d", name, len(c), d.rows))
		}
	}
	d.Blocks = append(d.Blocks, Block{
		Name:   name,
		Start:  len(d.cols),
		Len:    len(cols),
		Labels: labels,
	})
	d.cols = append(d.cols, cols...)
}

// AddIndicator appends one dummy column per level. Rows whose value is not a
// level (the reference category) are zero in every column of the block.
func (d *Design) AddIndicator(name string, values, levels []string) {
	labels := make([]string, len(levels))
	copy(labels, levels)
	d.addColumns(name, indicatorCols(values, levels), labels)
}

// AddPoly appends the non-constant powers x^deg ... x^1 (descending)
func (d *Design) AddPoly(name string, x []float64, deg int) {
	cols := vanderCols(x, deg)
	labels := make([]string, deg)
	for i := range labels {
		labels[i] = fmt.Sprintf("%s^%d", name, deg-i)
	}
	d.addColumns(name, cols[:deg], labels)
}

// AddConst appends a column of ones
func (d *Design) AddConst(name string) {
	c := make([]float64, d.rows)
	for i := range c {
		c[i] = 1
	}
	d.addColumns(name, [][]float64{c}, []string{name})
}

// Matrix materializes the design. Like mat.NewDense it panics on an empty design.
func (d *Design) Matrix() *mat.Dense {
	X := mat.NewDense(d.rows, len(d.cols), nil)
	for j, c := range d.cols {
		X.SetCol(j, c)
	}
	return X
}

// Levels returns the distinct values in first-seen order, leaving out ref
func Levels(values []string, ref string) []string {
	levels := []string{}
	for _, v := range values {
		if v == ref || slices.Contains(levels, v) {
			continue
		}
		levels = append(levels, v)
	}
	return levels
}

// Indicator builds the dummy encoding of values over levels (one column per level).
// It returns nil when there are no levels.
func Indicator(values, levels []string) *mat.Dense {
	if len(values) == 0 || len(levels) == 0 {
		return nil
	}
	X := mat.NewDense(len(values), len(levels), nil)
	for j, c := range indicatorCols(values, levels) {
		X.SetCol(j, c)
	}
	return X
}

// Vander builds the Vandermonde matrix of x with deg+1 columns in descending
// powers, the constant column last. It returns nil for an empty x.
func Vander(x []float64, deg int) *mat.Dense {
	if len(x) == 0 || deg < 0 {
		return nil
	}
	X := mat.NewDense(len(x), deg+1, nil)
	for j, c := range vanderCols(x, deg) {
		X.SetCol(j, c)
	}
	return X
}

func indicatorCols(values, levels []string) [][]float64 {
	cols := make([][]float64, len(levels))
	for j := range cols {
		cols[j] = make([]float64, len(values))
	}
	for i, v := range values {
		if j := slices.Index(levels, v); j >= 0 {
			cols[j][i] = 1
		}
	}
	return cols
}

func vanderCols(x []float64, deg int) [][]float64 {
	cols := make([][]float64, deg+1)
	for j := range cols {
		cols[j] = make([]float64, len(x))
		p := float64(deg - j)
		for i, v := range x {
			cols[j][i] = math.Pow(v, p)
		}
	}
	return cols
}
