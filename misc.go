// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gravproc

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ------------------------------------
// Mini functions
// ------------------------------------

func SQ(x float64) float64 {
	return x * x
}

func ones(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = 1
	}
	return s
}

func maxAbs(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	return math.Max(math.Abs(floats.Max(s)), math.Abs(floats.Min(s)))
}

func vecToSlice(v mat.Vector) []float64 {
	s := make([]float64, v.Len())
	for i := range s {
		s[i] = v.AtVec(i)
	}
	return s
}

func reversed(s []float64) []float64 {
	r := make([]float64, len(s))
	copy(r, s)
	floats.Reverse(r)
	return r
}

// Compare group key parts, numerically when both parse as numbers
func lessName(a, b string) bool {
	fa, ea := strconv.ParseFloat(strings.TrimSpace(a), 64)
	fb, eb := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if ea == nil && eb == nil && fa != fb {
		return fa < fb
	}
	return a < b
}

func cmpName(a, b string) int {
	switch {
	case lessName(a, b):
		return -1
	case lessName(b, a):
		return 1
	default:
		return 0
	}
}

// ------------------------------------
// Logging
// ------------------------------------

// Log is the package logger. The command configures its output and level.
var Log = newLogger(os.Stderr)

func newLogger(w io.Writer) *log.Logger {
	l := log.New()
	l.SetOutput(w)
	l.SetFormatter(&log.TextFormatter{QuoteEmptyFields: true, FullTimestamp: true})
	l.SetLevel(log.InfoLevel)
	return l
}

// SetLogOutput redirects the package logger
func SetLogOutput(w io.Writer) {
	Log.SetOutput(w)
}

// Debug display level
var DBG_ int

// SetDebugLevel sets the debug display level and opens the logger to debug output when > 0
func SetDebugLevel(v int) {
	DBG_ = v
	if v > 0 {
		Log.SetLevel(log.DebugLevel)
	} else {
		Log.SetLevel(log.InfoLevel)
	}
}

// Debug display
func PrintD(v int, format string, a ...any) {
	if DBG_ >= v {
		Log.Debugf(strings.TrimRight(format, "\n"), a...)
	}
}

func PrintMat(v int, name string, X mat.Matrix) {
	if DBG_ < v {
		return
	}
	r, c := X.Dims()
	fa := mat.Formatted(X, mat.Prefix("\t"), mat.Squeeze())
	Log.Debugf("%s (%d x %d)\n\t%v", name, r, c, fa)
}

func PrintE(err error) {
	Log.Error(err)
}

// groupLog returns a log entry tagged with the group key
func groupLog(key GroupKey) *log.Entry {
	f := log.Fields{"meter": key.Meter, "survey": key.Survey}
	if key.Line != "" {
		f["line"] = key.Line
	}
	return Log.WithFields(f)
}

func fmtFloats(s []float64) string {
	p := make([]string, len(s))
	for i, v := range s {
		p[i] = fmt.Sprintf("%.6g", v)
	}
	return "[" + strings.Join(p, " ") + "]"
}
