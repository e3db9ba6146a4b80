// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gravproc

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
)

// Column headers of the tie CSV file
var TieCSVHeader = []string{
	"date", "station", "observer", "gravimeter", "line", "from_point",
	"to_point", "level_1", "level_2", "delta_g", "std",
}

// Column headers of the vertical gradient coefficient CSV file (meter is
// prepended for by-meter fits)
var VGCSVHeader = []string{"survey", "a", "b", "ua", "ub", "covab"}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteTiesCSV writes ties in the exchange layout used by the vertical gradient tools
func WriteTiesCSV(w io.Writer, ties []Tie) error {

	cw := csv.NewWriter(w)
	if err := cw.Write(TieCSVHeader); err != nil {
		return err
	}
	for _, t := range ties {
		rec := []string{
			t.Created.Format(DateLayout),
			t.Survey,
			t.Operator,
			t.Meter,
			t.Line,
			t.FromPoint,
			t.ToPoint,
			ftoa(t.FromHeight),
			ftoa(t.ToHeight),
			ftoa(t.Gravity),
			ftoa(t.StdGravity),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteVGCoefsCSV writes the linear and quadratic coefficients with 3 decimals
func WriteVGCoefsCSV(w io.Writer, coefs []VGCoefs, byMeter bool) error {

	cw := csv.NewWriter(w)
	header := VGCSVHeader
	if byMeter {
		header = append([]string{"meter"}, VGCSVHeader...)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, c := range coefs {
		rec := []string{}
		if byMeter {
			rec = append(rec, c.Meter)
		}
		rec = append(rec,
			c.Survey,
			fmt.Sprintf("%.3f", c.A()),
			fmt.Sprintf("%.3f", c.B()),
			fmt.Sprintf("%.3f", c.UA()),
			fmt.Sprintf("%.3f", c.UB()),
			fmt.Sprintf("%.3f", c.CovAB),
		)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTiesReport writes a plain text table of the ties
func WriteTiesReport(w io.Writer, ties []Tie) error {

	fmt.Fprintf(w, "\nThe mean ties between the stations:\n===================================\n")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "From\tTo\tDate\tSurvey\tOperator\tS/N\tLine\tHeight From (mm)\tHeight To (mm)\tTie (uGal)\tSErr (uGal)\t")
	for _, t := range ties {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%.1f\t%.1f\t%.1f\t%.1f\t\n",
			t.FromPoint, t.ToPoint, t.Created.Format(DateLayout), t.Survey, t.Operator,
			t.Meter, t.Line, t.FromHeight, t.ToHeight, t.Gravity, t.StdGravity)
	}
	return tw.Flush()
}

// WriteVGReport writes a plain text table of the coefficients with 1 decimal
func WriteVGReport(w io.Writer, coefs []VGCoefs) error {

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Meter\tSurvey\ta\tb\tua\tub\tcovab\tties\t")
	for _, c := range coefs {
		fmt.Fprintf(tw, "%s\t%s\t%.1f\t%.1f\t%.1f\t%.1f\t%.1f\t%d\t\n",
			c.Meter, c.Survey, c.A(), c.B(), c.UA(), c.UB(), c.CovAB, c.NumTies)
	}
	return tw.Flush()
}
