// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gravproc

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func reportTies() []Tie {
	return []Tie{
		{
			Meter:      "40236",
			Survey:     "Pulkovo",
			Line:       "1",
			FromPoint:  "S1",
			ToPoint:    "S2",
			FromHeight: 250,
			ToHeight:   700.5,
			Gravity:    -138.25,
			StdGravity: 1.5,
			Created:    time.Date(2023, 5, 18, 0, 0, 0, 0, time.UTC),
			Operator:   "AK",
		},
	}
}

func TestWriteTiesCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTiesCSV(&buf, reportTies()); err != nil {
		t.Fatalf("WriteTiesCSV() error = %v", err)
	}
	want := "date,station,observer,gravimeter,line,from_point,to_point,level_1,level_2,delta_g,std\n" +
		"2023-05-18,Pulkovo,AK,40236,1,S1,S2,250,700.5,-138.25,1.5\n"
	if got := buf.String(); got != want {
		t.Errorf("WriteTiesCSV() =\n%s\nwant\n%s", got, want)
	}
}

func TestWriteVGCoefsCSV(t *testing.T) {
	coefs := []VGCoefs{{
		Survey:   "Pulkovo",
		Meter:    "40236",
		Coefs:    []float64{-300.12345, 20.5},
		StdCoefs: []float64{1.25, 0.5},
		CovAB:    -0.0626,
	}}

	var buf bytes.Buffer
	if err := WriteVGCoefsCSV(&buf, coefs, false); err != nil {
		t.Fatalf("WriteVGCoefsCSV() error = %v", err)
	}
	want := "survey,a,b,ua,ub,covab\nPulkovo,-300.123,20.500,1.250,0.500,-0.063\n"
	if got := buf.String(); got != want {
		t.Errorf("WriteVGCoefsCSV() =\n%s\nwant\n%s", got, want)
	}

	buf.Reset()
	if err := WriteVGCoefsCSV(&buf, coefs, true); err != nil {
		t.Fatalf("WriteVGCoefsCSV() error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), "meter,survey,a,b,ua,ub,covab\n40236,Pulkovo,") {
		t.Errorf("WriteVGCoefsCSV(byMeter) =\n%s", buf.String())
	}
}

func TestWriteReports(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTiesReport(&buf, reportTies()); err != nil {
		t.Fatalf("WriteTiesReport() error = %v", err)
	}
	out := buf.String()
	for _, s := range []string{"The mean ties between the stations:", "Tie (uGal)", "-138", "700.5", "2023-05-18"} {
		if !strings.Contains(out, s) {
			t.Errorf("WriteTiesReport() output lacks %q:\n%s", s, out)
		}
	}

	buf.Reset()
	coefs := []VGCoefs{{Survey: "Pulkovo", Coefs: []float64{-300.04}, StdCoefs: []float64{1.26}, NumTies: 4}}
	if err := WriteVGReport(&buf, coefs); err != nil {
		t.Fatalf("WriteVGReport() error = %v", err)
	}
	for _, s := range []string{"Pulkovo", "-300.0", "1.3"} {
		if !strings.Contains(buf.String(), s) {
			t.Errorf("WriteVGReport() output lacks %q:\n%s", s, buf.String())
		}
	}
}
