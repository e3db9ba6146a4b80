// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gravproc

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Reading is one normalized gravimeter reading
type Reading struct {
	Meter       string    // Instrument serial number
	Survey      string    // Survey name
	Operator    string    // Operator
	Line        string    // Measurement line
	Station     string    // Station name
	InstrHeight float64   // Instrument height [mm]
	CorrGrav    float64   // Corrected gravity [µGal]
	StdErr      float64   // Standard error of the reading [µGal] (0: unknown)
	DateTime    time.Time // Acquisition time
	DataFile    string    // Source data file
	Created     time.Time // Creation date of the data file
}

// Column names of the normalized reading table
const (
	COL_METER    = "instrument_serial_number"
	COL_SURVEY   = "survey_name"
	COL_LINE     = "line"
	COL_STATION  = "station"
	COL_HEIGHT   = "instr_height"
	COL_GRAV     = "corr_grav"
	COL_STDERR   = "std_err"
	COL_TIME     = "date_time"
	COL_FILE     = "data_file"
	COL_CREATED  = "created"
	COL_OPERATOR = "operator"
)

var requiredColumns = []string{
	COL_METER, COL_SURVEY, COL_LINE, COL_STATION, COL_HEIGHT,
	COL_GRAV, COL_TIME, COL_FILE, COL_CREATED, COL_OPERATOR,
}

// ReadReadings reads a normalized reading table (CSV with a header row)
func ReadReadings(r io.Reader) ([]Reading, error) {

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}

	readings := []Reading{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		rd, err := parseReading(rec, idx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		readings = append(readings, rd)
	}
	return readings, nil
}

func parseReading(rec []string, idx map[string]int) (rd Reading, err error) {

	get := func(col string) string {
		return strings.TrimSpace(rec[idx[col]])
	}

	rd.Meter = get(COL_METER)
	rd.Survey = get(COL_SURVEY)
	rd.Operator = get(COL_OPERATOR)
	rd.Line = get(COL_LINE)
	rd.Station = get(COL_STATION)
	rd.DataFile = get(COL_FILE)
	if rd.InstrHeight, err = strconv.ParseFloat(get(COL_HEIGHT), 64); err != nil {
		return rd, fmt.Errorf("%s: %w", COL_HEIGHT, err)
	}
	if rd.CorrGrav, err = strconv.ParseFloat(get(COL_GRAV), 64); err != nil {
		return rd, fmt.Errorf("%s: %w", COL_GRAV, err)
	}
	if i, ok := idx[COL_STDERR]; ok && strings.TrimSpace(rec[i]) != "" {
		if rd.StdErr, err = strconv.ParseFloat(strings.TrimSpace(rec[i]), 64); err != nil {
			return rd, fmt.Errorf("%s: %w", COL_STDERR, err)
		}
	}
	if rd.DateTime, err = ParseTime(get(COL_TIME)); err != nil {
		return rd, fmt.Errorf("%s: %w", COL_TIME, err)
	}
	if rd.Created, err = ParseTime(get(COL_CREATED)); err != nil {
		return rd, fmt.Errorf("%s: %w", COL_CREATED, err)
	}
	return rd, nil
}
