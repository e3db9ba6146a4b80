// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gravproc

import (
	"fmt"
	"strings"
	"time"
)

// Accepted layouts for reading timestamps and creation dates
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006/01/02 15:04:05",
	"2006-01-02",
}

// Date layout used in the tie tables
const DateLayout = "2006-01-02"

// DayCount returns t as fractional days since 1970/1/1 00:00:00 UTC
func DayCount(t time.Time) float64 {
	return (float64(t.Unix()) + float64(t.Nanosecond())/1e9) / SEC_PER_DAY
}

// DaysSince returns t - origin in fractional days
func DaysSince(t, origin time.Time) float64 {
	return t.Sub(origin).Seconds() / SEC_PER_DAY
}

// ParseTime parses a timestamp in one of the accepted layouts (UTC when no zone is given)
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
