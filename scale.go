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

	"gopkg.in/yaml.v3"
)

// ScaleFactors maps an instrument serial number to its calibration factor
type ScaleFactors map[string]float64

// ReadScaleFactors reads a YAML mapping of serial number to scale factor, e.g.
//
//	40236: 1.000124
//	40489: 0.999873
func ReadScaleFactors(r io.Reader) (ScaleFactors, error) {
	sf := ScaleFactors{}
	if err := yaml.NewDecoder(r).Decode(&sf); err != nil {
		if err == io.EOF {
			return sf, nil
		}
		return nil, fmt.Errorf("failed to decode scale factors: %w", err)
	}
	for m, f := range sf {
		if f <= 0 {
			return nil, fmt.Errorf("scale factor of meter %s must be positive (%g): %w", m, f, ErrInvalidOption)
		}
	}
	return sf, nil
}

// ApplyScaleFactors returns a copy of readings with the corrected gravity of
// every listed meter multiplied by its factor. Unlisted meters are unchanged.
func ApplyScaleFactors(readings []Reading, sf ScaleFactors) []Reading {
	out := make([]Reading, len(readings))
	copy(out, readings)
	for i := range out {
		if f, ok := sf[out[i].Meter]; ok {
			out[i].CorrGrav *= f
		}
	}
	return out
}
