// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gravproc

const (
	MM_TO_M     = 1e-3    // Millimeters to meters
	SEC_PER_DAY = 86400.0 // Seconds per day
	HUBER_T     = 1.345   // Huber tuning constant (95% efficiency under normal errors)
	MAD_NORM    = 0.6744897501960817
)

// Robust fit defaults
const (
	MAX_LOOP_COUNT        = 50    // Maximum number of IRLS iterations
	CONVERGENCE_THRESHOLD = 1e-8  // Deviance change regarded as converged
	SCALE_FLOOR           = 1e-12 // Relative scale below which the fit is regarded as exact
)

// Default model degrees
const (
	DRIFT_DEGREE = 2 // Drift polynomial degree for tie fitting
	VG_DEGREE    = 2 // Height polynomial degree for vertical gradient fitting
)
