// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gravproc

import (
	"errors"
	"fmt"
)

// ErrInvalidOption is returned when an estimator option is out of range.
var ErrInvalidOption = errors.New("invalid option")

// GroupKey identifies one fit group. Line is empty for vertical gradient groups
// and Meter is empty for survey-wide vertical gradient groups.
type GroupKey struct {
	Meter  string
	Survey string
	Line   string
}

func (k GroupKey) String() string {
	s := fmt.Sprintf("meter=%q survey=%q", k.Meter, k.Survey)
	if k.Line != "" {
		s += fmt.Sprintf(" line=%q", k.Line)
	}
	return s
}

// SingularDesignError reports a design matrix that is not of full column rank.
type SingularDesignError struct {
	Key  GroupKey
	Rows int // Number of observations
	Cols int // Number of parameters
	Rank int // Numerical rank of the design
}

func (e *SingularDesignError) Error() string {
	return fmt.Sprintf("singular design (%d x %d, rank %d) for %s", e.Rows, e.Cols, e.Rank, e.Key)
}

// ConvergenceError reports a robust fit that did not settle within its iteration budget.
type ConvergenceError struct {
	Key   GroupKey
	Iter  int     // Iterations performed
	Delta float64 // Last deviance change
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("robust fit not converged after %d iterations (deviance change %g) for %s", e.Iter, e.Delta, e.Key)
}

// MissingReferenceError reports a line on which no tie can be formed.
type MissingReferenceError struct {
	Key      GroupKey
	Anchor   string // Requested anchor station, empty when the first station is used
	Stations int    // Number of distinct stations observed on the line
}

func (e *MissingReferenceError) Error() string {
	if e.Anchor != "" {
		return fmt.Sprintf("anchor station %q not observed for %s", e.Anchor, e.Key)
	}
	return fmt.Sprintf("only %d distinct station(s), no tie can be formed for %s", e.Stations, e.Key)
}

// Attach the group key to the typed errors raised below the estimators
func withKey(err error, key GroupKey) error {
	var se *SingularDesignError
	if errors.As(err, &se) {
		se.Key = key
	}
	var ce *ConvergenceError
	if errors.As(err, &ce) {
		ce.Key = key
	}
	var me *MissingReferenceError
	if errors.As(err, &me) {
		me.Key = key
	}
	return err
}

// GroupKeyOf returns the group key carried by one of the typed estimator errors.
func GroupKeyOf(err error) (GroupKey, bool) {
	var se *SingularDesignError
	if errors.As(err, &se) {
		return se.Key, true
	}
	var ce *ConvergenceError
	if errors.As(err, &ce) {
		return ce.Key, true
	}
	var me *MissingReferenceError
	if errors.As(err, &me) {
		return me.Key, true
	}
	return GroupKey{}, false
}
