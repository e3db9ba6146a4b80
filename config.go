// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gravproc

import (
	"fmt"
	"strconv"

	"github.com/tkanos/gonfig"
)

// Processing mode (0: ties, 1: vertical gradient by survey, 2: vertical gradient by meter)
type Mode int

const (
	TIES = iota
	VG
	VG_BY_METER
)

func (p *Mode) Set(s string) error {
	i, err := strconv.ParseInt(s, 10, 0)
	if err != nil {
		return err
	}
	if i < TIES || i > VG_BY_METER {
		return fmt.Errorf("mode %d: %w", i, ErrInvalidOption)
	}
	*p = Mode(i)
	return nil
}

func (p *Mode) String() string {
	switch *p {
	case TIES:
		return "TIES"
	case VG:
		return "VG"
	case VG_BY_METER:
		return "VG_BY_METER"
	default:
		return "UNKNOWN!"
	}
}

// Config holds the processing settings of one run. It is read from a JSON file,
// every field can be overridden by an environment variable of the same name.
type Config struct {
	Mode         int     // Processing mode
	DriftDegree  int     // Drift polynomial degree
	VGDegree     int     // Height polynomial degree
	Method       string  // WLS or RLM
	Anchor       string  // Reference station, empty for the first station of each line
	AbsoluteTime bool    // Drift time as days since 1970/1/1
	UseStdErr    bool    // Weight WLS by reading standard errors
	SkipFailed   bool    // Skip failed groups instead of aborting
	ScaleFactors string  // Scale factor YAML file
	TiesOut      string  // Tie CSV output file
	CoefsOut     string  // Coefficient CSV output file
	ReportOut    string  // Text report output file
	HuberT       float64 // Huber tuning constant
	MaxIter      int     // Robust fit iteration budget
	Tol          float64 // Robust fit convergence threshold
	Debug        int     // Debug display level
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Mode:        TIES,
		DriftDegree: DRIFT_DEGREE,
		VGDegree:    VG_DEGREE,
		Method:      "RLM",
		HuberT:      HUBER_T,
		MaxIter:     MAX_LOOP_COUNT,
		Tol:         CONVERGENCE_THRESHOLD,
	}
}

// LoadConfig reads a JSON configuration file over the defaults
func LoadConfig(fn string) (*Config, error) {
	c := NewConfig()
	if err := gonfig.GetConf(fn, c); err != nil {
		return nil, fmt.Errorf("failed to read configuration %s: %w", fn, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the ranges of the settings
func (c *Config) Validate() error {
	var m Method
	if err := m.Set(c.Method); err != nil {
		return err
	}
	var mode Mode
	if err := mode.Set(strconv.Itoa(c.Mode)); err != nil {
		return err
	}
	if c.DriftDegree < 0 {
		return fmt.Errorf("drift degree %d: %w", c.DriftDegree, ErrInvalidOption)
	}
	if c.VGDegree < 1 {
		return fmt.Errorf("vertical gradient degree %d: %w", c.VGDegree, ErrInvalidOption)
	}
	if c.HuberT <= 0 || c.MaxIter < 1 || c.Tol <= 0 {
		return fmt.Errorf("robust fit tuning t=%g maxiter=%d tol=%g: %w", c.HuberT, c.MaxIter, c.Tol, ErrInvalidOption)
	}
	return nil
}

func (c *Config) rlmOpt() *RLMOpt {
	return &RLMOpt{T: c.HuberT, MaxIter: c.MaxIter, Tol: c.Tol}
}

// TieOpt derives the tie estimation options. The configuration must be valid.
func (c *Config) TieOpt() *TieOpt {
	opt := NewTieOpt()
	_ = opt.Method.Set(c.Method)
	opt.DriftDegree = c.DriftDegree
	opt.Anchor = c.Anchor
	opt.AbsoluteTime = c.AbsoluteTime
	opt.UseStdErr = c.UseStdErr
	opt.SkipFailed = c.SkipFailed
	opt.RLM = c.rlmOpt()
	return opt
}

// VGOpt derives the vertical gradient options. The height fit is always robust.
func (c *Config) VGOpt() *VGOpt {
	opt := NewVGOpt()
	opt.Degree = c.VGDegree
	opt.ByMeter = c.Mode == VG_BY_METER
	opt.SkipFailed = c.SkipFailed
	opt.RLM = c.rlmOpt()
	return opt
}
