// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gravproc

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestConfigDefaults(t *testing.T) {
	c := NewConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	topt := c.TieOpt()
	if topt.Method != RLM || topt.DriftDegree != DRIFT_DEGREE || topt.Anchor != "" || topt.SkipFailed {
		t.Errorf("TieOpt() = %+v", topt)
	}
	if *topt.RLM != *NewRLMOpt() {
		t.Errorf("TieOpt().RLM = %+v, want %+v", *topt.RLM, *NewRLMOpt())
	}
	vopt := c.VGOpt()
	if vopt.Method != RLM || vopt.Degree != VG_DEGREE || vopt.ByMeter {
		t.Errorf("VGOpt() = %+v", vopt)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"method", func(c *Config) { c.Method = "LAD" }},
		{"mode", func(c *Config) { c.Mode = 3 }},
		{"drift degree", func(c *Config) { c.DriftDegree = -1 }},
		{"vg degree", func(c *Config) { c.VGDegree = 0 }},
		{"huber", func(c *Config) { c.HuberT = 0 }},
		{"iterations", func(c *Config) { c.MaxIter = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConfig()
			tt.modify(c)
			if err := c.Validate(); !errors.Is(err, ErrInvalidOption) {
				t.Errorf("Validate() error = %v, want ErrInvalidOption", err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "gravproc.json")
	js := `{"Mode": 2, "DriftDegree": 1, "Method": "WLS", "Anchor": "S2", "SkipFailed": true, "MaxIter": 80}`
	if err := os.WriteFile(fn, []byte(js), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadConfig(fn)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if c.Mode != VG_BY_METER || c.DriftDegree != 1 || c.Method != "WLS" || c.Anchor != "S2" {
		t.Errorf("LoadConfig() = %+v", c)
	}
	// Fields absent from the file keep their defaults
	if c.VGDegree != VG_DEGREE || c.HuberT != HUBER_T {
		t.Errorf("LoadConfig() defaults = %+v", c)
	}

	topt := c.TieOpt()
	if topt.Method != WLS || topt.Anchor != "S2" || !topt.SkipFailed || topt.RLM.MaxIter != 80 {
		t.Errorf("TieOpt() = %+v", topt)
	}
	if vopt := c.VGOpt(); !vopt.ByMeter || !vopt.SkipFailed || vopt.Method != RLM {
		t.Errorf("VGOpt() = %+v", vopt)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "none.json")); err == nil {
		t.Errorf("LoadConfig() of a missing file returned no error")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"VGDegree": 0}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(bad); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("LoadConfig() error = %v, want ErrInvalidOption", err)
	}
}

func TestModeSet(t *testing.T) {
	var m Mode
	if err := m.Set("2"); err != nil || m != VG_BY_METER {
		t.Errorf("Set(2) = %v, %v", m.String(), err)
	}
	if err := m.Set("5"); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("Set(5) error = %v, want ErrInvalidOption", err)
	}
	if err := m.Set("vg"); err == nil {
		t.Errorf("Set(vg) returned no error")
	}
}
