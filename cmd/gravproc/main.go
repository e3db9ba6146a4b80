// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	m "github.com/mkhts/gravproc"
)

func main() {

	// Parse command line arguments
	args, err := parseArgs()
	if err != nil {
		m.PrintE(err)
		flag.Usage()
		os.Exit(1)
	}

	// Run the main application
	if err := runApplication(args); err != nil {
		m.PrintE(err)
		os.Exit(1)
	}
}

// Structure to hold command line argument information
type cmdOpt struct {
	inFns   []string
	cfg     *m.Config
	verbose bool
}

// Main application processing
func runApplication(args cmdOpt) error {

	cfg := args.cfg
	entry := m.Log.WithFields(log.Fields{"run": uuid.NewString(), "mode": cfg.Mode})

	// Load input files
	readings, err := loadInputFiles(args)
	if err != nil {
		return fmt.Errorf("failed to load input files: %w", err)
	}
	entry.WithField("readings", len(readings)).Info("readings loaded")

	switch cfg.Mode {
	case m.TIES:
		sol, err := m.EstimateTies(readings, cfg.TieOpt())
		if err != nil {
			return err
		}
		entry.WithFields(log.Fields{"ties": len(sol.Ties), "skipped": len(sol.Skipped)}).Info("ties estimated")
		return writeTies(args, sol.Ties, "")

	default:
		ts, vg, err := m.EstimateGradientFromReadings(readings, cfg.TieOpt(), cfg.VGOpt())
		if err != nil {
			return err
		}
		entry.WithFields(log.Fields{
			"ties":    len(ts.Ties),
			"groups":  len(vg.Coefs),
			"skipped": len(ts.Skipped) + len(vg.Skipped),
		}).Info("vertical gradient estimated")
		if err := writeTies(args, ts.Ties, "ties.csv"); err != nil {
			return err
		}
		return writeCoefs(args, vg.Coefs)
	}
}

// Load reading tables and apply scale factors
func loadInputFiles(args cmdOpt) ([]m.Reading, error) {

	readings := []m.Reading{}
	for _, fn := range args.inFns {
		rs, err := readReadings(fn)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(fn), err)
		}
		readings = append(readings, rs...)
	}

	if args.cfg.ScaleFactors != "" {
		sf, err := readScaleFactors(args.cfg.ScaleFactors)
		if err != nil {
			return nil, fmt.Errorf("failed to read scale factors: %w", err)
		}
		readings = m.ApplyScaleFactors(readings, sf)
	}
	return readings, nil
}

// Write tie CSV and the optional text report
func writeTies(args cmdOpt, ties []m.Tie, defaultFn string) (err error) {

	fn := args.cfg.TiesOut
	if fn == "" {
		fn = defaultFn
	}
	out, err := prepareOutput(fn)
	if err != nil {
		return fmt.Errorf("failed to prepare output: %w", err)
	}
	defer closeOutput(out, &err)
	if err := m.WriteTiesCSV(out, ties); err != nil {
		return fmt.Errorf("failed to write ties: %w", err)
	}

	if args.cfg.ReportOut != "" {
		rep, rerr := prepareOutput(args.cfg.ReportOut)
		if rerr != nil {
			return fmt.Errorf("failed to prepare report: %w", rerr)
		}
		defer closeOutput(rep, &err)
		if err := m.WriteTiesReport(rep, ties); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	if args.verbose {
		return m.WriteTiesReport(os.Stdout, ties)
	}
	return nil
}

// Write coefficient CSV
func writeCoefs(args cmdOpt, coefs []m.VGCoefs) (err error) {

	fn := args.cfg.CoefsOut
	if fn == "" {
		fn = "coeffs.csv"
	}
	out, err := prepareOutput(fn)
	if err != nil {
		return fmt.Errorf("failed to prepare output: %w", err)
	}
	defer closeOutput(out, &err)
	if err := m.WriteVGCoefsCSV(out, coefs, args.cfg.Mode == m.VG_BY_METER); err != nil {
		return fmt.Errorf("failed to write coefficients: %w", err)
	}
	if args.verbose {
		fmt.Println()
		return m.WriteVGReport(os.Stdout, coefs)
	}
	return nil
}

// Prepare output file, stdout if no file is specified
func prepareOutput(fn string) (io.WriteCloser, error) {
	if len(fn) == 0 {
		return &nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(fn)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// Close output file. A close failure is reported through errp unless an
// earlier error is already set.
func closeOutput(out io.WriteCloser, errp *error) {
	if out == nil {
		return
	}
	if err := out.Close(); err != nil && *errp == nil {
		*errp = fmt.Errorf("failed to close output: %w", err)
	}
}

// nopCloser - WriteCloser that ignores close operations
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// Parse command line arguments
func parseArgs() (a cmdOpt, err error) {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `
[Usage]
	%s [Options] [-p 0]      readings.csv ...  (ties)
	%s [Options]  -p 1|2     readings.csv ...  (vertical gradient by survey | by meter)

[Options]
`, filepath.Base(os.Args[0]), filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}

	f := m.NewConfig()
	var mode m.Mode
	var method m.Method = m.RLM
	var confFn string
	flag.StringVar(&confFn, "conf", "", "JSON configuration file. Command line options override it.")
	flag.Var(&mode, "p", "Processing mode. 0(ties), 1(vertical gradient by survey), 2(vertical gradient by meter)")
	flag.Var(&method, "method", "Regression method for ties. WLS or RLM")
	flag.IntVar(&f.DriftDegree, "d", f.DriftDegree, "Degree of the drift polynomial")
	flag.IntVar(&f.VGDegree, "g", f.VGDegree, "Degree of the vertical gradient polynomial")
	flag.StringVar(&f.Anchor, "anchor", "", "Reference station. Default: first station of each line")
	flag.BoolVar(&f.AbsoluteTime, "abs", false, "Drift time as days since 1970/1/1 instead of days since the first reading of the line")
	flag.BoolVar(&f.UseStdErr, "w", false, "Weight WLS by the std_err column of the readings")
	flag.BoolVar(&f.SkipFailed, "skip", false, "Skip lines/surveys that cannot be fitted instead of aborting")
	flag.StringVar(&f.ScaleFactors, "sf", "", "Scale factor file (YAML, serial: factor)")
	flag.StringVar(&f.TiesOut, "o", "", "Output ties CSV file. Default: stdout (ties), ties.csv (vertical gradient)")
	flag.StringVar(&f.CoefsOut, "c", "", "Output coefficients CSV file. Default: coeffs.csv")
	flag.StringVar(&f.ReportOut, "r", "", "Output text report of the ties")
	flag.IntVar(&f.Debug, "x", 0, "Debug information display. Specify level value. 0(OFF), 1(display), 2(detailed display), 3(more detailed), 4(most detailed)")
	flag.BoolVar(&a.verbose, "v", false, "Print results to stdout")
	flag.Parse()

	if flag.NArg() < 1 {
		return a, fmt.Errorf("no input files")
	}
	a.inFns = flag.Args()

	// Configuration file first, explicitly given options on top
	cfg := m.NewConfig()
	if confFn != "" {
		if cfg, err = m.LoadConfig(confFn); err != nil {
			return a, err
		}
	}
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "p":
			cfg.Mode = int(mode)
		case "method":
			cfg.Method = method.String()
		case "d":
			cfg.DriftDegree = f.DriftDegree
		case "g":
			cfg.VGDegree = f.VGDegree
		case "anchor":
			cfg.Anchor = f.Anchor
		case "abs":
			cfg.AbsoluteTime = f.AbsoluteTime
		case "w":
			cfg.UseStdErr = f.UseStdErr
		case "skip":
			cfg.SkipFailed = f.SkipFailed
		case "sf":
			cfg.ScaleFactors = f.ScaleFactors
		case "o":
			cfg.TiesOut = f.TiesOut
		case "c":
			cfg.CoefsOut = f.CoefsOut
		case "r":
			cfg.ReportOut = f.ReportOut
		case "x":
			cfg.Debug = f.Debug
		}
	})
	if err = cfg.Validate(); err != nil {
		return a, err
	}
	a.cfg = cfg

	m.SetDebugLevel(cfg.Debug)
	m.PrintD(1, "configuration: %+v\n", *cfg)
	return
}

// Read reading table
func readReadings(fn string) ([]m.Reading, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return m.ReadReadings(f)
}

// Read scale factor file
func readScaleFactors(fn string) (m.ScaleFactors, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return m.ReadScaleFactors(f)
}
