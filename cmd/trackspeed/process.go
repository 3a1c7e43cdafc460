package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/banshee-data/trackspeed/internal/config"
	"github.com/banshee-data/trackspeed/internal/ingest"
	"github.com/banshee-data/trackspeed/internal/monitoring"
	"github.com/banshee-data/trackspeed/internal/render"
	"github.com/banshee-data/trackspeed/internal/telemetry"
	"github.com/banshee-data/trackspeed/internal/units"
)

type processFlags struct {
	in         string
	out        string
	configPath string
	resolution float64
	threshold  float64
	legacy     bool
	minutes    bool
	units      string
	title      string
	noPNG      bool
	logLevel   string
}

func parseProcessFlags(args []string, out io.Writer) (processFlags, telemetry.Options, error) {
	var pf processFlags
	fs := newFlagSet("process", out)
	fs.StringVar(&pf.in, "in", "", "CAN log CSV with Timestamp, Sensor and Value columns (required)")
	fs.StringVar(&pf.out, "out", "graphs", "Output directory")
	fs.StringVar(&pf.configPath, "config", "", "Pipeline config JSON (default: built-in defaults)")
	fs.Float64Var(&pf.resolution, "resolution", 0, "Resample to this many points per second (0 disables)")
	fs.Float64Var(&pf.threshold, "threshold", 0, "Outlier rejection threshold in standard deviations (0 disables)")
	fs.BoolVar(&pf.legacy, "legacy", false, "One point per whole second and drop the first three fixes, no outlier filter")
	fs.BoolVar(&pf.minutes, "minutes", false, "Plot time in minutes instead of seconds")
	fs.StringVar(&pf.units, "units", units.MPS, "Display units for HTML output and summary ("+units.GetValidUnitsString()+")")
	fs.StringVar(&pf.title, "title", "", "Chart title (default: input file name)")
	fs.BoolVar(&pf.noPNG, "no-png", false, "Skip the static PNG charts")
	fs.StringVar(&pf.logLevel, "log-level", "info", "Log level")
	if _, err := parseInterspersed(fs, args); err != nil {
		return pf, telemetry.Options{}, err
	}

	if pf.in == "" {
		fs.Usage()
		return pf, telemetry.Options{}, errors.New("-in is required")
	}
	if !units.IsValid(pf.units) {
		return pf, telemetry.Options{}, fmt.Errorf("invalid units %q, must be one of: %s", pf.units, units.GetValidUnitsString())
	}
	if err := monitoring.SetLevel(pf.logLevel); err != nil {
		return pf, telemetry.Options{}, err
	}

	cfg := config.DefaultPipelineConfig()
	if pf.configPath != "" {
		var err error
		if cfg, err = config.LoadPipelineConfig(pf.configPath); err != nil {
			return pf, telemetry.Options{}, err
		}
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["legacy"] {
		cfg.LegacyMode = &pf.legacy
		if pf.legacy {
			// the legacy preset decides these unless given explicitly
			cfg.OutlierStdThreshold, cfg.ResolutionHz, cfg.LeadingDropCount = nil, nil, nil
		}
	}
	if set["resolution"] {
		cfg.ResolutionHz = &pf.resolution
	}
	if set["threshold"] {
		cfg.OutlierStdThreshold = &pf.threshold
	}
	if err := cfg.Validate(); err != nil {
		return pf, telemetry.Options{}, err
	}
	return pf, cfg.Options(), nil
}

func runProcess(args []string, out io.Writer) error {
	pf, opts, err := parseProcessFlags(args, out)
	if err != nil {
		return err
	}

	events, stats, err := ingest.ReadFile(pf.in)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Read %d rows (%d skipped) from %s\n", stats.Rows, stats.BadTimestamp, pf.in)

	samples, err := telemetry.Process(events, opts)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(pf.out, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", pf.out)
	}
	title := pf.title
	if title == "" {
		base := filepath.Base(pf.in)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	written, err := writeOutputs(pf, title, samples)
	if err != nil {
		return err
	}

	printSummary(out, telemetry.Summarize(samples), pf.units)
	for _, path := range written {
		fmt.Fprintf(out, "  wrote %s\n", path)
	}
	return nil
}

func writeOutputs(pf processFlags, title string, samples []telemetry.KinematicSample) ([]string, error) {
	tablePath := filepath.Join(pf.out, ingest.SpeedTableFilename)
	if err := ingest.WriteSpeedTableFile(tablePath, telemetry.SpeedTable(samples)); err != nil {
		return nil, err
	}
	written := []string{tablePath}

	if !pf.noPNG {
		o := render.DefaultChartOptions()
		o.Minutes = pf.minutes
		pngs, err := render.WritePNGCharts(pf.out, samples, o)
		written = append(written, pngs...)
		if err != nil {
			return written, err
		}
	}

	pages := []struct {
		file  string
		write func(io.Writer, []telemetry.KinematicSample, string, string) error
	}{
		{render.TrackMapFile, render.WriteTrackMap},
		{render.SpeedChartFile, render.WriteSpeedChart},
		{render.DashboardFile, render.WriteDashboard},
	}
	for _, p := range pages {
		path := filepath.Join(pf.out, p.file)
		if err := writeFile(path, func(w io.Writer) error { return p.write(w, samples, title, pf.units) }); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}

func printSummary(out io.Writer, s telemetry.Summary, unit string) {
	label := units.Label(unit)
	fmt.Fprintf(out, "Processed %d GPS points over %.1f s\n", s.Count, s.DurationS)
	fmt.Fprintf(out, "  max speed %.2f %s, average %.2f %s\n",
		units.ConvertSpeed(s.MaxSpeed, unit), label, units.ConvertSpeed(s.AvgSpeed, unit), label)
	fmt.Fprintf(out, "  latitude %.6f..%.6f, longitude %.6f..%.6f\n",
		s.MinLatitude, s.MaxLatitude, s.MinLongitude, s.MaxLongitude)
}
