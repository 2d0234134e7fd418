// Command codacal generates a synthetic coda scenario, calibrates the band
// parameters from it and reports the fitted curves.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/calibration"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/model"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/scenario"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/timeseries"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/config"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/monitoring"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/version"
)

type options struct {
	configPath string
	seed       uint64
	events     int
	stations   int
	autoPick   bool
	raw        bool
	plotDir    string
	logLevel   string
	jsonOut    string
	version    bool
}

func parseFlags(args []string, output io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("codacal", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&o.configPath, "config", "", "Calibration config JSON (defaults when empty)")
	fs.Uint64Var(&o.seed, "seed", 1, "Scenario and optimizer seed")
	fs.IntVar(&o.events, "events", 4, "Number of synthetic events")
	fs.IntVar(&o.stations, "stations", 6, "Number of synthetic stations")
	fs.BoolVar(&o.autoPick, "autopick", false, "Generate envelopes without analyst picks and autopick their coda ends")
	fs.BoolVar(&o.raw, "raw", false, "Generate raw seismograms and envelope them before calibrating")
	fs.StringVar(&o.plotDir, "plots", "", "Directory for PNG diagnostics (disabled when empty)")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	fs.StringVar(&o.jsonOut, "json", "", "Write the run report to this file instead of stdout")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.events < 1 || o.stations < 1 {
		return o, fmt.Errorf("-events and -stations must be positive")
	}
	return o, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if opts.version {
		fmt.Println(version.String("codacal"))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "codacal: %v\n", err)
		os.Exit(1)
	}
}

// report is the JSON document written at the end of a run.
type report struct {
	Run        *calibration.Result                    `json:"run"`
	Truth      []*model.SharedFrequencyBandParameters `json:"truth"`
	Parameters []*model.SharedFrequencyBandParameters `json:"parameters"`
}

func run(ctx context.Context, opts options, stdout io.Writer) error {
	cfg := config.DefaultCalibrationConfig()
	if opts.configPath != "" {
		loaded, err := config.LoadCalibrationConfig(opts.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if opts.logLevel != "" {
		cfg.LogLevel = &opts.logLevel
	}
	if cfg.RandomSeed == nil {
		seed := opts.seed
		cfg.RandomSeed = &seed
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := monitoring.UseZap(cfg.GetLogLevel())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	scfg := scenario.DefaultConfig()
	scfg.Seed = opts.seed
	scfg.Events = opts.events
	scfg.Stations = opts.stations
	scfg.AnalystPicks = !opts.autoPick
	scfg.Raw = opts.raw
	sc, err := scenario.Generate(scfg)
	if err != nil {
		return err
	}
	monitoring.Logf("[codacal] scenario generated: seed=%d waveforms=%d bands=%d", scfg.Seed, len(sc.Waveforms), len(sc.Truth))

	svc := calibration.NewService(cfg)
	var converter timeseries.Converter = timeseries.WaveformConverter{}
	if opts.raw {
		converter = timeseries.DefaultEnvelopeConverter()
	}
	svc.SetConverter(converter)

	params := scenario.InitialParameters(sc.Truth)
	res, err := svc.Run(ctx, sc.Waveforms, params, calibration.RunOptions{AutoPick: opts.autoPick})
	if err != nil {
		return err
	}

	if opts.plotDir != "" {
		if err := writePlots(opts.plotDir, res, converter); err != nil {
			return err
		}
	}

	out := stdout
	if opts.jsonOut != "" {
		f, err := os.Create(opts.jsonOut)
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report{Run: res, Truth: sc.Truth.List(), Parameters: params.List()})
}
