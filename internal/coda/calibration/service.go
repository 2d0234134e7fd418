// Package calibration runs the full coda calibration pipeline: peak
// velocities, velocity curves, optional autopicking, per-envelope shape
// fits and finally the beta and gamma curves.
package calibration

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/autopick"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/fit"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/model"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/shape"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/timeseries"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/velocity"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/config"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/monitoring"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/timeutil"
)

// ErrRunInProgress is returned when Run is called while another run holds
// the service.
var ErrRunInProgress = errors.New("calibration run already in progress")

// RunOptions selects optional stages.
type RunOptions struct {
	AutoPick bool
}

// Result summarises a run. Parameters is the map passed to Run, updated in
// place.
type Result struct {
	RunID      string                          `json:"run_id"`
	StartedAt  time.Time                       `json:"started_at"`
	FinishedAt time.Time                       `json:"finished_at"`
	Parameters model.ParameterMap              `json:"-"`
	Velocity   []model.PeakVelocityMeasurement `json:"velocity"`
	Shape      []model.ShapeMeasurement        `json:"shape"`
	Fits       []fit.BandFit                   `json:"fits"`
	AutoPicks  int                             `json:"auto_picks"`
}

// Service owns the calibration stages. Only one run may mutate parameters
// at a time.
type Service struct {
	mu sync.Mutex

	cfg      *config.CalibrationConfig
	clock    timeutil.Clock
	velocity *velocity.Calculator
	shape    *shape.Calculator
	picker   *autopick.Picker
	fitOpts  fit.Options
}

// NewService wires the stages from cfg.
func NewService(cfg *config.CalibrationConfig) *Service {
	return &Service{
		cfg:      cfg,
		clock:    timeutil.RealClock{},
		velocity: velocity.NewCalculator(cfg),
		shape:    shape.NewCalculator(cfg),
		picker:   autopick.NewPicker(cfg.GetWorkers()),
		fitOpts:  fit.OptionsFromConfig(cfg),
	}
}

// SetClock replaces the clock used for run timestamps.
func (s *Service) SetClock(c timeutil.Clock) { s.clock = c }

// SetConverter replaces the converter used by every stage, for example
// with timeseries.EnvelopeConverter for raw seismograms.
func (s *Service) SetConverter(c timeseries.Converter) {
	s.velocity.Converter = c
	s.shape.Converter = c
	s.picker.Converter = c
}

// SetFitOptions overrides the curve fitting options derived from config.
func (s *Service) SetFitOptions(opts fit.Options) { s.fitOpts = opts }

// Run calibrates params from waveforms. The context is checked between
// stages; a cancelled run may leave params partially updated.
func (s *Service) Run(ctx context.Context, waveforms []*model.Waveform, params model.ParameterMap, opts RunOptions) (*Result, error) {
	if !s.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.mu.Unlock()

	if len(params) == 0 {
		return nil, fit.ErrNilParameters
	}

	res := &Result{
		RunID:      uuid.NewString(),
		StartedAt:  s.clock.Now(),
		Parameters: params,
	}
	fitter := fit.NewFitter(s.fitOpts)
	fitter.OnFit = func(bf fit.BandFit) { res.Fits = append(res.Fits, bf) }

	monitoring.Logf("[Calibration] run started: id=%s waveforms=%d bands=%d", res.RunID, len(waveforms), len(params))

	res.Velocity = s.filterSnr(s.velocity.ComputeMaximumVelocity(ctx, waveforms), params)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := fitter.FitAllVelocity(model.GroupVelocityByBand(res.Velocity), params); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts.AutoPick {
		res.AutoPicks = s.picker.AutoPick(ctx, res.Velocity, params)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	pairs := endPicked(res.Velocity)
	res.Shape = s.shape.FitShapelineToMeasuredEnvelopes(ctx, params, pairs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shapes := model.GroupShapeByBand(res.Shape)
	if _, err := fitter.FitAllBeta(shapes, params); err != nil {
		return nil, err
	}
	if _, err := fitter.FitAllGamma(shapes, params); err != nil {
		return nil, err
	}

	elapsed := s.clock.Since(res.StartedAt)
	res.FinishedAt = res.StartedAt.Add(elapsed)
	monitoring.Logf("[Calibration] run finished: id=%s velocity=%d shape=%d fits=%d elapsed=%s",
		res.RunID, len(res.Velocity), len(res.Shape), len(res.Fits), elapsed)
	return res, nil
}

// filterSnr keeps measurements at or above their band's MinSnr when the
// filter is enabled. Measurements for unknown bands pass through.
func (s *Service) filterSnr(ms []model.PeakVelocityMeasurement, params model.ParameterMap) []model.PeakVelocityMeasurement {
	if !s.cfg.GetMinSnrFilter() {
		return ms
	}
	out := ms[:0:0]
	for _, m := range ms {
		if p := params[m.Waveform.Band()]; p != nil && m.Snr < p.MinSnr {
			continue
		}
		out = append(out, m)
	}
	if dropped := len(ms) - len(out); dropped > 0 {
		monitoring.Logf("[Calibration] dropped low-SNR measurements: count=%d", dropped)
	}
	return out
}

// endPicked pairs each measurement with its waveform's preferred end pick.
func endPicked(ms []model.PeakVelocityMeasurement) []shape.MeasurementPick {
	pairs := make([]shape.MeasurementPick, 0, len(ms))
	for _, m := range ms {
		if p, ok := m.Waveform.EndPick(); ok {
			pairs = append(pairs, shape.MeasurementPick{Measurement: m, EndPick: p})
		}
	}
	return pairs
}
