// Package shape fits the coda decay of individual envelopes between the
// predicted coda start and the analyst or automatic end pick.
package shape

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"

	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/fit"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/model"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/synthetic"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/timeseries"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/config"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/monitoring"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/parallel"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/timeutil"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/units"
)

// Per-measurement failures; the measurement is dropped.
var (
	ErrNoBandParameters  = errors.New("no parameters for band")
	ErrStartNotBeforeEnd = errors.New("coda start is not before end pick")
	ErrTooShort          = errors.New("coda window shorter than band minimum")
)

// MeasurementPick pairs a velocity measurement with the end pick bounding
// its coda.
type MeasurementPick struct {
	Measurement model.PeakVelocityMeasurement
	EndPick     model.WaveformPick
}

// Calculator produces ShapeMeasurements.
type Calculator struct {
	Converter timeseries.Converter
	// PeakTolerance is how far, in seconds, the measured peak may sit from
	// the predicted travel time and still be used as the coda start.
	PeakTolerance float64
	// Method is config.ShapeFitGrid or config.ShapeFitOptimizer.
	Method      string
	Constraints fit.ShapeConstraints
	Workers     int
	Seed        uint64
}

// NewCalculator builds a Calculator for log10 envelope input.
func NewCalculator(cfg *config.CalibrationConfig) *Calculator {
	return &Calculator{
		Converter:     timeseries.WaveformConverter{},
		PeakTolerance: cfg.GetPeakTimeToleranceSeconds(),
		Method:        cfg.GetShapeFitMethod(),
		Constraints:   fit.DefaultShapeConstraints(),
		Workers:       cfg.GetWorkers(),
		Seed:          cfg.GetRandomSeed(),
	}
}

// FitShapelineToMeasuredEnvelopes fits each pair in parallel. Pairs that
// cannot be fitted are logged and left out.
func (c *Calculator) FitShapelineToMeasuredEnvelopes(ctx context.Context, params model.ParameterMap, pairs []MeasurementPick) []model.ShapeMeasurement {
	results := parallel.Map(ctx, pairs, c.Workers, func(p MeasurementPick) (model.ShapeMeasurement, error) {
		return c.Measure(params, p)
	})
	for i, r := range results {
		if r.Err != nil && !errors.Is(r.Err, context.Canceled) && !errors.Is(r.Err, context.DeadlineExceeded) {
			monitoring.Logf("[Shape] dropped measurement: waveform=%s err=%v", waveformID(pairs[i].Measurement.Waveform), r.Err)
		}
	}
	return parallel.Values(results)
}

// Measure fits one envelope. The coda starts at the measured peak when it
// lies within PeakTolerance of the travel time predicted by the band's
// velocity curve, and at the predicted travel time otherwise.
func (c *Calculator) Measure(params model.ParameterMap, pair MeasurementPick) (model.ShapeMeasurement, error) {
	vm := pair.Measurement
	w := vm.Waveform
	if !w.IsValid() {
		return model.ShapeMeasurement{}, fmt.Errorf("waveform %s is missing event or station", waveformID(w))
	}
	p := params[w.Band()]
	if p == nil {
		return model.ShapeMeasurement{}, fmt.Errorf("%w %s", ErrNoBandParameters, w.Band())
	}

	distance := vm.Distance
	travelTime := units.TravelTimeSeconds(distance, synthetic.Velocity(p, distance))
	startSec := travelTime
	if math.Abs(vm.Time-travelTime) < c.PeakTolerance {
		startSec = vm.Time
	}

	origin := w.Event.OriginTime
	start := timeutil.AddSeconds(origin, startSec)
	end := timeutil.AddSeconds(origin, pair.EndPick.PickTimeSecFromOrigin)
	if !start.Before(end) {
		return model.ShapeMeasurement{}, ErrStartNotBeforeEnd
	}

	series, err := c.Converter.Convert(w)
	if err != nil {
		return model.ShapeMeasurement{}, err
	}
	if err := series.Cut(start, end); err != nil {
		return model.ShapeMeasurement{}, err
	}
	if err := series.Interpolate(1.0); err != nil {
		return model.ShapeMeasurement{}, err
	}

	length := series.LengthSeconds()
	if p.MinLength > 0 && length < p.MinLength {
		return model.ShapeMeasurement{}, fmt.Errorf("%w: length=%gs min=%gs", ErrTooShort, length, p.MinLength)
	}
	if p.MaxLength > 0 && length > p.MaxLength {
		if err := series.CutAfter(timeutil.AddSeconds(start, p.MaxLength)); err != nil {
			return model.ShapeMeasurement{}, err
		}
	}

	envelope, err := c.fitEnvelope(series.Data(), w.ID)
	if err != nil {
		return model.ShapeMeasurement{}, err
	}

	return model.ShapeMeasurement{
		Waveform:          w,
		Distance:          distance,
		V0:                p.Velocity0,
		V1:                p.Velocity1,
		V2:                p.Velocity2,
		MeasuredBeta:      envelope.Beta,
		MeasuredGamma:     envelope.Gamma,
		MeasuredIntercept: envelope.Intercept,
		MeasuredError:     envelope.Error,
		MeasuredTime:      start,
		TimeDifference:    vm.Time - travelTime,
	}, nil
}

func (c *Calculator) fitEnvelope(segment []float64, id string) (fit.EnvelopeFit, error) {
	if c.Method != config.ShapeFitOptimizer {
		return fit.FitCodaStraightLine(segment)
	}
	if c.Seed == 0 {
		return fit.FitCodaOptimizer(segment, c.Constraints)
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return fit.FitCodaOptimizerRand(segment, c.Constraints, rand.New(rand.NewPCG(c.Seed, h.Sum64())))
}

func waveformID(w *model.Waveform) string {
	if w == nil {
		return "<nil>"
	}
	return w.ID
}
