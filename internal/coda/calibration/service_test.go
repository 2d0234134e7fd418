package calibration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/fit"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/model"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/scenario"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/config"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/testutil"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/timeutil"
)

// coarseOptions keeps every grid small while still containing the
// scenario's truth curves.
func coarseOptions() fit.Options {
	opts := fit.DefaultOptions()
	opts.Seed = 7
	opts.Grids = map[fit.Kind]fit.Grid{
		fit.KindVelocity: {{Start: 3.4, Step: 0.1, Count: 5}, {Start: 10, Step: 10, Count: 4}, {Start: 10, Step: 10, Count: 3}},
		fit.KindBeta:     {{Start: -0.001, Step: -0.001, Count: 3}, {Start: 0.05, Step: 0.05, Count: 3}, {Start: 0.0001, Step: 50, Count: 3}},
		fit.KindGamma:    {{Start: 1.2, Step: -0.1, Count: 5}, {Start: -10, Step: -10, Count: 3}, {Start: 25, Step: 25, Count: 3}},
	}
	return opts
}

func newTestService(t *testing.T) (*Service, *timeutil.MockClock) {
	t.Helper()
	testutil.QuietLogs(t)
	s := NewService(config.DefaultCalibrationConfig())
	s.SetFitOptions(coarseOptions())
	clock := timeutil.NewMockClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	s.SetClock(clock)
	return s, clock
}

func TestRunEndToEnd(t *testing.T) {
	s, _ := newTestService(t)
	sc, err := scenario.Generate(scenario.DefaultConfig())
	require.NoError(t, err)
	params := scenario.InitialParameters(sc.Truth)

	res, err := s.Run(context.Background(), sc.Waveforms, params, RunOptions{})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Len(t, res.Velocity, len(sc.Waveforms), "every synthetic envelope clears the SNR filter")
	assert.NotEmpty(t, res.Shape)
	assert.Len(t, res.Fits, 3*len(sc.Truth))
	for _, bf := range res.Fits {
		assert.Equal(t, fit.MethodGrid, bf.Method, "%s %s", bf.Kind, bf.Band)
		assert.Less(t, bf.Curve.Objective, fit.GridBaseObjective)
	}

	for band, p := range params {
		truth := sc.Truth[band]
		assert.InDelta(t, truth.Velocity0, p.Velocity0, 0.25, "velocity0 %s", band)
		assert.Less(t, p.Beta0, 0.0, "beta0 %s", band)
		assert.NotZero(t, p.Beta1)
		assert.NotZero(t, p.Beta2)
		assert.Greater(t, p.Gamma0, 0.0, "gamma0 %s", band)
	}
}

func TestRunAutoPick(t *testing.T) {
	s, _ := newTestService(t)
	cfg := scenario.DefaultConfig()
	cfg.AnalystPicks = false
	sc, err := scenario.Generate(cfg)
	require.NoError(t, err)

	res, err := s.Run(context.Background(), sc.Waveforms, scenario.InitialParameters(sc.Truth), RunOptions{AutoPick: true})
	require.NoError(t, err)

	assert.Positive(t, res.AutoPicks)
	assert.NotEmpty(t, res.Shape)
	for _, m := range res.Shape {
		pick, ok := m.Waveform.EndPick()
		require.True(t, ok)
		assert.Equal(t, model.PickAP, pick.PickType)
	}
}

func TestRunWithoutEndPicksSkipsShape(t *testing.T) {
	s, _ := newTestService(t)
	cfg := scenario.DefaultConfig()
	cfg.AnalystPicks = false
	sc, err := scenario.Generate(cfg)
	require.NoError(t, err)

	res, err := s.Run(context.Background(), sc.Waveforms, scenario.InitialParameters(sc.Truth), RunOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Shape)
	assert.Len(t, res.Fits, len(sc.Truth), "only velocity curves are fitted")
}

func TestRunTimestamps(t *testing.T) {
	s, clock := newTestService(t)
	start := clock.Now()

	res, err := s.Run(context.Background(), nil, scenario.InitialParameters(scenario.TruthParameters(scenario.DefaultConfig().Bands)), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, start, res.StartedAt)
	assert.Equal(t, start, res.FinishedAt)
	assert.Empty(t, res.Fits)
}

// tickingClock moves forward one second every time it is read.
type tickingClock struct{ now time.Time }

func (c *tickingClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *tickingClock) Since(t time.Time) time.Duration { return c.Now().Sub(t) }

func TestRunMeasuresElapsedWithClock(t *testing.T) {
	s, _ := newTestService(t)
	clock := &tickingClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	s.SetClock(clock)

	res, err := s.Run(context.Background(), nil, scenario.InitialParameters(scenario.TruthParameters(scenario.DefaultConfig().Bands)), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 1, 0, time.UTC), res.StartedAt)
	assert.Equal(t, time.Second, res.FinishedAt.Sub(res.StartedAt))
}

func TestRunRejectsEmptyParameters(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.Run(context.Background(), nil, model.ParameterMap{}, RunOptions{})
	assert.ErrorIs(t, err, fit.ErrNilParameters)
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	s, _ := newTestService(t)
	s.mu.Lock()
	defer s.mu.Unlock()

	params := scenario.TruthParameters(scenario.DefaultConfig().Bands)
	_, err := s.Run(context.Background(), nil, params, RunOptions{})
	assert.ErrorIs(t, err, ErrRunInProgress)
}

func TestRunCancelled(t *testing.T) {
	s, _ := newTestService(t)
	sc, err := scenario.Generate(scenario.DefaultConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Run(ctx, sc.Waveforms, scenario.InitialParameters(sc.Truth), RunOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResultJSON(t *testing.T) {
	s, _ := newTestService(t)
	sc, err := scenario.Generate(scenario.DefaultConfig())
	require.NoError(t, err)

	res, err := s.Run(context.Background(), sc.Waveforms, scenario.InitialParameters(sc.Truth), RunOptions{})
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, res.RunID, decoded["run_id"])
	assert.NotContains(t, decoded, "Parameters")
	fits, ok := decoded["fits"].([]any)
	require.True(t, ok)
	first := fits[0].(map[string]any)
	assert.Equal(t, "grid", first["method"])
	assert.Equal(t, "velocity", first["kind"])
}
