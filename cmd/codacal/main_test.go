package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLNL/coda-calibration-tool-sub005/internal/coda/model"
	"github.com/LLNL/coda-calibration-tool-sub005/internal/testutil"
)

func TestParseFlagsDefaults(t *testing.T) {
	o, err := parseFlags(nil, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), o.seed)
	assert.Equal(t, 4, o.events)
	assert.Equal(t, 6, o.stations)
	assert.False(t, o.autoPick)
	assert.False(t, o.raw)
	assert.Empty(t, o.plotDir)
	assert.Empty(t, o.jsonOut)
	assert.False(t, o.version)
}

func TestParseFlags(t *testing.T) {
	o, err := parseFlags([]string{"-seed", "9", "-events", "2", "-autopick", "-plots", "out", "-log-level", "debug", "-version"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), o.seed)
	assert.Equal(t, 2, o.events)
	assert.True(t, o.autoPick)
	assert.Equal(t, "out", o.plotDir)
	assert.Equal(t, "debug", o.logLevel)
	assert.True(t, o.version)
}

func TestParseFlagsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"zero events", []string{"-events", "0"}},
		{"negative stations", []string{"-stations", "-1"}},
		{"unknown flag", []string{"-frobnicate"}},
		{"bad seed", []string{"-seed", "abc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFlags(tt.args, io.Discard)
			assert.Error(t, err)
		})
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	testutil.QuietLogs(t)
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"shape_fit_method": "simplex"}`), 0644))

	err := run(context.Background(), options{configPath: path, seed: 1, events: 1, stations: 2}, io.Discard)
	assert.Error(t, err)
}

func TestRunWritesReportAndPlots(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the default search grids")
	}
	testutil.QuietLogs(t)

	dir := t.TempDir()
	opts := options{
		seed:     3,
		events:   2,
		stations: 3,
		logLevel: "error",
		plotDir:  filepath.Join(dir, "plots"),
		jsonOut:  filepath.Join(dir, "report.json"),
	}
	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), opts, &stdout))
	assert.Zero(t, stdout.Len(), "report goes to the -json file")

	data, err := os.ReadFile(opts.jsonOut)
	require.NoError(t, err)
	var rep struct {
		Run struct {
			RunID string `json:"run_id"`
		} `json:"run"`
		Truth      []*model.SharedFrequencyBandParameters `json:"truth"`
		Parameters []*model.SharedFrequencyBandParameters `json:"parameters"`
	}
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.NotEmpty(t, rep.Run.RunID)
	require.Len(t, rep.Parameters, len(rep.Truth))
	for _, p := range rep.Parameters {
		assert.NotZero(t, p.Velocity0, "band %s", p.Band)
	}

	pngs, err := filepath.Glob(filepath.Join(opts.plotDir, "*.png"))
	require.NoError(t, err)
	assert.NotEmpty(t, pngs)
}

func TestFileBand(t *testing.T) {
	assert.Equal(t, "0p5_1", fileBand(model.FrequencyBand{LowFrequency: 0.5, HighFrequency: 1}))
	assert.Equal(t, "2_4", fileBand(model.FrequencyBand{LowFrequency: 2, HighFrequency: 4}))
}
