package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigPath is the path to the canonical calibration defaults file.
const DefaultConfigPath = "config/calibration.defaults.json"

// Shape fit methods accepted by shape_fit_method.
const (
	ShapeFitGrid      = "grid"
	ShapeFitOptimizer = "optimizer"
)

// CalibrationConfig represents the root configuration for a calibration run.
// Every field is optional; the Get* accessors supply the defaults used by
// the fitting code when a field is omitted.
type CalibrationConfig struct {
	// Curve fitting
	DataPointCutoff   *int    `json:"data_point_cutoff,omitempty"`
	OptimizerRestarts *int    `json:"optimizer_restarts,omitempty"`
	MaxEvaluations    *int    `json:"max_evaluations,omitempty"`
	Workers           *int    `json:"workers,omitempty"`
	RandomSeed        *uint64 `json:"random_seed,omitempty"`

	// Physical validity bands for the distance curves
	DistMin         *float64 `json:"dist_min,omitempty"`
	VelocityYMin    *float64 `json:"velocity_y_min,omitempty"`
	VelocityYMax    *float64 `json:"velocity_y_max,omitempty"`
	VelocityDistMax *float64 `json:"velocity_dist_max,omitempty"`
	BetaYMin        *float64 `json:"beta_y_min,omitempty"`
	BetaYMax        *float64 `json:"beta_y_max,omitempty"`
	BetaDistMax     *float64 `json:"beta_dist_max,omitempty"`
	GammaYMin       *float64 `json:"gamma_y_min,omitempty"`
	GammaYMax       *float64 `json:"gamma_y_max,omitempty"`
	GammaDistMax    *float64 `json:"gamma_dist_max,omitempty"`

	// Envelope windows
	NoiseWindowOffsetSeconds *float64 `json:"noise_window_offset_s,omitempty"`
	GroupVelocityDenominator *float64 `json:"group_velocity_denominator,omitempty"`
	PeakTimeToleranceSeconds *float64 `json:"peak_time_tolerance_s,omitempty"`

	// Pipeline
	ShapeFitMethod *string `json:"shape_fit_method,omitempty"`
	MinSnrFilter   *bool   `json:"min_snr_filter,omitempty"`
	LogLevel       *string `json:"log_level,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrUint64(v uint64) *uint64    { return &v }

// EmptyCalibrationConfig returns a CalibrationConfig with all fields set to nil.
func EmptyCalibrationConfig() *CalibrationConfig {
	return &CalibrationConfig{}
}

// DefaultCalibrationConfig returns a config with every field populated with
// its default value.
func DefaultCalibrationConfig() *CalibrationConfig {
	e := EmptyCalibrationConfig()
	return &CalibrationConfig{
		DataPointCutoff:          ptrInt(e.GetDataPointCutoff()),
		OptimizerRestarts:        ptrInt(e.GetOptimizerRestarts()),
		MaxEvaluations:           ptrInt(e.GetMaxEvaluations()),
		Workers:                  ptrInt(e.GetWorkers()),
		RandomSeed:               ptrUint64(e.GetRandomSeed()),
		DistMin:                  ptrFloat64(e.GetDistMin()),
		VelocityYMin:             ptrFloat64(e.GetVelocityYMin()),
		VelocityYMax:             ptrFloat64(e.GetVelocityYMax()),
		VelocityDistMax:          ptrFloat64(e.GetVelocityDistMax()),
		BetaYMin:                 ptrFloat64(e.GetBetaYMin()),
		BetaYMax:                 ptrFloat64(e.GetBetaYMax()),
		BetaDistMax:              ptrFloat64(e.GetBetaDistMax()),
		GammaYMin:                ptrFloat64(e.GetGammaYMin()),
		GammaYMax:                ptrFloat64(e.GetGammaYMax()),
		GammaDistMax:             ptrFloat64(e.GetGammaDistMax()),
		NoiseWindowOffsetSeconds: ptrFloat64(e.GetNoiseWindowOffsetSeconds()),
		GroupVelocityDenominator: ptrFloat64(e.GetGroupVelocityDenominator()),
		PeakTimeToleranceSeconds: ptrFloat64(e.GetPeakTimeToleranceSeconds()),
		ShapeFitMethod:           ptrString(e.GetShapeFitMethod()),
		MinSnrFilter:             ptrBool(e.GetMinSnrFilter()),
		LogLevel:                 ptrString(e.GetLogLevel()),
	}
}

// LoadCalibrationConfig loads a CalibrationConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file fall back to defaults, so partial configs are safe.
func LoadCalibrationConfig(path string) (*CalibrationConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyCalibrationConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *CalibrationConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/coda/fit/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadCalibrationConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *CalibrationConfig) Validate() error {
	if c.DataPointCutoff != nil && *c.DataPointCutoff < 0 {
		return fmt.Errorf("data_point_cutoff must be non-negative, got %d", *c.DataPointCutoff)
	}
	if c.OptimizerRestarts != nil && *c.OptimizerRestarts < 1 {
		return fmt.Errorf("optimizer_restarts must be at least 1, got %d", *c.OptimizerRestarts)
	}
	if c.MaxEvaluations != nil && *c.MaxEvaluations < 1 {
		return fmt.Errorf("max_evaluations must be positive, got %d", *c.MaxEvaluations)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}

	bands := []struct {
		name     string
		min, max float64
	}{
		{"velocity_y", c.GetVelocityYMin(), c.GetVelocityYMax()},
		{"beta_y", c.GetBetaYMin(), c.GetBetaYMax()},
		{"gamma_y", c.GetGammaYMin(), c.GetGammaYMax()},
	}
	for _, b := range bands {
		if b.min >= b.max {
			return fmt.Errorf("%s_min (%g) must be less than %s_max (%g)", b.name, b.min, b.name, b.max)
		}
	}

	distMin := c.GetDistMin()
	for name, max := range map[string]float64{
		"velocity_dist_max": c.GetVelocityDistMax(),
		"beta_dist_max":     c.GetBetaDistMax(),
		"gamma_dist_max":    c.GetGammaDistMax(),
	} {
		if max <= distMin {
			return fmt.Errorf("%s (%g) must exceed dist_min (%g)", name, max, distMin)
		}
	}

	if c.NoiseWindowOffsetSeconds != nil && *c.NoiseWindowOffsetSeconds < 0 {
		return fmt.Errorf("noise_window_offset_s must be non-negative, got %f", *c.NoiseWindowOffsetSeconds)
	}
	if c.GroupVelocityDenominator != nil && *c.GroupVelocityDenominator <= 0 {
		return fmt.Errorf("group_velocity_denominator must be positive, got %f", *c.GroupVelocityDenominator)
	}
	if c.PeakTimeToleranceSeconds != nil && *c.PeakTimeToleranceSeconds < 0 {
		return fmt.Errorf("peak_time_tolerance_s must be non-negative, got %f", *c.PeakTimeToleranceSeconds)
	}

	if c.ShapeFitMethod != nil {
		switch *c.ShapeFitMethod {
		case ShapeFitGrid, ShapeFitOptimizer:
		default:
			return fmt.Errorf("shape_fit_method must be %q or %q, got %q", ShapeFitGrid, ShapeFitOptimizer, *c.ShapeFitMethod)
		}
	}

	if c.LogLevel != nil {
		switch strings.ToLower(*c.LogLevel) {
		case "debug", "info", "warn", "warning", "error":
		default:
			return fmt.Errorf("unknown log_level %q", *c.LogLevel)
		}
	}

	return nil
}

// GetDataPointCutoff returns the sample count below which the grid search is used directly.
func (c *CalibrationConfig) GetDataPointCutoff() int {
	if c.DataPointCutoff == nil {
		return 100
	}
	return *c.DataPointCutoff
}

// GetOptimizerRestarts returns the number of randomized optimizer restarts.
func (c *CalibrationConfig) GetOptimizerRestarts() int {
	if c.OptimizerRestarts == nil {
		return 10
	}
	return *c.OptimizerRestarts
}

// GetMaxEvaluations returns the optimizer evaluation budget per restart.
func (c *CalibrationConfig) GetMaxEvaluations() int {
	if c.MaxEvaluations == nil {
		return 1000000
	}
	return *c.MaxEvaluations
}

// GetWorkers returns the worker limit; 0 means GOMAXPROCS.
func (c *CalibrationConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetRandomSeed returns the optimizer seed; 0 means time-seeded.
func (c *CalibrationConfig) GetRandomSeed() uint64 {
	if c.RandomSeed == nil {
		return 0
	}
	return *c.RandomSeed
}

// GetDistMin returns the minimum distance (km) used by the validity checks.
func (c *CalibrationConfig) GetDistMin() float64 {
	if c.DistMin == nil {
		return 0
	}
	return *c.DistMin
}

// GetVelocityYMin returns the velocity_y_min value or the default.
func (c *CalibrationConfig) GetVelocityYMin() float64 {
	if c.VelocityYMin == nil {
		return 0.5
	}
	return *c.VelocityYMin
}

// GetVelocityYMax returns the velocity_y_max value or the default.
func (c *CalibrationConfig) GetVelocityYMax() float64 {
	if c.VelocityYMax == nil {
		return 6.01
	}
	return *c.VelocityYMax
}

// GetVelocityDistMax returns the velocity_dist_max value or the default.
func (c *CalibrationConfig) GetVelocityDistMax() float64 {
	if c.VelocityDistMax == nil {
		return 1600
	}
	return *c.VelocityDistMax
}

// GetBetaYMin returns the beta_y_min value or the default.
func (c *CalibrationConfig) GetBetaYMin() float64 {
	if c.BetaYMin == nil {
		return -3.0e-2
	}
	return *c.BetaYMin
}

// GetBetaYMax returns the beta_y_max value or the default.
func (c *CalibrationConfig) GetBetaYMax() float64 {
	if c.BetaYMax == nil {
		return 0.0005
	}
	return *c.BetaYMax
}

// GetBetaDistMax returns the beta_dist_max value or the default.
func (c *CalibrationConfig) GetBetaDistMax() float64 {
	if c.BetaDistMax == nil {
		return 1550
	}
	return *c.BetaDistMax
}

// GetGammaYMin returns the gamma_y_min value or the default.
func (c *CalibrationConfig) GetGammaYMin() float64 {
	if c.GammaYMin == nil {
		return 0.1
	}
	return *c.GammaYMin
}

// GetGammaYMax returns the gamma_y_max value or the default.
func (c *CalibrationConfig) GetGammaYMax() float64 {
	if c.GammaYMax == nil {
		return 100
	}
	return *c.GammaYMax
}

// GetGammaDistMax returns the gamma_dist_max value or the default.
func (c *CalibrationConfig) GetGammaDistMax() float64 {
	if c.GammaDistMax == nil {
		return 600
	}
	return *c.GammaDistMax
}

// GetNoiseWindowOffsetSeconds returns the noise window offset in seconds.
func (c *CalibrationConfig) GetNoiseWindowOffsetSeconds() float64 {
	if c.NoiseWindowOffsetSeconds == nil {
		return 20
	}
	return *c.NoiseWindowOffsetSeconds
}

// GetGroupVelocityDenominator returns the km/s divisor for the noise window end.
func (c *CalibrationConfig) GetGroupVelocityDenominator() float64 {
	if c.GroupVelocityDenominator == nil {
		return 10
	}
	return *c.GroupVelocityDenominator
}

// GetPeakTimeToleranceSeconds returns how far the measured peak may sit from
// the predicted arrival before the prediction is preferred.
func (c *CalibrationConfig) GetPeakTimeToleranceSeconds() float64 {
	if c.PeakTimeToleranceSeconds == nil {
		return 5
	}
	return *c.PeakTimeToleranceSeconds
}

// GetShapeFitMethod returns the shape_fit_method value or the default.
func (c *CalibrationConfig) GetShapeFitMethod() string {
	if c.ShapeFitMethod == nil || *c.ShapeFitMethod == "" {
		return ShapeFitGrid
	}
	return *c.ShapeFitMethod
}

// GetMinSnrFilter reports whether velocity measurements below the band's
// minimum SNR are dropped before shape fitting.
func (c *CalibrationConfig) GetMinSnrFilter() bool {
	if c.MinSnrFilter == nil {
		return true
	}
	return *c.MinSnrFilter
}

// GetLogLevel returns the log_level value or the default.
func (c *CalibrationConfig) GetLogLevel() string {
	if c.LogLevel == nil || *c.LogLevel == "" {
		return "info"
	}
	return *c.LogLevel
}
