// Package config provides TOML configuration loading for gazetrack.
//
// The configuration file supports the following structure:
//
//	[session]
//	log_level = "info"
//	log_file = ""
//
//	[calibration]
//	screen_padding = 50
//	validation_padding = 100
//	settle_seconds = 1.5
//	min_confidence = 0.40
//	sample_buffer_size = 15
//	jitter_std_threshold = 0.025
//	min_accepted_samples = 20
//	target_sample_count = 35
//	max_retries = 2
//
//	[gaze]
//	default_lambda = 0.008
//	min_calibration_samples = 80
//	history_size = 11
//
//	[filters]
//	one_euro_min_cutoff = 1.0
//	one_euro_beta = 0.007
//	one_euro_d_cutoff = 1.0
//	use_kalman = false
//	kalman_process_noise = 0.1
//	kalman_measurement_noise = 5.0
//
//	[fixation]
//	velocity_threshold_px_s = 55
//	min_fixation_duration_ms = 100
//	max_fixation_radius_px = 40
//	dbscan_eps_px = 35
//	dbscan_min_pts = 5
//
//	[heatmap]
//	sigma_px = 25
//	min_opacity = 0.02
//	max_opacity = 0.75
//
// Example usage:
//
//	cfg, err := config.Load("gazetrack.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("DBSCAN eps: %.1f\n", cfg.Fixation.DBSCANEpsPx)
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the complete configuration for gazetrack.
type Config struct {
	Session     SessionConfig     `toml:"session"`
	Calibration CalibrationConfig `toml:"calibration"`
	Gaze        GazeConfig        `toml:"gaze"`
	Filters     FiltersConfig     `toml:"filters"`
	Fixation    FixationConfig    `toml:"fixation"`
	Heatmap     HeatmapConfig     `toml:"heatmap"`
}

// SessionConfig holds logging and run-identification settings.
type SessionConfig struct {
	// LogLevel is one of "debug", "info", "warn", "error" (default: "info").
	LogLevel string `toml:"log_level"`
	// LogFile, if set, tees log output to this path in addition to stderr.
	LogFile string `toml:"log_file"`
}

// CalibrationConfig holds calibration grid and sample-gating settings.
type CalibrationConfig struct {
	// ScreenPadding is the inset, in pixels, of the 7x7 calibration grid.
	ScreenPadding int `toml:"screen_padding"`
	// ValidationPadding is the inset, in pixels, of the 9-point validation grid.
	ValidationPadding int `toml:"validation_padding"`
	// SettleSeconds is skipped at the start of every point before sampling.
	SettleSeconds float64 `toml:"settle_seconds"`
	// MinConfidence is the per-frame confidence floor to accept a sample.
	MinConfidence float64 `toml:"min_confidence"`
	// SampleBufferSize is the rolling jitter-check window (default: 15).
	SampleBufferSize int `toml:"sample_buffer_size"`
	// JitterStdThreshold rejects frames once rolling stddev exceeds this.
	JitterStdThreshold float64 `toml:"jitter_std_threshold"`
	// MinAcceptedSamples below which a point is queued for retry.
	MinAcceptedSamples int `toml:"min_accepted_samples"`
	// TargetSampleCount at which a calibration point is marked done.
	TargetSampleCount int `toml:"target_sample_count"`
	// MaxRetries is the number of times a weak point may be retried.
	MaxRetries int `toml:"max_retries"`
}

// GazeConfig holds GazeModel training defaults.
type GazeConfig struct {
	// DefaultLambda is used when leave-one-group-out search can't run.
	DefaultLambda float64 `toml:"default_lambda"`
	// MinCalibrationSamples is the training floor after cleansing (default: 80).
	MinCalibrationSamples int `toml:"min_calibration_samples"`
	// HistorySize bounds the prediction-history ring (default: 11).
	HistorySize int `toml:"history_size"`
}

// FiltersConfig holds One-Euro and Kalman smoothing parameters.
type FiltersConfig struct {
	OneEuroMinCutoff       float64 `toml:"one_euro_min_cutoff"`
	OneEuroBeta            float64 `toml:"one_euro_beta"`
	OneEuroDCutoff         float64 `toml:"one_euro_d_cutoff"`
	UseKalman              bool    `toml:"use_kalman"`
	KalmanProcessNoise     float64 `toml:"kalman_process_noise"`
	KalmanMeasurementNoise float64 `toml:"kalman_measurement_noise"`
}

// FixationConfig holds I-VT and DBSCAN parameters.
type FixationConfig struct {
	VelocityThresholdPxS  float64 `toml:"velocity_threshold_px_s"`
	MinFixationDurationMS float64 `toml:"min_fixation_duration_ms"`
	MaxFixationRadiusPx   float64 `toml:"max_fixation_radius_px"`
	DBSCANEpsPx           float64 `toml:"dbscan_eps_px"`
	DBSCANMinPts          int     `toml:"dbscan_min_pts"`
}

// HeatmapConfig holds density-raster and palette parameters.
type HeatmapConfig struct {
	SigmaPx    float64 `toml:"sigma_px"`
	MinOpacity float64 `toml:"min_opacity"`
	MaxOpacity float64 `toml:"max_opacity"`
}

// Default returns the default configuration, matching spec.md's stated
// defaults for every component.
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			LogLevel: "info",
		},
		Calibration: CalibrationConfig{
			ScreenPadding:      50,
			ValidationPadding:  100,
			SettleSeconds:      1.5,
			MinConfidence:      0.40,
			SampleBufferSize:   15,
			JitterStdThreshold: 0.025,
			MinAcceptedSamples: 20,
			TargetSampleCount:  35,
			MaxRetries:         2,
		},
		Gaze: GazeConfig{
			DefaultLambda:         0.008,
			MinCalibrationSamples: 80,
			HistorySize:           11,
		},
		Filters: FiltersConfig{
			OneEuroMinCutoff:       1.0,
			OneEuroBeta:            0.007,
			OneEuroDCutoff:         1.0,
			UseKalman:              false,
			KalmanProcessNoise:     0.1,
			KalmanMeasurementNoise: 5.0,
		},
		Fixation: FixationConfig{
			VelocityThresholdPxS:  55,
			MinFixationDurationMS: 100,
			MaxFixationRadiusPx:   40,
			DBSCANEpsPx:           35,
			DBSCANMinPts:          5,
		},
		Heatmap: HeatmapConfig{
			SigmaPx:    25,
			MinOpacity: 0.02,
			MaxOpacity: 0.75,
		},
	}
}

// Load reads and parses a TOML configuration file.
// If the file does not exist, it returns the default configuration.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Calibration.ScreenPadding < 0 {
		return fmt.Errorf("calibration screen padding must be non-negative, got %d", c.Calibration.ScreenPadding)
	}
	if c.Calibration.MinConfidence < 0 || c.Calibration.MinConfidence > 1 {
		return fmt.Errorf("calibration min confidence must be in [0,1], got %f", c.Calibration.MinConfidence)
	}
	if c.Calibration.TargetSampleCount <= 0 {
		return fmt.Errorf("calibration target sample count must be positive, got %d", c.Calibration.TargetSampleCount)
	}
	if c.Gaze.MinCalibrationSamples <= 0 {
		return fmt.Errorf("gaze min calibration samples must be positive, got %d", c.Gaze.MinCalibrationSamples)
	}
	if c.Gaze.HistorySize <= 0 {
		return fmt.Errorf("gaze history size must be positive, got %d", c.Gaze.HistorySize)
	}
	if c.Filters.OneEuroMinCutoff <= 0 {
		return fmt.Errorf("one euro min cutoff must be positive, got %f", c.Filters.OneEuroMinCutoff)
	}
	if c.Fixation.VelocityThresholdPxS <= 0 {
		return fmt.Errorf("fixation velocity threshold must be positive, got %f", c.Fixation.VelocityThresholdPxS)
	}
	if c.Fixation.DBSCANMinPts <= 0 {
		return fmt.Errorf("dbscan min points must be positive, got %d", c.Fixation.DBSCANMinPts)
	}
	if c.Heatmap.MinOpacity < 0 || c.Heatmap.MaxOpacity > 1 || c.Heatmap.MinOpacity > c.Heatmap.MaxOpacity {
		return fmt.Errorf("heatmap opacity range invalid: min=%f max=%f", c.Heatmap.MinOpacity, c.Heatmap.MaxOpacity)
	}
	return nil
}

// FilterOverrides holds partial, option-typed overrides merged into a
// canonical Config, the Go-native equivalent of the partial config
// objects the UI layer would otherwise pass as untyped JS objects.
type FilterOverrides struct {
	OneEuroMinCutoff *float64
	OneEuroBeta      *float64
	OneEuroDCutoff   *float64
	UseKalman        *bool
}

// Apply merges any set fields from o into c, leaving unset fields untouched.
func (o FilterOverrides) Apply(c *FiltersConfig) {
	if o.OneEuroMinCutoff != nil {
		c.OneEuroMinCutoff = *o.OneEuroMinCutoff
	}
	if o.OneEuroBeta != nil {
		c.OneEuroBeta = *o.OneEuroBeta
	}
	if o.OneEuroDCutoff != nil {
		c.OneEuroDCutoff = *o.OneEuroDCutoff
	}
	if o.UseKalman != nil {
		c.UseKalman = *o.UseKalman
	}
}

// HeatmapOverrides holds partial overrides for HeatmapConfig.
type HeatmapOverrides struct {
	SigmaPx    *float64
	MinOpacity *float64
	MaxOpacity *float64
}

// Apply merges any set fields from o into c, leaving unset fields untouched.
func (o HeatmapOverrides) Apply(c *HeatmapConfig) {
	if o.SigmaPx != nil {
		c.SigmaPx = *o.SigmaPx
	}
	if o.MinOpacity != nil {
		c.MinOpacity = *o.MinOpacity
	}
	if o.MaxOpacity != nil {
		c.MaxOpacity = *o.MaxOpacity
	}
}

// FixationOverrides holds partial overrides for FixationConfig, covering
// the DBSCAN eps/minPts tuning knobs the UI layer exposes.
type FixationOverrides struct {
	VelocityThresholdPxS  *float64
	MinFixationDurationMS *float64
	MaxFixationRadiusPx   *float64
	DBSCANEpsPx           *float64
	DBSCANMinPts          *int
}

// Apply merges any set fields from o into c, leaving unset fields untouched.
func (o FixationOverrides) Apply(c *FixationConfig) {
	if o.VelocityThresholdPxS != nil {
		c.VelocityThresholdPxS = *o.VelocityThresholdPxS
	}
	if o.MinFixationDurationMS != nil {
		c.MinFixationDurationMS = *o.MinFixationDurationMS
	}
	if o.MaxFixationRadiusPx != nil {
		c.MaxFixationRadiusPx = *o.MaxFixationRadiusPx
	}
	if o.DBSCANEpsPx != nil {
		c.DBSCANEpsPx = *o.DBSCANEpsPx
	}
	if o.DBSCANMinPts != nil {
		c.DBSCANMinPts = *o.DBSCANMinPts
	}
}
