package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Calibration.ScreenPadding != 50 {
		t.Errorf("expected ScreenPadding 50, got %d", cfg.Calibration.ScreenPadding)
	}
	if cfg.Calibration.ValidationPadding != 100 {
		t.Errorf("expected ValidationPadding 100, got %d", cfg.Calibration.ValidationPadding)
	}
	if cfg.Calibration.TargetSampleCount != 35 {
		t.Errorf("expected TargetSampleCount 35, got %d", cfg.Calibration.TargetSampleCount)
	}
	if cfg.Gaze.MinCalibrationSamples != 80 {
		t.Errorf("expected MinCalibrationSamples 80, got %d", cfg.Gaze.MinCalibrationSamples)
	}
	if cfg.Gaze.HistorySize != 11 {
		t.Errorf("expected HistorySize 11, got %d", cfg.Gaze.HistorySize)
	}
	if cfg.Fixation.VelocityThresholdPxS != 55 {
		t.Errorf("expected VelocityThresholdPxS 55, got %f", cfg.Fixation.VelocityThresholdPxS)
	}
	if cfg.Fixation.DBSCANEpsPx != 35 {
		t.Errorf("expected DBSCANEpsPx 35, got %f", cfg.Fixation.DBSCANEpsPx)
	}
	if cfg.Heatmap.MaxOpacity != 0.75 {
		t.Errorf("expected MaxOpacity 0.75, got %f", cfg.Heatmap.MaxOpacity)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/gazetrack.toml")
	if err != nil {
		t.Fatalf("unexpected error for non-existent file: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config for non-existent file")
	}
}

func TestLoadValidFile(t *testing.T) {
	content := `
[session]
log_level = "debug"

[calibration]
screen_padding = 60
validation_padding = 120
settle_seconds = 2.0
min_confidence = 0.5
sample_buffer_size = 20
jitter_std_threshold = 0.03
min_accepted_samples = 25
target_sample_count = 40
max_retries = 3

[fixation]
velocity_threshold_px_s = 70
min_fixation_duration_ms = 120
max_fixation_radius_px = 45
dbscan_eps_px = 30
dbscan_min_pts = 6

[heatmap]
sigma_px = 20
min_opacity = 0.05
max_opacity = 0.9
`
	dir := t.TempDir()
	path := filepath.Join(dir, "gazetrack.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Session.LogLevel != "debug" {
		t.Errorf("expected LogLevel debug, got %s", cfg.Session.LogLevel)
	}
	if cfg.Calibration.ScreenPadding != 60 {
		t.Errorf("expected ScreenPadding 60, got %d", cfg.Calibration.ScreenPadding)
	}
	if cfg.Calibration.MaxRetries != 3 {
		t.Errorf("expected MaxRetries 3, got %d", cfg.Calibration.MaxRetries)
	}
	if cfg.Fixation.DBSCANMinPts != 6 {
		t.Errorf("expected DBSCANMinPts 6, got %d", cfg.Fixation.DBSCANMinPts)
	}
	if cfg.Heatmap.MaxOpacity != 0.9 {
		t.Errorf("expected MaxOpacity 0.9, got %f", cfg.Heatmap.MaxOpacity)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invalid.toml")
	if err := os.WriteFile(path, []byte("invalid [ toml"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestValidateInvalidConfidence(t *testing.T) {
	cfg := Default()
	cfg.Calibration.MinConfidence = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for confidence > 1")
	}
}

func TestValidateInvalidTargetSampleCount(t *testing.T) {
	cfg := Default()
	cfg.Calibration.TargetSampleCount = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for non-positive target sample count")
	}
}

func TestValidateInvalidHistorySize(t *testing.T) {
	cfg := Default()
	cfg.Gaze.HistorySize = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for non-positive history size")
	}
}

func TestValidateInvalidVelocityThreshold(t *testing.T) {
	cfg := Default()
	cfg.Fixation.VelocityThresholdPxS = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for non-positive velocity threshold")
	}
}

func TestValidateInvalidOpacityRange(t *testing.T) {
	cfg := Default()
	cfg.Heatmap.MinOpacity = 0.9
	cfg.Heatmap.MaxOpacity = 0.1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for inverted opacity range")
	}
}

func TestFilterOverridesApply(t *testing.T) {
	cfg := Default()
	beta := 0.02
	o := FilterOverrides{OneEuroBeta: &beta}
	o.Apply(&cfg.Filters)
	if cfg.Filters.OneEuroBeta != 0.02 {
		t.Errorf("expected overridden beta 0.02, got %f", cfg.Filters.OneEuroBeta)
	}
	if cfg.Filters.OneEuroMinCutoff != 1.0 {
		t.Errorf("expected untouched min cutoff 1.0, got %f", cfg.Filters.OneEuroMinCutoff)
	}
}

func TestFixationOverridesApply(t *testing.T) {
	cfg := Default()
	eps := 50.0
	minPts := 8
	o := FixationOverrides{DBSCANEpsPx: &eps, DBSCANMinPts: &minPts}
	o.Apply(&cfg.Fixation)
	if cfg.Fixation.DBSCANEpsPx != 50.0 {
		t.Errorf("expected overridden eps 50.0, got %f", cfg.Fixation.DBSCANEpsPx)
	}
	if cfg.Fixation.DBSCANMinPts != 8 {
		t.Errorf("expected overridden minPts 8, got %d", cfg.Fixation.DBSCANMinPts)
	}
	if cfg.Fixation.VelocityThresholdPxS != 55 {
		t.Errorf("expected untouched velocity threshold 55, got %f", cfg.Fixation.VelocityThresholdPxS)
	}
}
