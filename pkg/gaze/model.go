// Package gaze implements the personalised eye-to-screen regressor:
// training from calibration samples, prediction with affine/drift
// correction and adaptive smoothing, and JSON round-trip persistence.
// It is the teacher's Tracker/Sender split generalised from "pose
// estimate out to a VMC peer" into "screen coordinate out to a fixation
// detector" — same single-owner, reset-between-sessions shape, new
// domain.
package gaze

import (
	"sync"

	"github.com/gazetrack/gazetrack/internal/linalg"
	"github.com/gazetrack/gazetrack/pkg/features"
	"github.com/gazetrack/gazetrack/pkg/filters"
)

// GazePoint is the pure-value output of Model.Predict.
type GazePoint struct {
	X, Y       float64
	Timestamp  float64 // milliseconds
	Confidence float64
}

// CalibrationSample pairs one frame's features with the on-screen
// target it was captured against.
type CalibrationSample struct {
	Features features.EyeFeatures
	TargetX  float64
	TargetY  float64
	TargetID int
}

// ReferencePose is the mean head pose recorded during calibration; the
// regression is trained on deltas from it.
type ReferencePose struct {
	Yaw, Pitch, Roll, FaceScale float64
}

// AffineCorrection is the optional post-training correction fit from
// validation samples. Mutually exclusive with a plain drift offset.
type AffineCorrection struct {
	A11, A12, Tx float64
	A21, A22, Ty float64
}

// Config holds the tunables a Model is constructed with. The
// configuration package's GazeConfig/FiltersConfig map onto this
// directly; keeping a separate struct here avoids pkg/gaze importing
// internal/config.
type Config struct {
	DefaultLambda         float64
	MinCalibrationSamples int
	HistorySize           int

	OneEuroMinCutoff float64
	OneEuroBeta      float64
	OneEuroDCutoff   float64

	UseKalman              bool
	KalmanProcessNoise     float64
	KalmanMeasurementNoise float64
}

// Model owns its weights, filter state, and prediction history
// exclusively. Per spec, ownership flows linearly: Reset consumes the
// receiver's tuning, clears the receiver, and hands back a freshly
// constructed Model for the next session.
type Model struct {
	mu sync.Mutex

	cfg Config

	trained bool

	wX, wY []float64
	norm   *linalg.Normalizer
	lambda float64

	refPose ReferencePose

	hasAffine      bool
	affine         AffineCorrection
	driftX, driftY float64

	filterX, filterY *filters.OneEuroFilter
	kalman           *filters.KalmanFilter2D

	screenW, screenH float64

	history      []GazePoint
	lastWasLarge bool

	nonFiniteCount int
}

// New constructs an untrained Model with the given tuning.
func New(cfg Config) *Model {
	return &Model{
		cfg:     cfg,
		lambda:  cfg.DefaultLambda,
		filterX: filters.NewOneEuroFilter(cfg.OneEuroMinCutoff, cfg.OneEuroBeta, cfg.OneEuroDCutoff),
		filterY: filters.NewOneEuroFilter(cfg.OneEuroMinCutoff, cfg.OneEuroBeta, cfg.OneEuroDCutoff),
		kalman:  filters.NewKalmanFilter2D(cfg.KalmanProcessNoise, cfg.KalmanMeasurementNoise),
	}
}

// IsTrained reports whether Train has successfully produced weights.
func (m *Model) IsTrained() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trained
}

// SetScreenSize records the screen dimensions predict's velocity-aware
// outlier gate needs. CalibrationManager calls this from Train, once
// training succeeds and before validation begins.
func (m *Model) SetScreenSize(w, h float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.screenW, m.screenH = w, h
}

// Reset consumes m's tuning configuration and returns a brand new,
// untrained Model with fresh filter state and an empty history ring.
// The caller must discard its reference to m after calling Reset: the
// old model is marked untrained and its weights, normaliser, history
// and filters are cleared, so Predict on it returns ok=false rather
// than leaking state across sessions.
func (m *Model) Reset() *Model {
	m.mu.Lock()
	defer m.mu.Unlock()

	fresh := New(m.cfg)

	m.trained = false
	m.wX, m.wY = nil, nil
	m.norm = nil
	m.history = nil
	m.filterX, m.filterY, m.kalman = nil, nil, nil

	return fresh
}

func rawVector(f features.EyeFeatures, ref ReferencePose) []float64 {
	return []float64{
		f.LeftIrisRelXY.X, f.LeftIrisRelXY.Y,
		f.RightIrisRelXY.X, f.RightIrisRelXY.Y,
		f.HeadPose.Yaw - ref.Yaw,
		f.HeadPose.Pitch - ref.Pitch,
		f.HeadPose.Roll - ref.Roll,
	}
}

func toInput(v []float64) linalg.Input {
	return linalg.Input{
		LeftIrisRelX: v[0], LeftIrisRelY: v[1],
		RightIrisRelX: v[2], RightIrisRelY: v[3],
		Yaw: v[4], Pitch: v[5], Roll: v[6],
	}
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if isNaNOrInf(x) {
			return false
		}
	}
	return true
}

func isNaNOrInf(x float64) bool {
	return x != x || x > 1e300 || x < -1e300
}
