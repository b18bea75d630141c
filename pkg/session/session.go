// Package session orchestrates one end-to-end gazetrack run: binding a
// trained GazeModel to a sequence of stimulus images, driving a fresh
// FixationDetector per image, and assembling the results export.
package session

import (
	"github.com/google/uuid"

	"github.com/gazetrack/gazetrack/internal/config"
	"github.com/gazetrack/gazetrack/pkg/features"
	"github.com/gazetrack/gazetrack/pkg/fixation"
	"github.com/gazetrack/gazetrack/pkg/gaze"
	"github.com/gazetrack/gazetrack/pkg/quality"
)

// ImageSpec describes one stimulus image's on-screen dimensions and
// expected viewing duration within a session.
type ImageSpec struct {
	Width, Height      float64
	ExpectedDurationMS float64
}

// GazeRecord is one tracked sample within an image's tracking window,
// carrying both the model's smoothed prediction and the frame-to-frame
// delta used
// by the results export.
type GazeRecord struct {
	X, Y        float64
	TimestampMS float64
	Confidence  float64
	DtMS        float64
}

// ImageResult bundles everything produced while tracking one image.
type ImageResult struct {
	ImageIndex   int
	Width, Height float64
	GazePoints   []GazeRecord
	Metrics      fixation.Metrics
	Quality      quality.Report
}

// Session owns one calibrated GazeModel and drives tracking across a
// sequence of images, each with its own exclusively-owned
// FixationDetector for the lifetime of that image's window.
type Session struct {
	ID    string
	model *gaze.Model
	fixCfg fixation.Config

	results []ImageResult
}

// New constructs a Session bound to an already-trained model.
func New(model *gaze.Model, fixCfg fixation.Config) *Session {
	return &Session{ID: uuid.NewString(), model: model, fixCfg: fixCfg}
}

// NewFromConfig constructs a Session using the fixation tunables from
// a loaded config.Config.
func NewFromConfig(model *gaze.Model, cfg *config.Config) *Session {
	return New(model, fixation.Config{
		VelocityThreshold:   cfg.Fixation.VelocityThresholdPxS,
		MinFixationDuration: cfg.Fixation.MinFixationDurationMS,
		MaxFixationRadius:   cfg.Fixation.MaxFixationRadiusPx,
		DBSCANEps:           cfg.Fixation.DBSCANEpsPx,
		DBSCANMinPts:        cfg.Fixation.DBSCANMinPts,
	})
}

// ImageTracker drives one image's tracking window: each incoming
// EyeFeatures is predicted through the session's GazeModel, then fed
// to a fresh FixationDetector owned exclusively for this image.
type ImageTracker struct {
	imageIndex int
	spec       ImageSpec
	model      *gaze.Model
	detector   *fixation.Detector

	records []GazeRecord
	lastTS  float64
	hasLast bool
}

// TrackImage starts a new per-image tracking window.
func (s *Session) TrackImage(imageIndex int, spec ImageSpec) *ImageTracker {
	return &ImageTracker{
		imageIndex: imageIndex,
		spec:       spec,
		model:      s.model,
		detector:   fixation.NewDetector(s.fixCfg),
	}
}

// Feed predicts one frame's gaze point and forwards it into the
// fixation detector, recording the frame-to-frame delta.
func (t *ImageTracker) Feed(f features.EyeFeatures, timestampMS float64) {
	point, ok := t.model.Predict(f, timestampMS)
	if !ok {
		return
	}

	dt := 0.0
	if t.hasLast {
		dt = timestampMS - t.lastTS
	}
	t.lastTS = timestampMS
	t.hasLast = true

	t.records = append(t.records, GazeRecord{
		X: point.X, Y: point.Y,
		TimestampMS: timestampMS,
		Confidence:  point.Confidence,
		DtMS:        dt,
	})

	t.detector.Ingest(fixation.GazeSample{
		X: point.X, Y: point.Y,
		TimestampMS: timestampMS,
		Confidence:  point.Confidence,
	})
}

// LastRecord returns the most recently fed gaze record, or false if
// Feed hasn't produced one yet (no face, or not yet called).
func (t *ImageTracker) LastRecord() (GazeRecord, bool) {
	if len(t.records) == 0 {
		return GazeRecord{}, false
	}
	return t.records[len(t.records)-1], true
}

// Finish finalises the image's tracking window and returns its
// complete result, including the quality.Score report over the
// image's own gaze samples and bounds.
func (t *ImageTracker) Finish() ImageResult {
	samples := make([]quality.Sample, len(t.records))
	for i, r := range t.records {
		samples[i] = quality.Sample{
			X: r.X, Y: r.Y,
			TimestampMS: r.TimestampMS,
			Confidence:  r.Confidence,
		}
	}
	report := quality.Score(samples, quality.Bounds{Width: t.spec.Width, Height: t.spec.Height}, t.spec.ExpectedDurationMS)

	return ImageResult{
		ImageIndex: t.imageIndex,
		Width:      t.spec.Width,
		Height:     t.spec.Height,
		GazePoints: t.records,
		Metrics:    t.detector.Finish(),
		Quality:    report,
	}
}

// RecordImage appends a completed ImageResult to the session.
func (s *Session) RecordImage(r ImageResult) {
	s.results = append(s.results, r)
}

// Results returns every image result recorded so far.
func (s *Session) Results() []ImageResult {
	return s.results
}
