package calibration

import (
	"errors"
	"math"
	"sync"

	"github.com/gazetrack/gazetrack/pkg/features"
	"github.com/gazetrack/gazetrack/pkg/gaze"
)

// Phase is one state in the calibration/validation machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseInstructions
	PhaseCalibrating
	PhaseValidating
	PhaseComplete
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseInstructions:
		return "instructions"
	case PhaseCalibrating:
		return "calibrating"
	case PhaseValidating:
		return "validating"
	case PhaseComplete:
		return "complete"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Sentinel errors returned by Manager methods.
var (
	ErrWrongPhase     = errors.New("calibration: operation invalid in current phase")
	ErrPointsExhausted = errors.New("calibration: no more points in current pass")
)

// PhaseChange is delivered over a Manager's subscriber channels on every
// transition, replacing the teacher's setter-installed callback with a
// bounded channel the core never retains raw function pointers into.
type PhaseChange struct {
	From, To Phase
	Message  string
}

// Config holds the tunables a Manager is constructed with.
type Config struct {
	ScreenPadding      float64
	ValidationPadding  float64
	SettleFrames       int
	MinConfidence      float64
	SampleBufferSize   int
	JitterStdThreshold float64
	MinAcceptedSamples int
	TargetSampleCount  int
	MaxRetries         int
}

type pointProgress struct {
	point     Point
	settled   int
	buffer    [][2]float64
	accepted  int
	retries   int
	done      bool
}

// Manager drives the calibration state machine end to end: grid
// generation, per-frame sample gating, weak-point retry, training, and
// validation-driven affine fitting.
type Manager struct {
	mu sync.Mutex

	cfg   Config
	model *gaze.Model

	phase Phase

	screenW, screenH float64

	calPoints   []pointProgress
	curIdx      int
	retryQueue  []int

	valPoints []Point
	valIdx    int
	valSettled int
	valSamples []gaze.ValidationSample
	valAccepted int

	prevStable features.HeadPose

	subscribers []chan PhaseChange

	lastMessage string
	meanError   float64
}

// NewManager constructs an idle Manager bound to model.
func NewManager(cfg Config, model *gaze.Model) *Manager {
	return &Manager{cfg: cfg, model: model, phase: PhaseIdle}
}

// Subscribe returns a channel receiving every subsequent phase
// transition. The caller must drain it or risk blocking the manager.
func (m *Manager) Subscribe() <-chan PhaseChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan PhaseChange, 10)
	m.subscribers = append(m.subscribers, ch)
	return ch
}

func (m *Manager) transition(to Phase, message string) {
	from := m.phase
	m.phase = to
	m.lastMessage = message
	for _, ch := range m.subscribers {
		select {
		case ch <- PhaseChange{From: from, To: to, Message: message}:
		default:
		}
	}
}

// Phase returns the current state.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Start begins a calibration session against a screen of the given
// dimensions, generating the serpentine calibration grid.
func (m *Manager) Start(screenW, screenH float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseIdle {
		return ErrWrongPhase
	}

	m.screenW, m.screenH = screenW, screenH
	grid := CalibrationGrid(screenW, screenH, m.cfg.ScreenPadding)
	m.calPoints = make([]pointProgress, len(grid))
	for i, p := range grid {
		m.calPoints[i] = pointProgress{point: p}
	}
	m.curIdx = 0
	m.retryQueue = nil

	m.transition(PhaseInstructions, "calibration grid ready")
	return nil
}

// Begin moves from instructions into the first calibrating point.
func (m *Manager) Begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseInstructions {
		return ErrWrongPhase
	}
	m.transition(PhaseCalibrating, "calibration started")
	return nil
}

// CurrentCalibrationPoint returns the active calibration target, or
// false if calibration has drained every point (and its retries).
func (m *Manager) CurrentCalibrationPoint() (Point, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseCalibrating || m.curIdx >= len(m.calPoints) {
		return Point{}, false
	}
	return m.calPoints[m.curIdx].point, true
}

func stabilityOK(f features.EyeFeatures, prev features.HeadPose) bool {
	if f.Confidence < 0.30 {
		return false
	}
	if f.EyeOpenness < 0.08 {
		return false
	}
	delta := math.Abs(f.HeadPose.Yaw-prev.Yaw) + math.Abs(f.HeadPose.Pitch-prev.Pitch) + math.Abs(f.HeadPose.Roll-prev.Roll)
	return delta <= 0.12
}

// Sample gates one frame's features against the active calibration
// point, returning a CalibrationSample and true once accepted. Returns
// false for frames skipped by the settle window, confidence floor, or
// jitter gate.
func (m *Manager) Sample(f features.EyeFeatures) (gaze.CalibrationSample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseCalibrating || m.curIdx >= len(m.calPoints) {
		return gaze.CalibrationSample{}, false
	}

	pp := &m.calPoints[m.curIdx]

	settleFrames := m.cfg.SettleFrames
	if pp.settled < settleFrames {
		pp.settled++
		m.prevStable = f.HeadPose
		return gaze.CalibrationSample{}, false
	}

	if !stabilityOK(f, m.prevStable) {
		m.prevStable = f.HeadPose
		return gaze.CalibrationSample{}, false
	}
	m.prevStable = f.HeadPose

	if f.Confidence < m.cfg.MinConfidence {
		return gaze.CalibrationSample{}, false
	}

	bufSize := m.cfg.SampleBufferSize
	pp.buffer = append(pp.buffer, [2]float64{f.LeftIrisRelXY.X, f.LeftIrisRelXY.Y})
	if len(pp.buffer) > bufSize {
		pp.buffer = pp.buffer[len(pp.buffer)-bufSize:]
	}
	if len(pp.buffer) == bufSize {
		stdX, stdY := bufferStdDev(pp.buffer)
		if stdX > m.cfg.JitterStdThreshold || stdY > m.cfg.JitterStdThreshold {
			return gaze.CalibrationSample{}, false
		}
	}

	pp.accepted++
	sample := gaze.CalibrationSample{
		Features: f,
		TargetX:  pp.point.X,
		TargetY:  pp.point.Y,
		TargetID: pp.point.ID,
	}

	if pp.accepted >= m.cfg.TargetSampleCount {
		m.finishCurrentPoint()
	}

	return sample, true
}

func bufferStdDev(buf [][2]float64) (stdX, stdY float64) {
	n := float64(len(buf))
	var sumX, sumY float64
	for _, v := range buf {
		sumX += v[0]
		sumY += v[1]
	}
	meanX, meanY := sumX/n, sumY/n

	var varX, varY float64
	for _, v := range buf {
		varX += (v[0] - meanX) * (v[0] - meanX)
		varY += (v[1] - meanY) * (v[1] - meanY)
	}
	return math.Sqrt(varX / n), math.Sqrt(varY / n)
}

// finishCurrentPoint marks the active point done, queues it for retry
// if it under-delivered, and advances to the next point or the retry
// queue. It does not train; training runs through Manager.Train.
func (m *Manager) finishCurrentPoint() {
	pp := &m.calPoints[m.curIdx]
	pp.done = true

	if pp.accepted < m.cfg.MinAcceptedSamples && pp.retries < m.cfg.MaxRetries {
		pp.retries++
		pp.accepted = 0
		pp.buffer = nil
		pp.settled = 0
		m.retryQueue = append(m.retryQueue, m.curIdx)
	}

	m.curIdx++
	if m.curIdx >= len(m.calPoints) && len(m.retryQueue) > 0 {
		next := m.retryQueue[0]
		m.retryQueue = m.retryQueue[1:]
		m.curIdx = next
	}
}

// errorThresholdPx is the pass/fail pixel threshold derived from screen
// diagonal, used to phrase the calibration-quality message.
func (m *Manager) errorThresholdPx() float64 {
	diag := math.Hypot(m.screenW, m.screenH)
	return math.Round(diag * 0.055)
}

// Train hands the accumulated samples to GazeModel.TrainAsync once
// calibration (including retries) is exhausted, blocking on the
// returned channel, then transitions to validating or failed. Routed
// through the async boundary rather than a direct Train call since the
// manager's own mutex is released first: a multi-thousand-sample fit
// never holds up a concurrent Phase()/Subscribe() reader.
func (m *Manager) Train(samples []gaze.CalibrationSample) (gaze.TrainResult, error) {
	m.mu.Lock()
	if m.phase != PhaseCalibrating {
		m.mu.Unlock()
		return gaze.TrainResult{}, ErrWrongPhase
	}
	screenW, screenH := m.screenW, m.screenH
	m.mu.Unlock()

	outcome := <-m.model.TrainAsync(gaze.TrainJob{Samples: samples, ScreenW: screenW, ScreenH: screenH})
	result, err := outcome.Result, outcome.Err

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.transition(PhaseFailed, err.Error())
		return result, err
	}

	m.meanError = result.MeanError
	if m.meanError > m.errorThresholdPx() {
		m.lastMessage = "calibration quality below threshold, proceeding to validation for correction"
	}
	grid := ValidationGrid(screenW, screenH, m.cfg.ValidationPadding)
	m.valPoints = grid
	m.valIdx = 0
	m.valSettled = 0
	m.valSamples = nil
	m.valAccepted = 0

	m.model.SetScreenSize(screenW, screenH)
	m.transition(PhaseValidating, "validation started")
	return result, nil
}

// CurrentValidationPoint returns the active validation target, or
// false once every validation point has been sampled.
func (m *Manager) CurrentValidationPoint() (Point, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseValidating || m.valIdx >= len(m.valPoints) {
		return Point{}, false
	}
	return m.valPoints[m.valIdx], true
}

const maxValidationSamplesPerPoint = 60

// ValidationSample gates one (predicted, true) pair during validation,
// collecting up to 60 confidence≥0.5 predictions per point.
func (m *Manager) ValidationSample(predX, predY float64, f features.EyeFeatures) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseValidating || m.valIdx >= len(m.valPoints) {
		return false
	}

	settleFrames := m.cfg.SettleFrames
	if m.valSettled < settleFrames {
		m.valSettled++
		return false
	}

	if f.Confidence < 0.5 {
		return false
	}

	point := m.valPoints[m.valIdx]
	centerRelDist := math.Hypot(point.RelX-0.5, point.RelY-0.5)
	weight := 1.0 / (1.0 + centerRelDist)

	m.valSamples = append(m.valSamples, gaze.ValidationSample{
		PredX: predX, PredY: predY,
		TrueX: point.X, TrueY: point.Y,
		Weight: weight,
	})
	m.valAccepted++

	if m.valAccepted >= maxValidationSamplesPerPoint {
		m.valIdx++
		m.valSettled = 0
		m.valAccepted = 0
	}
	return true
}

// FinishValidation fits the affine/drift correction from the collected
// validation samples and transitions to complete.
func (m *Manager) FinishValidation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseValidating {
		return
	}

	m.model.SetAffineCorrection(m.valSamples)
	m.transition(PhaseComplete, "validation complete")
}

// Reset cancels the current session and returns to idle without
// mutating the bound GazeModel.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calPoints = nil
	m.curIdx = 0
	m.retryQueue = nil
	m.valPoints = nil
	m.valIdx = 0
	m.valSamples = nil
	m.transition(PhaseIdle, "reset")
}
