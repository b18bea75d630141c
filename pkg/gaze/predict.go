package gaze

import (
	"math"

	"github.com/gazetrack/gazetrack/internal/linalg"
	"github.com/gazetrack/gazetrack/pkg/features"
)

const (
	blinkEAR             = 0.18
	minPredictConfidence = 0.30

	yawDeviationThreshold   = 0.15
	pitchDeviationThreshold = 0.12

	minCutoffAtRest        = 1.0
	minCutoffAtFast        = 4.0
	betaAtRest             = 0.007
	betaAtFast             = 0.057
	dynamicVelocityCeiling = 500.0 // px/s
)

// Predict maps one frame's features to a screen-space GazePoint. It
// returns ok=false for every silent failure mode in spec §4.3: an
// untrained model, a blink, low input confidence, a non-finite
// intermediate, or a velocity-gated outlier.
func (m *Model) Predict(f features.EyeFeatures, timestampMS float64) (GazePoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.trained {
		return GazePoint{}, false
	}
	if f.EyeOpenness < blinkEAR {
		return GazePoint{}, false
	}
	if f.Confidence < minPredictConfidence {
		return GazePoint{}, false
	}

	raw := rawVector(f, m.refPose)
	if !allFinite(raw) {
		m.nonFiniteCount++
		return GazePoint{}, false
	}
	normalized := m.norm.Apply(raw)
	basis := linalg.Expand(toInput(normalized))
	if !allFinite(basis) {
		m.nonFiniteCount++
		return GazePoint{}, false
	}

	rawX := linalg.Predict(m.wX, basis)
	rawY := linalg.Predict(m.wY, basis)
	if isNaNOrInf(rawX) || isNaNOrInf(rawY) {
		m.nonFiniteCount++
		return GazePoint{}, false
	}

	x, y := m.applyCorrection(rawX, rawY)

	conf := f.Confidence
	dYaw := f.HeadPose.Yaw - m.refPose.Yaw
	dPitch := f.HeadPose.Pitch - m.refPose.Pitch
	if math.Abs(dYaw) > yawDeviationThreshold || math.Abs(dPitch) > pitchDeviationThreshold {
		conf *= math.Max(0.3, 1-2*(math.Abs(dYaw)-yawDeviationThreshold))
	}

	if !m.passesVelocityGate(x, y, timestampMS) {
		return GazePoint{}, false
	}

	vel := m.recentVelocity()
	minCutoff, beta := dynamicOneEuroParams(vel)
	m.filterX.SetDynamicParams(minCutoff, beta, m.cfg.OneEuroDCutoff)
	m.filterY.SetDynamicParams(minCutoff, beta, m.cfg.OneEuroDCutoff)

	tSeconds := timestampMS / 1000.0
	fx := m.filterX.Filter(x, tSeconds)
	fy := m.filterY.Filter(y, tSeconds)

	if m.cfg.UseKalman && m.kalman != nil {
		fx, fy = m.kalman.Update(fx, fy, tSeconds)
	}

	point := GazePoint{X: fx, Y: fy, Timestamp: timestampMS, Confidence: conf}
	m.pushHistory(point)

	return point, true
}

func (m *Model) applyCorrection(x, y float64) (float64, float64) {
	if m.hasAffine {
		a := m.affine
		return a.A11*x + a.A12*y + a.Tx, a.A21*x + a.A22*y + a.Ty
	}
	return x + m.driftX, y + m.driftY
}

// passesVelocityGate implements the jump-threshold outlier gate and
// teleport recovery described in spec §4.3 step 4.
func (m *Model) passesVelocityGate(x, y, timestampMS float64) bool {
	if len(m.history) == 0 {
		m.lastWasLarge = false
		return true
	}

	prev := m.history[len(m.history)-1]
	dist := math.Hypot(x-prev.X, y-prev.Y)

	screenMax := math.Max(m.screenW, m.screenH)
	avgVel := m.recentVelocity()
	jumpThreshold := 0.22*screenMax + math.Min(120*avgVel, 0.2*screenMax)

	if dist <= jumpThreshold {
		m.lastWasLarge = false
		return true
	}

	if m.lastWasLarge {
		// Teleport recovery: flush history and reset smoothing so the
		// filters re-seed on the new, apparently-real position.
		m.history = nil
		m.filterX.Reset()
		m.filterY.Reset()
		if m.kalman != nil {
			m.kalman.Reset()
		}
		m.lastWasLarge = false
		return true
	}

	m.lastWasLarge = true
	return false
}

// recentVelocity is the mean speed (px/s) across the last three history
// points, or 0 if fewer than two are available.
func (m *Model) recentVelocity() float64 {
	n := len(m.history)
	if n < 2 {
		return 0
	}
	start := n - 3
	if start < 0 {
		start = 0
	}
	window := m.history[start:]
	first, last := window[0], window[len(window)-1]
	dtSeconds := (last.Timestamp - first.Timestamp) / 1000.0
	if dtSeconds <= 0 {
		return 0
	}
	dist := math.Hypot(last.X-first.X, last.Y-first.Y)
	return dist / dtSeconds
}

func (m *Model) pushHistory(p GazePoint) {
	size := m.cfg.HistorySize
	if size <= 0 {
		size = 11
	}
	m.history = append(m.history, p)
	if len(m.history) > size {
		m.history = m.history[len(m.history)-size:]
	}
}

// dynamicOneEuroParams linearly scales minCutoff and beta with velocity,
// per spec §4.4's setDynamicParams.
func dynamicOneEuroParams(velPxS float64) (minCutoff, beta float64) {
	t := velPxS / dynamicVelocityCeiling
	if t > 1 {
		t = 1
	}
	if t < 0 {
		t = 0
	}
	minCutoff = minCutoffAtRest + t*(minCutoffAtFast-minCutoffAtRest)
	beta = betaAtRest + t*(betaAtFast-betaAtRest)
	return minCutoff, beta
}
