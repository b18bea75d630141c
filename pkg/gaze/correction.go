package gaze

import (
	"math"

	"github.com/gazetrack/gazetrack/internal/linalg"
	"gonum.org/v1/gonum/mat"
)

const (
	affineScaleMin = 0.5
	affineScaleMax = 2.0
	affineRidge    = 1e-6
)

// ValidationSample is one (predicted, true) screen-coordinate pair
// gathered during the CalibrationManager's validation phase.
type ValidationSample struct {
	PredX, PredY float64
	TrueX, TrueY float64
	Weight       float64 // centre-weighted, per spec §4.5
}

// SetAffineCorrection fits the post-training affine correction from
// validation samples, one independent least-squares solve per axis. If
// fewer than 3 samples are given, only the weighted mean translation is
// kept. A fitted affine whose per-axis scale falls outside [0.5, 2] is
// rejected as ill-conditioned and replaced by a translation-only drift
// offset (spec's AffineIllConditioned error, logged not fatal — the
// caller decides whether to log).
func (m *Model) SetAffineCorrection(samples []ValidationSample) (illConditioned bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(samples) < 3 {
		dx, dy := weightedMeanBias(samples)
		m.hasAffine = false
		m.affine = AffineCorrection{}
		m.driftX, m.driftY = dx, dy
		return false
	}

	n := len(samples)
	design := mat.NewDense(n, 3, nil)
	weights := make([]float64, n)
	trueX := make([]float64, n)
	trueY := make([]float64, n)
	for i, s := range samples {
		design.SetRow(i, []float64{s.PredX, s.PredY, 1})
		w := s.Weight
		if w <= 0 {
			w = 1
		}
		weights[i] = w
		trueX[i] = s.TrueX
		trueY[i] = s.TrueY
	}

	coefX, errX := linalg.Ridge(design, weights, trueX, affineRidge)
	coefY, errY := linalg.Ridge(design, weights, trueY, affineRidge)
	if errX != nil || errY != nil {
		dx, dy := weightedMeanBias(samples)
		m.hasAffine = false
		m.driftX, m.driftY = dx, dy
		return true
	}

	candidate := AffineCorrection{
		A11: coefX[0], A12: coefX[1], Tx: coefX[2],
		A21: coefY[0], A22: coefY[1], Ty: coefY[2],
	}

	scaleX := math.Hypot(candidate.A11, candidate.A12)
	scaleY := math.Hypot(candidate.A21, candidate.A22)
	if scaleX < affineScaleMin || scaleX > affineScaleMax || scaleY < affineScaleMin || scaleY > affineScaleMax {
		dx, dy := weightedMeanBias(samples)
		m.hasAffine = false
		m.affine = AffineCorrection{}
		m.driftX, m.driftY = dx, dy
		return true
	}

	m.hasAffine = true
	m.affine = candidate
	m.driftX, m.driftY = 0, 0
	return false
}

func weightedMeanBias(samples []ValidationSample) (dx, dy float64) {
	var sumW, sumX, sumY float64
	for _, s := range samples {
		w := s.Weight
		if w <= 0 {
			w = 1
		}
		sumW += w
		sumX += w * (s.TrueX - s.PredX)
		sumY += w * (s.TrueY - s.PredY)
	}
	if sumW == 0 {
		return 0, 0
	}
	return sumX / sumW, sumY / sumW
}

// ApplyDriftUpdate exponentially folds a new known-true anchor into the
// running drift offset: drift <- 0.3*(true-pred) + 0.7*drift.
func (m *Model) ApplyDriftUpdate(trueX, trueY, predX, predY float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.driftX = 0.3*(trueX-predX) + 0.7*m.driftX
	m.driftY = 0.3*(trueY-predY) + 0.7*m.driftY
}
