// Package filters implements the two gaze-point smoothing strategies
// gazetrack supports: a One-Euro filter (the default) and an optional
// constant-velocity 2D Kalman filter, both grounded on the teacher's
// scalar KalmanFilter/mutex-guarded update pattern (pkg/miface/kalman.go)
// but generalised to the 1-euro algorithm and a proper state-space model
// respectively.
package filters

import (
	"math"
	"sync"
)

// OneEuroFilter is a low-jitter, low-lag adaptive filter: it smooths
// aggressively when the signal is slow-moving (reducing hand/eye
// tremor jitter) and relaxes smoothing as speed increases (preserving
// responsiveness during saccades). One scalar filter is needed per
// smoothed dimension.
type OneEuroFilter struct {
	mu sync.Mutex

	minCutoff float64
	beta      float64
	dCutoff   float64

	initialized bool
	xPrev       float64
	dxPrev      float64
	tPrev       float64
}

// NewOneEuroFilter creates a filter with the given tuning parameters.
// minCutoff sets the baseline smoothing at zero speed; beta scales how
// much speed relaxes that smoothing; dCutoff is the cutoff applied to
// the derivative estimate itself.
func NewOneEuroFilter(minCutoff, beta, dCutoff float64) *OneEuroFilter {
	return &OneEuroFilter{minCutoff: minCutoff, beta: beta, dCutoff: dCutoff}
}

// SetDynamicParams updates the filter's tuning parameters in place,
// letting a caller (the gaze model, from recent gaze velocity) tighten
// or loosen smoothing
// without discarding the filter's running state.
func (f *OneEuroFilter) SetDynamicParams(minCutoff, beta, dCutoff float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.minCutoff = minCutoff
	f.beta = beta
	f.dCutoff = dCutoff
}

// Filter applies the filter to a new sample x observed at time t
// (seconds). The first call is treated as identity: it seeds the
// filter's state and returns x unchanged, since there is no prior
// sample to derive a velocity from.
func (f *OneEuroFilter) Filter(x, t float64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.initialized {
		f.initialized = true
		f.xPrev = x
		f.dxPrev = 0
		f.tPrev = t
		return x
	}

	dt := t - f.tPrev
	if dt <= 0 {
		dt = 1.0 / 60.0
	}

	dx := (x - f.xPrev) / dt
	edx := lowPass(dx, f.dxPrev, alpha(f.dCutoff, dt))

	cutoff := f.minCutoff + f.beta*math.Abs(edx)
	ex := lowPass(x, f.xPrev, alpha(cutoff, dt))

	f.xPrev = ex
	f.dxPrev = edx
	f.tPrev = t

	return ex
}

// Reset clears the filter's running state; the next Filter call behaves
// like the first call on a fresh filter.
func (f *OneEuroFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initialized = false
	f.xPrev = 0
	f.dxPrev = 0
	f.tPrev = 0
}

// alpha computes the exponential smoothing factor for a given cutoff
// frequency and sample interval, per the 1€ filter paper.
func alpha(cutoff, dt float64) float64 {
	tau := 1.0 / (2 * math.Pi * cutoff)
	return 1.0 / (1.0 + tau/dt)
}

func lowPass(x, prev, a float64) float64 {
	return a*x + (1-a)*prev
}

// Point2DFilter bundles two OneEuroFilters to smooth a 2D gaze point.
type Point2DFilter struct {
	x, y *OneEuroFilter
}

// NewPoint2DFilter creates a 2D one-euro filter pair with shared tuning.
func NewPoint2DFilter(minCutoff, beta, dCutoff float64) *Point2DFilter {
	return &Point2DFilter{
		x: NewOneEuroFilter(minCutoff, beta, dCutoff),
		y: NewOneEuroFilter(minCutoff, beta, dCutoff),
	}
}

// Filter smooths (x, y) observed at time t (seconds).
func (p *Point2DFilter) Filter(x, y, t float64) (fx, fy float64) {
	return p.x.Filter(x, t), p.y.Filter(y, t)
}

// SetDynamicParams re-tunes both underlying filters.
func (p *Point2DFilter) SetDynamicParams(minCutoff, beta, dCutoff float64) {
	p.x.SetDynamicParams(minCutoff, beta, dCutoff)
	p.y.SetDynamicParams(minCutoff, beta, dCutoff)
}

// Reset clears both underlying filters' state.
func (p *Point2DFilter) Reset() {
	p.x.Reset()
	p.y.Reset()
}
