package filters

import (
	"sync"

	"gonum.org/v1/gonum/mat"
)

// KalmanFilter2D is an optional constant-velocity 2D Kalman filter for
// gaze-point smoothing, offered as an alternative to the default
// OneEuroFilter (spec.md §4.4). Its state is [x, y, vx, vy]; unlike the
// teacher's independent per-axis scalar filters (pkg/miface/kalman.go),
// position and velocity are tracked jointly per axis pair so the
// predict step can extrapolate through brief tracking gaps.
type KalmanFilter2D struct {
	mu sync.Mutex

	state *mat.VecDense // [x, y, vx, vy]
	cov   *mat.Dense    // 4x4 estimate covariance

	processNoise     float64
	measurementNoise float64

	initialized bool
	tPrev       float64
}

// NewKalmanFilter2D creates a filter with the given process and
// measurement noise variances.
func NewKalmanFilter2D(processNoise, measurementNoise float64) *KalmanFilter2D {
	return &KalmanFilter2D{
		state:            mat.NewVecDense(4, nil),
		cov:              identity4(),
		processNoise:     processNoise,
		measurementNoise: measurementNoise,
	}
}

func identity4() *mat.Dense {
	d := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		d.Set(i, i, 1)
	}
	return d
}

// Update feeds a new (x, y) measurement observed at time t (seconds)
// and returns the filtered position. The first call seeds the state
// at zero velocity and returns the raw measurement.
func (k *KalmanFilter2D) Update(x, y, t float64) (fx, fy float64) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.initialized {
		k.state.SetVec(0, x)
		k.state.SetVec(1, y)
		k.state.SetVec(2, 0)
		k.state.SetVec(3, 0)
		k.initialized = true
		k.tPrev = t
		return x, y
	}

	dt := t - k.tPrev
	if dt <= 0 {
		dt = 1.0 / 60.0
	}
	k.tPrev = t

	// Constant-velocity transition: position += velocity*dt.
	f := identity4()
	f.Set(0, 2, dt)
	f.Set(1, 3, dt)

	var predicted mat.VecDense
	predicted.MulVec(f, k.state)

	q := processNoiseMatrix(dt, k.processNoise)

	var fp mat.Dense
	fp.Mul(f, k.cov)
	var predictedCov mat.Dense
	predictedCov.Mul(&fp, f.T())
	predictedCov.Add(&predictedCov, q)

	// Measurement matrix H observes position only.
	h := mat.NewDense(2, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
	})
	r := mat.NewDense(2, 2, []float64{
		k.measurementNoise, 0,
		0, k.measurementNoise,
	})

	var hp mat.Dense
	hp.Mul(h, &predictedCov)
	var s mat.Dense
	s.Mul(&hp, h.T())
	s.Add(&s, r)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		// Singular innovation covariance: fall back to the prediction.
		k.state = &predicted
		k.cov = &predictedCov
		return predicted.AtVec(0), predicted.AtVec(1)
	}

	var pht mat.Dense
	pht.Mul(&predictedCov, h.T())
	var gain mat.Dense
	gain.Mul(&pht, &sInv)

	measurement := mat.NewVecDense(2, []float64{x, y})
	var predictedMeasurement mat.VecDense
	predictedMeasurement.MulVec(h, &predicted)

	innovation := mat.NewVecDense(2, nil)
	innovation.SubVec(measurement, &predictedMeasurement)

	var correction mat.VecDense
	correction.MulVec(&gain, innovation)

	var updated mat.VecDense
	updated.AddVec(&predicted, &correction)

	var gh mat.Dense
	gh.Mul(&gain, h)
	ident := identity4()
	ident.Sub(ident, &gh)
	var updatedCov mat.Dense
	updatedCov.Mul(ident, &predictedCov)

	k.state = &updated
	k.cov = &updatedCov

	return k.state.AtVec(0), k.state.AtVec(1)
}

// processNoiseMatrix builds a diagonal process-noise covariance scaled
// by dt: diag(q, q, 10q, 10q). Velocity carries 10x the position
// terms' noise since the constant-velocity assumption drifts faster
// than the position estimate itself between measurements.
func processNoiseMatrix(dt, q float64) *mat.Dense {
	d := mat.NewDense(4, 4, nil)
	d.Set(0, 0, q*dt)
	d.Set(1, 1, q*dt)
	d.Set(2, 2, 10*q*dt)
	d.Set(3, 3, 10*q*dt)
	return d
}

// Reset clears the filter's state; the next Update call seeds it fresh.
func (k *KalmanFilter2D) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.initialized = false
	k.state = mat.NewVecDense(4, nil)
	k.cov = identity4()
	k.tPrev = 0
}

// Velocity returns the current estimated velocity (px/s in each axis).
func (k *KalmanFilter2D) Velocity() (vx, vy float64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state.AtVec(2), k.state.AtVec(3)
}
