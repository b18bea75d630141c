package filters

import (
	"math"
	"testing"
)

func TestKalman2DFirstUpdateIsIdentity(t *testing.T) {
	k := NewKalmanFilter2D(0.1, 5.0)
	x, y := k.Update(100, 200, 0)
	if x != 100 || y != 200 {
		t.Errorf("expected first update to pass through, got (%f,%f)", x, y)
	}
}

func TestKalman2DConvergesTowardConstantSignal(t *testing.T) {
	k := NewKalmanFilter2D(0.1, 5.0)
	var x, y float64
	for i := 0; i < 30; i++ {
		x, y = k.Update(500, 400, float64(i)/60.0)
	}
	if math.Abs(x-500) > 5 || math.Abs(y-400) > 5 {
		t.Errorf("expected convergence near (500,400), got (%f,%f)", x, y)
	}
}

func TestKalman2DResetBehavesLikeFreshFilter(t *testing.T) {
	k := NewKalmanFilter2D(0.1, 5.0)
	k.Update(1, 1, 0)
	k.Update(2, 2, 1.0/60.0)

	k.Reset()
	x, y := k.Update(9, 9, 5.0)
	if x != 9 || y != 9 {
		t.Errorf("expected post-reset identity, got (%f,%f)", x, y)
	}
}

func TestKalman2DHandlesNonPositiveDt(t *testing.T) {
	k := NewKalmanFilter2D(0.1, 5.0)
	k.Update(0, 0, 1.0)
	x, y := k.Update(1, 1, 1.0)
	if math.IsNaN(x) || math.IsNaN(y) {
		t.Errorf("expected finite output for non-positive dt, got (%f,%f)", x, y)
	}
}

func TestKalman2DVelocityTracksMotion(t *testing.T) {
	k := NewKalmanFilter2D(1.0, 0.5)
	for i := 0; i < 60; i++ {
		t := float64(i) / 60.0
		k.Update(t*100, 0, t)
	}
	vx, _ := k.Velocity()
	if vx <= 0 {
		t.Errorf("expected positive x velocity tracking rightward motion, got %f", vx)
	}
}
