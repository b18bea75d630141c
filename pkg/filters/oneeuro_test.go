package filters

import (
	"math"
	"testing"
)

func TestOneEuroFirstCallIsIdentity(t *testing.T) {
	f := NewOneEuroFilter(1.0, 0.007, 1.0)
	got := f.Filter(42.0, 0.0)
	if got != 42.0 {
		t.Errorf("expected first call to pass through unchanged, got %f", got)
	}
}

func TestOneEuroSmoothsNoisySignal(t *testing.T) {
	f := NewOneEuroFilter(1.0, 0.007, 1.0)
	f.Filter(0.0, 0.0)

	// A single large jump, sampled fast, should be damped relative to
	// the raw jump — smoothing must be doing something.
	got := f.Filter(1.0, 1.0/60.0)
	if got <= 0 || got >= 1.0 {
		t.Errorf("expected smoothed value strictly between 0 and 1, got %f", got)
	}
}

func TestOneEuroResetBehavesLikeFreshFilter(t *testing.T) {
	f := NewOneEuroFilter(1.0, 0.007, 1.0)
	f.Filter(10.0, 0.0)
	f.Filter(20.0, 1.0/60.0)

	f.Reset()
	got := f.Filter(5.0, 2.0)
	if got != 5.0 {
		t.Errorf("expected post-reset first call to be identity, got %f", got)
	}
}

func TestOneEuroHandlesNonPositiveDt(t *testing.T) {
	f := NewOneEuroFilter(1.0, 0.007, 1.0)
	f.Filter(1.0, 1.0)
	got := f.Filter(2.0, 1.0) // same timestamp as previous sample
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Errorf("expected finite output for non-positive dt, got %f", got)
	}
}

func TestSetDynamicParamsTakesEffect(t *testing.T) {
	f := NewOneEuroFilter(1.0, 0.007, 1.0)
	f.Filter(0.0, 0.0)
	f.SetDynamicParams(0.01, 0.0, 1.0)
	// With a very low min cutoff and zero beta, smoothing should be
	// strong: the output should move only a small fraction toward 100.
	got := f.Filter(100.0, 1.0/60.0)
	if got > 20 {
		t.Errorf("expected heavy smoothing to keep output well below the raw jump, got %f", got)
	}
}

func TestPoint2DFilter(t *testing.T) {
	p := NewPoint2DFilter(1.0, 0.007, 1.0)
	x, y := p.Filter(1.0, 2.0, 0.0)
	if x != 1.0 || y != 2.0 {
		t.Errorf("expected first call identity, got (%f,%f)", x, y)
	}

	p.Reset()
	x, y = p.Filter(3.0, 4.0, 1.0)
	if x != 3.0 || y != 4.0 {
		t.Errorf("expected identity after reset, got (%f,%f)", x, y)
	}
}
