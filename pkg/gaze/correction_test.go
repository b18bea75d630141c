package gaze

import "testing"

func TestSetAffineCorrectionFewSamplesUsesTranslationOnly(t *testing.T) {
	m := New(testConfig())
	samples := []ValidationSample{
		{PredX: 100, PredY: 100, TrueX: 110, TrueY: 95, Weight: 1},
		{PredX: 200, PredY: 200, TrueX: 210, TrueY: 195, Weight: 1},
	}
	ill := m.SetAffineCorrection(samples)
	if ill {
		t.Error("expected translation-only path not to be reported ill-conditioned")
	}
	if m.hasAffine {
		t.Error("expected fewer than 3 samples to use translation offset, not affine")
	}
	if m.driftX == 0 && m.driftY == 0 {
		t.Error("expected non-zero drift offset from consistent bias")
	}
}

func TestSetAffineCorrectionWellConditioned(t *testing.T) {
	m := New(testConfig())
	// True = pred + (5,5): identity scale, small translation.
	var samples []ValidationSample
	for _, p := range [][2]float64{{0, 0}, {100, 0}, {0, 100}, {100, 100}, {50, 50}} {
		samples = append(samples, ValidationSample{
			PredX: p[0], PredY: p[1],
			TrueX: p[0] + 5, TrueY: p[1] + 5,
			Weight: 1,
		})
	}
	ill := m.SetAffineCorrection(samples)
	if ill {
		t.Error("expected a well-conditioned affine fit")
	}
	if !m.hasAffine {
		t.Error("expected affine correction to be stored")
	}
}

func TestApplyDriftUpdateExponentialBlend(t *testing.T) {
	m := New(testConfig())
	m.ApplyDriftUpdate(10, 10, 0, 0)
	if m.driftX != 3 || m.driftY != 3 {
		t.Errorf("expected first drift update to be 0.3*(10-0), got (%f,%f)", m.driftX, m.driftY)
	}
	m.ApplyDriftUpdate(10, 10, 0, 0)
	// drift = 0.3*10 + 0.7*3 = 3 + 2.1 = 5.1
	if m.driftX < 5.0 || m.driftX > 5.2 {
		t.Errorf("expected drift to blend toward target, got %f", m.driftX)
	}
}

func TestAffineMutualExclusionWithDrift(t *testing.T) {
	m := New(testConfig())
	var samples []ValidationSample
	for _, p := range [][2]float64{{0, 0}, {100, 0}, {0, 100}, {100, 100}, {50, 50}} {
		samples = append(samples, ValidationSample{PredX: p[0], PredY: p[1], TrueX: p[0] + 5, TrueY: p[1] + 5, Weight: 1})
	}
	m.SetAffineCorrection(samples)
	if m.hasAffine && (m.driftX != 0 || m.driftY != 0) {
		t.Error("expected affine and drift to be mutually exclusive")
	}
}
