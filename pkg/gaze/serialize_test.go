package gaze

import (
	"math"
	"testing"
)

func TestExportUntrainedModelHasNullWeights(t *testing.T) {
	m := New(testConfig())
	doc := m.ExportModel()
	if doc.WeightsX != nil || doc.WeightsY != nil {
		t.Error("expected untrained model to export null weight arrays")
	}

	fresh := New(testConfig())
	if err := fresh.ImportModel(doc); err != ErrModelImportInvalid {
		t.Errorf("expected ErrModelImportInvalid importing an untrained document, got %v", err)
	}
}

func TestRoundTripPredictsIdentically(t *testing.T) {
	const screenW, screenH = 1000.0, 1000.0
	samples := synthCalibrationSet(screenW, screenH)

	m := New(testConfig())
	if _, err := m.Train(samples, screenW, screenH); err != nil {
		t.Fatalf("training failed: %v", err)
	}
	m.SetScreenSize(screenW, screenH)

	doc := m.ExportModel()

	reloaded := New(testConfig())
	if err := reloaded.ImportModel(doc); err != nil {
		t.Fatalf("import failed: %v", err)
	}
	reloaded.SetScreenSize(screenW, screenH)

	f := samples[0].Features
	want, ok1 := m.Predict(f, 0)
	got, ok2 := reloaded.Predict(f, 0)

	if ok1 != ok2 {
		t.Fatalf("expected matching ok from both models, got %v vs %v", ok1, ok2)
	}
	if ok1 {
		if math.Abs(want.X-got.X) > 1e-9 || math.Abs(want.Y-got.Y) > 1e-9 {
			t.Errorf("expected bitwise-identical prediction, got %+v vs %+v", want, got)
		}
	}
}

func TestImportModelRejectsMismatchedNormalization(t *testing.T) {
	m := New(testConfig())
	doc := ModelDocument{
		WeightsX:     []float64{1, 2},
		WeightsY:     []float64{1, 2},
		FeatureMeans: []float64{0, 0},
		FeatureStds:  []float64{1},
	}
	if err := m.ImportModel(doc); err != ErrModelImportInvalid {
		t.Errorf("expected ErrModelImportInvalid for mismatched means/stds, got %v", err)
	}
}

func TestImportModelPreservesAffineAndRefPose(t *testing.T) {
	m := New(testConfig())
	doc := ModelDocument{
		WeightsX:     []float64{1, 0},
		WeightsY:     []float64{0, 1},
		FeatureMeans: []float64{0},
		FeatureStds:  []float64{1},
		RefPose:      &RefPoseDoc{Yaw: 0.1, Pitch: 0.2, Roll: 0.3, FaceScale: 0.15},
		AffineCorrection: &AffineDoc{
			A11: 1, A12: 0, Tx: 10,
			A21: 0, A22: 1, Ty: 20,
		},
	}
	if err := m.ImportModel(doc); err != nil {
		t.Fatalf("unexpected import error: %v", err)
	}
	if !m.hasAffine {
		t.Error("expected affine correction to be restored")
	}
	if m.refPose.Yaw != 0.1 {
		t.Errorf("expected reference pose yaw 0.1, got %f", m.refPose.Yaw)
	}
}
