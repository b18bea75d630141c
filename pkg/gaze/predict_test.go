package gaze

import (
	"testing"

	"github.com/gazetrack/gazetrack/pkg/features"
)

func TestPredictRefusesBlink(t *testing.T) {
	const screenW, screenH = 1000.0, 1000.0
	m := New(testConfig())
	if _, err := m.Train(synthCalibrationSet(screenW, screenH), screenW, screenH); err != nil {
		t.Fatalf("training failed: %v", err)
	}
	m.SetScreenSize(screenW, screenH)

	f := features.EyeFeatures{
		LeftIrisRelXY: features.Vec2{X: 0.5, Y: 0.5}, RightIrisRelXY: features.Vec2{X: 0.5, Y: 0.5},
		EyeOpenness: 0.05, Confidence: 1.0,
	}
	if _, ok := m.Predict(f, 0); ok {
		t.Error("expected blink (low EAR) to refuse prediction")
	}
}

func TestPredictRefusesLowConfidence(t *testing.T) {
	const screenW, screenH = 1000.0, 1000.0
	m := New(testConfig())
	if _, err := m.Train(synthCalibrationSet(screenW, screenH), screenW, screenH); err != nil {
		t.Fatalf("training failed: %v", err)
	}
	m.SetScreenSize(screenW, screenH)

	f := features.EyeFeatures{
		LeftIrisRelXY: features.Vec2{X: 0.5, Y: 0.5}, RightIrisRelXY: features.Vec2{X: 0.5, Y: 0.5},
		EyeOpenness: 0.3, Confidence: 0.1,
	}
	if _, ok := m.Predict(f, 0); ok {
		t.Error("expected low confidence to refuse prediction")
	}
}

func TestDynamicOneEuroParamsScalesWithVelocity(t *testing.T) {
	minC, beta := dynamicOneEuroParams(0)
	if minC != minCutoffAtRest || beta != betaAtRest {
		t.Errorf("expected rest params at v=0, got (%f,%f)", minC, beta)
	}
	minC, beta = dynamicOneEuroParams(dynamicVelocityCeiling * 2)
	if minC != minCutoffAtFast || beta != betaAtFast {
		t.Errorf("expected capped fast params beyond ceiling, got (%f,%f)", minC, beta)
	}
}

func TestPassesVelocityGateFirstPointAlwaysAccepted(t *testing.T) {
	m := New(testConfig())
	m.SetScreenSize(1000, 1000)
	if !m.passesVelocityGate(500, 500, 0) {
		t.Error("expected the first point to always pass the velocity gate")
	}
}
