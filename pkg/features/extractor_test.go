package features

import (
	"math"
	"testing"

	"github.com/gazetrack/gazetrack/pkg/landmarks"
)

func makeUsableFrame() landmarks.Frame {
	pts := make([]landmarks.Point, landmarks.RequiredIndexCount)

	set := func(i int, x, y float64) {
		pts[i] = landmarks.Point{X: x, Y: y}
	}

	set(landmarks.IdxNoseTip, 0.50, 0.55)
	set(landmarks.IdxChin, 0.50, 0.75)
	set(landmarks.IdxForehead, 0.50, 0.30)

	set(landmarks.IdxLeftOuter, 0.35, 0.45)
	set(landmarks.IdxLeftInner, 0.45, 0.45)
	set(landmarks.IdxLeftTopMid, 0.40, 0.43)
	set(landmarks.IdxLeftBotMid, 0.40, 0.47)
	set(landmarks.IdxLeftEAR2, 0.38, 0.435)
	set(landmarks.IdxLeftEAR3, 0.42, 0.435)
	set(landmarks.IdxLeftEAR5, 0.42, 0.465)
	set(landmarks.IdxLeftEAR6, 0.38, 0.465)

	set(landmarks.IdxRightOuter, 0.65, 0.45)
	set(landmarks.IdxRightInner, 0.55, 0.45)
	set(landmarks.IdxRightTopMid, 0.60, 0.43)
	set(landmarks.IdxRightBotMid, 0.60, 0.47)
	set(landmarks.IdxRightEAR2, 0.62, 0.435)
	set(landmarks.IdxRightEAR3, 0.58, 0.435)
	set(landmarks.IdxRightEAR5, 0.58, 0.465)
	set(landmarks.IdxRightEAR6, 0.62, 0.465)

	for i := landmarks.IdxLeftIrisLo; i <= landmarks.IdxLeftIrisHi; i++ {
		set(i, 0.40, 0.45)
	}
	for i := landmarks.IdxRightIrisLo; i <= landmarks.IdxRightIrisHi; i++ {
		set(i, 0.60, 0.45)
	}

	return landmarks.Frame{Points: pts, FacePresent: true, TimestampMS: 1000}
}

func TestExtractNoFaceReturnsZero(t *testing.T) {
	f := landmarks.Frame{FacePresent: false}
	feat := Extract(f, Options{})

	if feat.Confidence != 0 {
		t.Errorf("expected zero confidence for absent face, got %f", feat.Confidence)
	}
	if feat.LeftIrisRelXY != (Vec2{0.5, 0.5}) {
		t.Errorf("expected neutral left iris relative position, got %+v", feat.LeftIrisRelXY)
	}
	if feat.RightIrisRelXY != (Vec2{0.5, 0.5}) {
		t.Errorf("expected neutral right iris relative position, got %+v", feat.RightIrisRelXY)
	}
}

func TestExtractUsableFrameHasBoundedConfidence(t *testing.T) {
	feat := Extract(makeUsableFrame(), Options{})

	if feat.Confidence < 0 || feat.Confidence > 1 {
		t.Errorf("expected confidence in [0,1], got %f", feat.Confidence)
	}
	if feat.Confidence == 0 {
		t.Error("expected a well-formed centred frame to have non-zero confidence")
	}
}

func TestExtractClipsRelativeIrisPosition(t *testing.T) {
	f := makeUsableFrame()
	// Push the left iris far outside the eye contour.
	for i := landmarks.IdxLeftIrisLo; i <= landmarks.IdxLeftIrisHi; i++ {
		f.Points[i] = landmarks.Point{X: 5.0, Y: 5.0}
	}

	feat := Extract(f, Options{})

	if feat.LeftIrisRelXY.X < relXMin || feat.LeftIrisRelXY.X > relXMax {
		t.Errorf("expected relX clipped to [%f,%f], got %f", relXMin, relXMax, feat.LeftIrisRelXY.X)
	}
	if feat.LeftIrisRelXY.Y < relYMin || feat.LeftIrisRelXY.Y > relYMax {
		t.Errorf("expected relY clipped to [%f,%f], got %f", relYMin, relYMax, feat.LeftIrisRelXY.Y)
	}
}

func TestExtractIrisOffsetShiftsCentroid(t *testing.T) {
	base := Extract(makeUsableFrame(), Options{})
	offset := Extract(makeUsableFrame(), Options{IrisOffset: Vec2{X: 0.01, Y: 0.01}})

	if offset.LeftIrisXY.X-base.LeftIrisXY.X < 1e-9 {
		t.Error("expected iris offset to shift the computed iris centroid")
	}
}

func TestLowEyeOpennessReducesConfidence(t *testing.T) {
	f := makeUsableFrame()
	// Collapse the left eyelid landmarks to near-zero EAR.
	f.Points[landmarks.IdxLeftEAR2] = landmarks.Point{X: 0.40, Y: 0.449}
	f.Points[landmarks.IdxLeftEAR3] = landmarks.Point{X: 0.40, Y: 0.449}
	f.Points[landmarks.IdxLeftEAR5] = landmarks.Point{X: 0.40, Y: 0.451}
	f.Points[landmarks.IdxLeftEAR6] = landmarks.Point{X: 0.40, Y: 0.451}
	f.Points[landmarks.IdxRightEAR2] = landmarks.Point{X: 0.60, Y: 0.449}
	f.Points[landmarks.IdxRightEAR3] = landmarks.Point{X: 0.60, Y: 0.449}
	f.Points[landmarks.IdxRightEAR5] = landmarks.Point{X: 0.60, Y: 0.451}
	f.Points[landmarks.IdxRightEAR6] = landmarks.Point{X: 0.60, Y: 0.451}

	feat := Extract(f, Options{})
	base := Extract(makeUsableFrame(), Options{})

	if feat.Confidence >= base.Confidence {
		t.Errorf("expected closed-eye confidence (%f) lower than baseline (%f)", feat.Confidence, base.Confidence)
	}
}

func TestRelativeIrisPositionDegenerateAxis(t *testing.T) {
	same := Vec2{0.5, 0.5}
	relX, relY := relativeIrisPosition(same, same, same, same, same)
	if relX != 0.5 || relY != 0.5 {
		t.Errorf("expected degenerate eye axis to return (0.5,0.5), got (%f,%f)", relX, relY)
	}
}

func TestEyeAspectRatioDegenerate(t *testing.T) {
	p := Vec2{0, 0}
	if got := eyeAspectRatio(p, p, p, p, p, p); got != 0 {
		t.Errorf("expected degenerate EAR of 0, got %f", got)
	}
}

func TestRampPenaltyWithinSafeBandIsUnity(t *testing.T) {
	for _, v := range []float64{-0.3, 0, 0.5, 1, 1.3} {
		if got := rampPenalty(v); math.Abs(got-1) > 1e-9 {
			t.Errorf("rampPenalty(%f) = %f, want 1", v, got)
		}
	}
}

func TestRampPenaltyDecaysOutsideSafeBand(t *testing.T) {
	inner := rampPenalty(1.3)
	outer := rampPenalty(1.3 + irisRelRampSpan/2)
	beyond := rampPenalty(1.3 + irisRelRampSpan*10)

	if !(inner > outer && outer > beyond) {
		t.Errorf("expected monotonically decreasing penalty, got inner=%f outer=%f beyond=%f", inner, outer, beyond)
	}
	if beyond != 0 {
		t.Errorf("expected penalty floored at 0 far outside band, got %f", beyond)
	}
}

func TestClip(t *testing.T) {
	if clip(5, 0, 1) != 1 {
		t.Error("expected clip to cap at hi")
	}
	if clip(-5, 0, 1) != 0 {
		t.Error("expected clip to floor at lo")
	}
	if clip(0.5, 0, 1) != 0.5 {
		t.Error("expected clip to pass through in-range values")
	}
}
