// Package features turns a raw landmark frame into a tilt-invariant,
// confidence-scored EyeFeatures vector. This is the leaf of the
// pipeline (spec.md §4.1): every downstream component — calibration,
// the gaze regressor, fixation detection — consumes EyeFeatures only
// and never touches a landmarks.Frame directly.
package features

import (
	"math"

	"github.com/gazetrack/gazetrack/pkg/landmarks"
)

// Vec2 is a plain 2D vector/point used throughout the feature and gaze
// layers once landmark indices have been resolved into coordinates.
type Vec2 struct {
	X, Y float64
}

func (a Vec2) sub(b Vec2) Vec2    { return Vec2{a.X - b.X, a.Y - b.Y} }
func (a Vec2) add(b Vec2) Vec2    { return Vec2{a.X + b.X, a.Y + b.Y} }
func (a Vec2) dot(b Vec2) float64 { return a.X*b.X + a.Y*b.Y }
func (a Vec2) norm2() float64     { return a.X*a.X + a.Y*a.Y }
func (a Vec2) dist(b Vec2) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// HeadPose is the estimated head orientation in radians.
type HeadPose struct {
	Yaw, Pitch, Roll float64
}

// EyeFeatures is the pure-value output of feature extraction for a
// single frame (spec.md §3).
type EyeFeatures struct {
	LeftIrisXY, RightIrisXY       Vec2
	LeftIrisRelXY, RightIrisRelXY Vec2
	PupilRadius                   float64
	EyeOpenness                   float64
	LeftEAR, RightEAR             float64
	HeadPose                      HeadPose
	FaceScale                     float64
	LeftEyeWidth, RightEyeWidth   float64
	Confidence                    float64
}

// Options configures extraction-time adjustments that come from a
// pre-calibration manual alignment step rather than the model itself.
type Options struct {
	// IrisOffset is added to both iris centres in normalised space,
	// before the tilt-invariant projection. Zero value disables it.
	IrisOffset Vec2
}

const (
	relXMin, relXMax = -0.15, 1.15
	relYMin, relYMax = -0.10, 1.10

	degenerateEyeAxis = 0.001

	eyeOpennessFloor = 0.15
	faceScaleFloor   = 0.08

	irisRelSafeMax = 1.3
	irisRelSafeMin = -0.3
	irisRelRampSpan = 0.15
)

// Zero returns the zero-confidence features produced when no face is
// present: every field zero except the relative iris coordinates,
// which sit at the neutral centre (0.5, 0.5) per spec.md §4.1.
func Zero() EyeFeatures {
	return EyeFeatures{
		LeftIrisRelXY:  Vec2{0.5, 0.5},
		RightIrisRelXY: Vec2{0.5, 0.5},
	}
}

// Extract computes EyeFeatures from a landmark frame. It never returns
// an error: an unusable frame degrades to Zero(), per spec.md's "fails"
// clause for this component.
func Extract(f landmarks.Frame, opts Options) EyeFeatures {
	if !f.Usable() {
		return Zero()
	}

	pt := func(i int) Vec2 {
		p, _ := f.At(i)
		return Vec2{p.X, p.Y}
	}
	z := func(i int) (float64, bool) {
		p, ok := f.At(i)
		if !ok || !p.HasZ {
			return 0, false
		}
		return p.Z, true
	}

	leftIris := irisCentroid(f, landmarks.IdxLeftIrisLo, landmarks.IdxLeftIrisHi, opts.IrisOffset)
	rightIris := irisCentroid(f, landmarks.IdxRightIrisLo, landmarks.IdxRightIrisHi, opts.IrisOffset)

	leftRelX, leftRelY := relativeIrisPosition(
		pt(landmarks.IdxLeftInner), pt(landmarks.IdxLeftOuter),
		pt(landmarks.IdxLeftTopMid), pt(landmarks.IdxLeftBotMid), leftIris,
	)
	rightRelX, rightRelY := relativeIrisPosition(
		pt(landmarks.IdxRightInner), pt(landmarks.IdxRightOuter),
		pt(landmarks.IdxRightTopMid), pt(landmarks.IdxRightBotMid), rightIris,
	)

	leftEAR := eyeAspectRatio(pt(landmarks.IdxLeftEAR1), pt(landmarks.IdxLeftEAR2), pt(landmarks.IdxLeftEAR3),
		pt(landmarks.IdxLeftEAR4), pt(landmarks.IdxLeftEAR5), pt(landmarks.IdxLeftEAR6))
	rightEAR := eyeAspectRatio(pt(landmarks.IdxRightEAR1), pt(landmarks.IdxRightEAR2), pt(landmarks.IdxRightEAR3),
		pt(landmarks.IdxRightEAR4), pt(landmarks.IdxRightEAR5), pt(landmarks.IdxRightEAR6))
	openness := (leftEAR + rightEAR) / 2

	leftEyeWidth := pt(landmarks.IdxLeftOuter).dist(pt(landmarks.IdxLeftInner))
	rightEyeWidth := pt(landmarks.IdxRightOuter).dist(pt(landmarks.IdxRightInner))

	nose := pt(landmarks.IdxNoseTip)
	chin := pt(landmarks.IdxChin)
	forehead := pt(landmarks.IdxForehead)
	leftEyeOuter := pt(landmarks.IdxLeftOuter)
	rightEyeOuter := pt(landmarks.IdxRightOuter)

	pose := estimateHeadPose(nose, chin, forehead, leftEyeOuter, rightEyeOuter, z)

	faceScale := leftEyeOuter.dist(rightEyeOuter)
	pupilRadius := pupilRingRadius(f, landmarks.IdxLeftIrisLo, landmarks.IdxLeftIrisHi, leftIris, opts.IrisOffset,
		landmarks.IdxRightIrisLo, landmarks.IdxRightIrisHi, rightIris)

	feat := EyeFeatures{
		LeftIrisXY:     leftIris,
		RightIrisXY:    rightIris,
		LeftIrisRelXY:  Vec2{clip(leftRelX, relXMin, relXMax), clip(leftRelY, relYMin, relYMax)},
		RightIrisRelXY: Vec2{clip(rightRelX, relXMin, relXMax), clip(rightRelY, relYMin, relYMax)},
		PupilRadius:    pupilRadius,
		EyeOpenness:    openness,
		LeftEAR:        leftEAR,
		RightEAR:       rightEAR,
		HeadPose:       pose,
		FaceScale:      faceScale,
		LeftEyeWidth:   leftEyeWidth,
		RightEyeWidth:  rightEyeWidth,
	}
	feat.Confidence = confidence(feat, leftIris, rightIris)
	return feat
}

// irisCentroid averages the five iris landmarks for one eye (ring
// landmarks plus centre) and applies the manual alignment offset.
func irisCentroid(f landmarks.Frame, lo, hi int, offset Vec2) Vec2 {
	var sum Vec2
	n := 0
	for i := lo; i <= hi; i++ {
		p, ok := f.At(i)
		if !ok {
			continue
		}
		sum = sum.add(Vec2{p.X, p.Y})
		n++
	}
	if n == 0 {
		return Vec2{}
	}
	c := Vec2{sum.X / float64(n), sum.Y / float64(n)}
	return c.add(offset)
}

// pupilRingRadius estimates pupil radius as the mean distance from each
// iris centre to its surrounding ring landmarks, averaged across eyes.
func pupilRingRadius(f landmarks.Frame, leftLo, leftHi int, leftCtr Vec2, offset Vec2, rightLo, rightHi int, rightCtr Vec2) float64 {
	ringMean := func(lo, hi int, ctr Vec2) float64 {
		var sum float64
		n := 0
		for i := lo + 1; i <= hi; i++ { // skip the centre landmark itself
			p, ok := f.At(i)
			if !ok {
				continue
			}
			sum += ctr.dist(Vec2{p.X, p.Y}.add(offset))
			n++
		}
		if n == 0 {
			return 0
		}
		return sum / float64(n)
	}
	l := ringMean(leftLo, leftHi, leftCtr)
	r := ringMean(rightLo, rightHi, rightCtr)
	return (l + r) / 2
}

// relativeIrisPosition computes the tilt-invariant position of the iris
// within the eye contour (spec.md §4.1). relX is the dot-product
// coordinate of the iris along the eye axis; relY is computed in the
// frame rotated to that axis, as the fraction of the way from the top
// lid to the bottom lid.
func relativeIrisPosition(inner, outer, topMid, botMid, iris Vec2) (relX, relY float64) {
	axis := outer.sub(inner)
	axisLen2 := axis.norm2()
	if math.Sqrt(axisLen2) < degenerateEyeAxis {
		return 0.5, 0.5
	}

	relX = iris.sub(inner).dot(axis) / axisLen2

	// Perpendicular to the eye axis, used as the "vertical" axis of the
	// rotated frame.
	perp := Vec2{-axis.Y, axis.X}
	perpLen := math.Sqrt(perp.norm2())
	if perpLen < degenerateEyeAxis {
		return relX, 0.5
	}
	proj := func(v Vec2) float64 { return v.dot(perp) / perpLen }

	topPerp := proj(topMid.sub(inner))
	botPerp := proj(botMid.sub(inner))
	irisPerp := proj(iris.sub(inner))

	denom := botPerp - topPerp
	if math.Abs(denom) < 1e-9 {
		return relX, 0.5
	}
	relY = (irisPerp - topPerp) / denom
	return relX, relY
}

// eyeAspectRatio computes the standard six-point EAR.
func eyeAspectRatio(p1, p2, p3, p4, p5, p6 Vec2) float64 {
	denom := 2 * p1.dist(p4)
	if denom < 1e-9 {
		return 0
	}
	return (p2.dist(p6) + p3.dist(p5)) / denom
}

// estimateHeadPose blends depth-aware and geometric estimators for yaw
// and pitch (spec.md §4.1), falling back to geometry-only estimates
// when no z-depth is available.
func estimateHeadPose(nose, chin, forehead, leftEyeOuter, rightEyeOuter Vec2, z func(int) (float64, bool)) HeadPose {
	dEyes := rightEyeOuter.sub(leftEyeOuter)
	eyeDistXY := math.Sqrt(dEyes.norm2())
	midEyes := Vec2{(leftEyeOuter.X + rightEyeOuter.X) / 2, (leftEyeOuter.Y + rightEyeOuter.Y) / 2}

	noseOffsetYaw := nose.X - midEyes.X
	yawNoseEstimate := 0.0
	if eyeDistXY > 1e-6 {
		yawNoseEstimate = math.Atan2(noseOffsetYaw, eyeDistXY)
	}

	yaw := yawNoseEstimate
	leftZ, lok := z(landmarks.IdxLeftOuter)
	rightZ, rok := z(landmarks.IdxRightOuter)
	if lok && rok && eyeDistXY > 1e-6 {
		yawDepthEstimate := math.Atan2(rightZ-leftZ, eyeDistXY)
		if math.Abs(yawDepthEstimate-yawNoseEstimate) < 0.2 {
			yaw = 0.5 * (yawDepthEstimate + yawNoseEstimate)
		} else {
			yaw = yawNoseEstimate
		}
	}

	faceHeight := math.Abs(forehead.Y - chin.Y)
	noseOffsetPitch := nose.Y - midEyes.Y
	pitchGeomEstimate := 0.0
	if faceHeight > 1e-6 {
		pitchGeomEstimate = math.Atan2(noseOffsetPitch, faceHeight)
	}

	pitch := pitchGeomEstimate
	faceMidZ, fzok := z(landmarks.IdxForehead)
	noseZ, nzok := z(landmarks.IdxNoseTip)
	if fzok && nzok && faceHeight > 1e-6 {
		pitchDepthEstimate := math.Atan2(noseZ-faceMidZ, faceHeight)
		pitch = 0.5 * (pitchDepthEstimate + pitchGeomEstimate)
	}

	roll := math.Atan2(dEyes.Y, dEyes.X)

	return HeadPose{Yaw: yaw, Pitch: pitch, Roll: roll}
}

// confidence scores how trustworthy this frame's features are, per the
// cascaded penalties of spec.md §4.1.
func confidence(f EyeFeatures, leftIris, rightIris Vec2) float64 {
	if leftIris == (Vec2{}) || rightIris == (Vec2{}) {
		return 0
	}

	c := 1.0
	if f.EyeOpenness < eyeOpennessFloor {
		c *= f.EyeOpenness / eyeOpennessFloor
	}
	if f.FaceScale < faceScaleFloor {
		c *= f.FaceScale / faceScaleFloor
	}

	c *= rampPenalty(f.LeftIrisRelXY.X) * rampPenalty(f.LeftIrisRelXY.Y)
	c *= rampPenalty(f.RightIrisRelXY.X) * rampPenalty(f.RightIrisRelXY.Y)

	tolerance := 0.3 + math.Min(1.5*math.Abs(f.HeadPose.Yaw), 0.25)
	asym := math.Abs(f.LeftIrisRelXY.X-f.RightIrisRelXY.X) + math.Abs(f.LeftIrisRelXY.Y-f.RightIrisRelXY.Y)
	if asym > tolerance {
		over := asym - tolerance
		c *= math.Max(0, 1-over/irisRelRampSpan)
	}

	return clip(c, 0, 1)
}

// rampPenalty ramps a multiplier down to zero as v exits the "safe"
// iris-relative band [-0.3, 1.3], per spec.md §4.1.
func rampPenalty(v float64) float64 {
	if v >= irisRelSafeMin && v <= irisRelSafeMax {
		return 1
	}
	var over float64
	if v < irisRelSafeMin {
		over = irisRelSafeMin - v
	} else {
		over = v - irisRelSafeMax
	}
	return math.Max(0, 1-over/irisRelRampSpan)
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
