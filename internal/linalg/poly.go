// Package linalg provides the small numerical building blocks the gaze
// regressor is built from: a selective polynomial feature expansion
// over plain slices, and a weighted ridge-regression solver expressed
// over gonum.org/v1/gonum/mat.
package linalg

// Input is the raw per-sample feature vector handed to Expand: the two
// relative iris positions plus the three head-pose angles, in a fixed
// order. Pupil radius and eye openness are deliberately excluded from
// the polynomial basis — they feed the confidence score, not the
// spatial mapping.
type Input struct {
	LeftIrisRelX, LeftIrisRelY   float64
	RightIrisRelX, RightIrisRelY float64
	Yaw, Pitch, Roll             float64
}

// BasisSize is the width of the expanded feature vector Expand produces:
// 1 bias + 7 linear (4 iris + 3 pose) + 10 iris quadratic + 12 iris*pose
// cross + 6 pose quadratic + 4 iris cubic.
const BasisSize = 1 + 7 + 10 + 12 + 6 + 4

// Expand computes the selective polynomial basis used by GazeModel:
// bias, linear terms, a full quadratic over the iris coordinates,
// iris-by-pose cross terms, a quadratic over pose, and a cubic on the
// iris coordinates alone. This gives the ridge regressor enough
// expressive power to fit screen-space gaze from eye position and head
// pose without the combinatorial blow-up of a full cubic over all
// seven inputs.
func Expand(in Input) []float64 {
	iris := [4]float64{in.LeftIrisRelX, in.LeftIrisRelY, in.RightIrisRelX, in.RightIrisRelY}
	pose := [3]float64{in.Yaw, in.Pitch, in.Roll}

	out := make([]float64, 0, BasisSize)

	// Bias.
	out = append(out, 1)

	// Linear terms.
	out = append(out, iris[0], iris[1], iris[2], iris[3], pose[0], pose[1], pose[2])

	// Full quadratic over the 4 iris terms (10 unique pairs incl. squares).
	for i := 0; i < 4; i++ {
		for j := i; j < 4; j++ {
			out = append(out, iris[i]*iris[j])
		}
	}

	// Iris x pose cross terms.
	for i := 0; i < 4; i++ {
		for j := 0; j < 3; j++ {
			out = append(out, iris[i]*pose[j])
		}
	}

	// Pose quadratic.
	out = append(out,
		pose[0]*pose[0], pose[1]*pose[1], pose[2]*pose[2],
		pose[0]*pose[1], pose[0]*pose[2], pose[1]*pose[2],
	)

	// Cubic on the iris terms alone.
	out = append(out, iris[0]*iris[0]*iris[0], iris[1]*iris[1]*iris[1], iris[2]*iris[2]*iris[2], iris[3]*iris[3]*iris[3])

	return out
}
