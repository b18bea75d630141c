// Package calibration drives the calibration/validation state machine:
// it generates the on-screen target grids, gates per-frame samples for
// stability and jitter, retries weak points, trains the GazeModel, and
// fits the post-training affine correction from a validation pass.
package calibration

// Point is one on-screen calibration or validation target.
type Point struct {
	ID   int
	X, Y float64
	// RelX, RelY are X/Y expressed as a fraction of screen width/height.
	RelX, RelY float64
}

// CalibrationGrid returns the 7x7 serpentine-ordered calibration grid
// inset by padding pixels on every side (spec §4.5).
func CalibrationGrid(screenW, screenH float64, padding float64) []Point {
	const cols, rows = 7, 7
	return serpentineGrid(screenW, screenH, padding, cols, rows)
}

// ValidationGrid returns the 9-point validation grid: centre, four
// corners at relative 0.2/0.8, and four edge midpoints, inset by
// padding pixels.
func ValidationGrid(screenW, screenH float64, padding float64) []Point {
	relPositions := [][2]float64{
		{0.5, 0.5}, // centre
		{0.2, 0.2}, {0.8, 0.2}, {0.2, 0.8}, {0.8, 0.8}, // corners
		{0.5, 0.2}, {0.5, 0.8}, {0.2, 0.5}, {0.8, 0.5}, // edge mids
	}

	innerW := screenW - 2*padding
	innerH := screenH - 2*padding

	points := make([]Point, len(relPositions))
	for i, rel := range relPositions {
		points[i] = Point{
			ID:   i,
			X:    padding + rel[0]*innerW,
			Y:    padding + rel[1]*innerH,
			RelX: rel[0],
			RelY: rel[1],
		}
	}
	return points
}

// serpentineGrid lays out cols x rows points in [padding, W-padding] x
// [padding, H-padding], alternating left-to-right/right-to-left per
// row so consecutive targets are always adjacent on screen.
func serpentineGrid(screenW, screenH, padding float64, cols, rows int) []Point {
	innerW := screenW - 2*padding
	innerH := screenH - 2*padding

	points := make([]Point, 0, cols*rows)
	id := 0
	for row := 0; row < rows; row++ {
		relY := 0.0
		if rows > 1 {
			relY = float64(row) / float64(rows-1)
		}
		colOrder := make([]int, cols)
		for c := range colOrder {
			colOrder[c] = c
		}
		if row%2 == 1 {
			for l, r := 0, len(colOrder)-1; l < r; l, r = l+1, r-1 {
				colOrder[l], colOrder[r] = colOrder[r], colOrder[l]
			}
		}

		for _, col := range colOrder {
			relX := 0.0
			if cols > 1 {
				relX = float64(col) / float64(cols-1)
			}
			points = append(points, Point{
				ID:   id,
				X:    padding + relX*innerW,
				Y:    padding + relY*innerH,
				RelX: relX,
				RelY: relY,
			})
			id++
		}
	}
	return points
}
