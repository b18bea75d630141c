package gaze

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/gazetrack/gazetrack/internal/linalg"
	"gonum.org/v1/gonum/mat"
)

// Training-time errors. InsufficientCalibrationData and
// NonFinitePrediction are the two structural training failures the
// core surfaces to the caller (everything else is a per-frame anomaly
// absorbed silently elsewhere).
var (
	ErrInsufficientCalibrationData = errors.New("gaze: insufficient calibration data after cleansing")
	ErrNonFinitePrediction         = errors.New("gaze: non-finite value encountered during training")
)

const (
	minRowsAfterNaNReject = 70
	residualDropFraction  = 0.12
)

var lambdaCandidates = []float64{0.0005, 0.001, 0.002, 0.004, 0.008, 0.015, 0.02, 0.05, 0.1}

// TrainResult summarises a successful fit in pixels.
type TrainResult struct {
	MeanError float64
	MaxError  float64
}

type trainingRow struct {
	raw        []float64
	targetX    float64
	targetY    float64
	targetID   int
	confidence float64
	distCenter float64
}

// Train fits wX/wY from calibration samples against a screen of the
// given dimensions, following spec's group-IQR purge, leave-one-group-
// out lambda search, and residual refit procedure.
func (m *Model) Train(samples []CalibrationSample, screenW, screenH float64) (TrainResult, error) {
	purged := purgeGroupOutliers(samples)
	if len(purged) < m.minCalibrationFloor() {
		return TrainResult{}, fmt.Errorf("%w: %d samples after purge, need %d", ErrInsufficientCalibrationData, len(purged), m.minCalibrationFloor())
	}

	refPose := meanReferencePose(purged)

	centerX, centerY := screenW/2, screenH/2
	diag := math.Hypot(screenW, screenH)

	rows := make([]trainingRow, 0, len(purged))
	for _, s := range purged {
		raw := rawVector(s.Features, refPose)
		if !allFinite(raw) {
			continue
		}
		rows = append(rows, trainingRow{
			raw:        raw,
			targetX:    s.TargetX,
			targetY:    s.TargetY,
			targetID:   s.TargetID,
			confidence: s.Features.Confidence,
			distCenter: math.Hypot(s.TargetX-centerX, s.TargetY-centerY),
		})
	}
	if len(rows) < minRowsAfterNaNReject {
		return TrainResult{}, fmt.Errorf("%w: only %d finite rows, need %d", ErrNonFinitePrediction, len(rows), minRowsAfterNaNReject)
	}

	rawRows := make([][]float64, len(rows))
	for i, r := range rows {
		rawRows[i] = r.raw
	}
	norm := linalg.FitNormalizer(rawRows)

	design, weights, targetX, targetY := buildDesignMatrix(rows, norm, diag)

	lambda := m.chooseLambda(rows, norm, diag)

	wX, err := linalg.Ridge(design, weights, targetX, lambda)
	if err != nil {
		return TrainResult{}, fmt.Errorf("gaze: fitting x weights: %w", err)
	}
	wY, err := linalg.Ridge(design, weights, targetY, lambda)
	if err != nil {
		return TrainResult{}, fmt.Errorf("gaze: fitting y weights: %w", err)
	}

	// Residual refit: drop the worst 12% by distance-normalised pixel
	// residual, capped so the calibration floor is preserved, then
	// refit once.
	keep := residualKeepMask(rows, design, wX, wY, diag, m.minCalibrationFloor())
	design2, weights2, targetX2, targetY2 := filterDesignMatrix(design, weights, targetX, targetY, keep)

	wX2, err := linalg.Ridge(design2, weights2, targetX2, lambda)
	if err != nil {
		return TrainResult{}, fmt.Errorf("gaze: refitting x weights: %w", err)
	}
	wY2, err := linalg.Ridge(design2, weights2, targetY2, lambda)
	if err != nil {
		return TrainResult{}, fmt.Errorf("gaze: refitting y weights: %w", err)
	}

	meanErr, maxErr := fitError(design2, targetX2, targetY2, wX2, wY2)

	m.mu.Lock()
	m.wX, m.wY = wX2, wY2
	m.norm = norm
	m.lambda = lambda
	m.refPose = refPose
	m.hasAffine = false
	m.affine = AffineCorrection{}
	m.driftX, m.driftY = 0, 0
	m.trained = true
	m.history = nil
	m.screenW, m.screenH = screenW, screenH
	m.mu.Unlock()

	return TrainResult{MeanError: meanErr, MaxError: maxErr}, nil
}

func (m *Model) minCalibrationFloor() int {
	if m.cfg.MinCalibrationSamples > 0 {
		return m.cfg.MinCalibrationSamples
	}
	return 80
}

// purgeGroupOutliers groups samples by TargetID and drops, within
// groups of at least 5, any sample whose iris vector sits beyond
// Q3+k*IQR from the group's median iris vector.
func purgeGroupOutliers(samples []CalibrationSample) []CalibrationSample {
	groups := map[int][]CalibrationSample{}
	order := []int{}
	for _, s := range samples {
		if _, ok := groups[s.TargetID]; !ok {
			order = append(order, s.TargetID)
		}
		groups[s.TargetID] = append(groups[s.TargetID], s)
	}

	var out []CalibrationSample
	for _, id := range order {
		group := groups[id]
		if len(group) < 5 {
			out = append(out, group...)
			continue
		}

		irisVecs := make([][]float64, len(group))
		for i, s := range group {
			irisVecs[i] = []float64{
				s.Features.LeftIrisRelXY.X, s.Features.LeftIrisRelXY.Y,
				s.Features.RightIrisRelXY.X, s.Features.RightIrisRelXY.Y,
			}
		}
		median := componentwiseMedian(irisVecs)

		dists := make([]float64, len(group))
		for i, v := range irisVecs {
			dists[i] = euclidean(v, median)
		}

		k := 1.5
		switch {
		case len(group) < 10:
			k = 2.5
		case len(group) < 20:
			k = 2.0
		}
		fence := linalg.UpperFence(dists, k)

		for i, s := range group {
			if dists[i] <= fence {
				out = append(out, s)
			}
		}
	}
	return out
}

func componentwiseMedian(vecs [][]float64) []float64 {
	if len(vecs) == 0 {
		return nil
	}
	n := len(vecs[0])
	out := make([]float64, n)
	col := make([]float64, len(vecs))
	for c := 0; c < n; c++ {
		for i, v := range vecs {
			col[i] = v[c]
		}
		out[c] = linalg.Median(col)
	}
	return out
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func meanReferencePose(samples []CalibrationSample) ReferencePose {
	var yaw, pitch, roll, scale []float64
	for _, s := range samples {
		yaw = append(yaw, s.Features.HeadPose.Yaw)
		pitch = append(pitch, s.Features.HeadPose.Pitch)
		roll = append(roll, s.Features.HeadPose.Roll)
		scale = append(scale, s.Features.FaceScale)
	}
	return ReferencePose{
		Yaw:       linalg.Mean(yaw),
		Pitch:     linalg.Mean(pitch),
		Roll:      linalg.Mean(roll),
		FaceScale: linalg.Mean(scale),
	}
}

func buildDesignMatrix(rows []trainingRow, norm *linalg.Normalizer, diag float64) (*mat.Dense, []float64, []float64, []float64) {
	n := len(rows)
	design := mat.NewDense(n, linalg.BasisSize, nil)
	weights := make([]float64, n)
	targetX := make([]float64, n)
	targetY := make([]float64, n)

	for i, r := range rows {
		normalized := norm.Apply(r.raw)
		basis := linalg.Expand(toInput(normalized))
		design.SetRow(i, basis)

		conf := r.confidence
		if conf < 0.15 {
			conf = 0.15
		}
		w := conf
		if diag > 0 {
			w *= 1 + 0.6*r.distCenter/diag
		}
		weights[i] = w
		targetX[i] = r.targetX
		targetY[i] = r.targetY
	}
	return design, weights, targetX, targetY
}

// chooseLambda performs leave-one-target-group-out cross validation
// over the candidate grid, falling back to the configured default when
// fewer than 5 distinct groups are present.
func (m *Model) chooseLambda(rows []trainingRow, norm *linalg.Normalizer, diag float64) float64 {
	groupIDs := map[int]bool{}
	for _, r := range rows {
		groupIDs[r.targetID] = true
	}
	if len(groupIDs) < 5 {
		if m.cfg.DefaultLambda > 0 {
			return m.cfg.DefaultLambda
		}
		return 0.008
	}

	ids := make([]int, 0, len(groupIDs))
	for id := range groupIDs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	bestLambda := m.cfg.DefaultLambda
	bestErr := math.Inf(1)

	for _, lambda := range lambdaCandidates {
		var totalErr float64
		var totalCount int

		for _, heldOut := range ids {
			var trainRows, testRows []trainingRow
			for _, r := range rows {
				if r.targetID == heldOut {
					testRows = append(testRows, r)
				} else {
					trainRows = append(trainRows, r)
				}
			}
			if len(trainRows) == 0 || len(testRows) == 0 {
				continue
			}

			design, weights, tx, ty := buildDesignMatrix(trainRows, norm, diag)
			wX, err := linalg.Ridge(design, weights, tx, lambda)
			if err != nil {
				continue
			}
			wY, err := linalg.Ridge(design, weights, ty, lambda)
			if err != nil {
				continue
			}

			for _, r := range testRows {
				normalized := norm.Apply(r.raw)
				basis := linalg.Expand(toInput(normalized))
				px := linalg.Predict(wX, basis)
				py := linalg.Predict(wY, basis)
				totalErr += math.Hypot(px-r.targetX, py-r.targetY)
				totalCount++
			}
		}

		if totalCount == 0 {
			continue
		}
		meanErr := totalErr / float64(totalCount)
		if meanErr < bestErr {
			bestErr = meanErr
			bestLambda = lambda
		}
	}

	if math.IsInf(bestErr, 1) {
		if m.cfg.DefaultLambda > 0 {
			return m.cfg.DefaultLambda
		}
		return 0.008
	}
	return bestLambda
}

// residualKeepMask computes each row's distance-normalised residual
// against the just-fit weights and marks the worst residualDropFraction
// for removal, never dropping below floor rows.
func residualKeepMask(rows []trainingRow, design *mat.Dense, wX, wY []float64, diag float64, floor int) []bool {
	n := len(rows)
	type scored struct {
		idx   int
		value float64
	}
	scores := make([]scored, n)
	for i, r := range rows {
		basis := mat.Row(nil, i, design)
		px := linalg.Predict(wX, basis)
		py := linalg.Predict(wY, basis)
		residual := math.Hypot(px-r.targetX, py-r.targetY)
		norm := 1.0
		if diag > 0 {
			norm = 1 + 0.5*r.distCenter/diag
		}
		scores[i] = scored{idx: i, value: residual / norm}
	}

	sort.Slice(scores, func(a, b int) bool { return scores[a].value < scores[b].value })

	dropCount := int(float64(n) * residualDropFraction)
	if n-dropCount < floor {
		dropCount = n - floor
	}
	if dropCount < 0 {
		dropCount = 0
	}

	keep := make([]bool, n)
	for i := range keep {
		keep[i] = true
	}
	for i := n - dropCount; i < n; i++ {
		keep[scores[i].idx] = false
	}
	return keep
}

func filterDesignMatrix(design *mat.Dense, weights, targetX, targetY []float64, keep []bool) (*mat.Dense, []float64, []float64, []float64) {
	n := 0
	for _, k := range keep {
		if k {
			n++
		}
	}
	_, p := design.Dims()
	out := mat.NewDense(n, p, nil)
	w := make([]float64, 0, n)
	tx := make([]float64, 0, n)
	ty := make([]float64, 0, n)

	row := 0
	for i, k := range keep {
		if !k {
			continue
		}
		out.SetRow(row, mat.Row(nil, i, design))
		w = append(w, weights[i])
		tx = append(tx, targetX[i])
		ty = append(ty, targetY[i])
		row++
	}
	return out, w, tx, ty
}

func fitError(design *mat.Dense, targetX, targetY, wX, wY []float64) (meanErr, maxErr float64) {
	n, _ := design.Dims()
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		basis := mat.Row(nil, i, design)
		px := linalg.Predict(wX, basis)
		py := linalg.Predict(wY, basis)
		e := math.Hypot(px-targetX[i], py-targetY[i])
		sum += e
		if e > maxErr {
			maxErr = e
		}
	}
	return sum / float64(n), maxErr
}
