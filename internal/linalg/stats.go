package linalg

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Normalizer holds the per-column mean and standard deviation computed
// over a training set, so the same transform can be replayed at
// prediction time.
type Normalizer struct {
	Mean []float64
	Std  []float64
}

// FitNormalizer computes column-wise mean/std over rows (each a basis
// vector of equal length). A column with zero variance gets Std=1 so
// Apply becomes a no-op for it instead of dividing by zero.
func FitNormalizer(rows [][]float64) *Normalizer {
	if len(rows) == 0 {
		return &Normalizer{}
	}
	p := len(rows[0])
	mean := make([]float64, p)
	std := make([]float64, p)
	col := make([]float64, len(rows))

	for c := 0; c < p; c++ {
		for i, r := range rows {
			col[i] = r[c]
		}
		m, s := stat.MeanStdDev(col, nil)
		mean[c] = m
		if s < 1e-12 {
			s = 1
		}
		std[c] = s
	}
	return &Normalizer{Mean: mean, Std: std}
}

// Apply returns a normalized copy of row: (row[i]-Mean[i])/Std[i].
// Columns beyond the fitted range (e.g. the bias term prepended after
// fitting) pass through unchanged.
func (n *Normalizer) Apply(row []float64) []float64 {
	out := make([]float64, len(row))
	for i, v := range row {
		if i >= len(n.Mean) {
			out[i] = v
			continue
		}
		out[i] = (v - n.Mean[i]) / n.Std[i]
	}
	return out
}

// IQRBounds returns the [lower, upper] Tukey fences for vals using the
// 1.5*IQR rule, used to purge outlier calibration samples group by
// group before fitting.
func IQRBounds(vals []float64) (lower, upper float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	q1 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, sorted, nil)
	iqr := q3 - q1
	return q1 - 1.5*iqr, q3 + 1.5*iqr
}

// UpperFence returns the Q3 + k*IQR Tukey fence for vals, with a
// caller-supplied k (spec's group-size-scaled outlier sensitivity).
func UpperFence(vals []float64, k float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	q1 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, sorted, nil)
	return q3 + k*(q3-q1)
}

// Median returns the median of vals (sorted copy, no mutation of vals).
func Median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

// Mean returns the arithmetic mean of vals, or 0 for an empty slice.
func Mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return stat.Mean(vals, nil)
}

// StdDev returns the sample standard deviation (n-1 denominator) of
// vals around mean.
func StdDev(vals []float64, mean float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	var sumSq float64
	for _, v := range vals {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(vals)-1))
}
