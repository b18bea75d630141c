package linalg

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrNoSamples is returned by Ridge when called with an empty design matrix.
var ErrNoSamples = errors.New("linalg: no samples to fit")

// PivotEpsilon is the minimum absolute pivot magnitude Ridge will
// accept during Gaussian elimination. A column whose pivot falls below
// this is singular under the current sample set; its coefficient is
// left at zero rather than blowing up the fit.
const PivotEpsilon = 1e-12

// Ridge solves the weighted ridge-regression normal equations
//
//	(XᵀWX + λI) w = XᵀWy
//
// for w, where X is n×p (n samples, p basis terms), W is a diagonal
// weight matrix given as a per-sample slice, y is the n-length target
// vector for one output dimension, and λ is the ridge penalty.
//
// The normal matrix is small (p×p, p = BasisSize) regardless of n, so
// it is formed explicitly and solved by Gaussian elimination with
// partial pivoting rather than a general-purpose decomposition. A
// pivot smaller in magnitude than PivotEpsilon is treated as singular:
// that coefficient is left at zero and elimination continues, rather
// than failing the whole fit over one ill-conditioned column.
func Ridge(x *mat.Dense, weights, y []float64, lambda float64) ([]float64, error) {
	n, p := x.Dims()
	if n == 0 || p == 0 {
		return nil, ErrNoSamples
	}
	if len(weights) != n || len(y) != n {
		return nil, fmt.Errorf("linalg: dimension mismatch: x is %dx%d, weights=%d, y=%d", n, p, len(weights), len(y))
	}

	normal := mat.NewDense(p, p, nil)
	rhs := make([]float64, p)

	for a := 0; a < p; a++ {
		for b := a; b < p; b++ {
			var sum float64
			for i := 0; i < n; i++ {
				sum += weights[i] * x.At(i, a) * x.At(i, b)
			}
			if a == b {
				sum += lambda
			}
			normal.Set(a, b, sum)
			normal.Set(b, a, sum)
		}
		var r float64
		for i := 0; i < n; i++ {
			r += weights[i] * x.At(i, a) * y[i]
		}
		rhs[a] = r
	}

	return gaussianEliminate(normal, rhs)
}

// gaussianEliminate solves A w = b via Gaussian elimination with
// partial pivoting, for a small square system. It works on copies of A
// and b, leaving both arguments unchanged.
func gaussianEliminate(a *mat.Dense, b []float64) ([]float64, error) {
	n, m := a.Dims()
	if n != m {
		return nil, fmt.Errorf("linalg: normal matrix not square: %dx%d", n, m)
	}

	aug := mat.NewDense(n, n, nil)
	aug.Copy(a)
	rhs := append([]float64(nil), b...)

	for col := 0; col < n; col++ {
		// Partial pivot: find the largest-magnitude entry in this
		// column at or below the diagonal.
		pivotRow := col
		pivotVal := abs(aug.At(col, col))
		for r := col + 1; r < n; r++ {
			if v := abs(aug.At(r, col)); v > pivotVal {
				pivotVal = v
				pivotRow = r
			}
		}
		if pivotRow != col {
			swapRows(aug, rhs, col, pivotRow)
		}

		pivot := aug.At(col, col)
		if abs(pivot) < PivotEpsilon {
			// Singular column: leave this coefficient at zero by
			// zeroing the row so subsequent back-substitution skips it.
			for k := col; k < n; k++ {
				aug.Set(col, k, 0)
			}
			rhs[col] = 0
			aug.Set(col, col, 1)
			continue
		}

		for r := col + 1; r < n; r++ {
			factor := aug.At(r, col) / pivot
			if factor == 0 {
				continue
			}
			for k := col; k < n; k++ {
				aug.Set(r, k, aug.At(r, k)-factor*aug.At(col, k))
			}
			rhs[r] -= factor * rhs[col]
		}
	}

	w := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		pivot := aug.At(row, row)
		sum := rhs[row]
		for k := row + 1; k < n; k++ {
			sum -= aug.At(row, k) * w[k]
		}
		if abs(pivot) < PivotEpsilon {
			w[row] = 0
			continue
		}
		w[row] = sum / pivot
	}
	return w, nil
}

func swapRows(m *mat.Dense, rhs []float64, r1, r2 int) {
	if r1 == r2 {
		return
	}
	_, n := m.Dims()
	for k := 0; k < n; k++ {
		a, b := m.At(r1, k), m.At(r2, k)
		m.Set(r1, k, b)
		m.Set(r2, k, a)
	}
	rhs[r1], rhs[r2] = rhs[r2], rhs[r1]
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Predict evaluates a fitted weight vector against an expanded basis row.
func Predict(w, basis []float64) float64 {
	var sum float64
	n := len(w)
	if len(basis) < n {
		n = len(basis)
	}
	for i := 0; i < n; i++ {
		sum += w[i] * basis[i]
	}
	return sum
}
