// Package sample holds paired measurements and the validity masks that
// decide which rows a statistic is allowed to see.
package sample

import (
	"math"

	"powerfit/domain/core"
)

// Validity selects which values a Mask treats as missing.
type Validity int

const (
	// NotNaN drops rows where either value is NaN. Infinities are kept.
	NotNaN Validity = iota
	// Finite drops rows where either value is NaN or ±Inf.
	Finite
)

func (v Validity) String() string {
	switch v {
	case NotNaN:
		return "not_nan"
	case Finite:
		return "finite"
	default:
		return "unknown"
	}
}

func (v Validity) valid(x float64) bool {
	if v == Finite {
		return !math.IsNaN(x) && !math.IsInf(x, 0)
	}
	return !math.IsNaN(x)
}

// Mask is true at index i when both xs[i] and ys[i] are valid.
type Mask []bool

// NewMask builds a fresh mask over a paired sample.
func NewMask(xs, ys []float64, v Validity) (Mask, error) {
	if len(xs) != len(ys) {
		return nil, core.NewLengthMismatchError("mask", len(xs), len(ys))
	}
	m := make(Mask, len(xs))
	for i := range xs {
		m[i] = v.valid(xs[i]) && v.valid(ys[i])
	}
	return m, nil
}

// Count returns the number of valid rows.
func (m Mask) Count() int {
	n := 0
	for _, ok := range m {
		if ok {
			n++
		}
	}
	return n
}

// Apply returns the values at valid indices, preserving order. vals must be
// as long as the mask.
func (m Mask) Apply(vals []float64) []float64 {
	out := make([]float64, 0, m.Count())
	for i, ok := range m {
		if ok {
			out = append(out, vals[i])
		}
	}
	return out
}

// Indices returns the valid row indices in ascending order.
func (m Mask) Indices() []int {
	out := make([]int, 0, m.Count())
	for i, ok := range m {
		if ok {
			out = append(out, i)
		}
	}
	return out
}

// Filter masks a paired sample and returns the surviving x and y values.
func Filter(xs, ys []float64, v Validity) (fx, fy []float64, err error) {
	m, err := NewMask(xs, ys, v)
	if err != nil {
		return nil, nil, err
	}
	return m.Apply(xs), m.Apply(ys), nil
}

// Log returns the element-wise natural logarithm. Non-positive inputs give
// NaN or -Inf rather than an error; downstream masks drop them.
func Log(vals []float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = math.Log(v)
	}
	return out
}

// Gather returns vals[idx[0]], vals[idx[1]], ... into dst, which is grown if
// needed.
func Gather(dst, vals []float64, idx []int) []float64 {
	if cap(dst) < len(idx) {
		dst = make([]float64, len(idx))
	}
	dst = dst[:len(idx)]
	for i, j := range idx {
		dst[i] = vals[j]
	}
	return dst
}
