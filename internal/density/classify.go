// Package density derives the per-year choropleth classification: quantile
// breakpoints over district densities and the five color bands.
package density

import (
	"math"
	"sort"
)

// Band is a choropleth color class, Band0 (lowest) to Band4 (highest).
type Band int

// Color bands in ascending density order.
const (
	Band0 Band = iota
	Band1
	Band2
	Band3
	Band4
)

// NumBands is the number of color bands.
const NumBands = 5

// Quantile positions of the four lower breakpoints.
var quantiles = [4]float64{0.2, 0.4, 0.6, 0.8}

// Breakpoints holds the 20/40/60/80th percentile thresholds of one year's
// positive densities, plus their maximum.
type Breakpoints struct {
	Q20 float64 `json:"q20"`
	Q40 float64 `json:"q40"`
	Q60 float64 `json:"q60"`
	Q80 float64 `json:"q80"`
	Max float64 `json:"max"`
}

// Thresholds returns Q20..Q80 in ascending order.
func (bp Breakpoints) Thresholds() [4]float64 {
	return [4]float64{bp.Q20, bp.Q40, bp.Q60, bp.Q80}
}

// ComputeBreakpoints drops exact zeros, sorts the rest and picks the value at
// index floor(p*n) for each quantile. No positive values yields all zeros.
func ComputeBreakpoints(values []float64) Breakpoints {
	positive := make([]float64, 0, len(values))
	for _, v := range values {
		if v != 0 && !math.IsNaN(v) {
			positive = append(positive, v)
		}
	}
	n := len(positive)
	if n == 0 {
		return Breakpoints{}
	}
	sort.Float64s(positive)

	var q [4]float64
	for i, p := range quantiles {
		idx := int(math.Floor(p * float64(n)))
		if idx >= n {
			idx = n - 1
		}
		q[i] = positive[idx]
	}
	return Breakpoints{Q20: q[0], Q40: q[1], Q60: q[2], Q80: q[3], Max: positive[n-1]}
}

// Classify maps a density to its band using strict greater-than against the
// thresholds, highest first.
func Classify(v float64, bp Breakpoints) Band {
	switch {
	case v > bp.Q80:
		return Band4
	case v > bp.Q60:
		return Band3
	case v > bp.Q40:
		return Band2
	case v > bp.Q20:
		return Band1
	default:
		return Band0
	}
}
