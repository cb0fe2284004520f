package emath

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Median returns the median of vals; for an even count it is the mean of
// the two middle values. vals is not modified. Returns 0 for no values.
func Median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return stat.Mean(sorted[mid-1:mid+1], nil)
}

// MedianVec3 is the element-wise median over a set of vectors. A single
// outlier in any channel can't drag the result the way it would drag a
// mean.
func MedianVec3(vs []Vec3) Vec3 {
	if len(vs) == 0 {
		return Identity
	}
	ret := Vec3{}
	col := make([]float64, len(vs))
	for c := 0; c < 3; c++ {
		for i, v := range vs {
			col[i] = v[c]
		}
		ret[c] = Median(col)
	}
	return ret
}

// MeanVec3 is the element-wise mean; used for comparison against the median.
func MeanVec3(vs []Vec3) Vec3 {
	if len(vs) == 0 {
		return Identity
	}
	ret := Vec3{}
	col := make([]float64, len(vs))
	for c := 0; c < 3; c++ {
		for i, v := range vs {
			col[i] = v[c]
		}
		ret[c] = stat.Mean(col, nil)
	}
	return ret
}
