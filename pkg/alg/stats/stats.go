// Package stats provides the small statistical helpers behind the derived
// repository metrics.
package stats

import (
	"cmp"
	"slices"
)

// Number is any integer or floating-point type.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Sum returns the sum of all elements in values.
// Returns the zero value of T for an empty slice.
func Sum[T Number](values []T) T {
	var result T

	for _, v := range values {
		result += v
	}

	return result
}

// Mean returns the arithmetic mean of values.
// Returns 0 for an empty slice.
func Mean[T Number](values []T) float64 {
	if len(values) == 0 {
		return 0
	}

	return float64(Sum(values)) / float64(len(values))
}

// UpperMedian returns the element at index len/2 of the sorted values, which
// is the upper of the two middle elements for an even count. The input slice
// is not modified. Returns the zero value of T for an empty slice.
func UpperMedian[T cmp.Ordered](values []T) T {
	if len(values) == 0 {
		var zero T

		return zero
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	return sorted[len(sorted)/2]
}

// Ratio returns num/den, or 0 when den is zero.
func Ratio[N, D Number](num N, den D) float64 {
	if den == 0 {
		return 0
	}

	return float64(num) / float64(den)
}

// Clamp restricts val to the range [lo, hi].
func Clamp[T cmp.Ordered](val, lo, hi T) T {
	return max(lo, min(val, hi))
}
