// SPDX-License-Identifier: MIT
package analysis

// DefaultBuckets is the summary length used by the display.
const DefaultBuckets = 32

// Summarize reduces values to exactly bucketCount means. Bucket i covers
// values[i*n/bucketCount : (i+1)*n/bucketCount], so bucket sizes differ
// by at most one. When there are fewer values than buckets some buckets
// are empty and their mean is 0; an empty input yields all zeros.
// A non-positive bucketCount returns nil.
func Summarize(values []float64, bucketCount int) []float64 {
	if bucketCount <= 0 {
		return nil
	}

	out := make([]float64, bucketCount)
	n := len(values)
	if n == 0 {
		return out
	}

	for i := range out {
		start := i * n / bucketCount
		end := (i + 1) * n / bucketCount
		if end <= start {
			continue
		}
		var sum float64
		for _, v := range values[start:end] {
			sum += v
		}
		out[i] = sum / float64(end-start)
	}
	return out
}

// Offset adds bias to every value in place and returns values.
func Offset(values []float64, bias float64) []float64 {
	for i := range values {
		values[i] += bias
	}
	return values
}

// MinMax returns the smallest and largest value. Both are 0 for an
// empty input.
func MinMax(values []float64) (lo, hi float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
