// Package benford implements the leading-digit conformance test.
package benford

import "math"

// FirstTwoDigits returns the leading two significant digits of v as an
// integer in [10, 99]. Single-digit values are zero-padded (7 becomes 70).
// The second return is false for values with no defined leading digits:
// NaN, infinities, and non-positive values. Callers drop those from the
// sample rather than coercing them to a default bucket.
func FirstTwoDigits(v float64) (int, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}

	// Counters are whole numbers; fractional inputs truncate the same way
	// the digits of the integer part would read.
	n := int64(v)
	if n <= 0 {
		return 0, false
	}

	for n >= 100 {
		n /= 10
	}
	if n < 10 {
		n *= 10
	}
	return int(n), true
}

// DigitSample extracts the ordered two-digit leading values from a
// per-period counter series, dropping undefined entries.
func DigitSample(values []int64) []int {
	sample := make([]int, 0, len(values))
	for _, v := range values {
		if d, ok := FirstTwoDigits(float64(v)); ok {
			sample = append(sample, d)
		}
	}
	return sample
}
