package utils

import (
	"math"
	"strconv"
)

// Float64AlmostEqual compares two float64s and returns if the difference between them is less than epsilon.
func Float64AlmostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

// FormatSigFigs renders v with n significant figures in fixed notation,
// e.g. 1.23456 with 3 gives "1.23" and 0.012345 gives "0.0123".
func FormatSigFigs(v float64, n int) string {
	if n < 1 {
		n = 1
	}
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', n-1, 64)
	}
	magnitude := int(math.Floor(math.Log10(math.Abs(v))))
	decimals := n - 1 - magnitude
	if decimals < 0 {
		scale := math.Pow(10, float64(-decimals))
		return strconv.FormatFloat(math.Round(v/scale)*scale, 'f', 0, 64)
	}
	rounded := strconv.FormatFloat(v, 'f', decimals, 64)
	// rounding can carry into a new leading digit, e.g. 9.996 -> "10.00"
	if parsed, err := strconv.ParseFloat(rounded, 64); err == nil && parsed != 0 && decimals > 0 {
		if int(math.Floor(math.Log10(math.Abs(parsed)))) > magnitude {
			return strconv.FormatFloat(parsed, 'f', decimals-1, 64)
		}
	}
	return rounded
}
