// Package floatutils provides utilities for working with floats
package floatutils

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Clip clips a floating point to within a minimum and maximum value.
// If the floating point exceeds max, then the function returns the max
// If min exceeds the floating point, then the function returns the min
func Clip(value, min, max float64) float64 {
	clipped := math.Min(value, max)
	return math.Max(clipped, min)
}

// Summary holds summary statistics of a set of values
type Summary struct {
	Mean, Min, Max, Std float64
}

// Summarize returns summary statistics of values. The standard
// deviation is the unbiased sample standard deviation, which is NaN
// for fewer than two values. The summary of no values is all NaN.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		nan := math.NaN()
		return Summary{nan, nan, nan, nan}
	}

	mean, std := stat.MeanStdDev(values, nil)
	return Summary{
		Mean: mean,
		Min:  floats.Min(values),
		Max:  floats.Max(values),
		Std:  std,
	}
}

// AllFinite returns whether all values are neither NaN nor infinite
func AllFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
