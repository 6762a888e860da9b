package utils

import (
	"time"
)

type Numeric interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Calculate mean of numeric values
func CalculateMean[T Numeric](values []T) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}

// Population variance (divides by n)
func CalculateVariance[T Numeric](values []T, mean T) float64 {
	if len(values) < 2 {
		return 0
	}

	m := float64(mean)
	variance := 0.0
	for _, v := range values {
		diff := float64(v) - m
		variance += diff * diff
	}
	return variance / float64(len(values))
}

// Coefficient of variation squared (normalized variance)
func CalculateNormalizedVariance[T Numeric](values []T, mean T) float64 {
	variance := CalculateVariance(values, mean)
	meanFloat := float64(mean)
	if meanFloat > 0 {
		return variance / (meanFloat * meanFloat)
	}
	return 0
}

// Duration variance calculation using normalized variance
func CalculateDurationVariance(durations []time.Duration, avgPause time.Duration) float64 {
	if len(durations) < 2 {
		return 0
	}

	nanos := make([]int64, len(durations))
	for i, d := range durations {
		nanos[i] = d.Nanoseconds()
	}

	return CalculateNormalizedVariance(nanos, avgPause.Nanoseconds())
}
