package facematch

import (
	"fmt"
	"math"
)

// EuclideanDistance computes the L2 distance between two descriptors.
// Lower distance means more similar faces.
func EuclideanDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return math.Sqrt(sum), nil
}

// Similarity converts a distance to an integer percentage, round((1 - d) * 100).
// Halves round up and the result is clamped to [0, 100]. NaN yields 0.
func Similarity(distance float64) int {
	if math.IsNaN(distance) {
		return 0
	}
	pct := math.Floor((1-distance)*100 + 0.5)
	return int(min(max(pct, 0), 100))
}
