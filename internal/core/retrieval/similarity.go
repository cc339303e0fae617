// Package retrieval ranks knowledge and methodology records for a turn.
// Every scorer here is pure: identical inputs give identical output.
package retrieval

import "math"

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when either vector is empty, the lengths differ, or a norm is zero.
// Negative similarities are floored at 0 so the result stays in [0,1].
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	switch {
	case math.IsNaN(sim), sim < 0:
		return 0
	case sim > 1:
		return 1
	default:
		return sim
	}
}
