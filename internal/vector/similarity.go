package vector

import "math"

// CosineSimilarity returns the inner product of two vectors clamped to [-1,1].
// For unit-norm vectors this is exactly the cosine similarity.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i] * b[i])
	}
	return math.Max(-1, math.Min(1, dot))
}
