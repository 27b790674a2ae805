package utils

import "math"

// NormalizeL2 scales x in place to unit L2 norm. Embedding vectors are
// normalized so that inner product equals cosine similarity. A zero vector
// is left untouched.
func NormalizeL2(x []float32) {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range x {
		x[i] /= norm
	}
}
