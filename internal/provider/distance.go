package provider

import "math"

// EuclideanDistance is the L2 distance used by dlib-style 128-d descriptors.
// Mismatched lengths are treated as maximally distant.
func EuclideanDistance(a, b Encoding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// CosineDistance returns 1 - cosine similarity, so 0 means identical
// direction and 2 means opposite.
func CosineDistance(a, b Encoding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return math.Inf(1)
	}

	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
