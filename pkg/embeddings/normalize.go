// Package embeddings provides vector math shared by face strategies and matching.
package embeddings

import (
	"math"
)

// NormalizeL2 scales vector to unit length in place.
// A zero vector is left unchanged.
func NormalizeL2(vector []float32) {
	magnitude := Magnitude(vector)
	if magnitude == 0 {
		return
	}

	for i := range vector {
		vector[i] = float32(float64(vector[i]) / magnitude)
	}
}

// Magnitude returns the Euclidean norm of vector, accumulated in float64.
func Magnitude(vector []float32) float64 {
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}

	return math.Sqrt(sumSquares)
}

// Cosine returns the cosine similarity of a and b clamped to [-1, 1].
// ok is false when the lengths differ, a vector is empty, or either norm is zero.
func Cosine(a, b []float32) (similarity float64, ok bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, false
	}

	similarity = dot / (math.Sqrt(normA) * math.Sqrt(normB))

	// floating point drift can push |similarity| slightly past 1
	return math.Max(-1, math.Min(1, similarity)), true
}
