// Package vector provides the vector math used by Munin's label matcher.
//
// All similarity scoring in the matcher goes through this package. Use these
// functions instead of implementing your own so every caller agrees on the
// same definition of "similar".
//
// Main Functions:
//   - CosineSimilarity: Standard similarity for float32 vectors (most common)
//   - Normalize: Returns a unit-length copy of a vector
//   - DotProduct: Dot product for float32 vectors
package vector

import "math"

// CosineSimilarity calculates cosine similarity between two float32 vectors.
// Returns a value in [-1, 1] where 1 = identical direction, 0 = orthogonal.
//
// Uses float64 accumulation for precision even with float32 inputs.
// Mismatched or empty inputs score 0 rather than erroring, so a bad cache
// entry can never fail a resolution.
//
// Example:
//
//	a := []float32{1.0, 2.0, 3.0}
//	b := []float32{4.0, 5.0, 6.0}
//	sim := vector.CosineSimilarity(a, b) // 0.9746...
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProd, normA, normB float64
	for i := range a {
		dotProd += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProd / (math.Sqrt(normA) * math.Sqrt(normB))
}

// DotProduct calculates the dot product of two float32 vectors.
// For normalized vectors this equals cosine similarity.
func DotProduct(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var sum float64
	for i := range a {
		sum += float64(a[i] * b[i])
	}
	return sum
}

// Normalize returns a unit-length copy of the vector.
// The input is not modified. A zero vector normalizes to a zero vector.
func Normalize(vec []float32) []float32 {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v * v)
	}

	if sumSquares == 0 {
		return make([]float32, len(vec))
	}

	norm := math.Sqrt(sumSquares)
	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / norm)
	}
	return normalized
}
