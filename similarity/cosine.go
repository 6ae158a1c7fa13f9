package similarity

import (
	"math"
)

// Cosine returns the cosine similarity of a and b in [-1, 1].
// It returns 0 when either vector has zero norm or when the lengths differ.
func Cosine(a, b []float32) float64 {
	score, _ := CosineChecked(a, b)
	return score
}

// CosineChecked is Cosine that also reports whether the vectors were comparable.
// ok is false only for a length mismatch; zero-norm vectors are comparable and score 0.
func CosineChecked(a, b []float32) (score float64, ok bool) {
	if len(a) != len(b) {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, true
	}
	return Clamp(dot / (math.Sqrt(normA) * math.Sqrt(normB))), true
}

// Clamp forces a similarity into [-1, 1], mapping NaN to 0.
// Floating point rounding can push the ratio slightly past the bounds.
func Clamp(score float64) float64 {
	switch {
	case math.IsNaN(score):
		return 0
	case score > 1:
		return 1
	case score < -1:
		return -1
	}
	return score
}
