package store

import (
	"fmt"
	"math"

	"few-shots/internal/embeddings"
)

// DistanceFunc measures how far apart two vectors of equal length are.
// Smaller is closer; results must be non-negative.
type DistanceFunc func(a, b embeddings.Vector) float64

// Cosine returns 1 - cos(a, b). If either vector has zero norm the
// similarity is 0, so the distance is 1.0 rather than NaN.
func Cosine(a, b embeddings.Vector) float64 {
	d := 1 - embeddings.CosineSimilarity(a, b)
	// rounding can push identical vectors slightly below zero
	if d < 0 {
		return 0
	}
	return d
}

// Euclidean returns the L2 distance between a and b.
func Euclidean(a, b embeddings.Vector) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// DistanceByName resolves "cosine" (or "") and "euclidean"/"l2".
func DistanceByName(name string) (DistanceFunc, error) {
	switch name {
	case "", "cosine":
		return Cosine, nil
	case "euclidean", "l2":
		return Euclidean, nil
	default:
		return nil, fmt.Errorf("unknown distance %q (valid: cosine, euclidean)", name)
	}
}
