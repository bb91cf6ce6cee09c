package embeddings

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrUnavailable marks embedder transport failures. Callers may retry.
var ErrUnavailable = errors.New("embedder unavailable")

// Unavailable wraps a transport failure of op with ErrUnavailable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// Vector is a simple float32 slice wrapper.
type Vector []float32

// Embedder turns texts into vectors. Implementations must return exactly one
// vector per text, in input order, or an error for the whole batch.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([]Vector, error)
}

// EmbedderFunc adapts a function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, texts []string) ([]Vector, error)

func (f EmbedderFunc) Embed(ctx context.Context, texts []string) ([]Vector, error) {
	return f(ctx, texts)
}

// Dot returns the dot product of two equal-length vectors.
func Dot(a, b Vector) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm returns the L2 norm of v.
func Norm(v Vector) float64 {
	return math.Sqrt(Dot(v, v))
}

// CosineSimilarity returns 0 for empty, mismatched or zero-norm vectors.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}
