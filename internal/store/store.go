package store

import (
	"context"
	"errors"
	"fmt"

	"few-shots/internal/embeddings"
	"few-shots/internal/shot"
)

// DefaultNamespace is used when callers do not name a namespace.
const DefaultNamespace = "default"

var (
	// ErrBackendUnavailable marks transport failures. Callers may retry.
	ErrBackendUnavailable = errors.New("store backend unavailable")
	// ErrSchema is returned when vector dimensions disagree.
	ErrSchema = errors.New("vector dimension mismatch")
	// ErrLengthMismatch is returned by Add when shots and vectors differ in length.
	ErrLengthMismatch = errors.New("shots and vectors differ in length")
)

// Store persists shots with their vectors and ranks them by distance.
// Every operation is scoped to exactly one namespace, and ids are unique
// within a namespace.
type Store interface {
	// Add upserts shots[i] with vectors[i]. Re-adding an id replaces its
	// vector and payload. The batch is applied as a whole or not at all.
	Add(ctx context.Context, shots []shot.Shot, vectors []embeddings.Vector, namespace string) error
	// Remove deletes ids; missing ids are ignored.
	Remove(ctx context.Context, ids []string, namespace string) error
	// Clear deletes every shot in the namespace.
	Clear(ctx context.Context, namespace string) error
	// List returns at most limit shots ordered by ascending distance to query.
	List(ctx context.Context, query embeddings.Vector, namespace string, limit int) ([]shot.ScoredShot, error)
	// Get returns the shots found among ids, in request order.
	Get(ctx context.Context, ids []string, namespace string) ([]shot.Shot, error)
}

// Unavailable wraps a transport failure of op with ErrBackendUnavailable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrBackendUnavailable, err)
}

// IsRetryable reports whether err is a transport failure of the store or of
// the embedder feeding it.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable) || errors.Is(err, embeddings.ErrUnavailable)
}

func checkLengths(shots []shot.Shot, vectors []embeddings.Vector) error {
	if len(shots) != len(vectors) {
		return fmt.Errorf("%w: %d shots, %d vectors", ErrLengthMismatch, len(shots), len(vectors))
	}
	return nil
}

// batchDimension returns the common dimension of vectors or ErrSchema.
func batchDimension(vectors []embeddings.Vector) (int, error) {
	if len(vectors) == 0 {
		return 0, nil
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return 0, fmt.Errorf("%w: vector %d has %d dimensions, expected %d", ErrSchema, i, len(v), dim)
		}
	}
	return dim, nil
}

// orderByRequest reorders found shots to follow ids, dropping duplicates.
func orderByRequest(ids []string, found map[string]shot.Shot) []shot.Shot {
	out := make([]shot.Shot, 0, len(found))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if s, ok := found[id]; ok {
			out = append(out, s)
		}
	}
	return out
}
