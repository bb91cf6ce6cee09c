package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores embedding vectors by key so repeated texts are embedded once.
type Cache interface {
	// GetVectors returns one entry per key, nil for misses.
	GetVectors(ctx context.Context, keys []string) ([][]float32, error)

	// SetVectors stores vectors[i] under keys[i] with TTL (0 keeps them forever).
	SetVectors(ctx context.Context, keys []string, vectors [][]float32, ttl time.Duration) error

	// Close closes the cache connection
	Close() error
}

// Key builds the cache key for a text embedded with model.
func Key(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return model + ":" + hex.EncodeToString(sum[:])
}
