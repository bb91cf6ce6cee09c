package cache

import (
	"context"
	"time"
)

// NoOpCache is a cache implementation that does nothing.
// Used when no cache is configured or Redis is unavailable; every lookup misses.
type NoOpCache struct{}

// NewNoOpCache creates a new no-op cache instance
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

// GetVectors always misses.
func (c *NoOpCache) GetVectors(ctx context.Context, keys []string) ([][]float32, error) {
	return make([][]float32, len(keys)), nil
}

// SetVectors does nothing and always succeeds
func (c *NoOpCache) SetVectors(ctx context.Context, keys []string, vectors [][]float32, ttl time.Duration) error {
	return nil
}

// Close does nothing and always succeeds
func (c *NoOpCache) Close() error {
	return nil
}
