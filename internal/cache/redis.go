package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key prefix for cached embeddings
const cacheKeyPrefix = "emb:"

type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache client
func NewRedisCache(addr, password string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisCache{
		client: client,
	}, nil
}

// GetVectors fetches all keys with a single MGET.
func (c *RedisCache) GetVectors(ctx context.Context, keys []string) ([][]float32, error) {
	out := make([][]float32, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = cacheKeyPrefix + k
	}
	vals, err := c.client.MGet(ctx, prefixed...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue // miss
		}
		out[i] = decodeFloat32s([]byte(s))
	}
	return out, nil
}

// SetVectors writes all entries in one pipeline.
func (c *RedisCache) SetVectors(ctx context.Context, keys []string, vectors [][]float32, ttl time.Duration) error {
	if len(keys) != len(vectors) {
		return fmt.Errorf("cache: %d keys for %d vectors", len(keys), len(vectors))
	}
	if len(keys) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for i, k := range keys {
		pipe.Set(ctx, cacheKeyPrefix+k, encodeFloat32s(vectors[i]), ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Close closes the cache connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func encodeFloat32s(f []float32) []byte {
	buf := make([]byte, len(f)*4)
	for i, v := range f {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeFloat32s(b []byte) []float32 {
	f := make([]float32, len(b)/4)
	for i := range f {
		f[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return f
}
