package embeddings

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"few-shots/internal/cache"
)

// CachedEmbedder serves repeated texts from a vector cache and embeds the
// misses of a batch with a single call to the wrapped embedder.
// Cache failures are logged and treated as misses.
type CachedEmbedder struct {
	next  Embedder
	cache cache.Cache
	model string
	ttl   time.Duration
	log   *slog.Logger
}

// NewCachedEmbedder wraps next. model namespaces cache keys so vectors from
// different models never mix.
func NewCachedEmbedder(next Embedder, c cache.Cache, model string, ttl time.Duration, log *slog.Logger) *CachedEmbedder {
	if log == nil {
		log = slog.Default()
	}
	return &CachedEmbedder{next: next, cache: c, model: model, ttl: ttl, log: log}
}

func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([]Vector, error) {
	if len(texts) == 0 {
		return []Vector{}, nil
	}
	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = cache.Key(e.model, t)
	}

	cached, err := e.cache.GetVectors(ctx, keys)
	if err != nil {
		e.log.Warn("embedding cache read failed", "err", err)
		cached = nil
	}

	out := make([]Vector, len(texts))
	var missIdx []int
	var missTexts []string
	for i := range texts {
		if i < len(cached) && cached[i] != nil {
			out[i] = Vector(cached[i])
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, texts[i])
	}
	if len(missTexts) == 0 {
		e.log.Debug("embedding cache hit", "count", len(texts))
		return out, nil
	}

	vectors, err := e.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(missTexts))
	}

	missKeys := make([]string, len(missIdx))
	missVecs := make([][]float32, len(missIdx))
	for j, i := range missIdx {
		out[i] = vectors[j]
		missKeys[j] = keys[i]
		missVecs[j] = vectors[j]
	}
	if err := e.cache.SetVectors(ctx, missKeys, missVecs, e.ttl); err != nil {
		e.log.Warn("embedding cache write failed", "err", err)
	}
	return out, nil
}
