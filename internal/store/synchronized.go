package store

import (
	"context"
	"sync"

	"few-shots/internal/embeddings"
	"few-shots/internal/shot"
)

// Synchronized serializes mutations of a store that has no concurrency
// control of its own, such as Memory. Reads share a read lock.
func Synchronized(s Store) Store {
	return &synchronized{next: s}
}

type synchronized struct {
	mu   sync.RWMutex
	next Store
}

func (s *synchronized) Add(ctx context.Context, shots []shot.Shot, vectors []embeddings.Vector, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.Add(ctx, shots, vectors, namespace)
}

func (s *synchronized) Remove(ctx context.Context, ids []string, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.Remove(ctx, ids, namespace)
}

func (s *synchronized) Clear(ctx context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.Clear(ctx, namespace)
}

func (s *synchronized) List(ctx context.Context, query embeddings.Vector, namespace string, limit int) ([]shot.ScoredShot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.next.List(ctx, query, namespace, limit)
}

func (s *synchronized) Get(ctx context.Context, ids []string, namespace string) ([]shot.Shot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.next.Get(ctx, ids, namespace)
}

// Close closes the wrapped store if it holds resources.
func (s *synchronized) Close() error {
	if c, ok := s.next.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
