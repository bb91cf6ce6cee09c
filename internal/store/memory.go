package store

import (
	"context"
	"fmt"
	"slices"

	"few-shots/internal/embeddings"
	"few-shots/internal/shot"
)

// Memory is the reference Store: everything lives in process memory and
// List ranks by an exact linear scan. It favours simplicity over speed and is
// meant for tests and small deployments.
//
// Memory is not safe for concurrent mutation. Callers sharing one instance
// across goroutines must synchronize externally, for example with
// Synchronized.
type Memory struct {
	distance   DistanceFunc
	seq        int64
	namespaces map[string]*memoryNamespace
}

type memoryNamespace struct {
	dim     int
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	shot   shot.Shot
	vector embeddings.Vector
	order  int64
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithDistance replaces the default cosine distance.
func WithDistance(d DistanceFunc) MemoryOption {
	return func(m *Memory) {
		if d != nil {
			m.distance = d
		}
	}
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		distance:   Cosine,
		namespaces: make(map[string]*memoryNamespace),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Add(_ context.Context, shots []shot.Shot, vectors []embeddings.Vector, namespace string) error {
	if err := checkLengths(shots, vectors); err != nil {
		return err
	}
	if len(shots) == 0 {
		return nil
	}
	dim, err := batchDimension(vectors)
	if err != nil {
		return err
	}
	ns := m.namespaces[namespace]
	if ns != nil && ns.dim != dim {
		return fmt.Errorf("%w: namespace %q stores %d dimensions, got %d", ErrSchema, namespace, ns.dim, dim)
	}

	if ns == nil {
		ns = &memoryNamespace{dim: dim, entries: make(map[string]*memoryEntry)}
		m.namespaces[namespace] = ns
	}
	for i, s := range shots {
		vec := slices.Clone(vectors[i])
		if existing, ok := ns.entries[s.ID]; ok {
			existing.shot = s
			existing.vector = vec
			continue
		}
		m.seq++
		ns.entries[s.ID] = &memoryEntry{shot: s, vector: vec, order: m.seq}
	}
	return nil
}

func (m *Memory) Remove(_ context.Context, ids []string, namespace string) error {
	ns := m.namespaces[namespace]
	if ns == nil {
		return nil
	}
	for _, id := range ids {
		delete(ns.entries, id)
	}
	if len(ns.entries) == 0 {
		delete(m.namespaces, namespace)
	}
	return nil
}

func (m *Memory) Clear(_ context.Context, namespace string) error {
	delete(m.namespaces, namespace)
	return nil
}

func (m *Memory) List(_ context.Context, query embeddings.Vector, namespace string, limit int) ([]shot.ScoredShot, error) {
	ns := m.namespaces[namespace]
	if ns == nil {
		return []shot.ScoredShot{}, nil
	}
	cands := make([]candidate, 0, len(ns.entries))
	for _, e := range ns.entries {
		cands = append(cands, candidate{shot: e.shot, vector: e.vector, order: e.order})
	}
	return rank(query, cands, m.distance, limit)
}

func (m *Memory) Get(_ context.Context, ids []string, namespace string) ([]shot.Shot, error) {
	found := make(map[string]shot.Shot)
	ns := m.namespaces[namespace]
	if ns == nil {
		return orderByRequest(ids, found), nil
	}
	for _, id := range ids {
		if e, ok := ns.entries[id]; ok {
			found[id] = e.shot
		}
	}
	return orderByRequest(ids, found), nil
}

// Len reports the number of shots stored in namespace.
func (m *Memory) Len(namespace string) int {
	if ns := m.namespaces[namespace]; ns != nil {
		return len(ns.entries)
	}
	return 0
}

var _ Store = (*Memory)(nil)
