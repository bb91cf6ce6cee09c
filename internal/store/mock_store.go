package store

import (
	"context"

	"github.com/stretchr/testify/mock"

	"few-shots/internal/embeddings"
	"few-shots/internal/shot"
)

// MockStore is a mock implementation of Store using testify/mock.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Add(ctx context.Context, shots []shot.Shot, vectors []embeddings.Vector, namespace string) error {
	args := m.Called(ctx, shots, vectors, namespace)
	return args.Error(0)
}

func (m *MockStore) Remove(ctx context.Context, ids []string, namespace string) error {
	args := m.Called(ctx, ids, namespace)
	return args.Error(0)
}

func (m *MockStore) Clear(ctx context.Context, namespace string) error {
	args := m.Called(ctx, namespace)
	return args.Error(0)
}

func (m *MockStore) List(ctx context.Context, query embeddings.Vector, namespace string, limit int) ([]shot.ScoredShot, error) {
	args := m.Called(ctx, query, namespace, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]shot.ScoredShot), args.Error(1)
}

func (m *MockStore) Get(ctx context.Context, ids []string, namespace string) ([]shot.Shot, error) {
	args := m.Called(ctx, ids, namespace)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]shot.Shot), args.Error(1)
}
