package queue

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
)

// MockQueue is a mock implementation of Queue using testify/mock. Handlers
// passed to Worker are recorded so tests can deliver tasks to them.
type MockQueue struct {
	mock.Mock

	mu       sync.Mutex
	handlers map[TaskType]Handler
}

func (m *MockQueue) Enqueue(ctx context.Context, task Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockQueue) Worker(ctx context.Context, taskType TaskType, handler Handler) error {
	m.mu.Lock()
	if m.handlers == nil {
		m.handlers = make(map[TaskType]Handler)
	}
	m.handlers[taskType] = handler
	m.mu.Unlock()
	args := m.Called(ctx, taskType, handler)
	return args.Error(0)
}

// Handler returns the handler registered for taskType, or nil.
func (m *MockQueue) Handler(taskType TaskType) Handler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handlers[taskType]
}
