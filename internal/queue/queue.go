package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"few-shots/internal/retry"
)

// TaskType enumerates supported task categories.
type TaskType string

const (
	TaskTypeAdd    TaskType = "add"
	TaskTypeRemove TaskType = "remove"
)

// ErrDisabled is returned by callers that need a queue when none is configured.
var ErrDisabled = errors.New("queue disabled")

// Task is one deferred add or remove call. Payload holds the JSON body of the
// call, in the same shape the HTTP API accepts.
type Task struct {
	ID          uuid.UUID
	Type        TaskType
	Payload     []byte
	Attempts    int
	MaxAttempts int
	NotBefore   time.Time
}

// NewTask encodes payload as JSON into a fresh task.
func NewTask(taskType TaskType, payload any) (Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Task{}, fmt.Errorf("encode %s task: %w", taskType, err)
	}
	return Task{ID: uuid.New(), Type: taskType, Payload: body}, nil
}

type Handler func(context.Context, Task) error

// Queue exposes a minimal contract to enqueue and consume tasks.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Worker(ctx context.Context, taskType TaskType, handler Handler) error
}

// EnqueueWithRetry attempts to enqueue with retries and exponential backoff.
func EnqueueWithRetry(ctx context.Context, q Queue, task Task, attempts int, base time.Duration) error {
	return retry.Do(ctx, attempts, base, nil, func(ctx context.Context) error {
		return q.Enqueue(ctx, task)
	})
}
