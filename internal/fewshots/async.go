package fewshots

import (
	"context"

	"few-shots/internal/shot"
)

// Pending is the result of an AsyncClient call that is still running.
type Pending[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func start[T any](fn func() (T, error)) *Pending[T] {
	p := &Pending[T]{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.val, p.err = fn()
	}()
	return p
}

// Done is closed when the call has finished.
func (p *Pending[T]) Done() <-chan struct{} { return p.done }

// Wait blocks until the call finishes or ctx is done. Giving up on ctx does
// not cancel the call; cancel the context passed to the operation for that.
func (p *Pending[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// AsyncClient runs Client operations in the background. Every call starts
// exactly one goroutine, and its result is only observable through the
// returned Pending. Within a call the embedder runs before the store.
type AsyncClient struct {
	c *Client
}

// Async returns a non-blocking view of c.
func (c *Client) Async() *AsyncClient {
	return &AsyncClient{c: c}
}

func (a *AsyncClient) Add(ctx context.Context, inputs, outputs shot.Value, opts ...Option) *Pending[string] {
	return start(func() (string, error) { return a.c.Add(ctx, inputs, outputs, opts...) })
}

func (a *AsyncClient) AddBatch(ctx context.Context, data []shot.Datum, opts ...Option) *Pending[[]string] {
	return start(func() ([]string, error) { return a.c.AddBatch(ctx, data, opts...) })
}

func (a *AsyncClient) AddRequest(ctx context.Context, req Request, opts ...Option) *Pending[[]string] {
	return start(func() ([]string, error) { return a.c.AddRequest(ctx, req, opts...) })
}

func (a *AsyncClient) Remove(ctx context.Context, inputs, outputs shot.Value, opts ...Option) *Pending[struct{}] {
	return start(func() (struct{}, error) { return struct{}{}, a.c.Remove(ctx, inputs, outputs, opts...) })
}

func (a *AsyncClient) RemoveBatch(ctx context.Context, data []shot.Datum, opts ...Option) *Pending[struct{}] {
	return start(func() (struct{}, error) { return struct{}{}, a.c.RemoveBatch(ctx, data, opts...) })
}

func (a *AsyncClient) RemoveIDs(ctx context.Context, ids []string, opts ...Option) *Pending[struct{}] {
	return start(func() (struct{}, error) { return struct{}{}, a.c.RemoveIDs(ctx, ids, opts...) })
}

func (a *AsyncClient) RemoveRequest(ctx context.Context, req Request, opts ...Option) *Pending[struct{}] {
	return start(func() (struct{}, error) { return struct{}{}, a.c.RemoveRequest(ctx, req, opts...) })
}

func (a *AsyncClient) Clear(ctx context.Context, opts ...Option) *Pending[struct{}] {
	return start(func() (struct{}, error) { return struct{}{}, a.c.Clear(ctx, opts...) })
}

func (a *AsyncClient) List(ctx context.Context, inputs shot.Value, opts ...Option) *Pending[[]shot.ScoredShot] {
	return start(func() ([]shot.ScoredShot, error) { return a.c.List(ctx, inputs, opts...) })
}

func (a *AsyncClient) Get(ctx context.Context, inputs shot.Value, opts ...Option) *Pending[*shot.Shot] {
	return start(func() (*shot.Shot, error) { return a.c.Get(ctx, inputs, opts...) })
}

func (a *AsyncClient) GetIDs(ctx context.Context, ids []string, opts ...Option) *Pending[[]shot.Shot] {
	return start(func() ([]shot.Shot, error) { return a.c.GetIDs(ctx, ids, opts...) })
}
