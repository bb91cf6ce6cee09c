// Package fewshots stores labeled examples and retrieves the ones most
// similar to a new input. Client pairs an embeddings.Embedder with a
// store.Store; AsyncClient runs the same operations without blocking.
package fewshots

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"few-shots/internal/embeddings"
	"few-shots/internal/shot"
	"few-shots/internal/store"
)

// DefaultLimit is the number of results List returns when no limit is given.
const DefaultLimit = 5

// ErrEmbeddingCount is returned when the embedder returns a different number
// of vectors than texts it was given.
var ErrEmbeddingCount = errors.New("embedder returned wrong number of vectors")

// Client is safe for concurrent use when its store is.
type Client struct {
	embedder     embeddings.Embedder
	store        store.Store
	log          *slog.Logger
	defaultLimit int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger used for debug output.
func WithLogger(log *slog.Logger) ClientOption {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithDefaultLimit overrides DefaultLimit for List calls without WithLimit.
func WithDefaultLimit(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.defaultLimit = n
		}
	}
}

// New builds a Client over embedder and st.
func New(embedder embeddings.Embedder, st store.Store, opts ...ClientOption) *Client {
	c := &Client{
		embedder:     embedder,
		store:        st,
		log:          slog.Default(),
		defaultLimit: DefaultLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Option tunes a single call.
type Option func(*callOptions)

type callOptions struct {
	namespace string
	limit     int
	id        string
}

// WithNamespace scopes the call to namespace instead of store.DefaultNamespace.
func WithNamespace(namespace string) Option {
	return func(o *callOptions) {
		if namespace != "" {
			o.namespace = namespace
		}
	}
}

// WithLimit caps the number of List results.
func WithLimit(limit int) Option {
	return func(o *callOptions) { o.limit = limit }
}

// WithID sets an explicit id for single-example Add, Remove and Get calls.
func WithID(id string) Option {
	return func(o *callOptions) { o.id = id }
}

func (c *Client) options(opts []Option) callOptions {
	o := callOptions{namespace: store.DefaultNamespace, limit: c.defaultLimit}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Add stores one example and returns its id.
func (c *Client) Add(ctx context.Context, inputs, outputs shot.Value, opts ...Option) (string, error) {
	o := c.options(opts)
	ids, err := c.add(ctx, []shot.Datum{{Inputs: inputs, Outputs: outputs, ID: o.id}}, o.namespace)
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// AddBatch stores data with one embedder call and one store call, and returns
// the ids in input order.
func (c *Client) AddBatch(ctx context.Context, data []shot.Datum, opts ...Option) ([]string, error) {
	o := c.options(opts)
	return c.add(ctx, data, o.namespace)
}

// AddRequest stores a Single or Batch request. IDs requests are rejected.
func (c *Client) AddRequest(ctx context.Context, req Request, opts ...Option) ([]string, error) {
	o := c.options(opts)
	switch req.Kind() {
	case KindSingle:
		return c.add(ctx, withSingleID(req.Data(), o.id), o.namespace)
	case KindBatch:
		return c.add(ctx, req.Data(), o.namespace)
	default:
		return nil, fmt.Errorf("%w: add does not accept a %s request", ErrInvalidArguments, req.Kind())
	}
}

func (c *Client) add(ctx context.Context, data []shot.Datum, namespace string) ([]string, error) {
	if len(data) == 0 {
		return []string{}, nil
	}
	shots := make([]shot.Shot, len(data))
	keys := make([]string, len(data))
	for i, d := range data {
		s, err := d.Shot()
		if err != nil {
			return nil, err
		}
		shots[i] = s
		keys[i] = s.Key()
	}

	vectors, err := c.embed(ctx, keys)
	if err != nil {
		return nil, err
	}
	if err := c.store.Add(ctx, shots, vectors, namespace); err != nil {
		return nil, err
	}

	ids := make([]string, len(shots))
	for i, s := range shots {
		ids[i] = s.ID
	}
	c.log.Debug("shots added", "namespace", namespace, "count", len(ids))
	return ids, nil
}

// Remove deletes one example. The id is WithID when given, otherwise the id
// Add derives from inputs, so an example can be removed by content alone.
func (c *Client) Remove(ctx context.Context, inputs, outputs shot.Value, opts ...Option) error {
	o := c.options(opts)
	return c.removeData(ctx, []shot.Datum{{Inputs: inputs, Outputs: outputs, ID: o.id}}, o.namespace)
}

// RemoveBatch deletes every example in data with one store call.
func (c *Client) RemoveBatch(ctx context.Context, data []shot.Datum, opts ...Option) error {
	o := c.options(opts)
	return c.removeData(ctx, data, o.namespace)
}

// RemoveIDs deletes ids directly. Unknown ids are ignored.
func (c *Client) RemoveIDs(ctx context.Context, ids []string, opts ...Option) error {
	o := c.options(opts)
	return c.remove(ctx, ids, o.namespace)
}

// RemoveRequest deletes the examples named by any kind of Request.
func (c *Client) RemoveRequest(ctx context.Context, req Request, opts ...Option) error {
	o := c.options(opts)
	switch req.Kind() {
	case KindSingle:
		return c.removeData(ctx, withSingleID(req.Data(), o.id), o.namespace)
	case KindBatch:
		return c.removeData(ctx, req.Data(), o.namespace)
	case KindIDs:
		return c.remove(ctx, req.IDList(), o.namespace)
	default:
		return fmt.Errorf("%w: empty request", ErrInvalidArguments)
	}
}

func (c *Client) removeData(ctx context.Context, data []shot.Datum, namespace string) error {
	ids := make([]string, len(data))
	for i, d := range data {
		id, err := datumID(d)
		if err != nil {
			return err
		}
		ids[i] = id
	}
	return c.remove(ctx, ids, namespace)
}

func (c *Client) remove(ctx context.Context, ids []string, namespace string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.store.Remove(ctx, ids, namespace); err != nil {
		return err
	}
	c.log.Debug("shots removed", "namespace", namespace, "count", len(ids))
	return nil
}

// Clear deletes every example in the namespace.
func (c *Client) Clear(ctx context.Context, opts ...Option) error {
	o := c.options(opts)
	return c.store.Clear(ctx, o.namespace)
}

// List returns the examples closest to inputs, nearest first.
func (c *Client) List(ctx context.Context, inputs shot.Value, opts ...Option) ([]shot.ScoredShot, error) {
	o := c.options(opts)
	key, err := inputs.Canonical()
	if err != nil {
		return nil, err
	}
	vectors, err := c.embed(ctx, []string{key})
	if err != nil {
		return nil, err
	}
	return c.store.List(ctx, vectors[0], o.namespace, o.limit)
}

// Get returns the example stored under the id derived from inputs (or
// WithID), or nil when there is none.
func (c *Client) Get(ctx context.Context, inputs shot.Value, opts ...Option) (*shot.Shot, error) {
	o := c.options(opts)
	id := o.id
	if id == "" {
		var err error
		if id, err = shot.DeriveID(inputs); err != nil {
			return nil, err
		}
	}
	found, err := c.store.Get(ctx, []string{id}, o.namespace)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

// GetIDs returns the stored examples among ids, in request order.
func (c *Client) GetIDs(ctx context.Context, ids []string, opts ...Option) ([]shot.Shot, error) {
	o := c.options(opts)
	if len(ids) == 0 {
		return []shot.Shot{}, nil
	}
	return c.store.Get(ctx, ids, o.namespace)
}

func (c *Client) embed(ctx context.Context, texts []string) ([]embeddings.Vector, error) {
	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: %d texts, %d vectors", ErrEmbeddingCount, len(texts), len(vectors))
	}
	return vectors, nil
}

func datumID(d shot.Datum) (string, error) {
	if d.ID != "" {
		return d.ID, nil
	}
	return shot.DeriveID(d.Inputs)
}

// withSingleID applies a WithID option to a single-example request that does
// not carry its own id.
func withSingleID(data []shot.Datum, id string) []shot.Datum {
	if id == "" || len(data) != 1 || data[0].ID != "" {
		return data
	}
	d := data[0]
	d.ID = id
	return []shot.Datum{d}
}
