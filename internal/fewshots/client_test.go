package fewshots

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"few-shots/internal/embeddings"
	"few-shots/internal/shot"
	"few-shots/internal/store"
)

// textEmbedder maps known texts to fixed vectors and derives a stable
// vector for anything else.
func textEmbedder(known map[string]embeddings.Vector) embeddings.EmbedderFunc {
	return func(_ context.Context, texts []string) ([]embeddings.Vector, error) {
		out := make([]embeddings.Vector, len(texts))
		for i, t := range texts {
			if v, ok := known[t]; ok {
				out[i] = v
				continue
			}
			var sum float32
			for _, b := range []byte(t) {
				sum += float32(b)
			}
			out[i] = embeddings.Vector{1, float32(len(t)), sum}
		}
		return out, nil
	}
}

func newMemoryClient(known map[string]embeddings.Vector) (*Client, *store.Memory) {
	mem := store.NewMemory()
	return New(textEmbedder(known), mem), mem
}

func TestClient_AddListRemoveObject(t *testing.T) {
	ctx := context.Background()
	c, _ := newMemoryClient(nil)
	in := shot.Object(map[string]any{"a": 1})
	out := shot.Object(map[string]any{"b": 2})

	id, err := c.Add(ctx, in, out)
	require.NoError(t, err)
	expected, err := shot.DeriveID(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, expected, id)

	results, err := c.List(ctx, in, WithLimit(1))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Shot.Inputs.Equal(in))
	assert.True(t, results[0].Shot.Outputs.Equal(out))
	assert.InDelta(t, 0, results[0].Distance, 1e-6)

	require.NoError(t, c.Remove(ctx, in, out))
	results, err = c.List(ctx, in, WithLimit(1))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestClient_AddBatchWithFixedID(t *testing.T) {
	ctx := context.Background()
	c, mem := newMemoryClient(nil)

	ids, err := c.AddBatch(ctx, []shot.Datum{
		{Inputs: shot.Object(map[string]any{"x": 1}), Outputs: shot.Object(map[string]any{"y": 1})},
		{Inputs: shot.Object(map[string]any{"x": 2}), Outputs: shot.Object(map[string]any{"y": 2}), ID: "fixed-id"},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, "fixed-id", ids[1])
	first, err := shot.DeriveID(map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, first, ids[0])

	require.NoError(t, c.RemoveIDs(ctx, []string{"fixed-id"}))
	assert.Equal(t, 1, mem.Len(store.DefaultNamespace))
	got, err := c.GetIDs(ctx, ids)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ids[0], got[0].ID)
}

func TestClient_UpsertDedup(t *testing.T) {
	ctx := context.Background()
	c, mem := newMemoryClient(nil)
	in, out := shot.Text("What is 2+2?"), shot.Text("4")

	id1, err := c.Add(ctx, in, out)
	require.NoError(t, err)
	id2, err := c.Add(ctx, in, out)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, mem.Len(store.DefaultNamespace))

	results, err := c.List(ctx, in)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestClient_ListRanking(t *testing.T) {
	ctx := context.Background()
	c, _ := newMemoryClient(map[string]embeddings.Vector{
		"query": {1, 0},
		"near":  {1, 0.1},
		"mid":   {1, 1},
		"far":   {0, 1},
	})
	_, err := c.AddBatch(ctx, []shot.Datum{
		{Inputs: shot.Text("far"), Outputs: shot.Text("3")},
		{Inputs: shot.Text("mid"), Outputs: shot.Text("2")},
		{Inputs: shot.Text("near"), Outputs: shot.Text("1")},
	})
	require.NoError(t, err)

	results, err := c.List(ctx, shot.Text("query"), WithLimit(2))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "near", results[0].Shot.Inputs.Text())
	assert.Equal(t, "mid", results[1].Shot.Inputs.Text())
}

func TestClient_ListDefaultLimit(t *testing.T) {
	ctx := context.Background()
	c, _ := newMemoryClient(nil)
	var data []shot.Datum
	for i := 0; i < 7; i++ {
		data = append(data, shot.Datum{Inputs: shot.Text(fmt.Sprintf("q%d", i)), Outputs: shot.Text("a")})
	}
	_, err := c.AddBatch(ctx, data)
	require.NoError(t, err)

	results, err := c.List(ctx, shot.Text("q0"))
	require.NoError(t, err)
	assert.Len(t, results, DefaultLimit)

	c2 := New(textEmbedder(nil), store.NewMemory(), WithDefaultLimit(2))
	_, err = c2.AddBatch(ctx, data)
	require.NoError(t, err)
	results, err = c2.List(ctx, shot.Text("q0"))
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestClient_NamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	c, _ := newMemoryClient(nil)
	in, out := shot.Text("hello"), shot.Text("world")

	_, err := c.Add(ctx, in, out, WithNamespace("a"))
	require.NoError(t, err)

	results, err := c.List(ctx, in, WithNamespace("b"))
	require.NoError(t, err)
	assert.Empty(t, results)

	got, err := c.Get(ctx, in, WithNamespace("b"))
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = c.Get(ctx, in, WithNamespace("a"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "world", got.Outputs.Text())

	require.NoError(t, c.Clear(ctx, WithNamespace("b")))
	results, err = c.List(ctx, in, WithNamespace("a"))
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestClient_RemoveByContentAndExplicitID(t *testing.T) {
	ctx := context.Background()
	c, mem := newMemoryClient(nil)

	_, err := c.Add(ctx, shot.Text("q1"), shot.Text("a1"))
	require.NoError(t, err)
	_, err = c.Add(ctx, shot.Text("q2"), shot.Text("a2"), WithID("custom"))
	require.NoError(t, err)

	// Outputs do not take part in the id.
	require.NoError(t, c.Remove(ctx, shot.Text("q1"), shot.Text("something else")))
	assert.Equal(t, 1, mem.Len(store.DefaultNamespace))

	// Content alone does not find a shot stored under an explicit id.
	require.NoError(t, c.Remove(ctx, shot.Text("q2"), shot.Text("a2")))
	assert.Equal(t, 1, mem.Len(store.DefaultNamespace))

	require.NoError(t, c.Remove(ctx, shot.Text("q2"), shot.Text("a2"), WithID("custom")))
	assert.Equal(t, 0, mem.Len(store.DefaultNamespace))

	// Removing again is a no-op.
	require.NoError(t, c.Remove(ctx, shot.Text("q2"), shot.Text("a2"), WithID("custom")))
}

func TestClient_Requests(t *testing.T) {
	ctx := context.Background()
	c, mem := newMemoryClient(nil)

	req, err := Classify([]any{
		[]any{"q1", "a1"},
		[]any{map[string]any{"k": "v"}, "a2", "id-2"},
	}, nil, false)
	require.NoError(t, err)
	ids, err := c.AddRequest(ctx, req)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, "id-2", ids[1])

	ids, err = c.AddRequest(ctx, Single(shot.Text("q3"), shot.Text("a3"), ""), WithID("id-3"))
	require.NoError(t, err)
	assert.Equal(t, []string{"id-3"}, ids)
	assert.Equal(t, 3, mem.Len(store.DefaultNamespace))

	_, err = c.AddRequest(ctx, IDs([]string{"id-2"}))
	assert.ErrorIs(t, err, ErrInvalidArguments)

	require.NoError(t, c.RemoveRequest(ctx, IDs([]string{"id-2", "id-3"})))
	require.NoError(t, c.RemoveRequest(ctx, Single(shot.Text("q1"), shot.Text("a1"), "")))
	assert.Equal(t, 0, mem.Len(store.DefaultNamespace))
}

func TestClient_AddBatchSingleEmbedCall(t *testing.T) {
	ctx := context.Background()
	emb := new(embeddings.MockEmbedder)
	st := new(store.MockStore)
	c := New(emb, st)

	data := []shot.Datum{
		{Inputs: shot.Text("b"), Outputs: shot.Text("1")},
		{Inputs: shot.Object(map[string]any{"z": 1, "a": 2}), Outputs: shot.Text("2")},
	}
	vectors := []embeddings.Vector{{1, 0}, {0, 1}}
	emb.On("Embed", ctx, []string{"b", `{"a":2,"z":1}`}).Return(vectors, nil).Once()
	st.On("Add", ctx, mock.MatchedBy(func(shots []shot.Shot) bool {
		return len(shots) == 2 && shots[0].Key() == "b" && shots[1].Key() == `{"a":2,"z":1}`
	}), vectors, "ns").Return(nil).Once()

	ids, err := c.AddBatch(ctx, data, WithNamespace("ns"))
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	emb.AssertNumberOfCalls(t, "Embed", 1)
	st.AssertNumberOfCalls(t, "Add", 1)
}

func TestClient_EmptyBatchIsNoOp(t *testing.T) {
	ctx := context.Background()
	emb := new(embeddings.MockEmbedder)
	st := new(store.MockStore)
	c := New(emb, st)

	ids, err := c.AddBatch(ctx, nil)
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)

	require.NoError(t, c.RemoveBatch(ctx, []shot.Datum{}))
	require.NoError(t, c.RemoveIDs(ctx, nil))

	req, err := Classify([]any{}, nil, true)
	require.NoError(t, err)
	ids, err = c.AddRequest(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, ids)

	emb.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
	st.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	st.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything, mock.Anything)
}

func TestClient_EmbeddingCountMismatch(t *testing.T) {
	ctx := context.Background()
	emb := new(embeddings.MockEmbedder)
	st := new(store.MockStore)
	c := New(emb, st)

	emb.On("Embed", ctx, []string{"q"}).Return([]embeddings.Vector{}, nil)

	_, err := c.Add(ctx, shot.Text("q"), shot.Text("a"))
	assert.ErrorIs(t, err, ErrEmbeddingCount)
	_, err = c.List(ctx, shot.Text("q"))
	assert.ErrorIs(t, err, ErrEmbeddingCount)
	st.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestClient_ErrorsPropagateUnchanged(t *testing.T) {
	ctx := context.Background()
	embedErr := errors.New("embedder down")
	storeErr := store.Unavailable("list", errors.New("connection refused"))

	emb := new(embeddings.MockEmbedder)
	emb.On("Embed", ctx, []string{"fails"}).Return(nil, embedErr)
	emb.On("Embed", ctx, []string{"ok"}).Return([]embeddings.Vector{{1}}, nil)
	st := new(store.MockStore)
	st.On("List", ctx, embeddings.Vector{1}, store.DefaultNamespace, DefaultLimit).Return(nil, storeErr)
	st.On("Clear", ctx, "ns").Return(storeErr)
	c := New(emb, st)

	_, err := c.Add(ctx, shot.Text("fails"), shot.Text(""))
	assert.Equal(t, embedErr, err)

	_, err = c.List(ctx, shot.Text("ok"))
	assert.Equal(t, storeErr, err)
	assert.True(t, store.IsRetryable(err))

	assert.Equal(t, storeErr, c.Clear(ctx, WithNamespace("ns")))
}

func TestClient_GetByContent(t *testing.T) {
	ctx := context.Background()
	c, _ := newMemoryClient(nil)
	in := shot.Object(map[string]any{"b": 1, "a": 2})

	got, err := c.Get(ctx, in)
	require.NoError(t, err)
	assert.Nil(t, got)

	id, err := c.Add(ctx, in, shot.Text("out"))
	require.NoError(t, err)

	// Key order does not change the derived id.
	got, err = c.Get(ctx, shot.Object(map[string]any{"a": 2, "b": 1}))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)

	got, err = c.Get(ctx, shot.Text("ignored"), WithID(id))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "out", got.Outputs.Text())
}

func TestClient_SchemaErrorOnDimensionChange(t *testing.T) {
	ctx := context.Background()
	c, _ := newMemoryClient(map[string]embeddings.Vector{
		"two":   {1, 0},
		"three": {1, 0, 0},
	})
	_, err := c.Add(ctx, shot.Text("two"), shot.Text(""))
	require.NoError(t, err)

	_, err = c.List(ctx, shot.Text("three"))
	assert.ErrorIs(t, err, store.ErrSchema)
}
