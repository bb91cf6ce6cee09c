package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"few-shots/internal/embeddings"
	"few-shots/internal/shot"
)

func TestSynchronizedConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	st := Synchronized(mem)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := shot.New(shot.Text(fmt.Sprintf("q%d", i)), shot.Text("a"), "")
			if err != nil {
				t.Error(err)
				return
			}
			if err := st.Add(ctx, []shot.Shot{s}, []embeddings.Vector{{1, float32(i)}}, "ns"); err != nil {
				t.Error(err)
			}
			if _, err := st.List(ctx, embeddings.Vector{1, 0}, "ns", 3); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, mem.Len("ns"))
	results, err := st.List(ctx, embeddings.Vector{1, 0}, "ns", 100)
	require.NoError(t, err)
	assert.Len(t, results, 50)
}
