package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"few-shots/internal/embeddings"
	"few-shots/internal/shot"
)

func mustShot(t *testing.T, inputs, outputs shot.Value, id string) shot.Shot {
	t.Helper()
	s, err := shot.New(inputs, outputs, id)
	require.NoError(t, err)
	return s
}

func strShots(t *testing.T) []shot.Shot {
	return []shot.Shot{
		mustShot(t, shot.Text("What is 2+2?"), shot.Text("4"), ""),
		mustShot(t, shot.Text("Capital of France?"), shot.Text("Paris"), ""),
	}
}

func structShots(t *testing.T) []shot.Shot {
	return []shot.Shot{
		mustShot(t, shot.Object(map[string]any{"q": "a"}), shot.Object(map[string]any{"a": "1"}), ""),
		mustShot(t, shot.Object(map[string]any{"q": "b"}), shot.Object(map[string]any{"a": "2"}), ""),
	}
}

func mockVectors() []embeddings.Vector {
	return []embeddings.Vector{{1, 0, 0}, {0.6, 0.8, 0}}
}
