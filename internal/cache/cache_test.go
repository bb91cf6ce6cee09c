package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeySeparatesModels(t *testing.T) {
	a := Key("text-embedding-3-small", "hello")
	b := Key("text-embedding-3-large", "hello")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "text-embedding-3-small:"))
	assert.Equal(t, a, Key("text-embedding-3-small", "hello"))
}

func TestFloat32Encoding(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3e-7}
	out := decodeFloat32s(encodeFloat32s(in))
	assert.Equal(t, in, out)
	assert.Empty(t, decodeFloat32s(nil))
}
