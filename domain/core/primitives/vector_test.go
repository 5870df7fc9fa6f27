package primitives

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	t.Run("identical vectors", func(t *testing.T) {
		sim, err := CosineSimilarity(Vector{1, 0, 0}, Vector{1, 0, 0})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, sim, 1e-9)
	})

	t.Run("orthogonal vectors", func(t *testing.T) {
		sim, err := CosineSimilarity(Vector{1, 0}, Vector{0, 1})
		require.NoError(t, err)
		assert.InDelta(t, 0.0, sim, 1e-9)
	})

	t.Run("zero-norm vector returns 0", func(t *testing.T) {
		sim, err := CosineSimilarity(Vector{0, 0, 0}, Vector{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, 0.0, sim)
	})

	t.Run("zero-length vectors return 0", func(t *testing.T) {
		sim, err := CosineSimilarity(Vector{}, Vector{})
		require.NoError(t, err)
		assert.Equal(t, 0.0, sim)
	})

	t.Run("mismatched lengths error", func(t *testing.T) {
		_, err := CosineSimilarity(Vector{1, 2}, Vector{1, 2, 3})
		assert.Error(t, err)
	})
}

func TestTruncateTo(t *testing.T) {
	v := Vector{1, 2, 3, 4, 5}

	assert.Equal(t, Vector{1, 2}, TruncateTo(v, 2))
	assert.Equal(t, v, TruncateTo(v, 100))
	assert.Equal(t, Vector{}, TruncateTo(v, 0))

	// Truncation takes the leading prefix verbatim, no rescaling.
	truncated := TruncateTo(v, 3)
	assert.Equal(t, float32(1), truncated[0])
	assert.Equal(t, float32(3), truncated[2])
}

func TestStableHashDeterministic(t *testing.T) {
	a := StableHash("hello world")
	b := StableHash("hello world")
	c := StableHash("hello world!")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
