package framecache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PutIsAppendOnly(t *testing.T) {
	c := New(10)

	written, err := c.Put(3, []byte("first"))
	require.NoError(t, err)
	assert.True(t, written)

	written, err = c.Put(3, []byte("second"))
	require.NoError(t, err)
	assert.False(t, written)

	got, ok := c.Get(3)
	require.True(t, ok)
	assert.Equal(t, []byte("first"), got)
	assert.Equal(t, 1, c.Len())
}

func TestCache_RejectsOutOfRange(t *testing.T) {
	c := New(5)

	_, err := c.Put(5, []byte("x"))
	require.ErrorIs(t, err, ErrInvalidIndex)
	_, err = c.Put(-1, []byte("x"))
	require.ErrorIs(t, err, ErrInvalidIndex)
	assert.False(t, c.Has(5))
}

func TestCache_IndicesSortedAndClear(t *testing.T) {
	c := New(0)
	for _, idx := range []int{9, 2, 5} {
		_, err := c.Put(idx, []byte{byte(idx)})
		require.NoError(t, err)
	}
	assert.Equal(t, []int{2, 5, 9}, c.Indices())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.False(t, c.Has(2))
}

func TestCache_Dump(t *testing.T) {
	c := New(100)
	for _, idx := range []int{0, 50, 7} {
		_, err := c.Put(idx, []byte{0xff, 0xd8, byte(idx)})
		require.NoError(t, err)
	}

	dir := filepath.Join(t.TempDir(), "frames")
	n, err := c.Dump(context.Background(), dir, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	data, err := os.ReadFile(filepath.Join(dir, "frame_000050.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 50}, data)
}
