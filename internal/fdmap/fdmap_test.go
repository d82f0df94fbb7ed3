package fdmap_test

import (
	"testing"

	"github.com/kestrelhttp/reactorfs/internal/fdmap"
	"github.com/stretchr/testify/require"
)

func TestPutGetRemove(t *testing.T) {
	m := fdmap.New(8, 4)
	require.True(t, m.Put(5, 100))
	require.True(t, m.Put(13, 200)) // collides with 5 in an 8-bucket table for some hash, exercises chaining either way
	require.True(t, m.Put(21, 300))

	slot, ok := m.Get(5)
	require.True(t, ok)
	require.Equal(t, 100, slot)

	slot, ok = m.Get(13)
	require.True(t, ok)
	require.Equal(t, 200, slot)

	m.Remove(13)
	_, ok = m.Get(13)
	require.False(t, ok)

	slot, ok = m.Get(21)
	require.True(t, ok)
	require.Equal(t, 300, slot)
}

func TestCapacityExhausted(t *testing.T) {
	m := fdmap.New(4, 2)
	require.True(t, m.Put(1, 1))
	require.True(t, m.Put(2, 2))
	require.False(t, m.Put(3, 3), "node pool is exhausted, Put must fail rather than grow")
}

func TestPutDuplicateRejected(t *testing.T) {
	m := fdmap.New(4, 2)
	require.True(t, m.Put(1, 1))
	require.False(t, m.Put(1, 2))
	slot, ok := m.Get(1)
	require.True(t, ok)
	require.Equal(t, 1, slot)
}
