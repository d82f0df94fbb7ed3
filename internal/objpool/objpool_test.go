package objpool_test

import (
	"testing"

	"github.com/kestrelhttp/reactorfs/internal/objpool"
	"github.com/stretchr/testify/require"
)

type cell struct {
	a, b int64
}

func TestAcquireReleaseConservation(t *testing.T) {
	p := objpool.New[cell](4)
	require.Equal(t, 4, p.Cap())

	var acquired []*cell
	for i := 0; i < 4; i++ {
		c, ok := p.Acquire()
		require.True(t, ok)
		acquired = append(acquired, c)
	}
	require.Equal(t, 4, p.Held())

	_, ok := p.Acquire()
	require.False(t, ok, "pool must report exhaustion rather than grow or block")

	p.Release(acquired[0])
	require.Equal(t, 3, p.Held())

	c, ok := p.Acquire()
	require.True(t, ok, "released cell must be reusable")
	require.Equal(t, acquired[0], c)
}

func TestReleaseIsLIFO(t *testing.T) {
	p := objpool.New[cell](3)
	a, _ := p.Acquire()
	b, _ := p.Acquire()
	c, _ := p.Acquire()
	p.Release(b)
	p.Release(a)

	first, ok := p.Acquire()
	require.True(t, ok)
	require.Equal(t, a, first)

	second, ok := p.Acquire()
	require.True(t, ok)
	require.Equal(t, b, second)

	_, ok = p.Acquire()
	require.False(t, ok)
	_ = c
}
