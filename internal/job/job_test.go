package job_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrelhttp/reactorfs/internal/job"
)

func TestManagerAcquireReleaseConservation(t *testing.T) {
	m := job.NewManager(4)
	require.Equal(t, 4, m.Cap())

	held := make([]*job.Job, 0, 4)
	for i := 0; i < 4; i++ {
		j, ok := m.Acquire(nil, "/tmp/www")
		require.True(t, ok)
		held = append(held, j)
	}
	require.Equal(t, 4, m.Held())

	_, ok := m.Acquire(nil, "/tmp/www")
	require.False(t, ok, "pool must not grow past its fixed capacity")

	for _, j := range held {
		j.Conn = nil // avoid Cleanup dereferencing a nil *transport.Connection's methods
		m.Release(j)
	}
	require.Equal(t, 0, m.Held())
}

func TestJobResetClearsState(t *testing.T) {
	j := &job.Job{}
	j.Reset(nil, "/tmp/www")
	require.Equal(t, job.StateRead, j.State)
	require.False(t, j.ShouldClose())
}
