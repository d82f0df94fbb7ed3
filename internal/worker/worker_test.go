package worker_test

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/kestrelhttp/reactorfs/internal/job"
	"github.com/kestrelhttp/reactorfs/internal/poller"
	"github.com/kestrelhttp/reactorfs/internal/transport"
	"github.com/kestrelhttp/reactorfs/internal/worker"
)

func TestWorkerDrivesJobToCompletion(t *testing.T) {
	root, err := filepath.Abs("../httpproto/testdata/www")
	require.NoError(t, err)

	srv, err := transport.Listen(false, "127.0.0.1", 0, 8)
	require.NoError(t, err)
	defer srv.Close()

	manager := job.NewManager(4)
	log := zerolog.Nop()
	newPoller := func(onEvent poller.EventHandler, onStop poller.StopHandler, l zerolog.Logger) (poller.Poller, error) {
		return poller.New(onEvent, onStop, l, 8)
	}
	w, err := worker.New(0, manager, newPoller, log, 4)
	require.NoError(t, err)

	go w.Run()
	defer w.Stop()

	sa, err := unix.Getsockname(srv.FD())
	require.NoError(t, err)
	v4 := sa.(*unix.SockaddrInet4)
	addr := fmt.Sprintf("127.0.0.1:%d", v4.Port)

	client, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer client.Close()

	conn, err := srv.Accept()
	require.NoError(t, err)

	j, ok := manager.Acquire(conn, root)
	require.True(t, ok)
	require.True(t, w.Assign(j))

	_, err = client.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)

	client.SetReadDeadline(time.Now().Add(3 * time.Second))
	reader := bufio.NewReader(client)
	statusLine, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, statusLine, "200 OK")
}

// TestWorkerReusesKeepAliveConnection exercises spec §8's keep-alive reuse
// scenario: two sequential GETs over one TCP connection must both succeed
// without the Job or its fd being torn down in between, then a subsequent
// client-initiated close must be recognized as terminal rather than leaving
// the job parked waiting for an event an edge-triggered poller will never
// deliver again.
func TestWorkerReusesKeepAliveConnection(t *testing.T) {
	root, err := filepath.Abs("../httpproto/testdata/www")
	require.NoError(t, err)

	srv, err := transport.Listen(false, "127.0.0.1", 0, 8)
	require.NoError(t, err)
	defer srv.Close()

	manager := job.NewManager(4)
	log := zerolog.Nop()
	newPoller := func(onEvent poller.EventHandler, onStop poller.StopHandler, l zerolog.Logger) (poller.Poller, error) {
		return poller.New(onEvent, onStop, l, 8)
	}
	w, err := worker.New(0, manager, newPoller, log, 4)
	require.NoError(t, err)

	go w.Run()
	defer w.Stop()

	sa, err := unix.Getsockname(srv.FD())
	require.NoError(t, err)
	v4 := sa.(*unix.SockaddrInet4)
	addr := fmt.Sprintf("127.0.0.1:%d", v4.Port)

	client, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer client.Close()

	conn, err := srv.Accept()
	require.NoError(t, err)

	j, ok := manager.Acquire(conn, root)
	require.True(t, ok)
	require.True(t, w.Assign(j))

	reader := bufio.NewReader(client)
	for i := 0; i < 2; i++ {
		_, err = client.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))
		require.NoError(t, err)

		client.SetReadDeadline(time.Now().Add(3 * time.Second))
		statusLine, err := reader.ReadString('\n')
		require.NoError(t, err)
		require.Containsf(t, statusLine, "200 OK", "request %d", i)

		contentLength := 0
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if line == "\r\n" {
				break
			}
			fmt.Sscanf(line, "Content-Length: %d", &contentLength)
		}
		_, err = io.CopyN(io.Discard, reader, int64(contentLength))
		require.NoError(t, err)
	}

	require.Equal(t, 1, manager.Held(), "job should still be checked out for the reused connection")

	// Close the client connection; the worker must recognize the resulting
	// EOF as terminal and release the job rather than leak it.
	client.Close()
	require.Eventually(t, func() bool {
		return manager.Held() == 0
	}, 3*time.Second, 20*time.Millisecond, "job leaked after peer closed the connection")
}
