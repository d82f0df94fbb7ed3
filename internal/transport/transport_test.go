package transport_test

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/kestrelhttp/reactorfs/internal/transport"
)

func TestListenAcceptSendRecv(t *testing.T) {
	srv, err := transport.Listen(false, "127.0.0.1", 0, 16)
	require.NoError(t, err)
	defer srv.Close()
	require.False(t, srv.TLSEnabled())
	require.Greater(t, srv.FD(), 0)

	addr := localAddr(t, srv)

	client, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer client.Close()

	var conn *transport.Connection
	require.Eventually(t, func() bool {
		c, aerr := srv.Accept()
		if aerr != nil {
			return false
		}
		conn = c
		return true
	}, 2*time.Second, 10*time.Millisecond)
	require.NotNil(t, conn)
	defer conn.Close()
	require.False(t, conn.TLSActive())

	_, err = client.Write([]byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 16)
	var n int
	require.Eventually(t, func() bool {
		got, _ := conn.Recv(buf)
		if got > 0 {
			n = got
			return true
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "ping", string(buf[:n]))

	sent, err := conn.Send([]byte("pong"))
	require.NoError(t, err)
	require.Equal(t, 4, sent)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	out := make([]byte, 16)
	rn, err := client.Read(out)
	require.NoError(t, err)
	require.Equal(t, "pong", string(out[:rn]))
}

// localAddr recovers the port the kernel assigned Listen's port-0 bind via
// getsockname(2), since Server does not expose a net.Addr.
func localAddr(t *testing.T, srv *transport.Server) string {
	t.Helper()
	sa, err := unix.Getsockname(srv.FD())
	require.NoError(t, err)
	v4, ok := sa.(*unix.SockaddrInet4)
	require.True(t, ok, "expected an IPv4 sockaddr")
	return fmt.Sprintf("127.0.0.1:%d", v4.Port)
}
