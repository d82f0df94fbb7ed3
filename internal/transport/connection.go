package transport

import (
	"crypto/tls"
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

const (
	recvBufferSize = 64 * 1024
	sendChunkSize  = 256 * 1024
)

// Connection wraps a non-blocking, per-client socket plus its optional TLS
// state, per spec §3 Connection / §4.4 Connection.setup.
type Connection struct {
	fd     int
	server *Server

	tlsConn      *tls.Conn
	tlsHandshook bool
}

func newConnection(fd int, s *Server) (*Connection, error) {
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
		return nil, err
	}
	linger := unix.Linger{Onoff: 1, Linger: 0}
	if err := unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, &linger); err != nil {
		return nil, err
	}

	c := &Connection{fd: fd, server: s}
	if s.tlsConfig != nil {
		netConn, err := netConnFromFD(fd)
		if err != nil {
			return nil, err
		}
		c.tlsConn = tls.Server(netConn, s.tlsConfig)
	}
	return c, nil
}

// FD returns the underlying socket descriptor (for Poller registration).
func (c *Connection) FD() int { return c.fd }

// TLSActive reports whether this connection is TLS-wrapped.
func (c *Connection) TLSActive() bool { return c.tlsConn != nil }

// EstablishTLS drives the non-blocking TLS handshake one step. Callers
// should call this from READ and WRITE reactor events until it returns
// (true, nil); a non-nil error is a genuine handshake failure (bad cert,
// protocol mismatch) and is per-connection fatal (spec §7) — it is never a
// want-read/want-write signal, since isWouldBlock(err) never holds for a
// blocking net.Conn-backed tls.Conn (see netconn.go: the handshake either
// completes or fails, it does not return EAGAIN).
func (c *Connection) EstablishTLS() (done bool, err error) {
	if c.tlsConn == nil {
		return true, nil
	}
	if c.tlsHandshook {
		return true, nil
	}
	if err := c.tlsConn.Handshake(); err != nil {
		return false, err
	}
	c.tlsHandshook = true
	return true, nil
}

// Recv reads into buf, looping the underlying recv(2) until buf is full, the
// peer has no more data ready right now, or the peer has closed its write
// side. Would-block (EAGAIN/EWOULDBLOCK) is bookkeeping, not an error: it
// terminates the loop and returns whatever was read so far with a nil error
// (spec §4.4: "a single syscall returning ... EAGAIN-equivalent terminates
// the loop without error"; §7: would-block is transient and must never
// escape the transport layer). A true end-of-stream (recv returns 0 with no
// bytes read this call) is reported as io.EOF, matching spec §4.6's "zero
// bytes otherwise -> terminal".
func (c *Connection) Recv(buf []byte) (int, error) {
	if c.tlsConn != nil {
		return c.tlsConn.Read(buf)
	}
	var total int
	for total < len(buf) {
		n, err := unix.Read(c.fd, buf[total:])
		switch {
		case n > 0:
			total += n
		case err == nil:
			if total == 0 {
				return 0, io.EOF
			}
			return total, nil
		case err == unix.EINTR:
			continue
		case isWouldBlock(err):
			return total, nil
		default:
			return total, err
		}
	}
	return total, nil
}

// Send writes buf, looping the underlying send(2) until every byte is
// accepted by the socket buffer or the buffer fills up. A short write ending
// in EAGAIN/EWOULDBLOCK is success with partial progress (out_sent < size),
// per spec §4.4 — never an error.
func (c *Connection) Send(buf []byte) (int, error) {
	if c.tlsConn != nil {
		return c.tlsConn.Write(buf)
	}
	var total int
	for total < len(buf) {
		n, err := unix.Write(c.fd, buf[total:])
		switch {
		case n > 0:
			total += n
		case err == unix.EINTR:
			continue
		case isWouldBlock(err):
			return total, nil
		case err == nil:
			// write(2) returning 0 with no error makes no forward progress;
			// stop here rather than spin.
			return total, nil
		default:
			return total, err
		}
	}
	return total, nil
}

// Sendfile streams up to sendChunkSize bytes from f starting at offset,
// looping sendfile(2) calls (a single call may send fewer bytes than
// requested) until that cap is reached, the kernel has nothing more to send
// right now, or the file is exhausted. Preferring the kernel sendfile(2)
// path and falling back to a buffered read/write loop when TLS is active
// (TLS sockets cannot be sendfile targets; spec §4.4 point 3 / SPEC_FULL.md
// Open Question a). EAGAIN/EWOULDBLOCK is bookkeeping, not an error, per
// spec §4.4/§7.
func (c *Connection) Sendfile(f *os.File, offset int64) (sent int64, err error) {
	if c.tlsConn != nil {
		return c.bufferedSendfile(f, offset)
	}
	var total int64
	for total < sendChunkSize {
		off := offset + total
		n, serr := unix.Sendfile(c.fd, int(f.Fd()), &off, sendChunkSize-int(total))
		switch {
		case n > 0:
			total += int64(n)
		case serr == nil:
			return total, nil // nothing more to send right now or EOF
		case serr == unix.EINTR:
			continue
		case isWouldBlock(serr):
			return total, nil
		default:
			return total, serr
		}
	}
	return total, nil
}

func (c *Connection) bufferedSendfile(f *os.File, offset int64) (int64, error) {
	buf := make([]byte, 32*1024)
	n, rerr := f.ReadAt(buf, offset)
	if n == 0 && rerr != nil && !errors.Is(rerr, io.EOF) {
		return 0, rerr
	}
	if n == 0 {
		return 0, io.EOF
	}
	written, werr := c.Send(buf[:n])
	return int64(written), werr
}

// Close performs the graceful shutdown sequence from spec §4.4 point 4:
// TLS close_notify (if active), shutdown(WR), best-effort drain, then a
// retried close(2) to absorb EINTR.
func (c *Connection) Close() error {
	if c.tlsConn != nil {
		_ = c.tlsConn.Close()
	}
	_ = unix.Shutdown(c.fd, unix.SHUT_WR)
	c.drain()
	for {
		err := unix.Close(c.fd)
		if err != unix.EINTR {
			return err
		}
	}
}

func (c *Connection) drain() {
	var scratch [4096]byte
	for i := 0; i < 16; i++ {
		n, err := unix.Read(c.fd, scratch[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}
