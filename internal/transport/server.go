// Package transport implements the non-blocking TCP (+ optional TLS)
// listening socket and per-connection I/O, per spec §4.4.
package transport

import (
	"crypto/tls"
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Server is a bound, listening, non-blocking socket (spec §3 Server).
// At most one Server should exist per (address, port) — enforced by the
// caller binding a fresh Server per listener.
type Server struct {
	fd      int
	addr    unix.Sockaddr
	family  int // unix.AF_INET or unix.AF_INET6
	backlog int

	tlsConfig *tls.Config // nil unless EnableTLS was called
}

// Listen creates a non-blocking stream socket, sets SO_REUSEADDR, attempts
// TCP_FASTOPEN best-effort, binds to address:port, and listens with the
// given backlog (spec §4.4 Server.setup).
func Listen(v6 bool, address string, port int, backlog int) (*Server, error) {
	family := unix.AF_INET
	if v6 {
		family = unix.AF_INET6
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	s := &Server{fd: fd, family: family, backlog: backlog}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}

	// Best-effort TCP_FASTOPEN: absence of kernel support must not fail
	// startup (spec §4.4).
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_FASTOPEN, 16)

	sockaddr, err := toSockaddr(family, address, port)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	s.addr = sockaddr

	if err := unix.Bind(fd, sockaddr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind %s:%d: %w", address, port, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen: %w", err)
	}
	return s, nil
}

func toSockaddr(family int, address string, port int) (unix.Sockaddr, error) {
	ip := net.ParseIP(address)
	if ip == nil {
		return nil, fmt.Errorf("invalid address %q", address)
	}
	if family == unix.AF_INET {
		var a [4]byte
		copy(a[:], ip.To4())
		return &unix.SockaddrInet4{Port: port, Addr: a}, nil
	}
	var a [16]byte
	copy(a[:], ip.To16())
	return &unix.SockaddrInet6{Port: port, Addr: a}, nil
}

// EnableTLS creates a TLS config with a minimum version of TLS 1.2, loading
// and validating the given keypair. Kernel-TLS offload has no public hook
// in Go's crypto/tls, so sendfile always uses the buffered strategy once
// TLS is active (spec §4.4 point 2; documented in SPEC_FULL.md).
func (s *Server) EnableTLS(certFile, keyFile string) error {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return fmt.Errorf("load keypair: %w", err)
	}
	s.tlsConfig = &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}
	return nil
}

// FD returns the underlying listening socket descriptor (for Poller registration).
func (s *Server) FD() int { return s.fd }

// TLSEnabled reports whether EnableTLS was called.
func (s *Server) TLSEnabled() bool { return s.tlsConfig != nil }

// Accept accepts a pending connection and configures it per spec §4.4
// Connection.setup. Returns (nil, unix.EAGAIN) when no connection is
// pending — callers must treat that as the transient/loop-again case.
func (s *Server) Accept() (*Connection, error) {
	fd, _, err := unix.Accept4(s.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return nil, err
	}
	conn, err := newConnection(fd, s)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return conn, nil
}

// Close closes the listening socket.
func (s *Server) Close() error {
	return unix.Close(s.fd)
}
