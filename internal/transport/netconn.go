package transport

import (
	"net"
	"os"
)

// netConnFromFD adapts a raw non-blocking socket descriptor into a net.Conn
// so crypto/tls.Server can wrap it (mirrors the teacher's own os.NewFile +
// net.FileConn bridge used for its Windows accept path).
func netConnFromFD(fd int) (net.Conn, error) {
	file := os.NewFile(uintptr(fd), "")
	conn, err := net.FileConn(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	// net.FileConn dup()s fd; the caller's copy stays the system of record
	// for non-blocking reads/writes, so close the now-redundant *os.File.
	file.Close()
	return conn, nil
}
