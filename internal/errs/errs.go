// Package errs defines the sentinel error taxonomy from spec §7, mirroring
// the teacher's api/errors.go sentinel-error style adapted to this domain's
// kinds: transient, per-connection-fatal, per-request-recoverable, and
// server-level-fatal.
package errs

import "errors"

var (
	// ErrWouldBlock marks a transient condition (EAGAIN-equivalent or
	// EINTR) that must never escape the transport layer.
	ErrWouldBlock = errors.New("would block")

	// ErrMalformedRequest is a per-connection-fatal parse failure (400).
	ErrMalformedRequest = errors.New("malformed request")

	// ErrMethodNotAllowed is a per-connection-fatal unsupported method (405).
	ErrMethodNotAllowed = errors.New("method not allowed")

	// ErrNotFound is a per-request-recoverable resolution/open/stat
	// failure (404); the connection is kept alive.
	ErrNotFound = errors.New("not found")

	// ErrPathTraversal is returned by the path resolver when a target
	// would escape the configured root.
	ErrPathTraversal = errors.New("path escapes root")

	// ErrPathTooLong is returned when a resolved path would overflow the
	// destination buffer (spec §9 open question (b): bound every append).
	ErrPathTooLong = errors.New("resolved path too long")

	// ErrPoolExhausted names pool exhaustion. objpool.Pool and job.Manager
	// report exhaustion as ok=false and do not return this error.
	ErrPoolExhausted = errors.New("pool exhausted")

	// ErrConnectionClosed marks a connection that has already completed
	// its close sequence. Connection.Close is not idempotent (each call
	// closes the descriptor again), and no transport operation returns
	// this error.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrRequestTooLarge is returned when a request's headers exceed the
	// fixed per-job read buffer without a terminator ever appearing.
	ErrRequestTooLarge = errors.New("request too large")
)
