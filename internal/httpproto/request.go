// Package httpproto implements the zero-copy HTTP/1.x request parser, the
// traversal-safe path resolver, and the response builder (spec §4.5).
package httpproto

import (
	"github.com/kestrelhttp/reactorfs/internal/errs"
)

const MaxHeaders = 128

// Header is a byte-range slice pair into the caller-owned buffer.
type Header struct {
	Name  []byte
	Value []byte
}

// Request holds slices into the caller's receive buffer. They are valid
// only until the next Connection.Recv overwrites that buffer (spec §3).
type Request struct {
	Method  []byte
	Target  []byte
	Version []byte
	Headers []Header
	Body    []byte
}

func isDelim(b byte) bool {
	return b == ' ' || b == '\r' || b == '\n' || b == ':' || b == 0
}

// ParseRequest performs a single pass over raw, producing slices entirely
// within raw (spec §8 property 2: parser totality). It never copies.
func ParseRequest(raw []byte) (Request, error) {
	var req Request

	i := 0
	n := len(raw)

	// request line: METHOD SP TARGET SP VERSION CRLF
	methodStart := i
	for i < n && raw[i] != ' ' {
		i++
	}
	if i >= n {
		return Request{}, errs.ErrMalformedRequest
	}
	req.Method = raw[methodStart:i]
	i++ // skip space

	targetStart := i
	for i < n && raw[i] != ' ' {
		i++
	}
	if i >= n || i == targetStart {
		return Request{}, errs.ErrMalformedRequest
	}
	req.Target = raw[targetStart:i]
	i++ // skip space

	versionStart := i
	for i < n && raw[i] != '\r' && raw[i] != '\n' {
		i++
	}
	if i == versionStart {
		return Request{}, errs.ErrMalformedRequest
	}
	req.Version = raw[versionStart:i]

	// advance past CRLF (or bare LF)
	i = skipEOL(raw, i)

	// headers: NAME ':' SP? VALUE CRLF, terminated by an empty line
	for i < n {
		if raw[i] == '\r' || raw[i] == '\n' {
			i = skipEOL(raw, i)
			break
		}
		nameStart := i
		for i < n && raw[i] != ':' && raw[i] != '\r' && raw[i] != '\n' {
			i++
		}
		if i >= n || raw[i] != ':' {
			return Request{}, errs.ErrMalformedRequest
		}
		name := raw[nameStart:i]
		i++ // skip colon
		for i < n && raw[i] == ' ' {
			i++
		}
		valueStart := i
		for i < n && raw[i] != '\r' && raw[i] != '\n' {
			i++
		}
		value := raw[valueStart:i]
		i = skipEOL(raw, i)

		if len(req.Headers) >= MaxHeaders {
			return Request{}, errs.ErrMalformedRequest
		}
		req.Headers = append(req.Headers, Header{Name: name, Value: value})
	}

	req.Body = raw[min(i, n):n]
	return req, nil
}

func skipEOL(raw []byte, i int) int {
	n := len(raw)
	if i < n && raw[i] == '\r' {
		i++
	}
	if i < n && raw[i] == '\n' {
		i++
	}
	return i
}

// HeaderValue returns the value of the first header matching name
// (case-insensitive), or nil if absent.
func (r *Request) HeaderValue(name string) []byte {
	for _, h := range r.Headers {
		if equalFold(h.Name, name) {
			return h.Value
		}
	}
	return nil
}

func equalFold(b []byte, s string) bool {
	if len(b) != len(s) {
		return false
	}
	for i := range b {
		c := b[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		d := s[i]
		if 'A' <= d && d <= 'Z' {
			d += 'a' - 'A'
		}
		if c != d {
			return false
		}
	}
	return true
}
