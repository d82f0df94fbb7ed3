package httpproto

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Kind tags which variant of HttpResponse (spec §3) this Response is.
type Kind int

const (
	KindHeadOnly Kind = iota
	KindInline
	KindFile
)

// Response is the tagged-union rendition of spec §3's HttpResponse variant.
type Response struct {
	Kind Kind

	Head []byte // status line + headers + blank line

	InlineBody []byte // KindInline only

	File     *os.File // KindFile only; caller-owned, closed by the Job
	FileSize int64     // KindFile only

	ShouldClose bool // "Connection: close" semantics (spec §4.6/§6)
}

const serverName = "reactorfs"

func rfc1123(t time.Time) string {
	return t.UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT")
}

func writeStatusLine(b *strings.Builder, code int, reason string) {
	fmt.Fprintf(b, "HTTP/1.1 %d %s\r\n", code, reason)
}

func writeCommonHeaders(b *strings.Builder, now time.Time) {
	fmt.Fprintf(b, "Date: %s\r\n", rfc1123(now))
	fmt.Fprintf(b, "Server: %s\r\n", serverName)
}

// buildErrorResponse composes a canned-body error response. All error
// responses use Cache-Control: no-store, private per spec §4.5.
func buildErrorResponse(code int, reason, body string, closeAfter bool, now time.Time) Response {
	var b strings.Builder
	writeStatusLine(&b, code, reason)
	writeCommonHeaders(&b, now)
	fmt.Fprintf(&b, "Content-Type: text/html; charset=utf-8\r\n")
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	fmt.Fprintf(&b, "Cache-Control: no-store, private\r\n")
	if closeAfter {
		fmt.Fprintf(&b, "Connection: close\r\n")
	} else {
		fmt.Fprintf(&b, "Connection: keep-alive\r\n")
	}
	b.WriteString("\r\n")
	return Response{
		Kind:        KindInline,
		Head:        []byte(b.String()),
		InlineBody:  []byte(body),
		ShouldClose: closeAfter,
	}
}

// BadRequest builds the 400 response (malformed request; close after).
func BadRequest(now time.Time) Response {
	return buildErrorResponse(400, "BAD REQUEST", Page400, true, now)
}

// MethodNotAllowed builds the 405 response (unsupported method; close after).
func MethodNotAllowed(now time.Time) Response {
	return buildErrorResponse(405, "METHOD NOT ALLOWED", Page405, true, now)
}

// NotFoundResponse builds the 404 response (resolution failure; keep-alive).
func NotFoundResponse(now time.Time) Response {
	return buildErrorResponse(404, "NOT FOUND", Page404, false, now)
}

// InternalError builds the 500 response (close after).
func InternalError(now time.Time) Response {
	return buildErrorResponse(500, "INTERNAL SERVER ERROR", Page500, true, now)
}

// Options builds the 204 No Content response for OPTIONS requests.
func Options(now time.Time) Response {
	var b strings.Builder
	writeStatusLine(&b, 204, "NO CONTENT")
	writeCommonHeaders(&b, now)
	b.WriteString("Allow: GET, HEAD, OPTIONS\r\n")
	b.WriteString("Content-Length: 0\r\n")
	b.WriteString("Connection: keep-alive\r\n")
	b.WriteString("\r\n")
	return Response{Kind: KindHeadOnly, Head: []byte(b.String())}
}

// FileResponse builds the 200 response for GET (Kind=File) or HEAD
// (Kind=HeadOnly, same headers, no body streamed) against an already-opened
// file and its stat info.
func FileResponse(f *os.File, info os.FileInfo, path string, headOnly bool, now time.Time) Response {
	var b strings.Builder
	writeStatusLine(&b, 200, "OK")
	writeCommonHeaders(&b, now)
	b.WriteString("Accept-Ranges: none\r\n")
	b.WriteString("Cache-Control: public, max-age=86400\r\n")
	b.WriteString("Connection: keep-alive\r\n")
	fmt.Fprintf(&b, "Content-Length: %d\r\n", info.Size())
	fmt.Fprintf(&b, "Content-Type: %s\r\n", MimeOf(path))
	fmt.Fprintf(&b, "Last-Modified: %s\r\n", rfc1123(info.ModTime()))
	b.WriteString("\r\n")

	if headOnly {
		f.Close()
		return Response{Kind: KindHeadOnly, Head: []byte(b.String())}
	}
	return Response{
		Kind:     KindFile,
		Head:     []byte(b.String()),
		File:     f,
		FileSize: info.Size(),
	}
}

// Close releases any OS resource held by the response (the open file for
// KindFile), matching spec §4.6's job cleanup contract.
func (r *Response) Close() {
	if r.Kind == KindFile && r.File != nil {
		r.File.Close()
		r.File = nil
	}
}
