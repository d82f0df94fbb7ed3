package httpproto_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kestrelhttp/reactorfs/internal/httpproto"
)

func testRoot(t *testing.T) string {
	t.Helper()
	abs, err := filepath.Abs("testdata/www")
	require.NoError(t, err)
	return abs
}

func TestGetExistingFile(t *testing.T) {
	root := testRoot(t)
	now := time.Now()
	resp := httpproto.Process([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"), root, now)

	require.Equal(t, httpproto.KindFile, resp.Kind)
	require.Contains(t, string(resp.Head), "HTTP/1.1 200 OK")
	require.Contains(t, string(resp.Head), "Content-Length: 12")
	require.Contains(t, string(resp.Head), "Content-Type: text/html")
	require.Equal(t, int64(12), resp.FileSize)
	resp.Close()
}

func TestGetWithQueryString(t *testing.T) {
	root := testRoot(t)
	now := time.Now()
	resp := httpproto.Process([]byte("GET /index.html?x=1 HTTP/1.1\r\n\r\n"), root, now)
	require.Equal(t, httpproto.KindFile, resp.Kind)
	require.Contains(t, string(resp.Head), "Content-Length: 12")
	resp.Close()
}

func TestTraversalBlocked(t *testing.T) {
	root := testRoot(t)
	now := time.Now()
	resp := httpproto.Process([]byte("GET /../etc/passwd HTTP/1.1\r\n\r\n"), root, now)
	require.Equal(t, httpproto.KindInline, resp.Kind)
	require.Contains(t, string(resp.Head), "404 NOT FOUND")
	require.Contains(t, string(resp.Head), "Connection: keep-alive")
	require.Equal(t, httpproto.Page404, string(resp.InlineBody))
}

func TestUnsupportedMethod(t *testing.T) {
	root := testRoot(t)
	now := time.Now()
	resp := httpproto.Process([]byte("DELETE / HTTP/1.1\r\n\r\n"), root, now)
	require.Contains(t, string(resp.Head), "405 METHOD NOT ALLOWED")
	require.Contains(t, string(resp.Head), "Connection: close")
	require.True(t, resp.ShouldClose)
}

func TestOptions(t *testing.T) {
	root := testRoot(t)
	now := time.Now()
	resp := httpproto.Process([]byte("OPTIONS / HTTP/1.1\r\n\r\n"), root, now)
	require.Equal(t, httpproto.KindHeadOnly, resp.Kind)
	require.Contains(t, string(resp.Head), "204 NO CONTENT")
	require.Contains(t, string(resp.Head), "Allow: GET, HEAD, OPTIONS")
}

func TestMalformedRequestLine(t *testing.T) {
	root := testRoot(t)
	now := time.Now()
	resp := httpproto.Process([]byte("GET /\r\n\r\n"), root, now)
	require.Contains(t, string(resp.Head), "400 BAD REQUEST")
	require.True(t, resp.ShouldClose)
}

func TestHeadMatchesGetHeadersNoBody(t *testing.T) {
	root := testRoot(t)
	now := time.Now()
	resp := httpproto.Process([]byte("HEAD / HTTP/1.1\r\n\r\n"), root, now)
	require.Equal(t, httpproto.KindHeadOnly, resp.Kind)
	require.Contains(t, string(resp.Head), "Content-Length: 12")
}
