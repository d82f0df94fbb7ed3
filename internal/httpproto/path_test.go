package httpproto_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrelhttp/reactorfs/internal/httpproto"
)

func mkdirAll(path string) error { return os.MkdirAll(path, 0o755) }
func writeFile(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0o644)
}

func TestResolvePathWithinRoot(t *testing.T) {
	root := testRoot(t)
	path, err := httpproto.ResolvePath("/index.html", root)
	require.NoError(t, err)
	require.Contains(t, path, root)
}

func TestResolvePathTraversalRejected(t *testing.T) {
	root := testRoot(t)
	_, err := httpproto.ResolvePath("/../../../../etc/passwd", root)
	require.Error(t, err)
}

func TestResolvePathSiblingPrefixRejected(t *testing.T) {
	// Exercises the "rootX/foo" sibling-prefix attack named in spec §4.5
	// step 5: a bare strings.HasPrefix check would wrongly accept a sibling
	// directory whose name happens to start with root's name.
	base := t.TempDir()
	root := base + "/www"
	sibling := base + "/wwwEVIL"
	require.NoError(t, mkdirAll(root))
	require.NoError(t, mkdirAll(sibling))
	require.NoError(t, writeFile(sibling+"/secret", "top secret"))

	_, err := httpproto.ResolvePath("/../wwwEVIL/secret", root)
	require.Error(t, err)
}

func TestResolvePathDirectoryAppendsIndex(t *testing.T) {
	root := testRoot(t)
	path, err := httpproto.ResolvePath("/", root)
	require.NoError(t, err)
	require.Contains(t, path, "index.html")
}

// TestParseRequestTotality exercises spec §8 property 2: for all byte
// strings, parse either fails cleanly or returns slices entirely within the
// input — checked here by asserting the parser never panics across a batch
// of malformed/edge-case inputs.
func TestParseRequestTotality(t *testing.T) {
	inputs := [][]byte{
		[]byte(""),
		[]byte("\r\n\r\n"),
		[]byte("GET"),
		[]byte("GET / HTTP/1.1\r\nX:\r\n\r\nbodybytes"),
		[]byte("GET / HTTP/1.1\r\nHost: a\r\nHost: b\r\n\r\n"),
	}
	for _, in := range inputs {
		require.NotPanics(t, func() {
			httpproto.ParseRequest(in)
		})
	}
}
