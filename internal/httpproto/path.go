package httpproto

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/kestrelhttp/reactorfs/internal/errs"
)

// maxResolvedPath bounds every append in ResolvePath, per spec §9 open
// question (b): the C original may append "/index.html" past the buffer's
// real size; this implementation returns ErrPathTooLong instead.
const maxResolvedPath = 4096

// ResolvePath implements spec §4.5's path resolver: strip the query string,
// join with root, percent-decode, append index.html for directory-like
// targets, and verify the result cannot escape root (traversal defense).
//
// root must already be an absolute, realpath'd directory.
func ResolvePath(target string, root string) (string, error) {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		target = target[:i]
	}

	decoded, err := percentDecode(target)
	if err != nil {
		return "", err
	}

	if len(root)+len(decoded) > maxResolvedPath {
		return "", errs.ErrPathTooLong
	}

	joined := root + decoded
	if joined == "" || strings.HasSuffix(joined, "/") {
		if len(joined)+len("index.html") > maxResolvedPath {
			return "", errs.ErrPathTooLong
		}
		joined += "index.html"
	}

	resolved := filepath.Clean(joined)

	if !withinRoot(resolved, root) {
		return "", errs.ErrPathTraversal
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", errs.ErrNotFound
	}
	if info.IsDir() {
		if len(resolved)+len("/index.html") > maxResolvedPath {
			return "", errs.ErrPathTooLong
		}
		resolved = filepath.Join(resolved, "index.html")
		if !withinRoot(resolved, root) {
			return "", errs.ErrPathTraversal
		}
		if _, err := os.Stat(resolved); err != nil {
			return "", errs.ErrNotFound
		}
	}

	return resolved, nil
}

// withinRoot implements the traversal defense of spec §4.5 step 5: resolved
// must start with root, and the next character must be '/' or end-of-string
// — rejecting both "../" chains (filepath.Clean already collapses those) and
// sibling-prefix attacks like "rootX/foo" (a bare strings.HasPrefix(resolved,
// root) would wrongly accept that).
func withinRoot(resolved, root string) bool {
	root = strings.TrimSuffix(root, "/")
	if !strings.HasPrefix(resolved, root) {
		return false
	}
	rest := resolved[len(root):]
	return rest == "" || rest[0] == '/'
}

// percentDecode decodes %HH escapes and '+' as space, in place semantics
// mirrored as a fresh string (Go strings are immutable, unlike the C
// original's in-place buffer mutation).
func percentDecode(s string) (string, error) {
	hasEscape := strings.IndexByte(s, '%') >= 0 || strings.IndexByte(s, '+') >= 0
	if !hasEscape {
		return s, nil
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '+':
			out = append(out, ' ')
		case '%':
			if i+2 >= len(s) {
				return "", errs.ErrMalformedRequest
			}
			hi, ok1 := hexVal(s[i+1])
			lo, ok2 := hexVal(s[i+2])
			if !ok1 || !ok2 {
				return "", errs.ErrMalformedRequest
			}
			out = append(out, byte(hi<<4|lo))
			i += 2
		default:
			out = append(out, s[i])
		}
	}
	return string(out), nil
}

func hexVal(c byte) (int, bool) {
	switch {
	case '0' <= c && c <= '9':
		return int(c - '0'), true
	case 'a' <= c && c <= 'f':
		return int(c-'a') + 10, true
	case 'A' <= c && c <= 'F':
		return int(c-'A') + 10, true
	default:
		return 0, false
	}
}
