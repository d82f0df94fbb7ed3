package httpproto

import (
	"os"
	"time"

	"github.com/kestrelhttp/reactorfs/internal/errs"
)

// Process implements spec §4.5's response builder dispatch table: parse the
// raw request bytes, then route by method. now is injected so tests can
// assert a deterministic Date header; Last-Modified comes from the file's
// modification time.
func Process(raw []byte, root string, now time.Time) Response {
	req, err := ParseRequest(raw)
	if err != nil {
		return BadRequest(now)
	}
	return Dispatch(req, root, now)
}

// Dispatch routes an already-parsed Request.
func Dispatch(req Request, root string, now time.Time) Response {
	switch string(req.Method) {
	case "GET":
		return serveFile(req, root, false, now)
	case "HEAD":
		return serveFile(req, root, true, now)
	case "OPTIONS":
		return Options(now)
	default:
		return MethodNotAllowed(now)
	}
}

func serveFile(req Request, root string, headOnly bool, now time.Time) Response {
	path, err := ResolvePath(string(req.Target), root)
	if err != nil {
		if err == errs.ErrPathTooLong {
			return BadRequest(now)
		}
		return NotFoundResponse(now)
	}
	f, err := os.Open(path)
	if err != nil {
		return NotFoundResponse(now)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return NotFoundResponse(now)
	}
	if info.IsDir() {
		f.Close()
		return NotFoundResponse(now)
	}
	return FileResponse(f, info, path, headOnly, now)
}
