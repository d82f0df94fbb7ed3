// Package job implements the per-connection request/response state machine
// (spec §3 Job, §4.6) on top of internal/transport and internal/httpproto.
package job

import (
	"time"

	"github.com/kestrelhttp/reactorfs/internal/errs"
	"github.com/kestrelhttp/reactorfs/internal/httpproto"
	"github.com/kestrelhttp/reactorfs/internal/objpool"
	"github.com/kestrelhttp/reactorfs/internal/poller"
	"github.com/kestrelhttp/reactorfs/internal/transport"
)

var errBufferFull = errs.ErrRequestTooLarge

// State mirrors job_state_t from the C original: a Job is either waiting on
// more request bytes or draining a response.
type State int

const (
	StateRead State = iota
	StateWrite
)

// Job is one in-flight connection's read/response state (spec §3 Job).
// Jobs are recycled through a Manager's fixed-size pool, never allocated
// per-request, matching the bounded-jobs invariant in spec §6.
type Job struct {
	Conn *transport.Connection
	Root string

	State State

	readBuf   [readBufferSize]byte
	readLen   int
	resp      httpproto.Response
	hasResp   bool

	sentHead int
	sentBody int
	sentFile int64

	// Handle is the poller registration token for this job's connection,
	// set by the owning worker just before poller.Add. Reset clears it,
	// including on a keep-alive reset; the worker keeps its own copy.
	Handle poller.Handle
}

const readBufferSize = 16 * 1024

// Reset returns the Job to its pristine, reusable state (spec §4.6
// job_reset: equivalent to re-running job_init minus the allocation).
func (j *Job) Reset(conn *transport.Connection, root string) {
	if j.hasResp {
		j.resp.Close()
	}
	j.Conn = conn
	j.Root = root
	j.State = StateRead
	j.readLen = 0
	j.resp = httpproto.Response{}
	j.hasResp = false
	j.sentHead = 0
	j.sentBody = 0
	j.sentFile = 0
	j.Handle = 0
}

// Cleanup releases any response resources (e.g. an open file) without
// returning the Job to a pool. Called when a connection is torn down.
func (j *Job) Cleanup() {
	if j.hasResp {
		j.resp.Close()
		j.hasResp = false
	}
	if j.Conn != nil {
		j.Conn.Close()
		j.Conn = nil
	}
}

// ReadSome drains whatever the peer currently has to offer into the job's
// read buffer, appending to whatever partial request has accumulated so
// far. Returns true once a complete request has been buffered (a bare
// "\r\n\r\n" was seen) and the Job is ready to move to StateWrite. A non-nil
// error is always terminal: io.EOF means the peer closed its write side
// (spec §4.6 "zero bytes otherwise -> terminal"), anything else is a genuine
// recv failure — callers must close the job rather than wait for another
// readiness event, since an edge-triggered poller will not signal again.
func (j *Job) ReadSome() (ready bool, err error) {
	if j.readLen >= len(j.readBuf) {
		return false, errBufferFull
	}
	n, rerr := j.Conn.Recv(j.readBuf[j.readLen:])
	j.readLen += n
	if hasRequestTerminator(j.readBuf[:j.readLen]) {
		return true, nil
	}
	return false, rerr
}

// BuildResponse parses the buffered request and dispatches it, transitioning
// the Job into StateWrite. now is the wall-clock instant to stamp into the
// Date header.
func (j *Job) BuildResponse(now time.Time) {
	j.resp = httpproto.Process(j.readBuf[:j.readLen], j.Root, now)
	j.hasResp = true
	j.State = StateWrite
}

// WriteSome drains one chunk of the response (head, then inline body or
// file bytes) per spec §4.6's multi-stage send loop. Returns true once the
// entire response has been flushed.
func (j *Job) WriteSome() (done bool, err error) {
	head := j.resp.Head
	if j.sentHead < len(head) {
		n, werr := j.Conn.Send(head[j.sentHead:])
		j.sentHead += n
		if werr != nil {
			return false, werr
		}
		if j.sentHead < len(head) {
			return false, nil
		}
	}

	switch j.resp.Kind {
	case httpproto.KindHeadOnly:
		return true, nil
	case httpproto.KindInline:
		body := j.resp.InlineBody
		if j.sentBody >= len(body) {
			return true, nil
		}
		n, werr := j.Conn.Send(body[j.sentBody:])
		j.sentBody += n
		if werr != nil {
			return false, werr
		}
		return j.sentBody >= len(body), nil
	case httpproto.KindFile:
		if j.sentFile >= j.resp.FileSize {
			return true, nil
		}
		n, werr := j.Conn.Sendfile(j.resp.File, j.sentFile)
		j.sentFile += n
		if werr != nil {
			return false, werr
		}
		return j.sentFile >= j.resp.FileSize, nil
	default:
		return true, nil
	}
}

// ShouldClose reports whether the connection must be closed after the
// current response finishes draining (spec §4.6: Connection: close cases).
func (j *Job) ShouldClose() bool {
	return j.hasResp && j.resp.ShouldClose
}

func hasRequestTerminator(buf []byte) bool {
	if len(buf) < 4 {
		return false
	}
	for i := 0; i+4 <= len(buf); i++ {
		if buf[i] == '\r' && buf[i+1] == '\n' && buf[i+2] == '\r' && buf[i+3] == '\n' {
			return true
		}
	}
	return false
}

// Manager is the fixed-capacity pool of reusable Jobs (spec §3 Manager /
// §4.6 manager_init, grounded on internal/objpool and the C original's
// manager_t wrapping an objpool_t).
type Manager struct {
	pool *objpool.Pool[Job]
}

// NewManager allocates a job pool sized to maxJob (spec §4.6 manager_init +
// manager_setup collapsed into one constructor, matching the Go idiom of
// returning ready-to-use values instead of separate init/setup steps).
func NewManager(maxJob int) *Manager {
	return &Manager{pool: objpool.New[Job](maxJob)}
}

// Acquire returns a freshly reset Job wired to conn/root, or ok=false when
// the pool is exhausted (spec §6: job exhaustion must reject the
// connection, never block or grow unbounded).
func (m *Manager) Acquire(conn *transport.Connection, root string) (*Job, bool) {
	j, ok := m.pool.Acquire()
	if !ok {
		return nil, false
	}
	j.Reset(conn, root)
	return j, true
}

// Release cleans up and returns a Job to the pool.
func (m *Manager) Release(j *Job) {
	j.Cleanup()
	m.pool.Release(j)
}

// Cap reports the manager's fixed job capacity.
func (m *Manager) Cap() int { return m.pool.Cap() }

// Held reports how many jobs are currently checked out.
func (m *Manager) Held() int { return m.pool.Held() }
