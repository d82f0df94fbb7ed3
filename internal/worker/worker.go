// Package worker implements the per-thread (per-goroutine) reactor that
// owns a Poller and drives each assigned Job's read/write state machine to
// completion, per spec §4.7.
package worker

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/kestrelhttp/reactorfs/internal/job"
	"github.com/kestrelhttp/reactorfs/internal/poller"
)

// Worker is one reactor instance: it owns a Poller, a job Manager, and an
// inbound channel through which Listeners hand off freshly accepted Jobs
// (spec §4.7 worker_t, adapted to the goroutine-per-reactor model named in
// spec §9: the worker itself calls Poller.Add for a handed-off job, not the
// listener's goroutine).
type Worker struct {
	id      int
	manager *job.Manager
	pollr   poller.Poller
	incoming chan *job.Job
	handles  map[poller.Handle]*job.Job
	nextH    poller.Handle
	log      zerolog.Logger
}

// NewPollerFunc matches poller.New's signature with the capacity argument
// already bound, so callers can pass poller.New partially applied.
type NewPollerFunc func(onEvent poller.EventHandler, onStop poller.StopHandler, log zerolog.Logger) (poller.Poller, error)

// New constructs a Worker. newPoller is a factory (typically poller.New with
// capacity bound) so tests can substitute a backend; incomingDepth sizes the
// hand-off channel buffer.
func New(id int, manager *job.Manager, newPoller NewPollerFunc, log zerolog.Logger, incomingDepth int) (*Worker, error) {
	w := &Worker{
		id:       id,
		manager:  manager,
		incoming: make(chan *job.Job, incomingDepth),
		handles:  make(map[poller.Handle]*job.Job),
		log:      log,
	}
	p, err := newPoller(w.onEvent, w.onStop, log)
	if err != nil {
		return nil, err
	}
	w.pollr = p
	return w, nil
}

// Assign hands a freshly accepted Job to this worker. Safe to call from any
// goroutine (typically a Listener's); the worker's own Run goroutine drains
// the channel and performs the actual Poller.Add (spec §9).
func (w *Worker) Assign(j *job.Job) bool {
	select {
	case w.incoming <- j:
		return true
	default:
		return false
	}
}

// Run is the worker's reactor loop: drain newly assigned jobs, then block
// in the Poller until Stop is requested. Must be called from exactly one
// goroutine (spec §4.3 Poller.Run contract).
func (w *Worker) Run() {
	go w.drainIncoming()
	w.pollr.Run()
}

func (w *Worker) drainIncoming() {
	for j := range w.incoming {
		h := w.nextHandle()
		j.Handle = h
		w.handles[h] = j
		interest := poller.Read
		if poller.DefaultEdgeTriggered {
			interest |= poller.EdgeTriggered
		}
		if err := w.pollr.Add(j.Conn.FD(), interest, h); err != nil {
			w.log.Error().Err(err).Int("worker", w.id).Msg("poller add failed, dropping job")
			w.manager.Release(j)
			delete(w.handles, h)
		}
	}
}

func (w *Worker) nextHandle() poller.Handle {
	w.nextH++
	return w.nextH
}

// Stop requests the worker's reactor loop exit and stops accepting new
// assignments.
func (w *Worker) Stop() {
	w.pollr.Stop()
}

func (w *Worker) onStop() {
	close(w.incoming)
	for h, j := range w.handles {
		w.manager.Release(j)
		delete(w.handles, h)
	}
}

func (w *Worker) onEvent(h poller.Handle, code poller.Code) {
	j, ok := w.handles[h]
	if !ok {
		return
	}
	if code.Has(poller.Close) || code.Has(poller.Error) {
		w.finishJob(h, j)
		return
	}
	if code.Has(poller.Write) && j.State == job.StateWrite {
		w.continueWrite(h, j)
		return
	}
	if code.Has(poller.Read) && j.State == job.StateRead {
		w.continueRead(h, j)
	}
}

func (w *Worker) continueRead(h poller.Handle, j *job.Job) {
	if j.Conn.TLSActive() {
		done, err := j.Conn.EstablishTLS()
		if err != nil {
			w.finishJob(h, j) // genuine handshake failure, per-connection fatal
			return
		}
		if !done {
			return
		}
	}
	ready, err := j.ReadSome()
	if err != nil {
		w.finishJob(h, j)
		return
	}
	if !ready {
		return
	}
	j.BuildResponse(time.Now())
	if err := w.pollr.Modify(j.Conn.FD(), poller.Write, h); err != nil {
		w.finishJob(h, j)
		return
	}
	w.continueWrite(h, j)
}

func (w *Worker) continueWrite(h poller.Handle, j *job.Job) {
	done, err := j.WriteSome()
	if err != nil {
		w.finishJob(h, j)
		return
	}
	if !done {
		return
	}
	if j.ShouldClose() {
		w.finishJob(h, j)
		return
	}
	w.resetForKeepAlive(h, j)
}

func (w *Worker) resetForKeepAlive(h poller.Handle, j *job.Job) {
	conn, root := j.Conn, j.Root
	j.Reset(conn, root)
	if err := w.pollr.Modify(j.Conn.FD(), poller.Read, h); err != nil {
		w.finishJob(h, j)
	}
}

func (w *Worker) finishJob(h poller.Handle, j *job.Job) {
	_ = w.pollr.Remove(j.Conn.FD(), poller.Read|poller.Write)
	delete(w.handles, h)
	w.manager.Release(j)
}
