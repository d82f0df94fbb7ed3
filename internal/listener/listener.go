// Package listener implements the accept-loop reactor: one goroutine per
// bound Server socket, round-robin handing accepted connections off to a
// fixed set of Workers, per spec §4.8.
package listener

import (
	"errors"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/kestrelhttp/reactorfs/internal/job"
	"github.com/kestrelhttp/reactorfs/internal/poller"
	"github.com/kestrelhttp/reactorfs/internal/transport"
	"github.com/kestrelhttp/reactorfs/internal/worker"
)

// Listener owns a bound Server socket and a Poller registered for READ
// readiness on it; each readiness notification accepts until would-block,
// closing any connection for which the job Manager's pool has no Job or no
// worker takes the hand-off (spec §4.8 on_event / accept_conn / reject_conn).
type Listener struct {
	server  *transport.Server
	manager *job.Manager
	workers []*worker.Worker
	root    string

	cycle int
	serverHandle poller.Handle

	pollr poller.Poller
	log   zerolog.Logger
}

// New constructs a Listener. newPoller mirrors worker.NewPollerFunc so tests
// can substitute a backend.
func New(server *transport.Server, manager *job.Manager, workers []*worker.Worker, root string, newPoller worker.NewPollerFunc, log zerolog.Logger) (*Listener, error) {
	l := &Listener{
		server:  server,
		manager: manager,
		workers: workers,
		root:    root,
		log:     log,
	}
	p, err := newPoller(l.onEvent, l.onStop, log)
	if err != nil {
		return nil, err
	}
	l.pollr = p

	const serverHandle poller.Handle = 1
	l.serverHandle = serverHandle
	interest := poller.Read
	if poller.DefaultEdgeTriggered {
		interest |= poller.EdgeTriggered
	}
	if err := l.pollr.Add(server.FD(), interest, serverHandle); err != nil {
		return nil, err
	}
	return l, nil
}

// Run blocks in the Poller's reactor loop until Stop is called. Must be
// called from exactly one goroutine.
func (l *Listener) Run() {
	l.pollr.Run()
}

// Stop requests the listener's reactor loop exit.
func (l *Listener) Stop() {
	l.pollr.Stop()
}

func (l *Listener) onStop() {
	_ = l.server.Close()
}

// onEvent implements the C original's listener on_event: drain Accept()
// until EAGAIN, handing each connection to a job pulled from the Manager
// and round-robin-assigned to a worker; reject (accept-then-close) when the
// job pool is exhausted rather than leaving connections to pile up in the
// kernel backlog (spec §4.8, §6 bounded-jobs invariant).
func (l *Listener) onEvent(h poller.Handle, code poller.Code) {
	if h != l.serverHandle || !code.Has(poller.Read) {
		return
	}
	for {
		conn, err := l.server.Accept()
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
				return
			}
			l.log.Error().Err(err).Msg("accept failed")
			return
		}
		if !l.dispatch(conn) {
			conn.Close()
		}
	}
}

// dispatch acquires a Job for conn and assigns it to the next worker in
// round-robin order, cycling past any worker whose inbound channel is full
// (spec §4.8 accept_conn's retry-next-worker loop).
func (l *Listener) dispatch(conn *transport.Connection) bool {
	j, ok := l.manager.Acquire(conn, l.root)
	if !ok {
		return false
	}
	n := len(l.workers)
	for i := 0; i < n; i++ {
		idx := (l.cycle + i) % n
		if l.workers[idx].Assign(j) {
			l.cycle = (idx + 1) % n
			return true
		}
	}
	l.manager.Release(j)
	return false
}
