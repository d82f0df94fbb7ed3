// Package poller implements the abstract reactor contract: a background
// goroutine that watches a set of (fd, interest) pairs and dispatches
// readiness callbacks, per spec §4.3.
//
// Two backends are provided: an edge-triggered epoll backend for linux, and
// a portable level-triggered backend built on unix.Poll for everything else
// (or as an explicit fallback). Both satisfy the same Poller interface so
// callers never branch on platform.
package poller

import (
	"sync"
	"sync/atomic"
	"time"
)

// Code is a bitset of interest/readiness flags.
type Code uint32

const (
	Read Code = 1 << iota
	Write
	Error
	Close
	EdgeTriggered
)

func (c Code) Has(f Code) bool { return c&f != 0 }

// Handle is an opaque, compact identifier for a registration. It stands in
// for the C original's `void*` user-pointer: callers store whatever they
// need in the arena entry and look it up by Handle, never by raw pointer
// (spec §9 design note).
type Handle uint64

// EventHandler is invoked once per readiness notification for a handle.
type EventHandler func(h Handle, code Code)

// StopHandler is invoked exactly once when the poller's Run loop exits,
// after the last event has been dispatched.
type StopHandler func()

// Poller is the abstract reactor contract every backend implements.
type Poller interface {
	// Add registers fd for interest in code, associated with h. The
	// registration must not already exist for fd.
	Add(fd int, code Code, h Handle) error
	// Modify changes the interest set for an existing registration.
	Modify(fd int, code Code, h Handle) error
	// Remove deregisters fd. code carries the last-known interest set for
	// backends (kqueue-style filters) that must remove each filter
	// individually.
	Remove(fd int, code Code) error
	// Run blocks, dispatching events via the on_event/on_stop callbacks
	// supplied at construction, until Stop is called. It must be called
	// from exactly one goroutine.
	Run()
	// Stop requests the Run loop exit at its next safe point. It is safe
	// to call from any goroutine and may be called multiple times.
	Stop()
}

// waitTimeout bounds every backend's blocking wait call so that Stop's
// cancellation token is observed promptly (spec §4.3 "Suspension points").
const waitTimeout = 1 * time.Second

// stopSignal is shared bookkeeping every backend embeds: an atomic flag plus
// a channel closed exactly once, so Stop is idempotent and Run can select on
// it without a lock.
type stopSignal struct {
	stopped atomic.Bool
	once    sync.Once
	done    chan struct{}
}

func newStopSignal() *stopSignal {
	return &stopSignal{done: make(chan struct{})}
}

func (s *stopSignal) requestStop() {
	s.once.Do(func() {
		s.stopped.Store(true)
		close(s.done)
	})
}

func (s *stopSignal) isStopped() bool { return s.stopped.Load() }
