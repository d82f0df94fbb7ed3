//go:build !windows

// Generic level-triggered poll(2) backend, available on every unix platform
// golang.org/x/sys/unix supports Poll on. Used as the portable fallback when
// epoll isn't the chosen backend, per spec §4.3's backend matrix ("Level-
// triggered generic poll: needs explicit remove when interest ends").
package poller

import (
	"fmt"
	"sync"

	"github.com/eapache/queue"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/kestrelhttp/reactorfs/internal/fdmap"
)

type pollEntry struct {
	fd     int32
	events int16
	handle Handle
}

type readyEvent struct {
	handle Handle
	code   Code
}

// pollPoller tracks registrations in a flat array (what unix.Poll needs) and
// a fdmap.Map from fd to that array's index, since poll(2) gives back no
// user-data of its own.
type pollPoller struct {
	log     zerolog.Logger
	onEvent EventHandler
	onStop  StopHandler

	*stopSignal

	mu      sync.Mutex
	entries []pollEntry
	index   *fdmap.Map

	// ready buffers the events drained from one Wait() call so dispatch
	// never races a concurrent Add/Remove rebuilding entries.
	ready *queue.Queue
}

// NewGenericPoll constructs the portable poll(2)-based backend. capacity
// bounds the number of simultaneous registrations.
func NewGenericPoll(onEvent EventHandler, onStop StopHandler, log zerolog.Logger, capacity int) Poller {
	return &pollPoller{
		log:        log,
		onEvent:    onEvent,
		onStop:     onStop,
		stopSignal: newStopSignal(),
		index:      fdmap.New(nextPow2(capacity*2), capacity),
		ready:      queue.New(),
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	if p < 1 {
		p = 1
	}
	return p
}

func toPollEvents(code Code) int16 {
	var ev int16
	if code.Has(Read) {
		ev |= unix.POLLIN
	}
	if code.Has(Write) {
		ev |= unix.POLLOUT
	}
	return ev
}

func (p *pollPoller) Add(fd int, code Code, h Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.index.Get(fd); exists {
		return fmt.Errorf("poll: fd %d already registered", fd)
	}
	idx := len(p.entries)
	p.entries = append(p.entries, pollEntry{fd: int32(fd), events: toPollEvents(code), handle: h})
	if !p.index.Put(fd, idx) {
		p.entries = p.entries[:idx]
		return fmt.Errorf("poll: registration capacity exhausted")
	}
	return nil
}

func (p *pollPoller) Modify(fd int, code Code, h Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, ok := p.index.Get(fd)
	if !ok {
		return fmt.Errorf("poll: fd %d not registered", fd)
	}
	p.entries[idx].events = toPollEvents(code)
	p.entries[idx].handle = h
	return nil
}

// Remove deregisters fd. Because removal must not leave a hole that shifts
// every other entry's index (the fdmap tracks indices), the last entry is
// swapped into the removed slot, matching a classic swap-remove.
func (p *pollPoller) Remove(fd int, _ Code) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, ok := p.index.Get(fd)
	if !ok {
		return nil
	}
	last := len(p.entries) - 1
	if idx != last {
		p.entries[idx] = p.entries[last]
		p.index.Remove(int(p.entries[idx].fd))
		p.index.Put(int(p.entries[idx].fd), idx)
	}
	p.entries = p.entries[:last]
	p.index.Remove(fd)
	return nil
}

func (p *pollPoller) snapshot() []pollEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]pollEntry, len(p.entries))
	copy(out, p.entries)
	return out
}

func (p *pollPoller) Run() {
	timeoutMS := int(waitTimeout.Milliseconds())
	for !p.isStopped() {
		entries := p.snapshot()
		if len(entries) == 0 {
			// Nothing to wait on; sleep in small increments so Stop is
			// still observed promptly.
			unix.Poll(nil, 0, timeoutMS)
			continue
		}
		fds := make([]unix.PollFd, len(entries))
		for i, e := range entries {
			fds[i] = unix.PollFd{Fd: e.fd, Events: e.events}
		}
		n, err := unix.Poll(fds, timeoutMS)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			p.log.Warn().Err(err).Msg("poll failed")
			continue
		}
		if n == 0 {
			continue
		}
		for i, fd := range fds {
			if fd.Revents == 0 {
				continue
			}
			p.ready.Add(readyEvent{handle: entries[i].handle, code: decodePollRevents(fd.Revents)})
		}
		for p.ready.Length() > 0 {
			ev := p.ready.Remove().(readyEvent)
			p.onEvent(ev.handle, ev.code)
		}
	}
	p.onStop()
}

func decodePollRevents(rev int16) Code {
	var c Code
	if rev&unix.POLLIN != 0 {
		c |= Read
	}
	if rev&unix.POLLOUT != 0 {
		c |= Write
	}
	if rev&unix.POLLERR != 0 {
		c |= Error
	}
	if rev&(unix.POLLHUP|unix.POLLNVAL) != 0 {
		c |= Close
	}
	return c
}

func (p *pollPoller) Stop() { p.requestStop() }
