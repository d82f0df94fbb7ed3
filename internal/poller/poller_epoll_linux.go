//go:build linux

package poller

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// epollPoller is the edge-triggered Linux backend, grounded on the teacher's
// reactor/reactor_linux.go and internal/concurrency/poller_linux.go: one
// epoll instance per Poller, EPOLLET interest, a single ready notification
// per not-ready→ready transition (the caller's handler must drain fully).
type epollPoller struct {
	epfd int
	log  zerolog.Logger

	onEvent EventHandler
	onStop  StopHandler

	*stopSignal

	mu    sync.Mutex
	users map[int]Handle // fd -> last-registered handle, for Remove/logging
}

// NewEpoll constructs the epoll-backed Poller.
func NewEpoll(onEvent EventHandler, onStop StopHandler, log zerolog.Logger) (Poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	return &epollPoller{
		epfd:       fd,
		log:        log,
		onEvent:    onEvent,
		onStop:     onStop,
		stopSignal: newStopSignal(),
		users:      make(map[int]Handle),
	}, nil
}

func toEpollEvents(code Code) uint32 {
	var ev uint32
	if code.Has(Read) {
		ev |= unix.EPOLLIN
	}
	if code.Has(Write) {
		ev |= unix.EPOLLOUT
	}
	if code.Has(EdgeTriggered) {
		ev |= unix.EPOLLET
	}
	return ev
}

func (p *epollPoller) Add(fd int, code Code, h Handle) error {
	ev := &unix.EpollEvent{Events: toEpollEvents(code), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return fmt.Errorf("epoll_ctl(ADD, %d): %w", fd, err)
	}
	p.mu.Lock()
	p.users[fd] = h
	p.mu.Unlock()
	return nil
}

func (p *epollPoller) Modify(fd int, code Code, h Handle) error {
	ev := &unix.EpollEvent{Events: toEpollEvents(code), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev); err != nil {
		return fmt.Errorf("epoll_ctl(MOD, %d): %w", fd, err)
	}
	p.mu.Lock()
	p.users[fd] = h
	p.mu.Unlock()
	return nil
}

func (p *epollPoller) Remove(fd int, _ Code) error {
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	p.mu.Lock()
	delete(p.users, fd)
	p.mu.Unlock()
	if err != nil && err != unix.ENOENT {
		return fmt.Errorf("epoll_ctl(DEL, %d): %w", fd, err)
	}
	return nil
}

func (p *epollPoller) handleOf(fd int) (Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.users[fd]
	return h, ok
}

// Run loops waiting for events with a bounded timeout so Stop's
// cancellation is observed within waitTimeout, per spec §4.3.
func (p *epollPoller) Run() {
	events := make([]unix.EpollEvent, 128)
	timeoutMS := int(waitTimeout.Milliseconds())
	for !p.isStopped() {
		n, err := unix.EpollWait(p.epfd, events, timeoutMS)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			p.log.Warn().Err(err).Msg("epoll_wait failed")
			continue
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			h, ok := p.handleOf(fd)
			if !ok {
				continue // deregistered between wait and dispatch
			}
			code := decodeEpollEvents(events[i].Events)
			p.onEvent(h, code)
		}
	}
	unix.Close(p.epfd)
	p.onStop()
}

func decodeEpollEvents(ev uint32) Code {
	var c Code
	if ev&unix.EPOLLIN != 0 {
		c |= Read
	}
	if ev&unix.EPOLLOUT != 0 {
		c |= Write
	}
	if ev&(unix.EPOLLERR) != 0 {
		c |= Error
	}
	if ev&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		c |= Close
	}
	return c
}

func (p *epollPoller) Stop() { p.requestStop() }
