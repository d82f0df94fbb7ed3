//go:build !linux

package poller

import "github.com/rs/zerolog"

// New resolves the best backend for the current platform at startup.
// Non-Linux platforms use the portable poll(2) backend.
func New(onEvent EventHandler, onStop StopHandler, log zerolog.Logger, capacity int) (Poller, error) {
	return NewGenericPoll(onEvent, onStop, log, capacity), nil
}

// DefaultEdgeTriggered reports whether New's backend benefits from the
// EdgeTriggered interest flag (epoll does; generic poll does not).
const DefaultEdgeTriggered = false
