//go:build linux

package poller

import "github.com/rs/zerolog"

// New resolves the best backend for the current platform at startup (spec
// §9: "Resolve at startup, not per call"). Linux prefers epoll.
func New(onEvent EventHandler, onStop StopHandler, log zerolog.Logger, capacity int) (Poller, error) {
	return NewEpoll(onEvent, onStop, log)
}

// DefaultEdgeTriggered reports whether New's backend benefits from the
// EdgeTriggered interest flag (epoll does; generic poll does not).
const DefaultEdgeTriggered = true
