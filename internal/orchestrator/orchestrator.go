// Package orchestrator wires internal/config, internal/job, internal/worker,
// internal/listener, and internal/transport into a running server: the
// composition root the C original's main.c performs inline (spec §4.9).
package orchestrator

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kestrelhttp/reactorfs/internal/config"
	"github.com/kestrelhttp/reactorfs/internal/job"
	"github.com/kestrelhttp/reactorfs/internal/listener"
	"github.com/kestrelhttp/reactorfs/internal/poller"
	"github.com/kestrelhttp/reactorfs/internal/transport"
	"github.com/kestrelhttp/reactorfs/internal/worker"
)

// Server is the running system: one job Manager, WorkerCount Workers, and
// one Listener per configured endpoint, each on its own goroutine.
type Server struct {
	cfg       *config.Config
	manager   *job.Manager
	workers   []*worker.Worker
	listeners []*listener.Listener
	log       zerolog.Logger

	wg sync.WaitGroup
}

// New builds a Server from a validated Config: it binds every listener's
// Server socket up front so startup fails fast on a bad address/port/TLS
// cert before any goroutine is spawned (spec §4.9 "bind everything before
// serving any connection").
func New(cfg *config.Config, log zerolog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	manager := job.NewManager(cfg.GlobalMaxJob())

	workers := make([]*worker.Worker, cfg.WorkerCount)
	for i := range workers {
		wlog := log.With().Int("worker", i).Logger()
		pollerFactory := boundPollerFactory(cfg.Worker.MaxJob)
		w, err := worker.New(i, manager, pollerFactory, wlog, cfg.Worker.MaxJob)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: worker %d: %w", i, err)
		}
		workers[i] = w
	}

	listeners := make([]*listener.Listener, 0, len(cfg.Listeners))
	for i, lc := range cfg.Listeners {
		srv, err := transport.Listen(lc.Family == config.FamilyV6, lc.Address, lc.Port, lc.Max)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: listener %d: %w", i, err)
		}
		if lc.Secure {
			if err := srv.EnableTLS(lc.Certificate, lc.PrivateKey); err != nil {
				return nil, fmt.Errorf("orchestrator: listener %d TLS: %w", i, err)
			}
		}
		llog := log.With().Int("listener", i).Str("root", lc.Root).Logger()
		pollerFactory := boundPollerFactory(2)
		l, err := listener.New(srv, manager, workers, lc.Root, pollerFactory, llog)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: listener %d poller: %w", i, err)
		}
		listeners = append(listeners, l)
	}

	return &Server{cfg: cfg, manager: manager, workers: workers, listeners: listeners, log: log}, nil
}

func boundPollerFactory(capacity int) worker.NewPollerFunc {
	return func(onEvent poller.EventHandler, onStop poller.StopHandler, log zerolog.Logger) (poller.Poller, error) {
		return poller.New(onEvent, onStop, log, capacity)
	}
}

// Run starts every worker and listener reactor on its own goroutine and
// blocks until Stop is called and every goroutine has exited.
func (s *Server) Run() {
	for _, w := range s.workers {
		w := w
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			w.Run()
		}()
	}
	for _, l := range s.listeners {
		l := l
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			l.Run()
		}()
	}
	s.wg.Wait()
}

// Stop requests every listener and worker reactor exit, in that order
// (listeners first so no new connection is accepted while workers drain).
// It returns without waiting; Run returns once every reactor goroutine has
// exited.
func (s *Server) Stop() {
	for _, l := range s.listeners {
		l.Stop()
	}
	for _, w := range s.workers {
		w.Stop()
	}
}
