// Package config defines the immutable Config value set once at startup
// (spec §3), and validation of it. Building a Config from CLI flags/env is
// the orchestrator's job (cmd/reactorfsd); this package only models the
// value and enforces its invariants.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Family is the listener's address family.
type Family int

const (
	FamilyV4 Family = iota
	FamilyV6
)

// ListenerConfig describes one bound endpoint (spec §3 Config.listeners[]).
type ListenerConfig struct {
	Family      Family
	Address     string
	Port        int
	Max         int // listen backlog / max accepted connections for this endpoint
	Secure      bool
	Root        string
	Certificate string
	PrivateKey  string
}

// WorkerConfig holds per-worker tuning (spec §3 Config.worker.*).
type WorkerConfig struct {
	MaxJob     int
	BufferSize int
}

// Config is the value type set once at startup (spec §3).
type Config struct {
	WorkerCount int
	MaxConn     int
	BufferSize  int
	Listeners   []ListenerConfig
	Worker      WorkerConfig

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	ShutdownTimeout time.Duration
}

// Default returns the spec §6 CLI defaults for a single HTTP (non-TLS)
// listener on all v4 interfaces.
func Default() *Config {
	c := &Config{
		WorkerCount: 1,
		MaxConn:     255,
		BufferSize:  1 << 20, // 1 MiB
		Listeners: []ListenerConfig{
			{
				Family:  FamilyV4,
				Address: "0.0.0.0",
				Port:    8080,
				Max:     255,
				Root:    "www",
			},
		},
		ShutdownTimeout: 10 * time.Second,
	}
	c.deriveWorkerLimits()
	return c
}

// deriveWorkerLimits computes the per-worker max_job from spec §3,
// ceil(max_conn/worker_count)+1, and defaults Worker.BufferSize to
// BufferSize. The global max_job is not stored here; GlobalMaxJob computes
// it on demand.
func (c *Config) deriveWorkerLimits() {
	if c.WorkerCount <= 0 {
		c.WorkerCount = 1
	}
	c.Worker.MaxJob = (c.MaxConn+c.WorkerCount-1)/c.WorkerCount + 1
	if c.Worker.BufferSize == 0 {
		c.Worker.BufferSize = c.BufferSize
	}
}

// GlobalMaxJob returns the global JobManager capacity: max_conn+2, a fixed
// headroom regardless of listener count (spec §3; the original source sets
// config->max_job = opts.max_conn + 2 once, before the listener count is
// ever bumped for TLS).
func (c *Config) GlobalMaxJob() int {
	return c.MaxConn + 2
}

// Validate checks every invariant spec §3/§6 requires and fills in derived
// fields (Worker.MaxJob).
func (c *Config) Validate() error {
	if c.WorkerCount < 1 {
		return fmt.Errorf("config: worker_count must be >= 1, got %d", c.WorkerCount)
	}
	if c.MaxConn < 1 {
		return fmt.Errorf("config: max_conn must be >= 1, got %d", c.MaxConn)
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("config: buffer_size must be positive, got %d", c.BufferSize)
	}
	if len(c.Listeners) == 0 {
		return fmt.Errorf("config: at least one listener is required")
	}
	for i, l := range c.Listeners {
		if l.Port <= 0 || l.Port > 65535 {
			return fmt.Errorf("config: listeners[%d].port out of range: %d", i, l.Port)
		}
		if l.Max < 1 {
			return fmt.Errorf("config: listeners[%d].max must be >= 1, got %d", i, l.Max)
		}
		if l.Root == "" {
			return fmt.Errorf("config: listeners[%d].root must not be empty", i)
		}
		if l.Secure && (l.Certificate == "" || l.PrivateKey == "") {
			return fmt.Errorf("config: listeners[%d] is secure but missing certificate/private_key", i)
		}
	}
	c.deriveWorkerLimits()
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	return nil
}

// DefaultWorkerCount mirrors the teacher's server/types.go default of
// runtime.NumCPU() for tunables that want a CPU-scaled fallback; the spec's
// own CLI default is fixed at 1 (§6), so this is only used where the
// orchestrator explicitly opts into CPU-scaling (not by Default()).
func DefaultWorkerCount() int { return runtime.NumCPU() }
