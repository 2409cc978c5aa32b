// Package engine defines the contract between the suitable client and the
// configuration-management engine that actually runs modules on targets.
//
// An Engine turns a Request into an Execution. Running the execution reports
// one event per target to an Observer: the target succeeded, failed, or could
// not be reached. Cleanup releases whatever the execution allocated and is
// always called, also after a failed run.
package engine

import (
	"context"
	"sync"
)

// Engine runs modules against targets.
type Engine interface {
	// Prepare allocates everything needed to run req.
	Prepare(ctx context.Context, req *Request) (Execution, error)
	// Defaults returns the engine's global option defaults.
	Defaults() Defaults
	// Verbosity returns the engine's diagnostic verbosity (0-6).
	Verbosity() int
	// SetVerbosity changes the engine's diagnostic verbosity.
	SetVerbosity(level int)
	// HostKeyChecking reports whether the engine verifies host keys.
	HostKeyChecking() bool
	// SetHostKeyChecking enables or disables host key verification.
	SetHostKeyChecking(enable bool)
}

// Execution is one prepared call.
type Execution interface {
	// Run blocks until every target reported an outcome to obs.
	Run(ctx context.Context, obs Observer) error
	// Cleanup releases resources allocated by Prepare and Run.
	Cleanup() error
}

// Observer receives per-target completion events. Engines call it
// synchronously and never concurrently.
type Observer interface {
	OnOK(host string, result map[string]any)
	OnFailed(host string, result map[string]any)
	OnUnreachable(host string, result map[string]any)
}

// Outcome is what the engine reported for a contacted target.
type Outcome struct {
	Success bool
	Result  map[string]any
}

// Collector is an Observer that records every event. It is safe for
// concurrent use so engines with parallel workers can share one.
type Collector struct {
	mu          sync.Mutex
	contacted   map[string]Outcome
	unreachable map[string]map[string]any
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		contacted:   make(map[string]Outcome),
		unreachable: make(map[string]map[string]any),
	}
}

func (c *Collector) OnOK(host string, result map[string]any) {
	c.record(host, true, result)
}

func (c *Collector) OnFailed(host string, result map[string]any) {
	c.record(host, false, result)
}

func (c *Collector) OnUnreachable(host string, result map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if result == nil {
		result = map[string]any{}
	}
	delete(c.contacted, host)
	c.unreachable[host] = result
}

func (c *Collector) record(host string, success bool, result map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if result == nil {
		result = map[string]any{}
	}
	delete(c.unreachable, host)
	c.contacted[host] = Outcome{Success: success, Result: result}
}

// Contacted returns the recorded outcomes of reachable targets.
func (c *Collector) Contacted() map[string]Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Outcome, len(c.contacted))
	for k, v := range c.contacted {
		out[k] = v
	}
	return out
}

// Unreachable returns the diagnostics of targets that could not be reached.
func (c *Collector) Unreachable() map[string]map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]map[string]any, len(c.unreachable))
	for k, v := range c.unreachable {
		out[k] = v
	}
	return out
}

// Settings holds the process-wide knobs every engine exposes. Engines embed
// it to satisfy the verbosity and host key parts of Engine.
type Settings struct {
	mu              sync.RWMutex
	verbosity       int
	hostKeyChecking bool
}

func (s *Settings) Verbosity() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.verbosity
}

func (s *Settings) SetVerbosity(level int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verbosity = level
}

func (s *Settings) HostKeyChecking() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hostKeyChecking
}

func (s *Settings) SetHostKeyChecking(enable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hostKeyChecking = enable
}
