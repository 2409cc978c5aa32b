// Package modules holds the modules the native engine can run and the
// registry they are looked up in. Every module executes on its target
// through a Conn, so the same code serves local and SSH targets.
package modules

import (
	"context"
	"sort"
	"sync"
)

// Exec is the outcome of one command on a target.
type Exec struct {
	Stdout string
	Stderr string
	RC     int
}

// Conn runs commands and writes files on a target.
type Conn interface {
	// Run executes cmd with /bin/sh on the target. A non-zero exit status is
	// reported in Exec.RC, not as an error.
	Run(ctx context.Context, cmd string) (Exec, error)
	// Upload writes data to path on the target as the connecting user.
	Upload(ctx context.Context, data []byte, path string) error
}

// Task is one module invocation.
type Task struct {
	Module string
	Args   *Args
	// Check asks the module to report what it would change without acting.
	Check bool
}

// Module runs a task on a target.
type Module interface {
	Run(ctx context.Context, conn Conn, task Task) Result
}

// ModuleFunc adapts a function to Module.
type ModuleFunc func(ctx context.Context, conn Conn, task Task) Result

func (f ModuleFunc) Run(ctx context.Context, conn Conn, task Task) Result {
	return f(ctx, conn, task)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Module)
)

// Register makes m available under name.
func Register(name string, m Module) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = m
}

// Lookup returns the module registered under name.
func Lookup(name string) (Module, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	m, ok := registry[name]
	return m, ok
}

// Names returns the registered module names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
