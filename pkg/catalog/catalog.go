// Package catalog lists the actions an engine supports and keeps the
// strategy plugin directories registered for it.
//
// A Catalog is built once at startup and shared by every client. The module
// list is fetched on first use; from then on the catalog is frozen and no
// more strategy directories can be added.
package catalog

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	cerr "github.com/cockroachdb/errors"
)

// ErrFrozen is returned when strategy directories are added after the
// catalog was used.
var ErrFrozen = cerr.New("catalog is already in use")

// Source lists the modules an engine can run.
type Source interface {
	ListModules(ctx context.Context) ([]string, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]string, error)

func (f SourceFunc) ListModules(ctx context.Context) ([]string, error) { return f(ctx) }

// Static is a Source with a fixed module list.
type Static []string

func (s Static) ListModules(context.Context) ([]string, error) {
	return slices.Clone(s), nil
}

// Option configures a Catalog.
type Option func(*Catalog) error

// WithStrategyDirs registers strategy plugin directories, given as a
// colon-separated list.
func WithStrategyDirs(dirs string) Option {
	return func(c *Catalog) error {
		return c.addStrategyDirs(dirs)
	}
}

// Catalog is the process-wide module and strategy catalog.
type Catalog struct {
	source Source

	mu           sync.Mutex
	frozen       bool
	strategyDirs []string
	once         sync.Once
	modules      []string
	err          error
}

// New builds a Catalog backed by source.
func New(source Source, opts ...Option) (*Catalog, error) {
	if source == nil {
		return nil, cerr.New("catalog source is nil")
	}
	c := &Catalog{source: source}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// InstallStrategyPlugins registers additional strategy plugin directories,
// colon separated. It fails once the catalog has been used.
func (c *Catalog) InstallStrategyPlugins(dirs string) error {
	return c.addStrategyDirs(dirs)
}

func (c *Catalog) addStrategyDirs(dirs string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return ErrFrozen
	}
	for _, dir := range strings.Split(dirs, ":") {
		dir = strings.TrimSpace(dir)
		if dir == "" || slices.Contains(c.strategyDirs, dir) {
			continue
		}
		c.strategyDirs = append(c.strategyDirs, dir)
	}
	return nil
}

// StrategyDirs returns the registered strategy plugin directories in
// registration order.
func (c *Catalog) StrategyDirs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.strategyDirs)
}

// Modules returns the sorted module names. The source is queried only once;
// a failure is remembered and returned on every call.
func (c *Catalog) Modules(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	c.frozen = true
	c.mu.Unlock()

	c.once.Do(func() {
		modules, err := c.source.ListModules(ctx)
		if err != nil {
			c.err = cerr.Wrap(err, "listing engine modules")
			return
		}
		sort.Strings(modules)
		c.modules = modules
	})
	if c.err != nil {
		return nil, c.err
	}
	return slices.Clone(c.modules), nil
}
