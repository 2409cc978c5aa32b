// Package suitable exposes the modules of a configuration-management engine
// as actions on a client bound to a fixed set of servers.
//
//	client, err := suitable.New(ctx, "web1.example.org web2.example.org:2222",
//		suitable.WithSudo(true))
//	if err != nil {
//		return err
//	}
//	result, err := client.Shell(ctx, "uptime", nil)
//
// Servers that cannot be reached or on which an action fails are dropped for
// the lifetime of the client unless a hook decides to Retry them.
package suitable

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"strings"

	cerr "github.com/cockroachdb/errors"

	"github.com/eniac111/suitable/internal/config"
	"github.com/eniac111/suitable/internal/errs"
	"github.com/eniac111/suitable/internal/inventory"
	"github.com/eniac111/suitable/internal/logging"
	"github.com/eniac111/suitable/pkg/catalog"
	"github.com/eniac111/suitable/pkg/engine"
	"github.com/eniac111/suitable/pkg/engine/ansible"
)

// Client runs engine modules against its servers. A Client is not safe for
// concurrent use; callers must serialize calls.
type Client struct {
	engine    engine.Engine
	catalog   *catalog.Catalog
	inventory *inventory.Inventory
	config    engine.Config
	hooks     Hooks
	logger    *slog.Logger

	ignoreUnreachable bool
	ignoreErrors      bool
	hostKeyChecking   bool
	environment       map[string]string
	strategy          string
	validReturnCodes  []int

	actions map[string]*Action
}

// New builds a client for servers: a single or space-delimited string, a
// []string, or a map from server name to host variables. Host and port may
// be given as "host:port" or "[v6addr]:port".
func New(ctx context.Context, servers any, opts ...Option) (*Client, error) {
	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}

	connection := ""
	if s.raw.Connection != nil {
		connection = *s.raw.Connection
	}
	inv, err := inventory.New(connection, servers)
	if err != nil {
		return nil, err
	}

	if s.engine == nil {
		s.engine = ansible.New()
	}
	cfg, err := config.Build(s.raw, s.engine.Defaults())
	if err != nil {
		return nil, err
	}

	if s.logger == nil {
		s.logger = logging.NewLogger(os.Stderr, cfg.Verbosity)
	}
	if s.hooks == nil {
		s.hooks = DefaultHooks{}
	}
	if s.catalog == nil {
		source, ok := s.engine.(catalog.Source)
		if !ok {
			return nil, errs.Configuration("catalog", "engine %T cannot list its modules; pass WithCatalog", s.engine)
		}
		if s.catalog, err = catalog.New(source); err != nil {
			return nil, err
		}
	}

	c := &Client{
		engine:            s.engine,
		catalog:           s.catalog,
		inventory:         inv,
		config:            cfg,
		hooks:             s.hooks,
		logger:            s.logger,
		ignoreUnreachable: s.ignoreUnreachable,
		ignoreErrors:      s.ignoreErrors,
		hostKeyChecking:   s.hostKeyChecking,
		environment:       s.environment,
		strategy:          s.strategy,
		validReturnCodes:  []int{0},
	}
	if err := c.hookModules(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// hookModules binds every module of the catalog into the action table.
func (c *Client) hookModules(ctx context.Context) error {
	modules, err := c.catalog.Modules(ctx)
	if err != nil {
		return cerr.Wrap(err, "hooking up modules")
	}
	actions := make(map[string]*Action, len(modules))
	for _, name := range modules {
		if reservedMember(name) {
			return errs.Configuration("actions", "module %q conflicts with an existing client member", name)
		}
		if _, dup := actions[name]; dup {
			return errs.Configuration("actions", "module %q is bound twice", name)
		}
		actions[name] = &Action{Name: name, client: c}
	}
	c.actions = actions
	return nil
}

// clientMembers are the exported methods of Client that are not actions,
// normalized by reservedMember. Keep in sync with the method set.
var clientMembers = []string{
	"action",
	"actions",
	"config",
	"execute",
	"hasaction",
	"isvalidreturncode",
	"targets",
	"validreturncodes",
	"withvalidreturncodes",
}

func reservedMember(name string) bool {
	normalized := strings.ToLower(strings.ReplaceAll(name, "_", ""))
	return slices.Contains(clientMembers, normalized)
}

// Action returns the bound action called name.
func (c *Client) Action(name string) (*Action, error) {
	if c == nil || c.actions == nil {
		return nil, ErrNotHookedUp
	}
	a, ok := c.actions[name]
	if !ok {
		return nil, cerr.Wrapf(ErrUnknownAction, "%s", name)
	}
	return a, nil
}

// HasAction reports whether the engine provides name.
func (c *Client) HasAction(name string) bool {
	_, err := c.Action(name)
	return err == nil
}

// Actions returns the names of all bound actions in sorted order.
func (c *Client) Actions() []string {
	names := make([]string, 0, len(c.actions))
	for name := range c.actions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Targets returns the servers still in the active set, sorted.
func (c *Client) Targets() []string {
	return c.inventory.Names()
}

// Config returns a copy of the resolved engine configuration.
func (c *Client) Config() engine.Config {
	cfg := c.config
	cfg.Passwords = cloneMap(c.config.Passwords)
	cfg.ExtraVars = cloneMap(c.config.ExtraVars)
	cfg.Extra = cloneMap(c.config.Extra)
	return cfg
}

// IsValidReturnCode reports whether code counts as success.
func (c *Client) IsValidReturnCode(code int) bool {
	return slices.Contains(c.validReturnCodes, code)
}

// ValidReturnCodes replaces the set of return codes that count as success
// until the returned function is called:
//
//	defer client.ValidReturnCodes(0, 1)()
func (c *Client) ValidReturnCodes(codes ...int) (restore func()) {
	previous := c.validReturnCodes
	c.validReturnCodes = slices.Clone(codes)
	return func() { c.validReturnCodes = previous }
}

// WithValidReturnCodes runs fn with codes as the valid return codes and
// restores the previous set afterwards, also when fn fails or panics.
func (c *Client) WithValidReturnCodes(codes []int, fn func() error) error {
	defer c.ValidReturnCodes(codes...)()
	return fn()
}

func cloneMap[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
