// Package native runs modules itself, over SSH or on the local machine,
// without any engine installed on the controller or the targets.
package native

import (
	"context"
	"log/slog"
	"os/user"

	cerr "github.com/cockroachdb/errors"

	"github.com/eniac111/suitable/internal/logging"
	"github.com/eniac111/suitable/internal/modules"
	_ "github.com/eniac111/suitable/internal/modules/copyfile"
	_ "github.com/eniac111/suitable/internal/modules/file"
	_ "github.com/eniac111/suitable/internal/modules/ping"
	_ "github.com/eniac111/suitable/internal/modules/shell"
	"github.com/eniac111/suitable/pkg/engine"
)

// DefaultForks bounds the number of targets worked on at once.
const DefaultForks = 5

// Supported strategies. The empty strategy behaves like linear.
const (
	StrategyLinear = "linear"
	StrategyFree   = "free"
)

// Engine runs the registered modules. Use New.
type Engine struct {
	engine.Settings

	logger         *slog.Logger
	knownHostsFile string
	dial           dialFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger receiving engine diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithKnownHostsFile sets the known_hosts file used when host key checking
// is enabled.
func WithKnownHostsFile(path string) Option {
	return func(e *Engine) { e.knownHostsFile = path }
}

// New returns an Engine. Host key checking starts enabled.
func New(opts ...Option) *Engine {
	e := &Engine{logger: logging.Discard()}
	e.SetHostKeyChecking(true)
	for _, opt := range opts {
		opt(e)
	}
	e.dial = e.open
	return e
}

// Defaults returns the engine defaults: the current user, sudo to root.
func (e *Engine) Defaults() engine.Defaults {
	d := engine.Defaults{
		Forks:        DefaultForks,
		BecomeMethod: "sudo",
		BecomeUser:   "root",
	}
	if u, err := user.Current(); err == nil {
		d.RemoteUser = u.Username
	}
	return d
}

// ListModules returns the names of the registered modules.
func (e *Engine) ListModules(context.Context) ([]string, error) {
	return modules.Names(), nil
}

// Prepare resolves the module and its arguments. Nothing is contacted yet.
func (e *Engine) Prepare(_ context.Context, req *engine.Request) (engine.Execution, error) {
	switch req.Play.Strategy {
	case "", StrategyLinear, StrategyFree:
	default:
		return nil, cerr.WithHint(
			cerr.Newf("unsupported strategy %q", req.Play.Strategy),
			"the native engine supports the linear and free strategies")
	}
	if len(req.Play.Tasks) != 1 {
		return nil, cerr.Newf("expected a single task, got %d", len(req.Play.Tasks))
	}

	task := req.Play.Tasks[0]
	module, ok := modules.Lookup(task.Action.Module)
	if !ok {
		return nil, cerr.Newf("couldn't resolve module %q", task.Action.Module)
	}
	x := &execution{
		engine: e,
		req:    req,
		module: module,
		args:   task.Action.Args,
		raw:    task.Action.Module == "shell" || task.Action.Module == "command",
		task: modules.Task{
			Module: task.Action.Module,
			Check:  req.Config.Check,
		},
		environment: task.Environment,
	}
	if !templated(x.args) {
		args, err := modules.ParseArgs(x.args, x.raw)
		if err != nil {
			return nil, cerr.Wrapf(err, "parsing arguments of %s", task.Action.Module)
		}
		x.task.Args = args
	}
	return x, nil
}
