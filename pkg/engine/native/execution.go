package native

import (
	"context"
	"errors"
	"sync"

	cerr "github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/eniac111/suitable/internal/modules"
	"github.com/eniac111/suitable/pkg/engine"
)

type execution struct {
	engine      *Engine
	req         *engine.Request
	module      modules.Module
	args        string
	raw         bool
	task        modules.Task
	environment map[string]string
}

type event struct {
	host        string
	unreachable bool
	result      modules.Result
}

// Run works on at most Forks targets at once. With the free strategy every
// target is reported as soon as it finishes; otherwise reports follow the
// target order once all are done.
func (x *execution) Run(ctx context.Context, obs engine.Observer) error {
	forks := x.req.Config.Forks
	if forks <= 0 {
		forks = DefaultForks
	}
	free := x.req.Play.Strategy == StrategyFree

	var mu sync.Mutex
	events := make([]event, len(x.req.Targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(forks)
	for i, target := range x.req.Targets {
		i, target := i, target
		g.Go(func() error {
			ev := x.runTarget(gctx, target)
			if free {
				mu.Lock()
				report(obs, ev)
				mu.Unlock()
				return nil
			}
			events[i] = ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if !free {
		for _, ev := range events {
			report(obs, ev)
		}
	}
	return nil
}

func report(obs engine.Observer, ev event) {
	switch {
	case ev.unreachable:
		obs.OnUnreachable(ev.host, ev.result.Map())
	case ev.result.Failed:
		obs.OnFailed(ev.host, ev.result.Map())
	default:
		obs.OnOK(ev.host, ev.result.Map())
	}
}

// runTarget connects to target and runs the module there.
func (x *execution) runTarget(ctx context.Context, target engine.Target) event {
	e := x.engine
	logger := e.logger.With("target", target.Name, "module", x.task.Module)
	ev := event{host: target.Name}

	vars := hostVars(target, x.req.ExtraVars)
	c, err := resolve(target, vars, x.req.Config)
	if err != nil {
		ev.result = modules.Fail("%s", err.Error())
		return ev
	}
	task, err := x.taskFor(vars)
	if err != nil {
		ev.result = modules.Fail("%s", err.Error())
		return ev
	}
	if c.become && c.method != "sudo" {
		ev.result = modules.Fail("become method %q is not supported", c.method)
		return ev
	}

	t, err := e.dial(ctx, c)
	var unreachable *unreachableError
	switch {
	case errors.As(err, &unreachable):
		logger.Debug("unreachable", "error", err)
		ev.unreachable = true
		ev.result = modules.Result{Msg: err.Error(), Extra: map[string]any{"unreachable": true}}
		return ev
	case err != nil:
		ev.result = modules.Fail("%s", err.Error())
		return ev
	}
	defer func() {
		if err := t.close(); err != nil {
			logger.Debug("closing connection", "error", err)
		}
	}()

	conn := &targetConn{
		transport:   t,
		environment: x.environment,
		become:      c.become,
		becomeUser:  c.becomeUser,
		becomePass:  c.becomePass,
	}
	ev.result = x.module.Run(ctx, conn, task)
	logger.Debug("module finished", "changed", ev.result.Changed, "failed", ev.result.Failed)
	return ev
}

// taskFor renders templated arguments with the host variables.
func (x *execution) taskFor(vars engine.Vars) (modules.Task, error) {
	task := x.task
	if task.Args != nil {
		return task, nil
	}
	rendered, err := render(x.args, vars)
	if err != nil {
		return task, err
	}
	args, err := modules.ParseArgs(rendered, x.raw)
	if err != nil {
		return task, cerr.Wrapf(err, "parsing arguments of %s", task.Module)
	}
	task.Args = args
	return task, nil
}

func (x *execution) Cleanup() error { return nil }
