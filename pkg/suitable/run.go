package suitable

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/eniac111/suitable/internal/logging"
	"github.com/eniac111/suitable/pkg/engine"
)

// PlayName is the name of the synthetic play built for every call.
const PlayName = "Suitable Play"

func (c *Client) run(ctx context.Context, a *Action, args []string, kwargs map[string]any) (*Result, error) {
	start := time.Now()
	a.args = ModuleArgs(args, kwargs)
	logger := c.logger.With("run", uuid.NewString(), "action", a.Name)

	req := &engine.Request{
		Targets:      c.inventory.Targets(),
		ExtraVars:    cloneMap(c.config.ExtraVars),
		Play:         c.play(a.Name, a.args),
		Config:       c.Config(),
		StrategyDirs: c.catalog.StrategyDirs(),
	}
	if len(req.Targets) == 0 {
		logger.Warn("no active targets left, skipping")
		return newResult(nil, nil), nil
	}

	logger.Info("running", "task", a.String(), "targets", len(req.Targets))

	collector := engine.NewCollector()
	if err := c.runEngine(ctx, logger, req, collector); err != nil {
		return nil, cerr.Wrapf(err, "running %s", a.Name)
	}

	logger.Debug("completed", "took", time.Since(start))
	return c.evaluate(logger, a, collector)
}

func (c *Client) play(module, args string) engine.Play {
	return engine.Play{
		Name:        PlayName,
		Hosts:       "all",
		GatherFacts: false,
		Strategy:    c.strategy,
		Tasks: []engine.Task{{
			Action:      engine.Action{Module: module, Args: args},
			Environment: cloneMap(c.environment),
		}},
	}
}

// runEngine runs req with the verbosity and host key overrides in place and
// always releases the execution.
func (c *Client) runEngine(ctx context.Context, logger *slog.Logger, req *engine.Request, obs engine.Observer) error {
	verbosity := 0
	if c.config.Verbosity == logging.LevelDebug {
		verbosity = engine.MaxVerbosity
	}
	defer engine.OverrideVerbosity(c.engine, verbosity)()
	defer engine.OverrideHostKeyChecking(c.engine, c.hostKeyChecking)()

	execution, err := c.engine.Prepare(ctx, req)
	if err != nil {
		return cerr.Wrap(err, "preparing execution")
	}
	defer func() {
		if err := execution.Cleanup(); err != nil {
			logger.Warn("cleanup failed", "error", err)
		}
	}()

	return execution.Run(ctx, obs)
}

// evaluate shapes the collected events into a Result and applies the
// failure hooks. Every target is handled before the collected errors are
// returned.
func (c *Client) evaluate(logger *slog.Logger, a *Action, collector *engine.Collector) (*Result, error) {
	var merr *multierror.Error

	unreachable := collector.Unreachable()
	for _, target := range sortedKeys(unreachable) {
		logger.Error("target could not be reached", "target", target)
		logger.Debug("engine output", "target", target, "result", unreachable[target])

		if c.ignoreUnreachable {
			continue
		}
		decision := c.hooks.OnUnreachableHost(a.Name, target)
		if err := c.settle(logger, target, decision, &UnreachableError{Action: a.Name, Target: target}); err != nil {
			merr = multierror.Append(merr, err)
		}
	}

	outcomes := collector.Contacted()
	contacted := make(map[string]map[string]any, len(outcomes))
	for _, target := range sortedKeys(outcomes) {
		raw := cloneMap(outcomes[target].Result)
		success := c.succeeded(outcomes[target].Success, raw)
		raw[SuccessKey] = success
		contacted[target] = raw
		if success {
			continue
		}

		logger.Error("action failed", "task", a.String(), "target", target)
		logger.Debug("engine output", "target", target, "result", raw)

		if c.ignoreErrors {
			continue
		}
		decision := c.hooks.OnModuleError(a.Name, target, cloneMap(raw))
		if err := c.settle(logger, target, decision, &ModuleError{Action: a.Name, Target: target, Result: cloneMap(raw)}); err != nil {
			merr = multierror.Append(merr, err)
		}
	}

	return newResult(contacted, unreachable), merr.ErrorOrNil()
}

// settle applies a hook decision to target and returns failure when the
// decision is to propagate.
func (c *Client) settle(logger *slog.Logger, target string, decision Decision, failure error) error {
	if decision == Retry {
		logger.Info("keeping target active", "target", target)
		return nil
	}

	logger.Error("ignoring further calls", "target", target)
	c.inventory.Remove(target)

	if decision == Propagate {
		return failure
	}
	return nil
}

// succeeded derives the success flag: the engine verdict, overridden by an
// explicit failed flag, overridden by a valid return code.
func (c *Client) succeeded(reported bool, raw map[string]any) bool {
	success := reported
	if truthy(raw["failed"]) {
		success = false
	}
	if rc, ok := returnCode(raw["rc"]); ok && c.IsValidReturnCode(rc) {
		success = true
	}
	return success
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		switch t {
		case "", "false", "False", "0":
			return false
		}
		return true
	case int:
		return t != 0
	case float64:
		return t != 0
	default:
		return true
	}
}

func returnCode(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	case string:
		n, err := strconv.Atoi(t)
		return n, err == nil
	default:
		return 0, false
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
