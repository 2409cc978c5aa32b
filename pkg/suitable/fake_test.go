package suitable

import (
	"context"
	"os"

	"github.com/eniac111/suitable/pkg/engine"
)

// outcome scripts what the fake engine reports for one host.
type outcome struct {
	unreachable bool
	failed      bool
	result      map[string]any
}

// fakeEngine reports scripted outcomes and records what it was asked to do.
type fakeEngine struct {
	engine.Settings

	modules  []string
	outcomes map[string]outcome
	runErr   error

	requests       []*engine.Request
	cleanups       int
	seenVerbosity  []int
	seenHostKey    []bool
	seenHostKeyEnv []string
}

func newFakeEngine(modules ...string) *fakeEngine {
	if len(modules) == 0 {
		modules = []string{"ping", "command", "shell", "file", "copy"}
	}
	return &fakeEngine{modules: modules, outcomes: map[string]outcome{}}
}

func (f *fakeEngine) ListModules(context.Context) ([]string, error) {
	return f.modules, nil
}

func (f *fakeEngine) Defaults() engine.Defaults {
	return engine.Defaults{Forks: 5, BecomeMethod: "sudo", BecomeUser: "root"}
}

func (f *fakeEngine) Prepare(_ context.Context, req *engine.Request) (engine.Execution, error) {
	f.requests = append(f.requests, req)
	return &fakeExecution{engine: f, req: req}, nil
}

type fakeExecution struct {
	engine *fakeEngine
	req    *engine.Request
}

func (e *fakeExecution) Run(_ context.Context, obs engine.Observer) error {
	f := e.engine
	f.seenVerbosity = append(f.seenVerbosity, f.Verbosity())
	f.seenHostKey = append(f.seenHostKey, f.HostKeyChecking())
	f.seenHostKeyEnv = append(f.seenHostKeyEnv, os.Getenv(engine.HostKeyCheckingEnv))
	if f.runErr != nil {
		return f.runErr
	}

	for _, target := range e.req.Targets {
		o, ok := f.outcomes[target.Name]
		result := map[string]any{}
		for k, v := range o.result {
			result[k] = v
		}
		switch {
		case !ok:
			obs.OnOK(target.Name, map[string]any{"changed": false})
		case o.unreachable:
			obs.OnUnreachable(target.Name, result)
		case o.failed:
			obs.OnFailed(target.Name, result)
		default:
			obs.OnOK(target.Name, result)
		}
	}
	return nil
}

func (e *fakeExecution) Cleanup() error {
	e.engine.cleanups++
	return nil
}
