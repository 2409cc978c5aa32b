package suitable

// Decision tells the client what to do with a target after a failure.
type Decision int

const (
	// Propagate drops the target and returns a typed error to the caller.
	Propagate Decision = iota
	// Suppress drops the target without an error.
	Suppress
	// Retry keeps the target in the active set.
	Retry
)

func (d Decision) String() string {
	switch d {
	case Propagate:
		return "propagate"
	case Suppress:
		return "suppress"
	case Retry:
		return "retry"
	default:
		return "unknown"
	}
}

// Hooks customize how unreachable targets and module errors are handled.
// They are not called for targets covered by WithIgnoreUnreachable or
// WithIgnoreErrors.
type Hooks interface {
	OnUnreachableHost(action, target string) Decision
	OnModuleError(action, target string, result map[string]any) Decision
}

// DefaultHooks propagate every failure.
type DefaultHooks struct{}

func (DefaultHooks) OnUnreachableHost(string, string) Decision { return Propagate }

func (DefaultHooks) OnModuleError(string, string, map[string]any) Decision { return Propagate }

// HookFuncs adapts plain functions to Hooks. A nil function behaves like
// DefaultHooks.
type HookFuncs struct {
	Unreachable func(action, target string) Decision
	ModuleError func(action, target string, result map[string]any) Decision
}

func (h HookFuncs) OnUnreachableHost(action, target string) Decision {
	if h.Unreachable == nil {
		return Propagate
	}
	return h.Unreachable(action, target)
}

func (h HookFuncs) OnModuleError(action, target string, result map[string]any) Decision {
	if h.ModuleError == nil {
		return Propagate
	}
	return h.ModuleError(action, target, result)
}
