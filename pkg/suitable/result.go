package suitable

import (
	"maps"
	"sort"

	cerr "github.com/cockroachdb/errors"
)

// SuccessKey is injected into every contacted target's raw result.
const SuccessKey = "success"

// Result is the outcome of one action call. It is immutable; accessors
// return copies.
type Result struct {
	contacted   map[string]map[string]any
	unreachable map[string]map[string]any
}

func newResult(contacted, unreachable map[string]map[string]any) *Result {
	return &Result{
		contacted:   cloneResults(contacted),
		unreachable: cloneResults(unreachable),
	}
}

// Contacted returns the raw result of every reachable target, each carrying
// the derived "success" flag.
func (r *Result) Contacted() map[string]map[string]any {
	return cloneResults(r.contacted)
}

// Unreachable returns the engine diagnostics of targets that could not be
// reached.
func (r *Result) Unreachable() map[string]map[string]any {
	return cloneResults(r.unreachable)
}

// Targets returns the contacted target names in sorted order.
func (r *Result) Targets() []string {
	names := make([]string, 0, len(r.contacted))
	for name := range r.contacted {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Success reports whether target was contacted and succeeded.
func (r *Result) Success(target string) bool {
	ok, _ := r.contacted[target][SuccessKey].(bool)
	return ok
}

// Get returns key from the result of target. With a nil target and exactly
// one contacted target, that target is used.
func (r *Result) Get(target *string, key string) (any, error) {
	var name string
	switch {
	case target != nil:
		name = *target
	case len(r.contacted) == 1:
		for n := range r.contacted {
			name = n
		}
	default:
		return nil, cerr.Wrapf(ErrTargetNotFound, "no target given and %d targets contacted", len(r.contacted))
	}

	values, ok := r.contacted[name]
	if !ok {
		return nil, cerr.Wrapf(ErrTargetNotFound, "%s", name)
	}
	value, ok := values[key]
	if !ok {
		return nil, cerr.Wrapf(ErrKeyNotFound, "%s on %s", key, name)
	}
	return value, nil
}

// Lookup is Get with single-target resolution.
func (r *Result) Lookup(key string) (any, error) {
	return r.Get(nil, key)
}

func cloneResults(in map[string]map[string]any) map[string]map[string]any {
	out := make(map[string]map[string]any, len(in))
	for name, values := range in {
		out[name] = maps.Clone(values)
		if out[name] == nil {
			out[name] = map[string]any{}
		}
	}
	return out
}
