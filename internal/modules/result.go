package modules

import (
	"fmt"
	"strings"
)

// Result is what each module returns. Map renders it in the shape the
// client reads: the common keys plus whatever the module added to Extra.
type Result struct {
	Changed bool
	Failed  bool
	Skipped bool
	Msg     string

	// RC, Stdout and Stderr are set by modules that ran a command.
	RC     *int
	Stdout string
	Stderr string
	Extra  map[string]any
}

// Map renders r as a raw result map.
func (r Result) Map() map[string]any {
	out := map[string]any{"changed": r.Changed}
	if r.Failed {
		out["failed"] = true
	}
	if r.Skipped {
		out["skipped"] = true
	}
	if r.Msg != "" {
		out["msg"] = r.Msg
	}
	if r.RC != nil {
		out["rc"] = *r.RC
		out["stdout"] = r.Stdout
		out["stderr"] = r.Stderr
		out["stdout_lines"] = lines(r.Stdout)
		out["stderr_lines"] = lines(r.Stderr)
	}
	for k, v := range r.Extra {
		out[k] = v
	}
	return out
}

// Fail returns a failed result carrying msg.
func Fail(format string, args ...any) Result {
	return Result{Failed: true, Msg: fmt.Sprintf(format, args...)}
}

// FromExec returns a result describing a finished command.
func FromExec(e Exec) Result {
	rc := e.RC
	return Result{
		Changed: true,
		Failed:  rc != 0,
		RC:      &rc,
		Stdout:  strings.TrimRight(e.Stdout, "\n"),
		Stderr:  strings.TrimRight(e.Stderr, "\n"),
	}
}

func lines(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}
