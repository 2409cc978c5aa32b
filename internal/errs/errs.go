// Package errs holds the error taxonomy shared by the client, the option
// builder and the inventory model.
package errs

import (
	"fmt"
	"strings"

	cerr "github.com/cockroachdb/errors"
)

var (
	// ErrNotHookedUp is returned when an action is used on a client that
	// did not finish construction.
	ErrNotHookedUp = cerr.New("action is not hooked up to a client")
	// ErrUnknownAction is returned for action names missing from the
	// client's action table.
	ErrUnknownAction = cerr.New("unknown action")
	// ErrTargetNotFound is returned when a result has no contacted target
	// matching the lookup.
	ErrTargetNotFound = cerr.New("target could not be contacted")
	// ErrKeyNotFound is returned when a contacted target's result lacks the
	// requested key.
	ErrKeyNotFound = cerr.New("key not found in result")
)

// ConfigurationError reports an invalid or unsupported option detected while
// constructing a client.
type ConfigurationError struct {
	Field  string
	Reason string
}

// Configuration builds a ConfigurationError with a hint for the caller.
func Configuration(field, format string, args ...any) error {
	return cerr.WithHint(
		&ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)},
		"check the options passed to suitable.New",
	)
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error in %s: %s", e.Field, e.Reason)
}

// UnreachableError reports a target that could not be contacted.
type UnreachableError struct {
	Action string
	Target string
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("%s could not be reached", e.Target)
}

// ModuleError reports a contacted target on which the action did not
// succeed.
type ModuleError struct {
	Action string
	Target string
	Result map[string]any
}

func (e *ModuleError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Error running '%s' on %s", e.Action, e.Target)

	if msg, ok := e.Result["msg"]; ok {
		fmt.Fprintf(&sb, "\nMessage: %v", msg)
	}
	if rc, ok := e.Result["rc"]; ok {
		fmt.Fprintf(&sb, "\nReturncode: %v", rc)
	}
	if stdout, ok := e.Result["stdout"]; ok {
		fmt.Fprintf(&sb, "\nStdout:\n%v", stdout)
	}
	if stderr, ok := e.Result["stderr"]; ok {
		fmt.Fprintf(&sb, "\nStderr:\n%v", stderr)
	}
	return sb.String()
}
