package suitable

import "github.com/eniac111/suitable/internal/errs"

type (
	// ConfigurationError reports invalid or unsupported options given to New.
	ConfigurationError = errs.ConfigurationError
	// UnreachableError reports a target the engine could not contact.
	UnreachableError = errs.UnreachableError
	// ModuleError reports a contacted target on which an action failed.
	ModuleError = errs.ModuleError
)

var (
	// ErrNotHookedUp is returned when an action is used without a fully
	// constructed client.
	ErrNotHookedUp = errs.ErrNotHookedUp
	// ErrUnknownAction is returned for names the client has no action for.
	ErrUnknownAction = errs.ErrUnknownAction
	// ErrTargetNotFound is returned by Result.Get when no contacted target
	// matches.
	ErrTargetNotFound = errs.ErrTargetNotFound
	// ErrKeyNotFound is returned by Result.Get when the target's result
	// lacks the key.
	ErrKeyNotFound = errs.ErrKeyNotFound
)
