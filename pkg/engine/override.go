package engine

import "os"

// HostKeyCheckingEnv is the environment variable engines consult for host key
// verification. Not every connection plugin reads the engine flag, so both
// are overridden together.
const HostKeyCheckingEnv = "ANSIBLE_HOST_KEY_CHECKING"

// MaxVerbosity is the highest diagnostic verbosity an engine understands.
const MaxVerbosity = 6

// OverrideEnv sets key to value and returns a function restoring the previous
// state, unsetting key if it was not set before.
func OverrideEnv(key, value string) (restore func()) {
	previous, existed := os.LookupEnv(key)
	_ = os.Setenv(key, value)
	return func() {
		if existed {
			_ = os.Setenv(key, previous)
			return
		}
		_ = os.Unsetenv(key)
	}
}

// OverrideVerbosity sets the engine verbosity and returns a function
// restoring the previous value.
func OverrideVerbosity(e Engine, level int) (restore func()) {
	previous := e.Verbosity()
	e.SetVerbosity(level)
	return func() { e.SetVerbosity(previous) }
}

// OverrideHostKeyChecking applies enable both to the environment and to the
// engine flag and returns a function restoring both.
func OverrideHostKeyChecking(e Engine, enable bool) (restore func()) {
	value := "False"
	if enable {
		value = "True"
	}
	restoreEnv := OverrideEnv(HostKeyCheckingEnv, value)
	previous := e.HostKeyChecking()
	e.SetHostKeyChecking(enable)
	return func() {
		e.SetHostKeyChecking(previous)
		restoreEnv()
	}
}
