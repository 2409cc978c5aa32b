// Package config turns the options a caller passed to suitable.New into the
// resolved engine configuration.
package config

import (
	"maps"
	"time"

	"github.com/eniac111/suitable/internal/errs"
	"github.com/eniac111/suitable/internal/logging"
	"github.com/eniac111/suitable/pkg/engine"
)

// DefaultConnection is used when the caller sets no connection type.
const DefaultConnection = "smart"

// Raw holds the caller's options. Pointer fields distinguish "not given"
// from the zero value.
type Raw struct {
	Sudo      bool
	DryRun    bool
	Verbosity string

	Connection     *string
	Become         *bool
	BecomeUser     *string
	BecomeMethod   *string
	Forks          *int
	RemoteUser     *string
	PrivateKeyFile *string
	ModulePath     *string

	Passwords  map[string]string
	RemotePass *string
	ConnPass   *string
	SudoPass   *string
	BecomePass *string

	SSHCommonArgs *string
	SSHExtraArgs  *string
	SFTPExtraArgs *string
	SCPExtraArgs  *string
	ExtraVars     map[string]any
	Diff          *bool
	Timeout       *time.Duration

	Extra map[string]any
}

// Build resolves raw against the engine defaults. It never modifies raw.
func Build(raw Raw, defaults engine.Defaults) (engine.Config, error) {
	var cfg engine.Config

	// Connection and the sudo shortcut.
	cfg.Connection = DefaultConnection
	if raw.Connection != nil {
		cfg.Connection = *raw.Connection
	}

	becomeSet := raw.Become != nil || raw.BecomeUser != nil
	if !becomeSet {
		cfg.Become = raw.Sudo
		cfg.BecomeUser = "root"
	}

	if raw.ModulePath != nil {
		return engine.Config{}, errs.Configuration("module_path", "setting a custom module path is not supported")
	}

	// Engine defaults for everything still unset.
	cfg.Forks = defaults.Forks
	if raw.Forks != nil {
		cfg.Forks = *raw.Forks
	}
	cfg.RemoteUser = pick(raw.RemoteUser, defaults.RemoteUser)
	cfg.PrivateKeyFile = pick(raw.PrivateKeyFile, defaults.PrivateKeyFile)
	cfg.BecomeMethod = pick(raw.BecomeMethod, defaults.BecomeMethod)
	if becomeSet {
		cfg.Become = defaults.Become
		if raw.Become != nil {
			cfg.Become = *raw.Become
		}
		cfg.BecomeUser = pick(raw.BecomeUser, defaults.BecomeUser)
	}

	cfg.Passwords = passwords(raw)

	verbosity, err := logging.ParseVerbosity(raw.Verbosity)
	if err != nil {
		return engine.Config{}, errs.Configuration("verbosity", "%s", err.Error())
	}
	cfg.Verbosity = verbosity

	cfg.SSHCommonArgs = pick(raw.SSHCommonArgs, "")
	cfg.SSHExtraArgs = pick(raw.SSHExtraArgs, "")
	cfg.SFTPExtraArgs = pick(raw.SFTPExtraArgs, "")
	cfg.SCPExtraArgs = pick(raw.SCPExtraArgs, "")
	cfg.ExtraVars = make(map[string]any, len(raw.ExtraVars))
	maps.Copy(cfg.ExtraVars, raw.ExtraVars)
	if raw.Diff != nil {
		cfg.Diff = *raw.Diff
	}
	if raw.Timeout != nil {
		cfg.Timeout = *raw.Timeout
	}
	cfg.Check = raw.DryRun

	cfg.Extra = make(map[string]any, len(raw.Extra))
	maps.Copy(cfg.Extra, raw.Extra)

	return cfg, nil
}

// passwords passes a full password map through unchanged, otherwise derives
// the connection and become slots from the convenience aliases.
func passwords(raw Raw) map[string]string {
	if raw.Passwords != nil {
		out := make(map[string]string, len(raw.Passwords))
		maps.Copy(out, raw.Passwords)
		return out
	}
	return map[string]string{
		engine.ConnPass:   first(raw.RemotePass, raw.ConnPass),
		engine.BecomePass: first(raw.SudoPass, raw.BecomePass),
	}
}

func pick(v *string, fallback string) string {
	if v != nil {
		return *v
	}
	return fallback
}

// first returns the first non-empty value.
func first(values ...*string) string {
	for _, v := range values {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}
