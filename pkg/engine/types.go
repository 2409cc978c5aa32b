package engine

import (
	"log/slog"
	"maps"
	"time"
)

// Vars holds the connection and host variables of one target.
type Vars map[string]any

// Clone returns a shallow copy of v.
func (v Vars) Clone() Vars {
	out := make(Vars, len(v))
	maps.Copy(out, v)
	return out
}

// Target is one host the engine runs against.
type Target struct {
	Name string
	Vars Vars
}

// Play is the synthetic single-task play handed to the engine.
type Play struct {
	Name        string `yaml:"name"`
	Hosts       string `yaml:"hosts"`
	GatherFacts bool   `yaml:"gather_facts"`
	Strategy    string `yaml:"strategy,omitempty"`
	Tasks       []Task `yaml:"tasks"`
}

// Task describes one module invocation.
type Task struct {
	Name        string            `yaml:"name,omitempty"`
	Action      Action            `yaml:"action"`
	Environment map[string]string `yaml:"environment,omitempty"`
}

// Action is the module name plus its serialized argument string.
type Action struct {
	Module string `yaml:"module"`
	Args   string `yaml:"args,omitempty"`
}

// Passwords keys understood by every engine.
const (
	ConnPass   = "conn_pass"
	BecomePass = "become_pass"
)

// Config is the fully resolved execution configuration of a client.
type Config struct {
	Connection     string
	Become         bool
	BecomeUser     string
	BecomeMethod   string
	Forks          int
	RemoteUser     string
	PrivateKeyFile string
	// ModulePath is always empty; custom module paths are rejected.
	ModulePath    string
	Passwords     map[string]string
	Verbosity     slog.Level
	Check         bool
	Diff          bool
	ExtraVars     map[string]any
	SSHCommonArgs string
	SSHExtraArgs  string
	SFTPExtraArgs string
	SCPExtraArgs  string
	Timeout       time.Duration
	// Extra carries free-form options the adapter does not interpret.
	Extra map[string]any
}

// Password returns the password stored under key, or "" when unset.
func (c Config) Password(key string) string {
	if c.Passwords == nil {
		return ""
	}
	return c.Passwords[key]
}

// Defaults are the engine's global defaults used to backfill options the
// caller left unset.
type Defaults struct {
	Forks          int
	RemoteUser     string
	PrivateKeyFile string
	Become         bool
	BecomeMethod   string
	BecomeUser     string
}

// Request is everything an engine needs to run one call.
type Request struct {
	Targets   []Target
	ExtraVars map[string]any
	Play      Play
	Config    Config
	// StrategyDirs are the strategy plugin directories registered with the
	// catalog the client was built from.
	StrategyDirs []string
}

// HostNames returns the names of the request's targets in order.
func (r *Request) HostNames() []string {
	names := make([]string, 0, len(r.Targets))
	for _, t := range r.Targets {
		names = append(names, t.Name)
	}
	return names
}
