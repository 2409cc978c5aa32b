package suitable

import (
	"log/slog"
	"maps"
	"time"

	"github.com/eniac111/suitable/internal/config"
	"github.com/eniac111/suitable/pkg/catalog"
	"github.com/eniac111/suitable/pkg/engine"
)

type settings struct {
	raw config.Raw

	engine            engine.Engine
	catalog           *catalog.Catalog
	hooks             Hooks
	logger            *slog.Logger
	ignoreUnreachable bool
	ignoreErrors      bool
	hostKeyChecking   bool
	environment       map[string]string
	strategy          string
}

// Option configures a Client.
type Option func(*settings)

// WithEngine sets the engine that runs actions. The default is the Ansible
// CLI engine.
func WithEngine(e engine.Engine) Option {
	return func(s *settings) { s.engine = e }
}

// WithCatalog sets the module catalog. Share one catalog between clients to
// list the engine's modules only once.
func WithCatalog(c *catalog.Catalog) Option {
	return func(s *settings) { s.catalog = c }
}

// WithHooks overrides the failure handling hooks.
func WithHooks(h Hooks) Option {
	return func(s *settings) { s.hooks = h }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithIgnoreUnreachable skips the unreachable hook; such targets stay active.
func WithIgnoreUnreachable(ignore bool) Option {
	return func(s *settings) { s.ignoreUnreachable = ignore }
}

// WithIgnoreErrors skips the module error hook; such targets stay active.
func WithIgnoreErrors(ignore bool) Option {
	return func(s *settings) { s.ignoreErrors = ignore }
}

// WithHostKeyChecking enables host key verification. It is off by default.
func WithHostKeyChecking(enable bool) Option {
	return func(s *settings) { s.hostKeyChecking = enable }
}

// WithSudo runs actions as root. Ignored when WithBecome or WithBecomeUser
// is given.
func WithSudo(sudo bool) Option {
	return func(s *settings) { s.raw.Sudo = sudo }
}

// WithDryRun runs the engine in check mode.
func WithDryRun(dryRun bool) Option {
	return func(s *settings) { s.raw.DryRun = dryRun }
}

// WithVerbosity sets the verbosity label: critical, error, warn, info or
// debug.
func WithVerbosity(label string) Option {
	return func(s *settings) { s.raw.Verbosity = label }
}

// WithEnvironment sets environment variables for every task.
func WithEnvironment(env map[string]string) Option {
	return func(s *settings) { s.environment = maps.Clone(env) }
}

// WithStrategy selects a named execution strategy.
func WithStrategy(name string) Option {
	return func(s *settings) { s.strategy = name }
}

// WithExtraVars sets variables visible to every target.
func WithExtraVars(vars map[string]any) Option {
	return func(s *settings) { s.raw.ExtraVars = maps.Clone(vars) }
}

// WithConnection sets the connection type and disables local connection
// inference for loopback servers.
func WithConnection(connection string) Option {
	return func(s *settings) { s.raw.Connection = &connection }
}

func WithBecome(become bool) Option {
	return func(s *settings) { s.raw.Become = &become }
}

func WithBecomeUser(user string) Option {
	return func(s *settings) { s.raw.BecomeUser = &user }
}

func WithBecomeMethod(method string) Option {
	return func(s *settings) { s.raw.BecomeMethod = &method }
}

func WithForks(forks int) Option {
	return func(s *settings) { s.raw.Forks = &forks }
}

func WithRemoteUser(user string) Option {
	return func(s *settings) { s.raw.RemoteUser = &user }
}

func WithPrivateKeyFile(path string) Option {
	return func(s *settings) { s.raw.PrivateKeyFile = &path }
}

// WithModulePath is accepted only to be rejected: custom module paths are
// not supported and New fails with a ConfigurationError.
func WithModulePath(path string) Option {
	return func(s *settings) { s.raw.ModulePath = &path }
}

// WithPasswords passes the engine password map through unchanged. It takes
// precedence over WithRemotePass and WithSudoPass.
func WithPasswords(passwords map[string]string) Option {
	return func(s *settings) { s.raw.Passwords = maps.Clone(passwords) }
}

// WithRemotePass sets the connection password.
func WithRemotePass(password string) Option {
	return func(s *settings) { s.raw.RemotePass = &password }
}

// WithSudoPass sets the privilege escalation password.
func WithSudoPass(password string) Option {
	return func(s *settings) { s.raw.SudoPass = &password }
}

func WithTimeout(timeout time.Duration) Option {
	return func(s *settings) { s.raw.Timeout = &timeout }
}

func WithDiff(diff bool) Option {
	return func(s *settings) { s.raw.Diff = &diff }
}

// WithSSHArgs sets the extra arguments passed to ssh, sftp and scp.
func WithSSHArgs(common, extra, sftp, scp string) Option {
	return func(s *settings) {
		s.raw.SSHCommonArgs = &common
		s.raw.SSHExtraArgs = &extra
		s.raw.SFTPExtraArgs = &sftp
		s.raw.SCPExtraArgs = &scp
	}
}

// WithOption passes a free-form option to the engine.
func WithOption(key string, value any) Option {
	return func(s *settings) {
		if s.raw.Extra == nil {
			s.raw.Extra = map[string]any{}
		}
		s.raw.Extra[key] = value
	}
}
