// Package ansible runs modules through the Ansible command line tools.
//
// Every call is rendered into a temporary inventory and playbook which
// ansible-playbook executes with the JSON stdout callback. The decoded
// callback output is reported per host.
package ansible

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/caarlos0/env/v11"
	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-version"

	"github.com/eniac111/suitable/internal/logging"
	"github.com/eniac111/suitable/pkg/engine"
)

// MinimumVersion is the oldest Ansible release the engine drives.
const MinimumVersion = "2.9"

const builtinPrefix = "ansible.builtin."

var versionPattern = regexp.MustCompile(`(?m)^ansible (?:\[core )?([0-9]+(?:\.[0-9]+)+)`)

// Engine drives ansible-playbook. The zero value is not usable; use New.
type Engine struct {
	engine.Settings

	runner   Runner
	logger   *slog.Logger
	playbook string
	doc      string
	ansible  string
	tempDir  string
	environ  map[string]string
}

// Option configures an Engine.
type Option func(*Engine)

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(e *Engine) { e.runner = r }
}

// WithLogger sets the logger receiving engine diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithBinaryDir prefixes the ansible executables with dir.
func WithBinaryDir(dir string) Option {
	return func(e *Engine) {
		dir = strings.TrimRight(dir, "/") + "/"
		e.playbook = dir + "ansible-playbook"
		e.doc = dir + "ansible-doc"
		e.ansible = dir + "ansible"
	}
}

// WithTempDir sets where per-call working directories are created.
func WithTempDir(dir string) Option {
	return func(e *Engine) { e.tempDir = dir }
}

// WithEnviron replaces the environment the option defaults are read from.
// The process environment is used otherwise.
func WithEnviron(environ map[string]string) Option {
	return func(e *Engine) { e.environ = environ }
}

// New returns an Engine using the ansible executables on PATH.
func New(opts ...Option) *Engine {
	e := &Engine{
		runner:   ExecRunner{},
		logger:   logging.Discard(),
		playbook: "ansible-playbook",
		doc:      "ansible-doc",
		ansible:  "ansible",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// defaults mirrors the ANSIBLE_* variables that back the global option
// defaults.
type defaults struct {
	Forks          int    `env:"ANSIBLE_FORKS" envDefault:"5"`
	RemoteUser     string `env:"ANSIBLE_REMOTE_USER"`
	PrivateKeyFile string `env:"ANSIBLE_PRIVATE_KEY_FILE"`
	Become         bool   `env:"ANSIBLE_BECOME" envDefault:"false"`
	BecomeMethod   string `env:"ANSIBLE_BECOME_METHOD" envDefault:"sudo"`
	BecomeUser     string `env:"ANSIBLE_BECOME_USER" envDefault:"root"`
}

// Defaults returns Ansible's option defaults. Malformed variables fall back
// to the built-in defaults.
func (e *Engine) Defaults() engine.Defaults {
	d, err := e.parseDefaults()
	if err != nil {
		e.logger.Warn("ignoring malformed ansible defaults", "error", err)
		d = defaults{Forks: 5, BecomeMethod: "sudo", BecomeUser: "root"}
	}
	return engine.Defaults{
		Forks:          d.Forks,
		RemoteUser:     d.RemoteUser,
		PrivateKeyFile: d.PrivateKeyFile,
		Become:         d.Become,
		BecomeMethod:   d.BecomeMethod,
		BecomeUser:     d.BecomeUser,
	}
}

func (e *Engine) parseDefaults() (defaults, error) {
	var d defaults
	opts := env.Options{}
	if e.environ != nil {
		opts.Environment = e.environ
	}
	err := env.ParseWithOptions(&d, opts)
	return d, err
}

// Version returns the installed Ansible version.
func (e *Engine) Version(ctx context.Context) (*version.Version, error) {
	out, err := e.runner.Run(ctx, Command{Name: e.ansible, Args: []string{"--version"}})
	if err != nil {
		return nil, cerr.Wrap(err, "running ansible --version")
	}
	if out.ExitCode != 0 {
		return nil, cerr.Newf("ansible --version exited with %d", out.ExitCode)
	}
	m := versionPattern.FindSubmatch(out.Stdout)
	if m == nil {
		return nil, cerr.Newf("unrecognized ansible version output %q", firstLine(out.Stdout))
	}
	return version.NewVersion(string(m[1]))
}

// ListModules returns every module ansible-doc knows about. Modules of the
// ansible.builtin collection are also listed under their short name.
func (e *Engine) ListModules(ctx context.Context) ([]string, error) {
	v, err := e.Version(ctx)
	if err != nil {
		return nil, err
	}
	if v.LessThan(version.Must(version.NewVersion(MinimumVersion))) {
		return nil, cerr.WithHint(
			cerr.Newf("ansible %s is not supported", v),
			"install ansible "+MinimumVersion+" or newer")
	}

	stderr := logging.NewWriter(e.logger, slog.LevelDebug, "ansible-doc")
	out, err := e.runner.Run(ctx, Command{
		Name:   e.doc,
		Args:   []string{"-t", "module", "-l", "-j"},
		Stderr: stderr,
	})
	if err != nil {
		return nil, cerr.Wrap(err, "running ansible-doc")
	}
	if out.ExitCode != 0 {
		return nil, cerr.Newf("ansible-doc exited with %d", out.ExitCode)
	}

	var listing map[string]string
	if err := json.Unmarshal(trimToJSON(out.Stdout), &listing); err != nil {
		return nil, cerr.Wrap(err, "decoding ansible-doc output")
	}

	names := make([]string, 0, len(listing))
	seen := make(map[string]bool, len(listing))
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for name := range listing {
		add(name)
		if short, ok := strings.CutPrefix(name, builtinPrefix); ok {
			add(short)
		}
	}
	slices.Sort(names)
	return names, nil
}

// trimToJSON drops anything an executable printed before its JSON document.
func trimToJSON(b []byte) []byte {
	if i := bytes.IndexByte(b, '{'); i > 0 {
		return b[i:]
	}
	return b
}

func firstLine(b []byte) string {
	line, _, _ := bytes.Cut(b, []byte("\n"))
	return string(line)
}
