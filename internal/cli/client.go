package cli

import (
	"context"
	"log/slog"
	"os"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/eniac111/suitable/pkg/catalog"
	"github.com/eniac111/suitable/pkg/engine"
	"github.com/eniac111/suitable/pkg/engine/ansible"
	"github.com/eniac111/suitable/pkg/engine/native"
	"github.com/eniac111/suitable/pkg/suitable"
)

const (
	engineAnsible = "ansible"
	engineNative  = "native"
)

// newEngine builds the engine selected by opts.
func newEngine(opts *Options, logger *slog.Logger) (engine.Engine, catalog.Source, error) {
	switch opts.Engine {
	case engineAnsible, "":
		e := ansible.New(ansible.WithLogger(logger))
		return e, e, nil
	case engineNative:
		nopts := []native.Option{native.WithLogger(logger)}
		if opts.KnownHosts != "" {
			nopts = append(nopts, native.WithKnownHostsFile(opts.KnownHosts))
		}
		e := native.New(nopts...)
		return e, e, nil
	default:
		return nil, nil, cerr.WithHint(
			cerr.Newf("unknown engine %q", opts.Engine),
			"use --engine ansible or --engine native")
	}
}

func newCatalog(opts *Options, source catalog.Source) (*catalog.Catalog, error) {
	var copts []catalog.Option
	if opts.StrategyPlugins != "" {
		copts = append(copts, catalog.WithStrategyDirs(opts.StrategyPlugins))
	}
	return catalog.New(source, copts...)
}

// loadInventory reads a YAML map of server names to host variables.
func loadInventory(path string) (map[string]engine.Vars, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerr.Wrap(err, "reading inventory")
	}
	var hosts map[string]map[string]any
	if err := yaml.Unmarshal(data, &hosts); err != nil {
		return nil, cerr.Wrapf(err, "parsing inventory %s", path)
	}
	out := make(map[string]engine.Vars, len(hosts))
	for name, vars := range hosts {
		out[name] = engine.Vars(vars)
		if out[name] == nil {
			out[name] = engine.Vars{}
		}
	}
	return out, nil
}

// servers resolves the host pattern against the inventory file, if any.
// "all" selects every inventory server.
func servers(opts *Options, pattern string) (any, error) {
	names := strings.Fields(strings.ReplaceAll(pattern, ",", " "))
	if opts.Inventory == "" {
		return names, nil
	}

	inv, err := loadInventory(opts.Inventory)
	if err != nil {
		return nil, err
	}
	if len(names) == 1 && names[0] == "all" {
		return inv, nil
	}
	selected := make(map[string]engine.Vars, len(names))
	for _, name := range names {
		vars, ok := inv[name]
		if !ok {
			vars = engine.Vars{}
		}
		selected[name] = vars
	}
	return selected, nil
}

// newClient builds a client for pattern from the CLI options.
func newClient(ctx context.Context, opts *Options, pattern string) (*suitable.Client, error) {
	logger := loggerFromContext(ctx)

	eng, source, err := newEngine(opts, logger)
	if err != nil {
		return nil, err
	}
	cat, err := newCatalog(opts, source)
	if err != nil {
		return nil, err
	}
	extra, err := parseVars(opts.ExtraVars, true)
	if err != nil {
		return nil, err
	}
	srv, err := servers(opts, pattern)
	if err != nil {
		return nil, err
	}

	copts := []suitable.Option{
		suitable.WithEngine(eng),
		suitable.WithCatalog(cat),
		suitable.WithLogger(logger),
		suitable.WithVerbosity(opts.Verbosity),
		suitable.WithSudo(opts.Sudo),
		suitable.WithDryRun(opts.Check),
		suitable.WithDiff(opts.Diff),
		suitable.WithHostKeyChecking(opts.HostKeyChecking),
		suitable.WithIgnoreErrors(opts.IgnoreErrors),
		suitable.WithIgnoreUnreachable(opts.IgnoreUnreachable),
		suitable.WithStrategy(opts.Strategy),
		suitable.WithExtraVars(extra),
	}
	if opts.BecomeUser != "" {
		copts = append(copts, suitable.WithBecome(true), suitable.WithBecomeUser(opts.BecomeUser))
	}
	if opts.User != "" {
		copts = append(copts, suitable.WithRemoteUser(opts.User))
	}
	if opts.PrivateKey != "" {
		copts = append(copts, suitable.WithPrivateKeyFile(opts.PrivateKey))
	}
	if opts.Connection != "" {
		copts = append(copts, suitable.WithConnection(opts.Connection))
	}
	if opts.Forks > 0 {
		copts = append(copts, suitable.WithForks(opts.Forks))
	}

	return suitable.New(ctx, srv, copts...)
}
