package cli

import (
	"os"
	"strconv"
	"strings"

	envparse "github.com/caarlos0/env/v11"
	cerr "github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// baseEnv defines root CLI defaults sourced from SUITABLE_* env vars.
type baseEnv struct {
	Engine            string `env:"SUITABLE_ENGINE"`
	Verbosity         string `env:"SUITABLE_VERBOSITY"`
	Sudo              bool   `env:"SUITABLE_SUDO"`
	BecomeUser        string `env:"SUITABLE_BECOME_USER"`
	User              string `env:"SUITABLE_USER"`
	PrivateKey        string `env:"SUITABLE_PRIVATE_KEY"`
	Connection        string `env:"SUITABLE_CONNECTION"`
	Forks             int    `env:"SUITABLE_FORKS"`
	HostKeyChecking   bool   `env:"SUITABLE_HOST_KEY_CHECKING"`
	IgnoreErrors      bool   `env:"SUITABLE_IGNORE_ERRORS"`
	IgnoreUnreachable bool   `env:"SUITABLE_IGNORE_UNREACHABLE"`
	Strategy          string `env:"SUITABLE_STRATEGY"`
	StrategyPlugins   string `env:"SUITABLE_STRATEGY_PLUGINS"`
	Inventory         string `env:"SUITABLE_INVENTORY"`
	Output            string `env:"SUITABLE_OUTPUT"`
	KnownHosts        string `env:"SUITABLE_KNOWN_HOSTS"`
}

// environment merges the env files under the process environment; process
// variables win.
func environment(files []string) (map[string]string, error) {
	out := make(map[string]string)
	if len(files) > 0 {
		vars, err := godotenv.Read(files...)
		if err != nil {
			return nil, cerr.Wrap(err, "loading env file")
		}
		for k, v := range vars {
			out[k] = v
		}
	}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			out[k] = v
		}
	}
	return out, nil
}

// applyEnv fills every option whose flag was not given from SUITABLE_* env
// vars.
func applyEnv(cmd *cobra.Command, opts *Options) error {
	environ, err := environment(opts.EnvFiles)
	if err != nil {
		return err
	}
	var e baseEnv
	if err := envparse.ParseWithOptions(&e, envparse.Options{Environment: environ}); err != nil {
		return cerr.Wrap(err, "parsing SUITABLE_* variables")
	}

	flags := cmd.Flags()
	set := func(flag, key string, apply func()) {
		if !flags.Changed(flag) && strings.TrimSpace(environ[key]) != "" {
			apply()
		}
	}
	set("engine", "SUITABLE_ENGINE", func() { opts.Engine = e.Engine })
	set("verbosity", "SUITABLE_VERBOSITY", func() { opts.Verbosity = e.Verbosity })
	set("sudo", "SUITABLE_SUDO", func() { opts.Sudo = e.Sudo })
	set("become-user", "SUITABLE_BECOME_USER", func() { opts.BecomeUser = e.BecomeUser })
	set("user", "SUITABLE_USER", func() { opts.User = e.User })
	set("private-key", "SUITABLE_PRIVATE_KEY", func() { opts.PrivateKey = e.PrivateKey })
	set("connection", "SUITABLE_CONNECTION", func() { opts.Connection = e.Connection })
	set("forks", "SUITABLE_FORKS", func() { opts.Forks = e.Forks })
	set("host-key-checking", "SUITABLE_HOST_KEY_CHECKING", func() { opts.HostKeyChecking = e.HostKeyChecking })
	set("ignore-errors", "SUITABLE_IGNORE_ERRORS", func() { opts.IgnoreErrors = e.IgnoreErrors })
	set("ignore-unreachable", "SUITABLE_IGNORE_UNREACHABLE", func() { opts.IgnoreUnreachable = e.IgnoreUnreachable })
	set("strategy", "SUITABLE_STRATEGY", func() { opts.Strategy = e.Strategy })
	set("strategy-plugins", "SUITABLE_STRATEGY_PLUGINS", func() { opts.StrategyPlugins = e.StrategyPlugins })
	set("inventory", "SUITABLE_INVENTORY", func() { opts.Inventory = e.Inventory })
	set("output", "SUITABLE_OUTPUT", func() { opts.Output = e.Output })
	set("known-hosts", "SUITABLE_KNOWN_HOSTS", func() { opts.KnownHosts = e.KnownHosts })
	return nil
}

// parseVars parses key=value pairs. With typedValues, values that look like
// integers or booleans keep that type.
func parseVars(pairs []string, typedValues bool) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, cerr.Newf("expected key=value, got %q", pair)
		}
		if typedValues {
			out[k] = typed(v)
			continue
		}
		out[k] = v
	}
	return out, nil
}

func typed(v string) any {
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return v
}
