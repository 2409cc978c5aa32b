// Package cli defines the suitable command-line interface.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/eniac111/suitable/internal/logging"
)

// Options stores global CLI options shared between commands.
type Options struct {
	Engine            string
	Verbosity         string
	Sudo              bool
	BecomeUser        string
	User              string
	PrivateKey        string
	Connection        string
	Forks             int
	Check             bool
	Diff              bool
	HostKeyChecking   bool
	IgnoreErrors      bool
	IgnoreUnreachable bool
	Strategy          string
	StrategyPlugins   string
	Inventory         string
	EnvFiles          []string
	ExtraVars         []string
	ValidRC           []int
	Output            string
	KnownHosts        string
}

// Execute builds the root command, runs it with the provided args and
// returns any error.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	cmd := newRootCommand(&Options{})
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(ctx)
}

func newRootCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "suitable",
		Short:         "Run Ansible modules against servers from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := applyEnv(cmd, opts); err != nil {
				return err
			}
			level, err := logging.ParseVerbosity(opts.Verbosity)
			if err != nil {
				return err
			}
			logger := logging.NewLogger(cmd.ErrOrStderr(), level)
			cmd.SetContext(context.WithValue(cmd.Context(), loggerKey{}, logger))
			logger.Debug("logger initialized", "level", level)
			return nil
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.Engine, "engine", engineAnsible, "Engine running the modules (ansible, native)")
	f.StringVarP(&opts.Verbosity, "verbosity", "v", "info", "Log verbosity (critical, error, warn, info, debug)")
	f.BoolVar(&opts.Sudo, "sudo", false, "Run modules as root")
	f.StringVar(&opts.BecomeUser, "become-user", "", "Run modules as this user")
	f.StringVarP(&opts.User, "user", "u", "", "Connect as this user")
	f.StringVar(&opts.PrivateKey, "private-key", "", "Private key file used to connect")
	f.StringVarP(&opts.Connection, "connection", "c", "", "Connection type (smart, ssh, local)")
	f.IntVarP(&opts.Forks, "forks", "f", 0, "Number of targets worked on in parallel")
	f.BoolVarP(&opts.Check, "check", "C", false, "Report changes without making them")
	f.BoolVarP(&opts.Diff, "diff", "D", false, "Show differences of changed files")
	f.BoolVar(&opts.HostKeyChecking, "host-key-checking", false, "Verify SSH host keys")
	f.BoolVar(&opts.IgnoreErrors, "ignore-errors", false, "Keep targets on which a module failed")
	f.BoolVar(&opts.IgnoreUnreachable, "ignore-unreachable", false, "Keep targets that could not be reached")
	f.StringVar(&opts.Strategy, "strategy", "", "Play strategy")
	f.StringVar(&opts.StrategyPlugins, "strategy-plugins", "", "Colon-separated strategy plugin directories")
	f.StringVarP(&opts.Inventory, "inventory", "i", "", "YAML file mapping servers to host variables")
	f.StringArrayVar(&opts.EnvFiles, "env-file", nil, "Load SUITABLE_* defaults from a .env file (repeatable)")
	f.StringArrayVarP(&opts.ExtraVars, "extra-var", "e", nil, "Extra variable as key=value (repeatable)")
	f.IntSliceVar(&opts.ValidRC, "valid-rc", nil, "Return codes counted as success (default 0)")
	f.StringVarP(&opts.Output, "output", "o", outputYAML, "Result format (yaml, json)")
	f.StringVar(&opts.KnownHosts, "known-hosts", "", "known_hosts file for the native engine")

	cmd.AddCommand(
		newRunCommand(opts),
		newModulesCommand(opts),
	)
	return cmd
}

// loggerKey is a private context key used to store a logger in command contexts.
type loggerKey struct{}

// loggerFromContext extracts a logger from the context or falls back to a
// default logger.
func loggerFromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return logging.NewLogger(os.Stderr, logging.LevelInfo)
}
