package cli

import (
	"encoding/json"
	"fmt"
	"io"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/eniac111/suitable/pkg/suitable"
)

const (
	outputYAML = "yaml"
	outputJSON = "json"
)

// output is the printed form of a result.
type output struct {
	Contacted   map[string]map[string]any `json:"contacted" yaml:"contacted"`
	Unreachable map[string]map[string]any `json:"unreachable" yaml:"unreachable"`
}

func newRunCommand(opts *Options) *cobra.Command {
	var kwargs []string

	cmd := &cobra.Command{
		Use:   "run <servers> <module> [args...]",
		Short: "Run one module against servers and print the result",
		Example: `  suitable run "web1 web2:2222" shell "uptime"
  suitable run db1 file -k path=/srv/data -k state=directory --sudo
  suitable run all ping -i hosts.yml -o json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(opts.Output); err != nil {
				return err
			}
			kw, err := parseVars(kwargs, false)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client, err := newClient(ctx, opts, args[0])
			if err != nil {
				return err
			}
			if len(opts.ValidRC) > 0 {
				defer client.ValidReturnCodes(opts.ValidRC...)()
			}

			result, runErr := client.Execute(ctx, args[1], args[2:], kw)
			if result != nil {
				if err := printResult(cmd.OutOrStdout(), opts.Output, result); err != nil {
					return err
				}
			}
			return runErr
		},
	}
	cmd.Flags().StringArrayVarP(&kwargs, "kwarg", "k", nil, "Module option as key=value (repeatable)")
	return cmd
}

func newModulesCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List the modules the engine provides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := loggerFromContext(cmd.Context())
			_, source, err := newEngine(opts, logger)
			if err != nil {
				return err
			}
			cat, err := newCatalog(opts, source)
			if err != nil {
				return err
			}
			names, err := cat.Modules(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func validateOutput(format string) error {
	switch format {
	case outputYAML, outputJSON:
		return nil
	}
	return cerr.WithHint(cerr.Newf("unknown output format %q", format), "use yaml or json")
}

func printResult(w io.Writer, format string, result *suitable.Result) error {
	out := output{Contacted: result.Contacted(), Unreachable: result.Unreachable()}
	if format == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Close()
}
