package ansible

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/eniac111/suitable/internal/logging"
	"github.com/eniac111/suitable/pkg/engine"
)

// Files written into the working directory of every call.
const (
	InventoryFile = "inventory.yml"
	PlaybookFile  = "playbook.yml"
)

// ansible-playbook exit codes that still carry per-host results.
var outcomeCodes = map[int]string{
	0: "ok",
	2: "host failures",
	4: "unreachable hosts",
	8: "interrupted by a failed host",
}

// Prepare renders req into a private working directory.
func (e *Engine) Prepare(_ context.Context, req *engine.Request) (engine.Execution, error) {
	base := e.tempDir
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "suitable-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, cerr.Wrap(err, "creating working directory")
	}
	x := &execution{engine: e, req: req, dir: dir}

	if err := x.write(); err != nil {
		_ = x.Cleanup()
		return nil, err
	}
	return x, nil
}

func (x *execution) write() error {
	inventory, err := yaml.Marshal(renderInventory(x.req))
	if err != nil {
		return cerr.Wrap(err, "rendering inventory")
	}
	if err := os.WriteFile(filepath.Join(x.dir, InventoryFile), inventory, 0o600); err != nil {
		return cerr.Wrap(err, "writing inventory")
	}

	playbook, err := yaml.Marshal([]map[string]any{renderPlay(x.req.Play)})
	if err != nil {
		return cerr.Wrap(err, "rendering playbook")
	}
	if err := os.WriteFile(filepath.Join(x.dir, PlaybookFile), playbook, 0o600); err != nil {
		return cerr.Wrap(err, "writing playbook")
	}
	return nil
}

// hostAlias pairs the inventory name of a target with the target itself.
// Ansible splits "host:port" keys into address and port and reports under
// the address, so targets are rendered under aliases and keep their address
// in ansible_host.
type hostAlias struct {
	alias  string
	target string
}

func aliases(req *engine.Request) []hostAlias {
	out := make([]hostAlias, 0, len(req.Targets))
	for i, t := range req.Targets {
		out = append(out, hostAlias{alias: "suitable-" + strconv.Itoa(i), target: t.Name})
	}
	return out
}

func renderInventory(req *engine.Request) map[string]any {
	hosts := make(map[string]any, len(req.Targets))
	for i, h := range aliases(req) {
		vars := req.Targets[i].Vars.Clone()
		if vars == nil {
			vars = engine.Vars{}
		}
		if host, _ := vars["ansible_host"].(string); host == "" {
			vars["ansible_host"] = h.target
		}
		hosts[h.alias] = map[string]any(vars)
	}

	vars := make(map[string]any, len(req.ExtraVars)+2)
	for k, v := range req.ExtraVars {
		vars[k] = v
	}
	if p := req.Config.Password(engine.ConnPass); p != "" {
		vars["ansible_password"] = p
	}
	if p := req.Config.Password(engine.BecomePass); p != "" {
		vars["ansible_become_password"] = p
	}

	return map[string]any{
		"all": map[string]any{
			"hosts": hosts,
			"vars":  vars,
		},
	}
}

func renderPlay(play engine.Play) map[string]any {
	tasks := make([]map[string]any, 0, len(play.Tasks))
	for _, t := range play.Tasks {
		task := map[string]any{t.Action.Module: t.Action.Args}
		if t.Name != "" {
			task["name"] = t.Name
		}
		if len(t.Environment) > 0 {
			task["environment"] = t.Environment
		}
		tasks = append(tasks, task)
	}

	out := map[string]any{
		"name":         play.Name,
		"hosts":        play.Hosts,
		"gather_facts": play.GatherFacts,
		"tasks":        tasks,
	}
	if play.Strategy != "" {
		out["strategy"] = play.Strategy
	}
	return out
}

type execution struct {
	engine *Engine
	req    *engine.Request
	dir    string
}

func (x *execution) Run(ctx context.Context, obs engine.Observer) error {
	e := x.engine
	stderr := logging.NewWriter(e.logger, slog.LevelDebug, "ansible-playbook")

	out, err := e.runner.Run(ctx, Command{
		Name:   e.playbook,
		Args:   x.args(),
		Env:    x.env(),
		Dir:    x.dir,
		Stderr: stderr,
	})
	if err != nil {
		return cerr.Wrap(err, "running ansible-playbook")
	}
	if _, ok := outcomeCodes[out.ExitCode]; !ok {
		return cerr.WithHint(
			cerr.Newf("ansible-playbook exited with %d", out.ExitCode),
			"raise the verbosity to see the ansible output")
	}

	report, err := decodeReport(trimToJSON(out.Stdout))
	if err != nil {
		return err
	}
	e.logger.Debug("ansible-playbook finished", "exit", out.ExitCode, "status", outcomeCodes[out.ExitCode])
	report.dispatch(aliases(x.req), obs)
	return nil
}

func (x *execution) Cleanup() error {
	return os.RemoveAll(x.dir)
}

// args builds the ansible-playbook command line from the call config.
func (x *execution) args() []string {
	cfg := x.req.Config
	args := []string{"-i", InventoryFile}

	if cfg.Connection != "" {
		args = append(args, "--connection", cfg.Connection)
	}
	if cfg.Forks > 0 {
		args = append(args, "--forks", strconv.Itoa(cfg.Forks))
	}
	if cfg.RemoteUser != "" {
		args = append(args, "--user", cfg.RemoteUser)
	}
	if cfg.PrivateKeyFile != "" {
		args = append(args, "--private-key", cfg.PrivateKeyFile)
	}
	if cfg.Become {
		args = append(args, "--become")
		if cfg.BecomeUser != "" {
			args = append(args, "--become-user", cfg.BecomeUser)
		}
		if cfg.BecomeMethod != "" {
			args = append(args, "--become-method", cfg.BecomeMethod)
		}
	}
	if cfg.Check {
		args = append(args, "--check")
	}
	if cfg.Diff {
		args = append(args, "--diff")
	}
	if cfg.Timeout > 0 {
		seconds := int(math.Ceil(cfg.Timeout.Seconds()))
		args = append(args, "--timeout", strconv.Itoa(max(seconds, 1)))
	}
	for _, a := range []struct{ flag, value string }{
		{"--ssh-common-args", cfg.SSHCommonArgs},
		{"--ssh-extra-args", cfg.SSHExtraArgs},
		{"--sftp-extra-args", cfg.SFTPExtraArgs},
		{"--scp-extra-args", cfg.SCPExtraArgs},
	} {
		if a.value != "" {
			args = append(args, a.flag, a.value)
		}
	}
	args = append(args, extraFlags(cfg.Extra)...)
	if v := x.engine.Verbosity(); v > 0 {
		args = append(args, "-"+strings.Repeat("v", min(v, engine.MaxVerbosity)))
	}

	return append(args, PlaybookFile)
}

// extraFlags renders free-form options as long flags: true booleans become
// bare flags, false ones are dropped, anything else is passed as a value.
func extraFlags(extra map[string]any) []string {
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var args []string
	for _, k := range keys {
		flag := "--" + strings.ReplaceAll(k, "_", "-")
		switch v := extra[k].(type) {
		case nil:
		case bool:
			if v {
				args = append(args, flag)
			}
		default:
			args = append(args, flag, fmt.Sprint(v))
		}
	}
	return args
}

func (x *execution) env() []string {
	hostKeyChecking := "False"
	if x.engine.HostKeyChecking() {
		hostKeyChecking = "True"
	}
	env := []string{
		"ANSIBLE_STDOUT_CALLBACK=json",
		"ANSIBLE_LOAD_CALLBACK_PLUGINS=True",
		"ANSIBLE_RETRY_FILES_ENABLED=False",
		"ANSIBLE_NOCOLOR=1",
		engine.HostKeyCheckingEnv + "=" + hostKeyChecking,
	}
	if len(x.req.StrategyDirs) > 0 {
		env = append(env, "ANSIBLE_STRATEGY_PLUGINS="+strings.Join(x.req.StrategyDirs, ":"))
	}
	return env
}
