package ansible

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/eniac111/suitable/pkg/engine"
)

// scripted answers commands by executable name and records every call.
type scripted struct {
	outputs map[string]Output
	err     error
	calls   []Command
	// files holds the working directory contents seen by ansible-playbook.
	files map[string][]byte
}

func (s *scripted) Run(_ context.Context, cmd Command) (Output, error) {
	s.calls = append(s.calls, cmd)
	if s.err != nil {
		return Output{}, s.err
	}
	if cmd.Dir != "" {
		s.files = map[string][]byte{}
		for _, name := range []string{InventoryFile, PlaybookFile} {
			b, err := os.ReadFile(filepath.Join(cmd.Dir, name))
			if err == nil {
				s.files[name] = b
			}
		}
	}
	return s.outputs[filepath.Base(cmd.Name)], nil
}

const callbackOutput = `[WARNING]: noise before the document
{
  "plays": [{
    "play": {"name": "Suitable Play"},
    "tasks": [{
      "task": {"name": "shell"},
      "hosts": {
        "suitable-0": {"changed": true, "rc": 0, "stdout": "up 3 days"},
        "suitable-1": {"changed": true, "rc": 1, "failed": true, "stderr": "nope"},
        "suitable-2": {"unreachable": true, "msg": "Failed to connect to the host via ssh"}
      }
    }]
  }],
  "stats": {
    "suitable-0": {"ok": 1, "failures": 0, "unreachable": 0},
    "suitable-1": {"ok": 0, "failures": 1, "unreachable": 0},
    "suitable-2": {"ok": 0, "failures": 0, "unreachable": 1},
    "suitable-3": {"ok": 0, "failures": 0, "unreachable": 1}
  }
}`

func testRequest() *engine.Request {
	return &engine.Request{
		Targets: []engine.Target{
			{Name: "web1", Vars: engine.Vars{"ansible_port": 2222, "ansible_host": "web1"}},
			{Name: "web2"},
			{Name: "web3"},
			{Name: "web4"},
		},
		ExtraVars: map[string]any{"release": "2024.1"},
		Play: engine.Play{
			Name:  "Suitable Play",
			Hosts: "all",
			Tasks: []engine.Task{{
				Action:      engine.Action{Module: "shell", Args: "uptime"},
				Environment: map[string]string{"LANG": "C"},
			}},
			Strategy: "free",
		},
		Config: engine.Config{
			Connection: "smart",
			Forks:      10,
			Become:     true,
			BecomeUser: "root",
			Passwords:  map[string]string{engine.ConnPass: "secret", engine.BecomePass: ""},
			Timeout:    30 * time.Second,
			Extra:      map[string]any{"flush_cache": true, "skip_tags": "slow", "step": false},
		},
		StrategyDirs: []string{"/opt/mitogen", "/opt/other"},
	}
}

func TestRunReportsEveryHost(t *testing.T) {
	runner := &scripted{outputs: map[string]Output{
		"ansible-playbook": {Stdout: []byte(callbackOutput), ExitCode: 4},
	}}
	e := New(WithRunner(runner), WithTempDir(t.TempDir()))

	x, err := e.Prepare(context.Background(), testRequest())
	require.NoError(t, err)
	c := engine.NewCollector()
	require.NoError(t, x.Run(context.Background(), c))
	require.NoError(t, x.Cleanup())

	contacted := c.Contacted()
	assert.True(t, contacted["web1"].Success)
	assert.Equal(t, "up 3 days", contacted["web1"].Result["stdout"])
	assert.False(t, contacted["web2"].Success)

	unreachable := c.Unreachable()
	assert.Contains(t, unreachable, "web3")
	assert.Contains(t, unreachable, "web4")
	assert.Len(t, contacted, 2)
}

func TestRunReportsTargetsWithPorts(t *testing.T) {
	runner := &scripted{outputs: map[string]Output{
		"ansible-playbook": {ExitCode: 4, Stdout: []byte(`{
  "plays": [{"tasks": [{"hosts": {
    "suitable-0": {"changed": false, "ping": "pong"},
    "suitable-1": {"unreachable": true, "msg": "Connection refused"},
    "suitable-2": {"changed": false, "ping": "pong"}
  }}]}],
  "stats": {}
}`)},
	}}
	e := New(WithRunner(runner), WithTempDir(t.TempDir()))

	req := &engine.Request{
		Targets: []engine.Target{
			{Name: "example.org:2222", Vars: engine.Vars{"ansible_host": "example.org", "ansible_port": 2222}},
			{Name: "example.org:2223", Vars: engine.Vars{"ansible_host": "example.org", "ansible_port": 2223}},
			{Name: "[::1]:2222", Vars: engine.Vars{"ansible_host": "::1", "ansible_port": 2222}},
			{Name: "web9"},
		},
		Play: engine.Play{Name: "Suitable Play", Hosts: "all", Tasks: []engine.Task{{
			Action: engine.Action{Module: "ping"},
		}}},
	}
	x, err := e.Prepare(context.Background(), req)
	require.NoError(t, err)
	defer x.Cleanup()
	c := engine.NewCollector()
	require.NoError(t, x.Run(context.Background(), c))

	var inventory map[string]map[string]map[string]any
	require.NoError(t, yaml.Unmarshal(runner.files[InventoryFile], &inventory))
	hosts := inventory["all"]["hosts"]
	require.Len(t, hosts, 4)
	for name := range hosts {
		assert.NotContains(t, name, ":")
	}
	assert.Equal(t, map[string]any{"ansible_host": "example.org", "ansible_port": 2223}, hosts["suitable-1"])
	assert.Equal(t, map[string]any{"ansible_host": "::1", "ansible_port": 2222}, hosts["suitable-2"])

	contacted := c.Contacted()
	assert.Len(t, contacted, 2)
	assert.True(t, contacted["example.org:2222"].Success)
	assert.True(t, contacted["[::1]:2222"].Success)

	unreachable := c.Unreachable()
	assert.Len(t, unreachable, 2)
	assert.Equal(t, "Connection refused", unreachable["example.org:2223"]["msg"])
	assert.Equal(t, true, unreachable["web9"]["unreachable"])
}

func TestRunRendersWorkingFiles(t *testing.T) {
	tmp := t.TempDir()
	runner := &scripted{outputs: map[string]Output{
		"ansible-playbook": {Stdout: []byte(`{"plays": [], "stats": {}}`)},
	}}
	e := New(WithRunner(runner), WithTempDir(tmp))

	x, err := e.Prepare(context.Background(), testRequest())
	require.NoError(t, err)
	require.NoError(t, x.Run(context.Background(), engine.NewCollector()))

	var inventory map[string]map[string]map[string]any
	require.NoError(t, yaml.Unmarshal(runner.files[InventoryFile], &inventory))
	all := inventory["all"]
	assert.Equal(t, "secret", all["vars"]["ansible_password"])
	assert.NotContains(t, all["vars"], "ansible_become_password")
	assert.Equal(t, "2024.1", all["vars"]["release"])
	web1 := all["hosts"]["suitable-0"].(map[string]any)
	assert.Equal(t, 2222, web1["ansible_port"])
	assert.Equal(t, "web1", web1["ansible_host"])
	web2 := all["hosts"]["suitable-1"].(map[string]any)
	assert.Equal(t, "web2", web2["ansible_host"])

	var plays []map[string]any
	require.NoError(t, yaml.Unmarshal(runner.files[PlaybookFile], &plays))
	require.Len(t, plays, 1)
	assert.Equal(t, "Suitable Play", plays[0]["name"])
	assert.Equal(t, false, plays[0]["gather_facts"])
	assert.Equal(t, "free", plays[0]["strategy"])
	task := plays[0]["tasks"].([]any)[0].(map[string]any)
	assert.Equal(t, "uptime", task["shell"])
	assert.Equal(t, map[string]any{"LANG": "C"}, task["environment"])

	require.NoError(t, x.Cleanup())
	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunCommandLine(t *testing.T) {
	runner := &scripted{outputs: map[string]Output{
		"ansible-playbook": {Stdout: []byte(`{}`)},
	}}
	e := New(WithRunner(runner), WithTempDir(t.TempDir()), WithBinaryDir("/opt/ansible/bin/"))
	e.SetVerbosity(engine.MaxVerbosity)
	e.SetHostKeyChecking(true)

	x, err := e.Prepare(context.Background(), testRequest())
	require.NoError(t, err)
	defer x.Cleanup()
	require.NoError(t, x.Run(context.Background(), engine.NewCollector()))

	require.Len(t, runner.calls, 1)
	cmd := runner.calls[0]
	assert.Equal(t, "/opt/ansible/bin/ansible-playbook", cmd.Name)
	assert.Equal(t, []string{
		"-i", InventoryFile,
		"--connection", "smart",
		"--forks", "10",
		"--become", "--become-user", "root",
		"--timeout", "30",
		"--flush-cache", "--skip-tags", "slow",
		"-vvvvvv",
		PlaybookFile,
	}, cmd.Args)
	assert.Contains(t, cmd.Env, "ANSIBLE_STDOUT_CALLBACK=json")
	assert.Contains(t, cmd.Env, "ANSIBLE_HOST_KEY_CHECKING=True")
	assert.Contains(t, cmd.Env, "ANSIBLE_STRATEGY_PLUGINS=/opt/mitogen:/opt/other")
}

func TestRunRoundsTimeoutUp(t *testing.T) {
	for timeout, want := range map[time.Duration]string{
		300 * time.Millisecond:  "1",
		1500 * time.Millisecond: "2",
		10 * time.Second:        "10",
	} {
		runner := &scripted{outputs: map[string]Output{"ansible-playbook": {Stdout: []byte(`{}`)}}}
		e := New(WithRunner(runner), WithTempDir(t.TempDir()))
		req := testRequest()
		req.Config = engine.Config{Timeout: timeout}

		x, err := e.Prepare(context.Background(), req)
		require.NoError(t, err)
		require.NoError(t, x.Run(context.Background(), engine.NewCollector()))
		require.NoError(t, x.Cleanup())
		assert.Equal(t, []string{"-i", InventoryFile, "--timeout", want, PlaybookFile}, runner.calls[0].Args, timeout)
	}
}

func TestRunRejectsEngineExitCodes(t *testing.T) {
	runner := &scripted{outputs: map[string]Output{
		"ansible-playbook": {ExitCode: 5},
	}}
	e := New(WithRunner(runner), WithTempDir(t.TempDir()))

	x, err := e.Prepare(context.Background(), testRequest())
	require.NoError(t, err)
	defer x.Cleanup()
	err = x.Run(context.Background(), engine.NewCollector())
	assert.ErrorContains(t, err, "exited with 5")

	boom := errors.New("exec: not found")
	e = New(WithRunner(&scripted{err: boom}), WithTempDir(t.TempDir()))
	x, err = e.Prepare(context.Background(), testRequest())
	require.NoError(t, err)
	defer x.Cleanup()
	assert.ErrorIs(t, x.Run(context.Background(), engine.NewCollector()), boom)
}

func TestListModules(t *testing.T) {
	runner := &scripted{outputs: map[string]Output{
		"ansible": {Stdout: []byte("ansible [core 2.15.3]\n  config file = None\n")},
		"ansible-doc": {Stdout: []byte(`{
			"ansible.builtin.shell": "Execute shell commands on targets",
			"ansible.builtin.ping": "Try to connect to host",
			"community.general.ufw": "Manage firewall with UFW"
		}`)},
	}}
	e := New(WithRunner(runner))

	modules, err := e.ListModules(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"ansible.builtin.ping",
		"ansible.builtin.shell",
		"community.general.ufw",
		"ping",
		"shell",
	}, modules)
	assert.Equal(t, []string{"-t", "module", "-l", "-j"}, runner.calls[1].Args)
}

func TestListModulesRequiresSupportedVersion(t *testing.T) {
	for out, ok := range map[string]bool{
		"ansible 2.8.20\n":      false,
		"ansible 2.9.27\n":      true,
		"ansible [core 2.16.0]": true,
	} {
		runner := &scripted{outputs: map[string]Output{
			"ansible":     {Stdout: []byte(out)},
			"ansible-doc": {Stdout: []byte(`{}`)},
		}}
		_, err := New(WithRunner(runner)).ListModules(context.Background())
		if ok {
			assert.NoError(t, err, out)
		} else {
			assert.ErrorContains(t, err, "not supported", out)
		}
	}

	runner := &scripted{outputs: map[string]Output{"ansible": {Stdout: []byte("garbage")}}}
	_, err := New(WithRunner(runner)).ListModules(context.Background())
	assert.ErrorContains(t, err, "unrecognized")
}

func TestDefaultsFromEnvironment(t *testing.T) {
	d := New(WithEnviron(map[string]string{})).Defaults()
	assert.Equal(t, engine.Defaults{Forks: 5, BecomeMethod: "sudo", BecomeUser: "root"}, d)

	d = New(WithEnviron(map[string]string{
		"ANSIBLE_FORKS":       "20",
		"ANSIBLE_REMOTE_USER": "deploy",
		"ANSIBLE_BECOME":      "true",
		"ANSIBLE_BECOME_USER": "postgres",
	})).Defaults()
	assert.Equal(t, 20, d.Forks)
	assert.Equal(t, "deploy", d.RemoteUser)
	assert.True(t, d.Become)
	assert.Equal(t, "postgres", d.BecomeUser)

	d = New(WithEnviron(map[string]string{"ANSIBLE_FORKS": "many"})).Defaults()
	assert.Equal(t, 5, d.Forks)
}
