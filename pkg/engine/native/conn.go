package native

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sort"
	"strings"

	cerr "github.com/cockroachdb/errors"

	"github.com/eniac111/suitable/internal/modules"
	"github.com/eniac111/suitable/internal/ssh"
)

// transport moves commands and files to one target.
type transport interface {
	run(ctx context.Context, cmd string, stdin []byte) (modules.Exec, error)
	upload(ctx context.Context, data []byte, path string) error
	close() error
}

// unreachableError marks failures to establish a transport.
type unreachableError struct{ err error }

func (e *unreachableError) Error() string { return e.err.Error() }
func (e *unreachableError) Unwrap() error { return e.err }

type dialFunc func(ctx context.Context, c connection) (transport, error)

// open establishes the transport for c.
func (e *Engine) open(ctx context.Context, c connection) (transport, error) {
	switch c.kind {
	case "local":
		return localTransport{}, nil
	case "", "smart", "ssh", "paramiko":
		client, err := ssh.Connect(ctx, ssh.Host{
			Address:         c.address,
			Port:            c.port,
			User:            c.user,
			Password:        c.password,
			KeyPath:         c.keyFile,
			HostKeyChecking: e.HostKeyChecking(),
			KnownHostsFile:  e.knownHostsFile,
			Timeout:         c.timeout,
		}, e.logger)
		if err != nil {
			return nil, &unreachableError{err: err}
		}
		return sshTransport{client: client}, nil
	default:
		return nil, cerr.Newf("unsupported connection type %q", c.kind)
	}
}

type localTransport struct{}

func (localTransport) run(ctx context.Context, cmd string, stdin []byte) (modules.Exec, error) {
	c := exec.CommandContext(ctx, "/bin/sh", "-c", cmd)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	if stdin != nil {
		c.Stdin = bytes.NewReader(stdin)
	}

	err := c.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return modules.Exec{Stdout: stdout.String(), Stderr: stderr.String()}, nil
	case errors.As(err, &exitErr) && ctx.Err() == nil:
		return modules.Exec{Stdout: stdout.String(), Stderr: stderr.String(), RC: exitErr.ExitCode()}, nil
	default:
		return modules.Exec{RC: -1}, cerr.Wrap(err, "running local command")
	}
}

func (localTransport) upload(_ context.Context, data []byte, path string) error {
	return os.WriteFile(path, data, 0o600)
}

func (localTransport) close() error { return nil }

type sshTransport struct {
	client *ssh.Client
}

func (t sshTransport) run(ctx context.Context, cmd string, stdin []byte) (modules.Exec, error) {
	stdout, stderr, rc, err := t.client.Run(ctx, cmd, stdin)
	return modules.Exec{Stdout: stdout, Stderr: stderr, RC: rc}, err
}

func (t sshTransport) upload(_ context.Context, data []byte, path string) error {
	return t.client.Upload(data, path)
}

func (t sshTransport) close() error { return t.client.Close() }

// targetConn is the modules.Conn handed to modules: it exports the task
// environment and escalates privileges around every command.
type targetConn struct {
	transport   transport
	environment map[string]string
	become      bool
	becomeUser  string
	becomePass  string
}

func (c *targetConn) Run(ctx context.Context, cmd string) (modules.Exec, error) {
	cmd = exportEnvironment(c.environment) + cmd
	var stdin []byte
	if c.become {
		cmd = becomeCommand(c.becomeUser, c.becomePass != "", cmd)
		if c.becomePass != "" {
			stdin = []byte(c.becomePass + "\n")
		}
	}
	return c.transport.run(ctx, cmd, stdin)
}

func (c *targetConn) Upload(ctx context.Context, data []byte, path string) error {
	return c.transport.upload(ctx, data, path)
}

// exportEnvironment renders env as export statements, sorted by name.
func exportEnvironment(env map[string]string) string {
	if len(env) == 0 {
		return ""
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString("export " + k + "=" + modules.Quote(env[k]) + "; ")
	}
	return b.String()
}

// becomeCommand wraps cmd to run as user through sudo. With a password,
// sudo reads it from stdin without prompting; without one it must not ask.
func becomeCommand(user string, password bool, cmd string) string {
	flags := "-n"
	if password {
		flags = `-S -p ""`
	}
	return "sudo -H " + flags + " -u " + modules.Quote(user) + " -- /bin/sh -c " + modules.Quote(cmd)
}
