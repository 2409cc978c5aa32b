package ansible

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
)

// Command is one invocation of an Ansible executable.
type Command struct {
	Name string
	Args []string
	// Env is appended to the current process environment.
	Env []string
	Dir string
	// Stderr receives the command's standard error as it is produced.
	Stderr io.Writer
}

// Output is what a finished command produced.
type Output struct {
	Stdout   []byte
	ExitCode int
}

// Runner executes commands. A non-zero exit status is not an error; err is
// reserved for commands that could not be started or were interrupted.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Output, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, cmd Command) (Output, error)

func (f RunnerFunc) Run(ctx context.Context, cmd Command) (Output, error) {
	return f(ctx, cmd)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, c Command) (Output, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if c.Stderr != nil {
		cmd.Stderr = c.Stderr
	}

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return Output{Stdout: stdout.Bytes(), ExitCode: exitErr.ExitCode()}, nil
	}
	if err != nil {
		return Output{Stdout: stdout.Bytes(), ExitCode: -1}, err
	}
	return Output{Stdout: stdout.Bytes()}, nil
}
