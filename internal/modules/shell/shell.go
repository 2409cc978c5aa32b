// Package shell provides the shell and command modules.
package shell

import (
	"context"
	"fmt"
	"time"

	"github.com/eniac111/suitable/internal/modules"
)

func init() {
	modules.Register("shell", modules.ModuleFunc(Shell))
	modules.Register("command", modules.ModuleFunc(Command))
}

// Shell runs the free-form argument with /bin/sh or the given executable.
func Shell(ctx context.Context, conn modules.Conn, task modules.Task) modules.Result {
	cmd := task.Args.Free
	if cmd == "" {
		return modules.Fail("no command given")
	}
	if exe := task.Args.String("executable", ""); exe != "" {
		cmd = modules.QuoteAll(exe, "-c", cmd)
	}
	return run(ctx, conn, task, cmd)
}

// Command runs the free-form argument without a shell: every word, shell
// operators included, is passed to the program literally.
func Command(ctx context.Context, conn modules.Conn, task modules.Task) modules.Result {
	words, err := modules.Words(task.Args.Free)
	if err != nil {
		return modules.Fail("%s", err.Error())
	}
	if len(words) == 0 {
		return modules.Fail("no command given")
	}
	return run(ctx, conn, task, "exec "+modules.QuoteAll(words...))
}

func run(ctx context.Context, conn modules.Conn, task modules.Task, cmd string) modules.Result {
	args := task.Args

	if path := args.String("creates", ""); path != "" {
		if exists, err := pathExists(ctx, conn, path); err != nil {
			return modules.Fail("checking %s: %s", path, err)
		} else if exists {
			return skipped(fmt.Sprintf("skipped, since %s exists", path))
		}
	}
	if path := args.String("removes", ""); path != "" {
		if exists, err := pathExists(ctx, conn, path); err != nil {
			return modules.Fail("checking %s: %s", path, err)
		} else if !exists {
			return skipped(fmt.Sprintf("skipped, since %s does not exist", path))
		}
	}

	if task.Check {
		return modules.Result{Skipped: true, Msg: "command would have run if not in check mode"}
	}

	if dir := args.String("chdir", ""); dir != "" {
		cmd = "cd " + modules.Quote(dir) + " && " + cmd
	}
	if args.Has("stdin") {
		input := args.String("stdin", "")
		newline, err := args.Bool("stdin_add_newline")
		if err != nil {
			return modules.Fail("%s", err.Error())
		}
		if newline || !args.Has("stdin_add_newline") {
			input += "\n"
		}
		cmd = "printf '%s' " + modules.Quote(input) + " | " + cmd
	}

	start := time.Now()
	out, err := conn.Run(ctx, cmd)
	end := time.Now()
	if err != nil {
		return modules.Fail("%s", err.Error())
	}

	res := modules.FromExec(out)
	if res.Failed {
		res.Msg = "non-zero return code"
	}
	res.Extra = map[string]any{
		"cmd":   task.Args.Free,
		"start": start.Format("2006-01-02 15:04:05.000000"),
		"end":   end.Format("2006-01-02 15:04:05.000000"),
		"delta": end.Sub(start).String(),
	}
	return res
}

func skipped(msg string) modules.Result {
	rc := 0
	return modules.Result{Msg: msg, RC: &rc, Stdout: msg}
}

func pathExists(ctx context.Context, conn modules.Conn, path string) (bool, error) {
	out, err := conn.Run(ctx, "test -e "+modules.Quote(path))
	if err != nil {
		return false, err
	}
	return out.RC == 0, nil
}
