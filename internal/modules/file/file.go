// Package file provides the file module.
package file

import (
	"context"
	"fmt"
	"strings"

	"github.com/eniac111/suitable/internal/modules"
)

func init() {
	modules.Register("file", modules.ModuleFunc(Run))
}

// Run brings a path on the target to the requested state and attributes.
func Run(ctx context.Context, conn modules.Conn, task modules.Task) modules.Result {
	args := task.Args
	path := args.String("path", args.String("dest", args.String("name", "")))
	state := args.String("state", "")
	src := args.String("src", "")

	if path == "" {
		return modules.Fail("missing 'path' parameter")
	}
	attrs, err := modules.ParseAttributes(args)
	if err != nil {
		return modules.Fail("%s", err.Error())
	}

	current, err := kind(ctx, conn, path)
	if err != nil {
		return modules.Fail("%s", err.Error())
	}
	if state == "" {
		state = "file"
		if current == "directory" {
			state = "directory"
		}
	}
	if (state == "link" || state == "hard") && src == "" {
		return modules.Fail("src is required for state %s", state)
	}

	res := modules.Result{Extra: map[string]any{"path": path, "state": state}}

	var cmd string
	switch state {
	case "file":
		if current == "absent" {
			return modules.Fail("file (%s) is absent, cannot continue", path)
		}
		if current == "directory" {
			return modules.Fail("%s is a directory", path)
		}
	case "touch":
		cmd = "touch " + modules.Quote(path)
	case "directory":
		switch current {
		case "absent":
			cmd = "mkdir -p " + modules.Quote(path)
		case "directory":
		default:
			return modules.Fail("%s already exists as a %s", path, current)
		}
	case "absent":
		if current != "absent" {
			cmd = "rm -rf " + modules.Quote(path)
		}
		res.Extra["state"] = "absent"
	case "link":
		out, err := conn.Run(ctx, "readlink "+modules.Quote(path))
		if err != nil {
			return modules.Fail("%s", err.Error())
		}
		if current != "link" || strings.TrimSpace(out.Stdout) != src {
			cmd = "ln -sfn " + modules.QuoteAll(src, path)
		}
		res.Extra["src"] = src
	case "hard":
		out, err := conn.Run(ctx, "test "+modules.QuoteAll(path, "-ef", src))
		if err != nil {
			return modules.Fail("%s", err.Error())
		}
		if out.RC != 0 {
			cmd = "ln -f " + modules.QuoteAll(src, path)
		}
		res.Extra["src"] = src
	default:
		return modules.Fail("unknown state %q", state)
	}

	if cmd != "" {
		res.Changed = true
		if !task.Check {
			out, err := conn.Run(ctx, cmd)
			if err != nil {
				return modules.Fail("%s", err.Error())
			}
			if out.RC != 0 {
				return modules.Fail("%s: %s", state, strings.TrimSpace(out.Stderr))
			}
		}
	}

	if state != "absent" && state != "link" && !(task.Check && res.Changed) {
		changed, err := attrs.Apply(ctx, conn, path, task.Check)
		if err != nil {
			return modules.Fail("%s", err.Error())
		}
		res.Changed = res.Changed || changed
	}
	if res.Changed {
		res.Msg = fmt.Sprintf("%s is now %s", path, state)
	}
	return res
}

// kind reports what path currently is: absent, link, directory or file.
func kind(ctx context.Context, conn modules.Conn, path string) (string, error) {
	q := modules.Quote(path)
	out, err := conn.Run(ctx, fmt.Sprintf(
		"if [ -L %[1]s ]; then echo link; elif [ -d %[1]s ]; then echo directory; elif [ -e %[1]s ]; then echo file; else echo absent; fi", q))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Stdout), nil
}
