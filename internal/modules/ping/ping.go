// Package ping provides the ping module.
package ping

import (
	"context"
	"strings"

	"github.com/eniac111/suitable/internal/modules"
)

func init() {
	modules.Register("ping", modules.ModuleFunc(Run))
}

// Run checks that commands can be executed on the target and echoes data,
// "pong" by default. data=crash makes the module fail.
func Run(ctx context.Context, conn modules.Conn, task modules.Task) modules.Result {
	data := task.Args.String("data", "pong")
	if data == "crash" {
		return modules.Fail("boom")
	}

	out, err := conn.Run(ctx, "echo pong")
	if err != nil {
		return modules.Fail("%s", err.Error())
	}
	if out.RC != 0 || strings.TrimSpace(out.Stdout) != "pong" {
		return modules.Fail("unexpected ping response: rc=%d %s", out.RC, strings.TrimSpace(out.Stderr))
	}
	return modules.Result{Extra: map[string]any{"ping": data}}
}
