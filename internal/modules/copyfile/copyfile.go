// Package copyfile provides the copy module.
package copyfile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/eniac111/suitable/internal/modules"
)

func init() {
	modules.Register("copy", modules.ModuleFunc(Run))
}

// Run writes content, or a file from the controller, to dest on the target.
// The target is only written when its checksum differs.
func Run(ctx context.Context, conn modules.Conn, task modules.Task) modules.Result {
	args := task.Args
	dest := args.String("dest", "")
	if dest == "" {
		return modules.Fail("missing 'dest' parameter")
	}
	attrs, err := modules.ParseAttributes(args)
	if err != nil {
		return modules.Fail("%s", err.Error())
	}

	var data []byte
	src := args.String("src", "")
	switch {
	case args.Has("content"):
		data = []byte(args.String("content", ""))
	case src != "":
		if data, err = os.ReadFile(src); err != nil {
			return modules.Fail("reading src: %s", err)
		}
	default:
		return modules.Fail("either 'src' or 'content' is required")
	}

	isDir, err := conn.Run(ctx, "test -d "+modules.Quote(dest))
	if err != nil {
		return modules.Fail("%s", err.Error())
	}
	if isDir.RC == 0 {
		if src == "" || strings.HasSuffix(src, "/") {
			return modules.Fail("dest %s is a directory", dest)
		}
		dest = path.Join(dest, path.Base(src))
	}

	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])
	current, err := remoteChecksum(ctx, conn, dest)
	if err != nil {
		return modules.Fail("%s", err.Error())
	}

	res := modules.Result{Extra: map[string]any{
		"dest":     dest,
		"checksum": checksum,
		"size":     len(data),
	}}
	if current != checksum {
		res.Changed = true
		if task.Check {
			return res
		}
		if err := write(ctx, conn, data, dest); err != nil {
			return modules.Fail("%s", err.Error())
		}
	}

	changed, err := attrs.Apply(ctx, conn, dest, task.Check)
	if err != nil {
		return modules.Fail("%s", err.Error())
	}
	res.Changed = res.Changed || changed
	return res
}

// write stages data in /tmp as the connecting user and copies it into place
// with the privileges commands run with.
func write(ctx context.Context, conn modules.Conn, data []byte, dest string) error {
	staging := "/tmp/.suitable-" + uuid.NewString()
	if err := conn.Upload(ctx, data, staging); err != nil {
		return err
	}
	out, err := conn.Run(ctx, "cat "+modules.Quote(staging)+" > "+modules.Quote(dest)+"; rc=$?; rm -f "+modules.Quote(staging)+"; exit $rc")
	if err != nil {
		return err
	}
	if out.RC != 0 {
		return cerr.Newf("writing %s: %s", dest, strings.TrimSpace(out.Stderr))
	}
	return nil
}

// remoteChecksum returns the sha256 of dest, or "" when it does not exist.
func remoteChecksum(ctx context.Context, conn modules.Conn, dest string) (string, error) {
	q := modules.Quote(dest)
	out, err := conn.Run(ctx, "if [ -f "+q+" ]; then sha256sum "+q+" 2>/dev/null || shasum -a 256 "+q+"; fi")
	if err != nil {
		return "", err
	}
	fields := strings.Fields(out.Stdout)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], nil
}
