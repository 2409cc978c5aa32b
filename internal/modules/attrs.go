package modules

import (
	"context"
	"strings"

	cerr "github.com/cockroachdb/errors"
)

// Attributes are the ownership and permission options shared by the file
// and copy modules.
type Attributes struct {
	Mode    string
	Owner   string
	Group   string
	Recurse bool
}

// ParseAttributes reads the attribute options from args.
func ParseAttributes(args *Args) (Attributes, error) {
	mode, err := args.Mode("mode")
	if err != nil {
		return Attributes{}, err
	}
	recurse, err := args.Bool("recurse")
	if err != nil {
		return Attributes{}, err
	}
	return Attributes{
		Mode:    mode,
		Owner:   args.String("owner", ""),
		Group:   args.String("group", ""),
		Recurse: recurse,
	}, nil
}

// Apply brings path to the requested attributes and reports whether
// anything differed. In check mode nothing is changed.
func (a Attributes) Apply(ctx context.Context, conn Conn, path string, check bool) (bool, error) {
	if a.Mode == "" && a.Owner == "" && a.Group == "" {
		return false, nil
	}

	out, err := conn.Run(ctx, "stat -c '%a %U %G' "+Quote(path))
	if err != nil {
		return false, err
	}
	if out.RC != 0 {
		return false, cerr.Newf("stat %s: %s", path, strings.TrimSpace(out.Stderr))
	}
	fields := strings.Fields(out.Stdout)
	if len(fields) != 3 {
		return false, cerr.Newf("stat %s: unexpected output %q", path, out.Stdout)
	}
	mode, owner, group := fields[0], fields[1], fields[2]

	flag := ""
	if a.Recurse {
		flag = "-R "
	}

	var cmds []string
	if a.Mode != "" && normalizeMode(a.Mode) != normalizeMode(mode) {
		cmds = append(cmds, "chmod "+flag+a.Mode+" "+Quote(path))
	}
	if a.Owner != "" && a.Owner != owner {
		cmds = append(cmds, "chown "+flag+Quote(a.Owner)+" "+Quote(path))
	}
	if a.Group != "" && a.Group != group {
		cmds = append(cmds, "chgrp "+flag+Quote(a.Group)+" "+Quote(path))
	}
	if len(cmds) == 0 || check {
		return len(cmds) > 0, nil
	}

	out, err = conn.Run(ctx, strings.Join(cmds, " && "))
	if err != nil {
		return false, err
	}
	if out.RC != 0 {
		return false, cerr.Newf("setting attributes of %s: %s", path, strings.TrimSpace(out.Stderr))
	}
	return true, nil
}

func normalizeMode(m string) string {
	m = strings.TrimLeft(m, "0")
	if m == "" {
		return "0"
	}
	return m
}
