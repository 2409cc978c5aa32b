package native

import (
	"fmt"
	"strconv"
	"time"

	cerr "github.com/cockroachdb/errors"

	"github.com/eniac111/suitable/pkg/engine"
)

// connection is everything needed to reach and act on one target.
type connection struct {
	kind       string
	address    string
	port       int
	user       string
	password   string
	keyFile    string
	become     bool
	becomeUser string
	becomePass string
	method     string
	timeout    time.Duration
}

// resolve merges the host variables over the call config.
func resolve(t engine.Target, v engine.Vars, cfg engine.Config) (connection, error) {
	c := connection{
		kind:       cfg.Connection,
		address:    t.Name,
		port:       22,
		user:       cfg.RemoteUser,
		password:   cfg.Password(engine.ConnPass),
		keyFile:    cfg.PrivateKeyFile,
		become:     cfg.Become,
		becomeUser: cfg.BecomeUser,
		becomePass: cfg.Password(engine.BecomePass),
		method:     cfg.BecomeMethod,
		timeout:    cfg.Timeout,
	}

	str(v, &c.kind, "ansible_connection")
	str(v, &c.address, "ansible_host", "ansible_ssh_host")
	str(v, &c.user, "ansible_user", "ansible_ssh_user")
	str(v, &c.password, "ansible_password", "ansible_ssh_pass")
	str(v, &c.keyFile, "ansible_ssh_private_key_file", "ansible_private_key_file")
	str(v, &c.becomeUser, "ansible_become_user")
	str(v, &c.becomePass, "ansible_become_password", "ansible_become_pass")
	str(v, &c.method, "ansible_become_method")

	if p, ok := v["ansible_port"]; ok {
		port, err := toInt(p)
		if err != nil {
			return c, cerr.Wrapf(err, "ansible_port of %s", t.Name)
		}
		c.port = port
	}
	if b, ok := v["ansible_become"]; ok {
		c.become = toBool(b)
	}
	if c.method == "" {
		c.method = "sudo"
	}
	if c.becomeUser == "" {
		c.becomeUser = "root"
	}
	return c, nil
}

// str sets dst from the first of keys present in vars.
func str(vars engine.Vars, dst *string, keys ...string) {
	for _, k := range keys {
		if v, ok := vars[k]; ok && v != nil {
			*dst = fmt.Sprint(v)
			return
		}
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, cerr.Newf("unexpected %T", v)
	}
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		ok, _ := strconv.ParseBool(b)
		return ok || b == "yes"
	default:
		return false
	}
}
