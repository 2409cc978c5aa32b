// Package inventory normalizes the servers a client operates on into named
// targets with connection variables.
package inventory

import (
	"sort"
	"strconv"
	"strings"

	"github.com/eniac111/suitable/internal/errs"
	"github.com/eniac111/suitable/pkg/engine"
)

// Host variable names understood by the engines.
const (
	VarHost       = "ansible_host"
	VarPort       = "ansible_port"
	VarConnection = "ansible_connection"
)

// DefaultSSHPort is the port assumed when a server has none.
const DefaultSSHPort = 22

var loopback = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"::1":       true,
}

// Inventory maps target names to their variables. Targets can be removed but
// never added back.
type Inventory struct {
	connection string
	hosts      map[string]engine.Vars
}

// New parses servers into an Inventory. connection is the connection type
// the caller set explicitly, if any; when empty, loopback servers on the
// default port get a local connection.
//
// servers may be a single or space-delimited string, a list of names or a
// map of names to host variables.
func New(connection string, servers any) (*Inventory, error) {
	inv := &Inventory{
		connection: connection,
		hosts:      make(map[string]engine.Vars),
	}

	switch s := servers.(type) {
	case nil:
	case string:
		for _, name := range strings.Fields(s) {
			if err := inv.add(name, nil); err != nil {
				return nil, err
			}
		}
	case []string:
		for _, name := range s {
			if err := inv.add(name, nil); err != nil {
				return nil, err
			}
		}
	case map[string]engine.Vars:
		for name, vars := range s {
			if err := inv.add(name, vars); err != nil {
				return nil, err
			}
		}
	case map[string]map[string]any:
		for name, vars := range s {
			if err := inv.add(name, vars); err != nil {
				return nil, err
			}
		}
	case map[string]map[string]string:
		for name, vars := range s {
			converted := make(engine.Vars, len(vars))
			for k, v := range vars {
				converted[k] = v
			}
			if err := inv.add(name, converted); err != nil {
				return nil, err
			}
		}
	default:
		return nil, errs.Configuration("servers", "unsupported servers type %T", servers)
	}

	return inv, nil
}

func (inv *Inventory) add(name string, overrides engine.Vars) error {
	vars, err := parseServer(name)
	if err != nil {
		return err
	}
	for k, v := range overrides {
		vars[k] = v
	}

	if inv.connection == "" && isLocal(name, vars) {
		vars[VarConnection] = "local"
	}

	inv.hosts[name] = vars
	return nil
}

// parseServer derives host and port variables from "[v6]:port" and
// "host:port" identifiers.
func parseServer(name string) (engine.Vars, error) {
	vars := engine.Vars{}

	var host, port string
	switch {
	case strings.HasPrefix(name, "["):
		idx := strings.LastIndex(name, ":")
		if idx < 0 || !strings.Contains(name[:idx], "]") {
			return vars, nil
		}
		host, port = strings.Trim(name[:idx], "[]"), name[idx+1:]
	case strings.Count(name, ":") == 1:
		host, port, _ = strings.Cut(name, ":")
	default:
		return vars, nil
	}

	p, err := strconv.Atoi(port)
	if err != nil {
		return nil, errs.Configuration("servers", "invalid port %q in %q", port, name)
	}
	vars[VarHost] = host
	vars[VarPort] = p
	return vars, nil
}

func isLocal(name string, vars engine.Vars) bool {
	host := name
	if h, ok := vars[VarHost].(string); ok && h != "" {
		host = h
	}
	if !loopback[host] {
		return false
	}
	port, ok := vars[VarPort]
	if !ok {
		return true
	}
	return portEquals(port, DefaultSSHPort)
}

func portEquals(v any, want int) bool {
	switch p := v.(type) {
	case int:
		return p == want
	case int64:
		return p == int64(want)
	case float64:
		return p == float64(want)
	case string:
		n, err := strconv.Atoi(p)
		return err == nil && n == want
	default:
		return false
	}
}

// Names returns the active target names in sorted order.
func (inv *Inventory) Names() []string {
	names := make([]string, 0, len(inv.hosts))
	for name := range inv.hosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Vars returns a copy of the variables of name.
func (inv *Inventory) Vars(name string) (engine.Vars, bool) {
	vars, ok := inv.hosts[name]
	if !ok {
		return nil, false
	}
	return vars.Clone(), true
}

// Targets returns copies of all active targets in sorted order.
func (inv *Inventory) Targets() []engine.Target {
	targets := make([]engine.Target, 0, len(inv.hosts))
	for _, name := range inv.Names() {
		targets = append(targets, engine.Target{Name: name, Vars: inv.hosts[name].Clone()})
	}
	return targets
}

// Has reports whether name is still active.
func (inv *Inventory) Has(name string) bool {
	_, ok := inv.hosts[name]
	return ok
}

// Remove drops name from the active set for good.
func (inv *Inventory) Remove(name string) {
	delete(inv.hosts, name)
}

// Len returns the number of active targets.
func (inv *Inventory) Len() int {
	return len(inv.hosts)
}
