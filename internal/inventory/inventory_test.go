package inventory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eniac111/suitable/internal/errs"
	"github.com/eniac111/suitable/pkg/engine"
)

func TestNewAcceptsAllServerShapes(t *testing.T) {
	tests := []struct {
		name    string
		servers any
		want    []string
	}{
		{"single string", "web.example.org", []string{"web.example.org"}},
		{"space delimited", "web.example.org db.example.org", []string{"db.example.org", "web.example.org"}},
		{"list", []string{"a", "b"}, []string{"a", "b"}},
		{"map of vars", map[string]engine.Vars{"a": {"k": "v"}}, []string{"a"}},
		{"map of any", map[string]map[string]any{"a": {"k": "v"}}, []string{"a"}},
		{"map of strings", map[string]map[string]string{"a": {"k": "v"}}, []string{"a"}},
		{"nil", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := New("", tt.servers)
			require.NoError(t, err)
			assert.Equal(t, tt.want, inv.Names())
		})
	}
}

func TestNewRejectsUnsupportedType(t *testing.T) {
	_, err := New("", 42)
	var cfgErr *errs.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "servers", cfgErr.Field)
}

func TestHostPortParsing(t *testing.T) {
	inv, err := New("", "host:2222")
	require.NoError(t, err)

	vars, ok := inv.Vars("host:2222")
	require.True(t, ok)
	assert.Equal(t, "host", vars[VarHost])
	assert.Equal(t, 2222, vars[VarPort])
}

func TestIPv6HostPortParsing(t *testing.T) {
	inv, err := New("", "[::1]:2222")
	require.NoError(t, err)

	vars, ok := inv.Vars("[::1]:2222")
	require.True(t, ok)
	assert.Equal(t, "::1", vars[VarHost])
	assert.Equal(t, 2222, vars[VarPort])
	assert.NotContains(t, vars, VarConnection)
}

func TestPlainIPv6HasNoDerivedVars(t *testing.T) {
	inv, err := New("", []string{"fe80::1"})
	require.NoError(t, err)

	vars, _ := inv.Vars("fe80::1")
	assert.Empty(t, vars)
}

func TestMalformedPortIsConfigurationError(t *testing.T) {
	for _, server := range []string{"host:ssh", "[::1]:x"} {
		_, err := New("", server)
		var cfgErr *errs.ConfigurationError
		require.True(t, errors.As(err, &cfgErr), server)
	}
}

func TestOverridesMergeOnTopOfDerivedVars(t *testing.T) {
	inv, err := New("", map[string]engine.Vars{
		"a":         {"k": "v"},
		"b:2200":    {"ansible_user": "deploy"},
		"c:2200":    {VarPort: 2300},
		"localhost": {VarHost: "10.0.0.5"},
	})
	require.NoError(t, err)

	a, _ := inv.Vars("a")
	assert.Equal(t, engine.Vars{"k": "v"}, a)

	b, _ := inv.Vars("b:2200")
	assert.Equal(t, engine.Vars{VarHost: "b", VarPort: 2200, "ansible_user": "deploy"}, b)

	c, _ := inv.Vars("c:2200")
	assert.Equal(t, 2300, c[VarPort])

	local, _ := inv.Vars("localhost")
	assert.NotContains(t, local, VarConnection)
}

func TestLocalConnectionInference(t *testing.T) {
	tests := []struct {
		name       string
		connection string
		servers    any
		server     string
		local      bool
	}{
		{"localhost", "", "localhost", "localhost", true},
		{"loopback v4", "", "127.0.0.1", "127.0.0.1", true},
		{"loopback v6 default port", "", "[::1]:22", "[::1]:22", true},
		{"explicit default port", "", "localhost:22", "localhost:22", true},
		{"non default port", "", "localhost:2222", "localhost:2222", false},
		{"ansible_host loopback", "", map[string]engine.Vars{"box": {VarHost: "127.0.0.1"}}, "box", true},
		{"explicit connection", "ssh", "localhost", "localhost", false},
		{"remote", "", "example.org", "example.org", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := New(tt.connection, tt.servers)
			require.NoError(t, err)

			vars, ok := inv.Vars(tt.server)
			require.True(t, ok)
			if tt.local {
				assert.Equal(t, "local", vars[VarConnection])
			} else {
				assert.NotContains(t, vars, VarConnection)
			}
		})
	}
}

func TestRemoveIsPermanent(t *testing.T) {
	inv, err := New("", "a b c")
	require.NoError(t, err)

	inv.Remove("b")
	assert.False(t, inv.Has("b"))
	assert.Equal(t, 2, inv.Len())
	assert.Equal(t, []string{"a", "c"}, inv.Names())

	targets := inv.Targets()
	require.Len(t, targets, 2)
	assert.Equal(t, "a", targets[0].Name)
}

func TestTargetsAreCopies(t *testing.T) {
	inv, err := New("", "a:2200")
	require.NoError(t, err)

	targets := inv.Targets()
	targets[0].Vars[VarPort] = 1

	vars, _ := inv.Vars("a:2200")
	assert.Equal(t, 2200, vars[VarPort])
}
