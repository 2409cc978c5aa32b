package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eniac111/suitable/internal/errs"
	"github.com/eniac111/suitable/internal/logging"
	"github.com/eniac111/suitable/pkg/engine"
)

var defaults = engine.Defaults{
	Forks:          5,
	RemoteUser:     "ops",
	PrivateKeyFile: "/keys/id_ed25519",
	Become:         false,
	BecomeMethod:   "sudo",
	BecomeUser:     "root",
}

func ptr[T any](v T) *T { return &v }

func TestBuildDefaults(t *testing.T) {
	cfg, err := Build(Raw{}, defaults)
	require.NoError(t, err)

	assert.Equal(t, "smart", cfg.Connection)
	assert.False(t, cfg.Become)
	assert.Equal(t, "root", cfg.BecomeUser)
	assert.Equal(t, "sudo", cfg.BecomeMethod)
	assert.Equal(t, 5, cfg.Forks)
	assert.Equal(t, "ops", cfg.RemoteUser)
	assert.Equal(t, "/keys/id_ed25519", cfg.PrivateKeyFile)
	assert.Empty(t, cfg.ModulePath)
	assert.Equal(t, logging.LevelInfo, cfg.Verbosity)
	assert.False(t, cfg.Check)
	assert.False(t, cfg.Diff)
	assert.NotNil(t, cfg.ExtraVars)
	assert.Equal(t, map[string]string{engine.ConnPass: "", engine.BecomePass: ""}, cfg.Passwords)
}

func TestSudoShortcut(t *testing.T) {
	cfg, err := Build(Raw{Sudo: true}, defaults)
	require.NoError(t, err)
	assert.True(t, cfg.Become)
	assert.Equal(t, "root", cfg.BecomeUser)
}

func TestExplicitBecomeWinsOverSudo(t *testing.T) {
	cfg, err := Build(Raw{Sudo: true, Become: ptr(false)}, defaults)
	require.NoError(t, err)
	assert.False(t, cfg.Become)
	assert.Equal(t, "root", cfg.BecomeUser, "become_user falls back to the engine default")

	cfg, err = Build(Raw{Sudo: true, BecomeUser: ptr("postgres")}, defaults)
	require.NoError(t, err)
	assert.False(t, cfg.Become, "become falls back to the engine default")
	assert.Equal(t, "postgres", cfg.BecomeUser)
}

func TestModulePathIsRejected(t *testing.T) {
	_, err := Build(Raw{ModulePath: ptr("/opt/modules")}, defaults)

	var cfgErr *errs.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "module_path", cfgErr.Field)
}

func TestUnknownVerbosityIsRejected(t *testing.T) {
	_, err := Build(Raw{Verbosity: "loud"}, defaults)

	var cfgErr *errs.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "verbosity", cfgErr.Field)
}

func TestVerbosityTable(t *testing.T) {
	for label, want := range map[string]any{
		"critical": logging.LevelCritical,
		"error":    logging.LevelError,
		"warn":     logging.LevelWarn,
		"info":     logging.LevelInfo,
		"debug":    logging.LevelDebug,
	} {
		cfg, err := Build(Raw{Verbosity: label}, defaults)
		require.NoError(t, err)
		assert.Equal(t, want, cfg.Verbosity, label)
	}
}

func TestPasswords(t *testing.T) {
	tests := []struct {
		name string
		raw  Raw
		want map[string]string
	}{
		{
			name: "full map passes through",
			raw:  Raw{Passwords: map[string]string{"conn_pass": "a"}, RemotePass: ptr("ignored")},
			want: map[string]string{"conn_pass": "a"},
		},
		{
			name: "remote_pass alias",
			raw:  Raw{RemotePass: ptr("a")},
			want: map[string]string{engine.ConnPass: "a", engine.BecomePass: ""},
		},
		{
			name: "conn_pass alias",
			raw:  Raw{ConnPass: ptr("a")},
			want: map[string]string{engine.ConnPass: "a", engine.BecomePass: ""},
		},
		{
			name: "remote_pass takes precedence",
			raw:  Raw{RemotePass: ptr("a"), ConnPass: ptr("b")},
			want: map[string]string{engine.ConnPass: "a", engine.BecomePass: ""},
		},
		{
			name: "sudo_pass and become_pass",
			raw:  Raw{BecomePass: ptr("b")},
			want: map[string]string{engine.ConnPass: "", engine.BecomePass: "b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Build(tt.raw, defaults)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Passwords)
		})
	}
}

func TestExplicitOptionsOverrideDefaults(t *testing.T) {
	raw := Raw{
		DryRun:         true,
		Connection:     ptr("ssh"),
		Forks:          ptr(20),
		RemoteUser:     ptr("deploy"),
		PrivateKeyFile: ptr("/tmp/key"),
		BecomeMethod:   ptr("su"),
		SSHCommonArgs:  ptr("-o ProxyJump=bastion"),
		ExtraVars:      map[string]any{"home": "/home/deploy"},
		Diff:           ptr(true),
		Timeout:        ptr(30 * time.Second),
		Extra:          map[string]any{"listhosts": false},
	}
	cfg, err := Build(raw, defaults)
	require.NoError(t, err)

	assert.Equal(t, "ssh", cfg.Connection)
	assert.Equal(t, 20, cfg.Forks)
	assert.Equal(t, "deploy", cfg.RemoteUser)
	assert.Equal(t, "/tmp/key", cfg.PrivateKeyFile)
	assert.Equal(t, "su", cfg.BecomeMethod)
	assert.Equal(t, "-o ProxyJump=bastion", cfg.SSHCommonArgs)
	assert.Equal(t, "/home/deploy", cfg.ExtraVars["home"])
	assert.True(t, cfg.Diff)
	assert.True(t, cfg.Check)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, false, cfg.Extra["listhosts"])
}

func TestBuildIsIdempotentAndPure(t *testing.T) {
	raw := Raw{
		Sudo:      true,
		Verbosity: "debug",
		ExtraVars: map[string]any{"a": 1},
		Passwords: map[string]string{"conn_pass": "x"},
	}

	first, err := Build(raw, defaults)
	require.NoError(t, err)
	second, err := Build(raw, defaults)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	first.ExtraVars["b"] = 2
	first.Passwords["become_pass"] = "y"
	assert.NotContains(t, raw.ExtraVars, "b")
	assert.NotContains(t, raw.Passwords, "become_pass")
}
