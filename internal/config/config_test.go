package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/database64128/npipe-go"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "npipe-echo.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4, cfg.Instances())

	pc := cfg.PipeConfig()
	assert.True(t, pc.IsMessageMode())
	assert.True(t, pc.IsLocalOnly())
	assert.Equal(t, cfg.Pipe.Name, pc.Name)
}

func TestLoadNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := writeConfigFile(t, `
[pipe]
name = '\\.\pipe\from-file'
buffer_size = 8192
max_instances = 255
local_only = false
default_timeout = "250ms"

[service]
instances = 8

[log]
level = "debug"
format = "json"

[metrics]
address = ""
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, `\\.\pipe\from-file`, cfg.Pipe.Name)
	assert.Equal(t, uint32(8192), cfg.Pipe.BufferSize)
	assert.Equal(t, 8, cfg.Instances())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, LogFormatJSON, cfg.Log.Format)
	assert.Empty(t, cfg.Metrics.Address)

	pc := cfg.PipeConfig()
	assert.False(t, pc.IsLocalOnly())
	assert.Equal(t, uint32(npipe.UnlimitedInstances), pc.MaxInstances)
	assert.Equal(t, 250*time.Millisecond, pc.DefaultTimeout)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
[pipe]
name = '\\.\pipe\from-file'
buffer_size = 8192
`)
	t.Setenv("NPIPE_PIPE_NAME", `\\.\pipe\from-env`)
	t.Setenv("NPIPE_PIPE_DEFAULT_TIMEOUT", "2s")
	t.Setenv("NPIPE_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, `\\.\pipe\from-env`, cfg.Pipe.Name)
	assert.Equal(t, uint32(8192), cfg.Pipe.BufferSize)
	assert.Equal(t, Duration(2*time.Second), cfg.Pipe.DefaultTimeout)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadUnknownField(t *testing.T) {
	path := writeConfigFile(t, `
[pipe]
nmae = "typo"
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "nmae")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadInvalidEnv(t *testing.T) {
	t.Setenv("NPIPE_PIPE_BUFFER_SIZE", "lots")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	for _, c := range []struct {
		name   string
		modify func(*Config)
		check  func(*testing.T, error)
	}{
		{"ZeroBufferSize", func(c *Config) { c.Pipe.BufferSize = 0 }, func(t *testing.T, err error) {
			assert.True(t, errdefs.IsInvalidArgument(err))
		}},
		{"EmptyName", func(c *Config) { c.Pipe.Name = "" }, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, npipe.ErrEmptyName)
		}},
		{"NegativeInstances", func(c *Config) { c.Service.Instances = -1 }, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, errNegativeWorkers)
		}},
		{"TooManyInstances", func(c *Config) { c.Service.Instances = 5 }, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, errTooManyWorkers)
		}},
		{"BadLogLevel", func(c *Config) { c.Log.Level = "loud" }, func(t *testing.T, err error) {
			assert.Error(t, err)
		}},
		{"BadLogFormat", func(c *Config) { c.Log.Format = "xml" }, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, errInvalidLogFormat)
		}},
	} {
		t.Run(c.name, func(t *testing.T) {
			cfg := Default()
			c.modify(cfg)
			c.check(t, cfg.Validate())
		})
	}
}

func TestInstances(t *testing.T) {
	cfg := Default()
	cfg.Pipe.MaxInstances = 2
	assert.Equal(t, 2, cfg.Instances())

	cfg.Pipe.MaxInstances = npipe.UnlimitedInstances
	assert.Equal(t, 4, cfg.Instances())

	cfg.Service.Instances = 16
	assert.Equal(t, 16, cfg.Instances())
	assert.NoError(t, cfg.Validate())
}
