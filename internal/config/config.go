// Package config loads the npipe-echo configuration.
//
// Values are layered: built-in defaults, then an optional TOML file, then
// NPIPE_* environment variables. Command-line flags are applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"

	"github.com/database64128/npipe-go"
)

// EnvPrefix is the prefix of environment overrides, e.g. NPIPE_PIPE_NAME or
// NPIPE_PIPE_BUFFER_SIZE.
const EnvPrefix = "NPIPE"

const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

var (
	errInvalidLogFormat = errors.New("log format must be text or json")
	errNegativeWorkers  = errors.New("service instances must not be negative")
	errTooManyWorkers   = errors.New("service instances exceed pipe max instances")
)

// Config holds all npipe-echo configuration.
type Config struct {
	Pipe    PipeConfig    `toml:"pipe"`
	Service ServiceConfig `toml:"service"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`
}

// PipeConfig describes the pipe endpoint served by each instance.
type PipeConfig struct {
	Name               string   `toml:"name"`
	BufferSize         uint32   `toml:"buffer_size" split_words:"true"`
	MaxInstances       uint32   `toml:"max_instances" split_words:"true"`
	SecurityDescriptor string   `toml:"security_descriptor" split_words:"true"`
	LocalOnly          bool     `toml:"local_only" split_words:"true"`
	DefaultTimeout     Duration `toml:"default_timeout" split_words:"true"`
}

// ServiceConfig holds echo service configuration.
type ServiceConfig struct {
	// Instances is the number of pipe instances served concurrently.
	// Zero derives it from Pipe.MaxInstances.
	Instances int `toml:"instances"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds the Prometheus endpoint configuration.
type MetricsConfig struct {
	// Address is the listen address of /metrics. Empty disables the endpoint.
	Address string `toml:"address"`
}

// Duration is a time.Duration written as a string such as "5s",
// both in TOML and in the environment.
type Duration time.Duration

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Pipe: PipeConfig{
			Name:         `\\.\pipe\npipe-echo`,
			BufferSize:   4096,
			MaxInstances: 4,
			LocalOnly:    true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatText,
		},
		Metrics: MetricsConfig{
			Address: "127.0.0.1:9464",
		},
	}
}

// Load applies the TOML file at path (if path is not empty) and then the
// environment on top of the defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err = dec.Decode(c); err != nil {
		var strictErr *toml.StrictMissingError
		if errors.As(err, &strictErr) {
			return fmt.Errorf("failed to parse config file %s: %s", path, strictErr.String())
		}
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration without touching the OS.
func (c *Config) Validate() error {
	if err := c.PipeConfig().Validate(); err != nil {
		return err
	}
	if c.Service.Instances < 0 {
		return errNegativeWorkers
	}
	if c.Pipe.MaxInstances != npipe.UnlimitedInstances && c.Service.Instances > int(c.Pipe.MaxInstances) {
		return fmt.Errorf("%w: %d > %d", errTooManyWorkers, c.Service.Instances, c.Pipe.MaxInstances)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("%w, got %q", errInvalidLogFormat, c.Log.Format)
	}
	return nil
}

// PipeConfig converts the pipe section to a library pipe configuration.
func (c *Config) PipeConfig() npipe.PipeConfig {
	pc := npipe.NewPipeConfig(
		c.Pipe.Name,
		c.Pipe.BufferSize,
		c.Pipe.MaxInstances,
		c.Pipe.SecurityDescriptor,
		false,
		c.Pipe.LocalOnly,
	)
	pc.DefaultTimeout = time.Duration(c.Pipe.DefaultTimeout)
	return pc
}

// Instances returns the number of pipe instances to serve.
// Unless set explicitly, it is MaxInstances, or 4 when unlimited.
func (c *Config) Instances() int {
	switch {
	case c.Service.Instances > 0:
		return c.Service.Instances
	case c.Pipe.MaxInstances == npipe.UnlimitedInstances:
		return 4
	default:
		return int(c.Pipe.MaxInstances)
	}
}
