package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultBaudRate         = 115200
	DefaultLogLevel         = "info"
	DefaultCommandRetries   = 5
	DefaultCommandTimeoutMS = 100
	DefaultLivenessPeriodMS = 10000
)

// Validation errors.
var (
	ErrNoSerialDevice = errors.New("serial_device is required")
	ErrBadBaudRate    = errors.New("baud_rate must be positive")
	ErrBadTimeout     = errors.New("command_timeout_ms must be positive")
)

// Config is the daemon configuration. Durations are expressed in
// milliseconds so the file stays plain YAML scalars.
type Config struct {
	// SerialDevice is the UART device path, e.g. /dev/ttyACM0.
	SerialDevice string `yaml:"serial_device"`

	// BaudRate is the UART speed.
	BaudRate int `yaml:"baud_rate"`

	// LegacyPoll selects the unnumbered-poll mode for early secondaries.
	LegacyPoll bool `yaml:"legacy_poll"`

	// TraceFile, when set, captures protocol events to this path.
	TraceFile string `yaml:"trace_file"`

	// MetricsAddress, when set, serves Prometheus metrics on this
	// listen address, e.g. 127.0.0.1:9465.
	MetricsAddress string `yaml:"metrics_address"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// CommandRetries is the retry count for system commands issued by
	// the daemon.
	CommandRetries uint8 `yaml:"command_retries"`

	// CommandTimeoutMS is the per-attempt timeout for system commands.
	CommandTimeoutMS int `yaml:"command_timeout_ms"`

	// LivenessPeriodMS is the interval between noop liveness probes.
	// Zero disables probing.
	LivenessPeriodMS int `yaml:"liveness_period_ms"`
}

// Default returns a configuration with every optional field at its default.
func Default() Config {
	return Config{
		BaudRate:         DefaultBaudRate,
		LogLevel:         DefaultLogLevel,
		CommandRetries:   DefaultCommandRetries,
		CommandTimeoutMS: DefaultCommandTimeoutMS,
		LivenessPeriodMS: DefaultLivenessPeriodMS,
	}
}

// Load reads a YAML configuration file over the defaults and validates the
// result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for use by the daemon.
func (c Config) Validate() error {
	if c.SerialDevice == "" {
		return ErrNoSerialDevice
	}
	if c.BaudRate <= 0 {
		return ErrBadBaudRate
	}
	if c.CommandTimeoutMS <= 0 {
		return ErrBadTimeout
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// CommandTimeout returns the per-attempt command timeout.
func (c Config) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutMS) * time.Millisecond
}

// LivenessPeriod returns the liveness probe interval (zero when disabled).
func (c Config) LivenessPeriod() time.Duration {
	return time.Duration(c.LivenessPeriodMS) * time.Millisecond
}
