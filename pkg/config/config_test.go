package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cpcd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "serial_device: /dev/ttyACM0\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM0", cfg.SerialDevice)
	assert.Equal(t, DefaultBaudRate, cfg.BaudRate)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, uint8(DefaultCommandRetries), cfg.CommandRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.CommandTimeout())
	assert.Equal(t, 10*time.Second, cfg.LivenessPeriod())
	assert.False(t, cfg.LegacyPoll)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
serial_device: /dev/ttyUSB1
baud_rate: 921600
legacy_poll: true
trace_file: /var/log/cpcd-trace.cbor
metrics_address: 127.0.0.1:9465
log_level: debug
command_retries: 3
command_timeout_ms: 250
liveness_period_ms: 0
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 921600, cfg.BaudRate)
	assert.True(t, cfg.LegacyPoll)
	assert.Equal(t, "/var/log/cpcd-trace.cbor", cfg.TraceFile)
	assert.Equal(t, "127.0.0.1:9465", cfg.MetricsAddress)
	assert.Equal(t, uint8(3), cfg.CommandRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.CommandTimeout())
	assert.Zero(t, cfg.LivenessPeriod())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "missing device", mutate: func(c *Config) { c.SerialDevice = "" }, wantErr: ErrNoSerialDevice},
		{name: "bad baud", mutate: func(c *Config) { c.BaudRate = 0 }, wantErr: ErrBadBaudRate},
		{name: "bad timeout", mutate: func(c *Config) { c.CommandTimeoutMS = 0 }, wantErr: ErrBadTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.SerialDevice = "/dev/ttyACM0"
			tt.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestValidateUnknownLogLevel(t *testing.T) {
	cfg := Default()
	cfg.SerialDevice = "/dev/ttyACM0"
	cfg.LogLevel = "verbose"
	require.Error(t, cfg.Validate())
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "serial_device: [\n")
	_, err := Load(path)
	require.Error(t, err)
}
