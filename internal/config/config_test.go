// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuyastat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TUYASTAT_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9600, cfg.Connection.Baud)
	assert.Empty(t, cfg.Connection.Username)
	assert.Equal(t, "me102h", cfg.Device.Model)
	assert.Equal(t, 10*time.Second, cfg.Device.HeartbeatInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Empty(t, cfg.Logging.File.Filename)
	assert.False(t, cfg.Metrics.Enable)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
connection:
  port: /dev/ttyS1
  baud: 115200
device:
  model: bht-002
  heartbeatInterval: 15s
logging:
  level: debug
  format: json
  file:
    filename: /var/log/tuyastat.log
metrics:
  enable: true
  addr: 127.0.0.1:9200
capture:
  file: traffic.cbor
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyS1", cfg.Connection.Port)
	assert.Equal(t, 115200, cfg.Connection.Baud)
	assert.Equal(t, "bht-002", cfg.Device.Model)
	assert.Equal(t, 15*time.Second, cfg.Device.HeartbeatInterval)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/var/log/tuyastat.log", cfg.Logging.File.Filename)
	assert.Equal(t, 10, cfg.Logging.File.MaxSizeMB, "unset keys keep defaults")
	assert.True(t, cfg.Metrics.Enable)
	assert.Equal(t, "127.0.0.1:9200", cfg.Metrics.Addr)
	assert.Equal(t, "traffic.cbor", cfg.Capture.File)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "connection:\n  port: /dev/ttyS1\n")
	t.Setenv("TUYASTAT_CONNECTION_PORT", "/dev/ttyUSB0")
	t.Setenv("TUYASTAT_LOGGING_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Connection.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadConfigFromEnv(t *testing.T) {
	path := writeConfig(t, "device:\n  model: bht-002\n")
	t.Setenv("TUYASTAT_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "bht-002", cfg.Device.Model)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed yaml", "connection: [port"},
		{"zero baud", "connection:\n  baud: 0\n"},
		{"negative heartbeat", "device:\n  heartbeatInterval: -1s\n"},
		{"unknown format", "logging:\n  format: xml\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	t.Run("explicit missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}
