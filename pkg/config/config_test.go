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

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "serialdash.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "ws://localhost:8080/ws", cfg.URL)
	assert.Equal(t, 10*time.Second, cfg.DiscoveryInterval)
	assert.Equal(t, 115200, cfg.BaudRate)
	assert.Equal(t, 1, cfg.TimeoutSeconds)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv(EnvConfig, "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
url: wss://agent.local:8443/ws
username: bench
discovery_interval: 3s
baud_rate: 9600
log:
  level: debug
  output: /tmp/serialdash.log
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "wss://agent.local:8443/ws", cfg.URL)
	assert.Equal(t, "bench", cfg.Username)
	assert.Equal(t, 3*time.Second, cfg.DiscoveryInterval)
	assert.Equal(t, 9600, cfg.BaudRate)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched keys keep their defaults
	assert.Equal(t, 1, cfg.TimeoutSeconds)
	assert.Equal(t, 1000, cfg.MaxLogEntries)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv(EnvConfig, writeConfig(t, "timeout_seconds: 5\n"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.TimeoutSeconds)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "url: [not, a, string"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"http scheme", func(c *Config) { c.URL = "http://localhost:8080/ws" }},
		{"empty url", func(c *Config) { c.URL = "" }},
		{"zero interval", func(c *Config) { c.DiscoveryInterval = 0 }},
		{"negative log size", func(c *Config) { c.MaxLogEntries = -1 }},
		{"zero backoff", func(c *Config) { c.BackoffMin = 0 }},
		{"inverted backoff", func(c *Config) { c.BackoffMax = c.BackoffMin / 2 }},
		{"odd baud rate", func(c *Config) { c.BaudRate = 12345 }},
		{"odd timeout", func(c *Config) { c.TimeoutSeconds = 3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}
