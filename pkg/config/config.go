// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads serialdash settings.
//
// Settings come from defaults, then an optional YAML file named by the
// --config flag or the SERIALDASH_CONFIG environment variable. Command line
// flags are applied last by the caller. The agent password is never stored
// here.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/serialdash/pkg/engine"
	"github.com/Thermoquad/serialdash/pkg/logger"
	"github.com/Thermoquad/serialdash/pkg/transport"
	"github.com/Thermoquad/serialdash/pkg/wire"
)

// EnvConfig names the config file when --config is not given
const EnvConfig = "SERIALDASH_CONFIG"

// DefaultURL is where a locally running agent listens
const DefaultURL = "ws://localhost:8080/ws"

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid config")

// BaudRates are the rates the agent accepts
var BaudRates = []int{1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200, 230400, 460800, 921600}

// TimeoutChoices are the read timeouts offered, in seconds
var TimeoutChoices = []int{1, 2, 5, 10, 60}

// Config holds every serialdash setting
type Config struct {
	// URL of the agent's WebSocket endpoint
	URL string `yaml:"url"`

	// Username enables HTTP Basic auth during the handshake
	Username    string `yaml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify"`

	DiscoveryInterval time.Duration `yaml:"discovery_interval"`

	// MaxLogEntries bounds the message log (0 keeps everything)
	MaxLogEntries int `yaml:"max_log_entries"`

	BackoffMin time.Duration `yaml:"backoff_min"`
	BackoffMax time.Duration `yaml:"backoff_max"`

	// Read defaults
	BaudRate       int `yaml:"baud_rate"`
	TimeoutSeconds int `yaml:"timeout_seconds"`

	Log logger.Config `yaml:"log"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		URL:               DefaultURL,
		DiscoveryInterval: engine.DefaultDiscoveryInterval,
		MaxLogEntries:     1000,
		BackoffMin:        transport.DefaultBackoffMin,
		BackoffMax:        transport.DefaultBackoffMax,
		BaudRate:          wire.DefaultBaudRate,
		TimeoutSeconds:    wire.DefaultTimeoutSeconds,
		Log: logger.Config{
			Level:  "info",
			Output: "stderr",
		},
	}
}

// Load reads path, or SERIALDASH_CONFIG when path is empty. With neither
// set the defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile merges a YAML file over the current values
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	var errs []error

	if _, err := transport.ParseURL(c.URL); err != nil {
		errs = append(errs, err)
	}
	if c.DiscoveryInterval <= 0 {
		errs = append(errs, fmt.Errorf("discovery_interval must be positive, got %v", c.DiscoveryInterval))
	}
	if c.MaxLogEntries < 0 {
		errs = append(errs, fmt.Errorf("max_log_entries cannot be negative: %d", c.MaxLogEntries))
	}
	if c.BackoffMin <= 0 {
		errs = append(errs, fmt.Errorf("backoff_min must be positive, got %v", c.BackoffMin))
	}
	if c.BackoffMax < c.BackoffMin {
		errs = append(errs, fmt.Errorf("backoff_max %v is below backoff_min %v", c.BackoffMax, c.BackoffMin))
	}
	if !slices.Contains(BaudRates, c.BaudRate) {
		errs = append(errs, fmt.Errorf("invalid baud rate %d, must be one of: %v", c.BaudRate, BaudRates))
	}
	if !slices.Contains(TimeoutChoices, c.TimeoutSeconds) {
		errs = append(errs, fmt.Errorf("invalid timeout %ds, must be one of: %v", c.TimeoutSeconds, TimeoutChoices))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
