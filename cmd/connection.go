// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/Thermoquad/serialdash/pkg/config"
	"github.com/Thermoquad/serialdash/pkg/engine"
	"github.com/Thermoquad/serialdash/pkg/logger"
	"github.com/Thermoquad/serialdash/pkg/transport"
)

// EnvPassword holds the agent password for HTTP Basic auth
const EnvPassword = "SERIALDASH_PASSWORD"

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv(EnvPassword); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Not a terminal, read a plain line
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// newLogger builds the process logger. fallback replaces stderr/stdout
// output, for commands that own the terminal.
func newLogger(c *config.Config, fallback string) (zerolog.Logger, io.Closer, error) {
	lc := c.Log
	if fallback != "" && (lc.Output == "" || lc.Output == "stderr" || lc.Output == "stdout") {
		lc.Output = fallback
	}
	return logger.New(lc)
}

// newChannel builds the transport channel for c, prompting for the
// password when a username is set
func newChannel(c *config.Config, log zerolog.Logger) (*transport.Channel, error) {
	if _, err := transport.ParseURL(c.URL); err != nil {
		return nil, err
	}

	dialer := transport.WebSocketDialer{
		Username:      c.Username,
		SkipTLSVerify: c.NoSSLVerify,
	}
	if c.Username != "" {
		password, err := GetPassword()
		if err != nil {
			return nil, err
		}
		dialer.Password = password
	}

	return transport.New(transport.Options{
		URL:        c.URL,
		Dialer:     dialer,
		BackoffMin: c.BackoffMin,
		BackoffMax: c.BackoffMax,
		Logger:     log,
	}), nil
}

// newEngine wires a transport channel and engine for c
func newEngine(c *config.Config, log zerolog.Logger) (*engine.Engine, error) {
	ch, err := newChannel(c, log)
	if err != nil {
		return nil, err
	}
	return engine.New(engine.Options{
		Transport:         ch,
		DiscoveryInterval: c.DiscoveryInterval,
		MaxEntries:        c.MaxLogEntries,
		Logger:            log,
	}), nil
}

// describeConnection is the one-line connection summary shown to the user
func describeConnection(c *config.Config) string {
	info := fmt.Sprintf("WebSocket: %s", c.URL)
	if c.Username != "" {
		info += fmt.Sprintf(" (as %s)", c.Username)
	}
	return info
}
