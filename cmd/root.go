// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/serialdash/pkg/config"
)

var (
	configPath string
	cfg        *config.Config

	// Connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Logging flags
	logLevel string
	logFile  string
)

var rootCmd = &cobra.Command{
	Use:   "serialdash",
	Short: "Remote serial port dashboard",
	Long: `Serialdash - watch and drive serial ports exposed by a remote agent.

The agent publishes the serial devices it can reach over a WebSocket. Serialdash
discovers them, streams their output and sends commands to them, reconnecting
automatically whenever the link drops.

Settings are read from a YAML file (--config or SERIALDASH_CONFIG) and can be
overridden with flags:
  serialdash dashboard --url ws://bench-pi:8080/ws

For HTTP Basic auth set --username. The password is read from the
SERIALDASH_PASSWORD environment variable, or prompted interactively if not set.
The --password flag is intentionally not provided to avoid leaking credentials
in shell history.`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")

	// Connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", config.DefaultURL, "Agent WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")
}

// loadConfig reads the config file and lets explicitly set flags win
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		loaded.URL = wsURL
	}
	if flags.Changed("username") {
		loaded.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		loaded.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("log-level") {
		loaded.Log.Level = logLevel
	}
	if flags.Changed("log-file") {
		loaded.Log.Output = logFile
	}

	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded
	return nil
}

// Exit codes shared by the commands
const (
	exitOK              = 0
	exitFailure         = 1
	exitConnectionError = 2
)

// exitCode ends a command with a specific process exit status. Returning it
// from RunE lets deferred cleanup run before the process exits.
type exitCode int

func (c exitCode) Error() string {
	return fmt.Sprintf("exit status %d", int(c))
}

// Execute runs the root command and returns the process exit status
func Execute() int {
	return exitStatus(rootCmd.Execute())
}

func exitStatus(err error) int {
	if err == nil {
		return exitOK
	}
	var code exitCode
	if errors.As(err, &code) {
		return int(code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitFailure
}
