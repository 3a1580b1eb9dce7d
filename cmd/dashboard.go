// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI for the agent's serial ports",
	Long: `Watch and drive the agent's serial ports from an interactive terminal UI.

Features:
  - Device discovery, repeated every discovery interval while connected
  - Per-device connect dialog (baud rate and read timeout)
  - Live message log with local command echo
  - Command input for the selected device
  - Statistics and event log
  - Automatic reconnection on connection loss (p pauses it)

Tab switches between the device list and the command input. Enter on a device
opens the connect dialog. Logs go to a file so they do not corrupt the screen.`,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	log, closer, err := newLogger(cfg, filepath.Join(os.TempDir(), "serialdash.log"))
	if err != nil {
		return err
	}
	defer closer.Close()

	eng, err := newEngine(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	m := initialDashboardModel(eng, describeConnection(cfg), cfg.BaudRate, cfg.TimeoutSeconds)
	p := tea.NewProgram(m, tea.WithAltScreen())

	// Forward snapshots to the TUI
	updates, unsubscribe := eng.Subscribe()
	defer unsubscribe()
	go func() {
		for snap := range updates {
			p.Send(snapshotMsg(snap))
		}
	}()

	go eng.Run(ctx)

	_, runErr := p.Run()

	// Let the engine deliver its final transitions before exiting
	cancel()
	<-eng.Done()

	if runErr != nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}
