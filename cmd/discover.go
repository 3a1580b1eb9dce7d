// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/serialdash/pkg/session"
)

var discoverTimeout int

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List the serial devices the agent can reach",
	Long: `Connect to the agent, request discovery once and print the accessible devices.

This is useful for verifying:
  - The agent is reachable and accepts our credentials
  - The agent can open the serial devices attached to it

Exit codes:
  0 - Discovery successful (at least one device found)
  1 - Discovery failed (no devices or timeout)
  2 - Connection error`,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().IntVar(&discoverTimeout, "timeout", 5, "Timeout in seconds for discovery")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	log, closer, err := newLogger(cfg, "")
	if err != nil {
		return err
	}
	defer closer.Close()

	eng, err := newEngine(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		return exitCode(exitConnectionError)
	}

	fmt.Printf("Serialdash - Device Discovery\n")
	fmt.Printf("Connection: %s\n", describeConnection(cfg))
	fmt.Printf("Timeout: %d seconds\n\n", discoverTimeout)

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(discoverTimeout)*time.Second)
	updates, unsubscribe := eng.Subscribe()
	go eng.Run(ctx)

	// The engine discovers on its own as soon as the connection opens
	snap, found := waitForSnapshot(ctx, updates, func(s session.Snapshot) bool {
		return s.Ready() && s.Stats.DiscoveryFrames > 0
	})
	connected := found || eng.Snapshot().Stats.Connects > 0

	unsubscribe()
	cancel()
	<-eng.Done()

	if !connected {
		fmt.Fprintf(os.Stderr, "Connection error: agent at %s not reachable within %ds\n", cfg.URL, discoverTimeout)
		return exitCode(exitConnectionError)
	}
	if !found {
		fmt.Printf("TIMEOUT: No discovery response received in %ds\n", discoverTimeout)
		return exitCode(exitFailure)
	}

	for _, device := range snap.KnownDevices {
		fmt.Printf("  %s\n", device)
	}

	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Devices found: %d\n", len(snap.KnownDevices))
	if snap.LastError != nil {
		fmt.Println(formatAgentError(snap.LastError))
	}

	if len(snap.KnownDevices) == 0 {
		fmt.Printf("No accessible serial connections!\n")
		return exitCode(exitFailure)
	}
	return nil
}

// waitForSnapshot reads updates until one satisfies done or ctx ends
func waitForSnapshot(ctx context.Context, updates <-chan session.Snapshot, done func(session.Snapshot) bool) (session.Snapshot, bool) {
	var last session.Snapshot
	for {
		select {
		case <-ctx.Done():
			return last, false
		case snap, ok := <-updates:
			if !ok {
				return last, false
			}
			last = snap
			if done(snap) {
				return snap, true
			}
		}
	}
}
