// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

var portsVerbose bool

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports on this machine",
	Long: `List the serial ports of the local machine.

Run this on the host of the agent to see which devices it should report in
discovery. With --verbose USB vendor, product and serial numbers are shown.`,
	// Local only: no config or connection needed
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
	portsCmd.Flags().BoolVarP(&portsVerbose, "verbose", "v", false, "Show USB details")
}

func runPorts(cmd *cobra.Command, args []string) error {
	if !portsVerbose {
		ports, err := serial.GetPortsList()
		if err != nil {
			return fmt.Errorf("failed to list serial ports: %w", err)
		}
		if len(ports) == 0 {
			fmt.Println("No serial ports found")
			return nil
		}
		for _, port := range ports {
			fmt.Println(port)
		}
		return nil
	}

	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %w", err)
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}
	for _, port := range ports {
		if port.IsUSB {
			fmt.Printf("%-20s USB %s:%s serial=%s\n", port.Name, port.VID, port.PID, port.SerialNumber)
		} else {
			fmt.Printf("%-20s\n", port.Name)
		}
	}
	return nil
}
