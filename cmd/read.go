// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/serialdash/pkg/session"
)

var (
	readBaudRate int
	readTimeout  int
	readSend     string
)

var readCmd = &cobra.Command{
	Use:   "read <device>",
	Short: "Stream one device's output to stdout",
	Long: `Open a serial device on the agent and print everything it sends until interrupted.

The device is opened as soon as discovery reports it, and opened again after
every reconnection. A --send command is written once, after the first open.
Agent errors are printed to stderr.

Examples:
  serialdash read /dev/ttyUSB0
  serialdash read COM3 --baud 9600 --send "AT+GMR"`,
	Args: cobra.ExactArgs(1),
	RunE: runRead,
}

func init() {
	rootCmd.AddCommand(readCmd)
	readCmd.Flags().IntVarP(&readBaudRate, "baud", "b", 0, "Baud rate (default from config)")
	readCmd.Flags().IntVar(&readTimeout, "timeout", 0, "Read timeout in seconds (default from config)")
	readCmd.Flags().StringVar(&readSend, "send", "", "Command to write once the device is open")
}

func runRead(cmd *cobra.Command, args []string) error {
	device := args[0]
	baud := cfg.BaudRate
	if readBaudRate > 0 {
		baud = readBaudRate
	}
	timeout := cfg.TimeoutSeconds
	if readTimeout > 0 {
		timeout = readTimeout
	}

	log, closer, err := newLogger(cfg, "")
	if err != nil {
		return err
	}
	defer closer.Close()

	eng, err := newEngine(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	updates, unsubscribe := eng.Subscribe()
	defer unsubscribe()
	go eng.Run(ctx)

	fmt.Fprintf(os.Stderr, "Connection: %s\n", describeConnection(cfg))
	fmt.Fprintf(os.Stderr, "Waiting for %s...\n", device)

	r := &deviceReader{device: device, send: readSend, out: os.Stdout, errOut: os.Stderr}
	for snap := range updates {
		if r.shouldOpen(snap) && r.open(eng, baud, timeout) {
			fmt.Fprintf(os.Stderr, "Reading %s at %d baud\n", device, baud)
		}
		r.print(snap)
	}

	<-eng.Done()
	return nil
}

// deviceReader prints new log lines of one device
type deviceReader struct {
	device string
	send   string
	out    io.Writer
	errOut io.Writer

	opened    bool
	sent      bool
	printed   uint64
	lastError session.LastError
}

// shouldOpen reports whether the device must be (re)opened. A lost
// connection forgets that it was open.
func (r *deviceReader) shouldOpen(snap session.Snapshot) bool {
	if !snap.Ready() {
		r.opened = false
		return false
	}
	return !r.opened && snap.Has(r.device)
}

// open asks the agent to open the device. The --send command is written
// after the first successful open only, not again after reconnecting.
func (r *deviceReader) open(eng dashboardEngine, baud, timeout int) bool {
	if !eng.Read(r.device, baud, timeout) {
		return false
	}
	r.opened = true
	if r.send != "" && !r.sent {
		eng.Select(r.device)
		r.sent = eng.SendCommand(r.send)
	}
	return true
}

func (r *deviceReader) print(snap session.Snapshot) {
	if snap.LastError != nil && *snap.LastError != r.lastError {
		r.lastError = *snap.LastError
		fmt.Fprintln(r.errOut, formatAgentError(snap.LastError))
	}

	// Remote lines accepted since the last call are the tail of the log
	accepted := snap.Stats.SerialFrames - snap.Stats.Duplicates
	fresh := int(accepted - r.printed)
	r.printed = accepted

	var remote []session.Entry
	for _, e := range snap.Log {
		if e.Origin == session.Remote {
			remote = append(remote, e)
		}
	}
	start := max(len(remote)-fresh, 0)
	for _, e := range remote[start:] {
		if e.Device == r.device {
			fmt.Fprintln(r.out, e.Text)
		}
	}
}
