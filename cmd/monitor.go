// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/serialdash/pkg/session"
	"github.com/Thermoquad/serialdash/pkg/transport"
	"github.com/Thermoquad/serialdash/pkg/wire"
)

var monitorDuration int

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print every frame and connection transition",
	Long: `Print the agent's raw frames as they arrive, each tagged with the kind it
classifies as, along with every connection transition.

A discovery request is sent each time the connection opens so there is always
some traffic to look at. Nothing is deduplicated or filtered.

With --duration the command doubles as a connection stability test.

Exit codes:
  0 - Completed normally (or no connection drop within --duration)
  1 - Connection dropped during --duration, or never opened
  2 - Connection error`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().IntVar(&monitorDuration, "duration", 0, "Stop after N seconds and report stability (0 runs until interrupted)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	log, closer, err := newLogger(cfg, "")
	if err != nil {
		return err
	}
	defer closer.Close()

	ch, err := newChannel(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		return exitCode(exitConnectionError)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if monitorDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(monitorDuration)*time.Second)
		defer cancel()
	}

	fmt.Printf("Serialdash - Frame Monitor\n")
	fmt.Printf("Connection: %s\n", describeConnection(cfg))
	fmt.Printf("Press Ctrl+C to exit\n\n")

	discover, err := wire.NewDiscoverRequest().Encode()
	if err != nil {
		return err
	}

	m := newFrameMonitor(os.Stdout, time.Now)
	m.stopping = func() bool { return ctx.Err() != nil }

	go ch.Run(ctx)
	for ev := range ch.Events() {
		if m.handle(ev) {
			ch.Send(discover)
		}
	}

	fmt.Printf("\n%s", m.stats.String())

	if monitorDuration > 0 {
		return m.verdict(os.Stdout)
	}
	return nil
}

// frameMonitor prints transport events and counts them
type frameMonitor struct {
	out      io.Writer
	now      func() time.Time
	stopping func() bool

	stats *session.Statistics
	open  bool
	opens int
	drops int
}

func newFrameMonitor(out io.Writer, now func() time.Time) *frameMonitor {
	return &frameMonitor{
		out:      out,
		now:      now,
		stopping: func() bool { return false },
		stats:    session.NewStatistics(now()),
	}
}

// verdict prints the stability result and fails on no connection or a drop
func (m *frameMonitor) verdict(out io.Writer) error {
	switch {
	case m.opens == 0:
		fmt.Fprintf(out, "Result: FAILED (never connected)\n")
		return exitCode(exitFailure)
	case m.drops > 0:
		fmt.Fprintf(out, "Result: FAILED (%d connection drop(s))\n", m.drops)
		return exitCode(exitFailure)
	}
	fmt.Fprintf(out, "Result: PASSED (connection stable)\n")
	return nil
}

// handle prints one event and reports whether a handle just opened
func (m *frameMonitor) handle(ev transport.Event) bool {
	now := m.now()
	ts := now.Format("15:04:05.000")

	switch ev.Kind {
	case transport.EventState:
		line := fmt.Sprintf("[%s] %-11s handle=%s", ts, ev.State, ev.Handle)
		if ev.Err != nil {
			line += fmt.Sprintf(" (%v)", ev.Err)
		}
		fmt.Fprintln(m.out, line)

		switch ev.State {
		case transport.Open:
			m.open = true
			m.opens++
			m.stats.Connects++
			return true
		case transport.Closed:
			if m.open && !m.stopping() {
				m.drops++
			}
			m.open = false
		}

	case transport.EventFrame:
		frame := wire.Classify(ev.Frame)
		m.stats.Update(frame.Kind, now)
		fmt.Fprintf(m.out, "[%s] %-11s %s\n", ts, frame.Kind, ev.Frame)
	}
	return false
}
