// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/Thermoquad/serialdash/pkg/transport"
)

func TestFrameMonitor(t *testing.T) {
	var out bytes.Buffer
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newFrameMonitor(&out, func() time.Time { return now })

	h := uuid.New()
	state := func(s transport.ReadyState, err error) transport.Event {
		return transport.Event{Kind: transport.EventState, Handle: h, State: s, Err: err}
	}
	frame := func(data string) transport.Event {
		return transport.Event{Kind: transport.EventFrame, Handle: h, Frame: []byte(data)}
	}

	assert.False(t, m.handle(state(transport.Connecting, nil)))
	assert.True(t, m.handle(state(transport.Open, nil)))
	m.handle(frame(`{"iat":"t1","serials":["COM1"]}`))
	m.handle(frame(`{"serial":"COM1","iat":"t2","message":"hi"}`))
	m.handle(frame(`not json`))
	m.handle(state(transport.Closing, errors.New("reset by peer")))
	m.handle(state(transport.Closed, errors.New("reset by peer")))

	assert.Equal(t, 1, m.opens)
	assert.Equal(t, 1, m.drops)
	assert.EqualValues(t, 3, m.stats.TotalFrames)
	assert.EqualValues(t, 1, m.stats.UnknownFrames)

	text := out.String()
	assert.Contains(t, text, "discovery")
	assert.Contains(t, text, "serial_data")
	assert.Contains(t, text, "unknown     not json")
	assert.Contains(t, text, "(reset by peer)")

	// A close caused by shutdown is not a drop
	m.stopping = func() bool { return true }
	m.handle(state(transport.Open, nil))
	m.handle(state(transport.Closed, nil))
	assert.Equal(t, 1, m.drops)
}

func TestFrameMonitor_Verdict(t *testing.T) {
	var out bytes.Buffer
	m := newFrameMonitor(&out, time.Now)

	assert.Equal(t, exitCode(exitFailure), m.verdict(&out))
	assert.Contains(t, out.String(), "never connected")

	out.Reset()
	m.opens = 1
	assert.NoError(t, m.verdict(&out))
	assert.Contains(t, out.String(), "PASSED")

	out.Reset()
	m.drops = 2
	assert.Equal(t, exitCode(exitFailure), m.verdict(&out))
	assert.Contains(t, out.String(), "2 connection drop(s)")
}

func TestExitStatus(t *testing.T) {
	assert.Equal(t, exitOK, exitStatus(nil))
	assert.Equal(t, exitConnectionError, exitStatus(exitCode(exitConnectionError)))
	assert.Equal(t, exitFailure, exitStatus(fmt.Errorf("discover: %w", exitCode(exitFailure))))
	assert.Equal(t, exitFailure, exitStatus(errors.New("bad flag")))
}
