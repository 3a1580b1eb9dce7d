// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package wire implements the JSON protocol spoken by the serial agent.
//
// The agent sends three kinds of text frames (discovery, error and serial data)
// without an explicit type field, so inbound frames are classified by shape.
// Outbound frames are request envelopes built by NewRequest and encoded by
// Request.Encode.
package wire

// Method is the intent of an outbound request
type Method string

// Request methods understood by the agent
const (
	MethodRead     Method = "read"
	MethodList     Method = "list"
	MethodDiscover Method = "discover"
)

// Valid reports whether m is one of the known request methods
func (m Method) Valid() bool {
	switch m {
	case MethodRead, MethodList, MethodDiscover:
		return true
	}
	return false
}

// Request defaults used by the agent's reference dashboard
const (
	DefaultBaudRate       = 115200
	DefaultTimeoutSeconds = 1
)

// nanosPerSecond converts caller-facing seconds into the agent's time unit.
// The agent decodes the timeout field straight into a Go time.Duration.
const nanosPerSecond = int64(1_000_000_000)

// JSON field names of inbound and outbound frames
const (
	fieldTimestamp = "iat"
	fieldDevices   = "serials"
	fieldDevice    = "serial"
	fieldError     = "error"
	fieldMessage   = "message"
	fieldMethod    = "method"
)
