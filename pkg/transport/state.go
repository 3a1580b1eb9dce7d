// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"errors"

	"github.com/google/uuid"
)

// ReadyState is the lifecycle stage of a connection handle
type ReadyState int32

const (
	Uninstantiated ReadyState = iota
	Connecting
	Open
	Closing
	Closed
)

func (s ReadyState) String() string {
	switch s {
	case Uninstantiated:
		return "Uninstantiated"
	case Connecting:
		return "Connecting"
	case Open:
		return "Open"
	case Closing:
		return "Closing"
	case Closed:
		return "Closed"
	default:
		return "Invalid"
	}
}

// ErrNotOpen is returned by Send when no handle is open
var ErrNotOpen = errors.New("transport: connection not open")

// EventKind distinguishes lifecycle transitions from inbound frames
type EventKind int

const (
	EventState EventKind = iota
	EventFrame
)

// Event is emitted by the channel for every transition and every frame
type Event struct {
	Kind   EventKind
	Handle uuid.UUID
	State  ReadyState // EventState only
	Frame  []byte     // EventFrame only
	Err    error      // cause of a Closing/Closed transition, if any
}
