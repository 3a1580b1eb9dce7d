// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"slices"

	"github.com/Thermoquad/serialdash/pkg/transport"
)

// LastError is the most recent fault reported by the agent
type LastError struct {
	Device string
	Error  string
}

// Snapshot is an immutable copy of the session state. Consumers may keep
// it indefinitely; the store never writes to a snapshot after handing it out.
type Snapshot struct {
	ReadyState transport.ReadyState
	Handle     string
	Paused     bool

	// KnownDevices is sorted
	KnownDevices      []string
	SelectedDevice    string
	ConnectDialogOpen bool

	LastError *LastError
	Log       []Entry

	Stats Statistics
}

// Ready reports whether requests can be dispatched
func (s Snapshot) Ready() bool {
	return s.ReadyState == transport.Open
}

// Has reports whether device was in the latest discovery
func (s Snapshot) Has(device string) bool {
	_, found := slices.BinarySearch(s.KnownDevices, device)
	return found
}

// CanSend reports whether a command can go to the selected device
func (s Snapshot) CanSend() bool {
	return s.Ready() && s.SelectedDevice != "" && s.Has(s.SelectedDevice)
}
