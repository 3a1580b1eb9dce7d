// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

// Kind identifies the shape of an inbound frame
type Kind int

const (
	KindUnknown Kind = iota
	KindDiscovery
	KindError
	KindSerialData
	KindClientEcho
)

func (k Kind) String() string {
	switch k {
	case KindDiscovery:
		return "discovery"
	case KindError:
		return "error"
	case KindSerialData:
		return "serial_data"
	case KindClientEcho:
		return "client_echo"
	default:
		return "unknown"
	}
}

// Discovery lists the devices currently reachable by the agent
type Discovery struct {
	Timestamp string   `json:"iat"`
	Devices   []string `json:"serials"`
}

// Error is a fault reported by the agent, optionally tied to a device
type Error struct {
	Device string `json:"serial,omitempty"`
	Error  string `json:"error"`
}

// SerialData is output read from a device
type SerialData struct {
	Device    string `json:"serial"`
	Timestamp string `json:"iat"`
	Text      string `json:"message"`
}

// ClientEcho is one of our own requests reflected back by the agent
type ClientEcho struct {
	Method Method
	Device string
}

// Frame is a classified inbound frame. Exactly one of the variant pointers
// matching Kind is set; Unknown frames carry only Raw.
type Frame struct {
	Kind Kind
	Raw  []byte

	Discovery  *Discovery
	Error      *Error
	SerialData *SerialData
	ClientEcho *ClientEcho
}
