// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

import "encoding/json"

// The encoders below produce agent-side frames. The dashboard never sends
// them; they exist for fixtures and local test agents.

// EncodeDiscovery encodes a discovery frame
func EncodeDiscovery(d Discovery) []byte {
	if d.Devices == nil {
		d.Devices = []string{}
	}
	return mustMarshal(d)
}

// EncodeError encodes an error frame
func EncodeError(e Error) []byte {
	return mustMarshal(e)
}

// EncodeSerialData encodes a serial data frame
func EncodeSerialData(s SerialData) []byte {
	return mustMarshal(s)
}

// mustMarshal panics on error; the frame types only contain strings
func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
