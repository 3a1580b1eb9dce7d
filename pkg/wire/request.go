// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

import (
	"encoding/json"
	"fmt"
)

// Params are the caller-supplied parts of a request
type Params struct {
	Device         string
	BaudRate       int
	TimeoutSeconds int

	// Message is optional text written to the device before reading
	Message string
}

// Request is one outbound envelope. Build it with NewRequest and do not
// modify it after it has been sent.
type Request struct {
	Method         Method
	Device         string
	BaudRate       int
	TimeoutSeconds int
	Message        string
}

// wireRequest is the JSON shape of a Request; Timeout is in nanoseconds
type wireRequest struct {
	Method   Method `json:"method"`
	Serial   string `json:"serial"`
	BaudRate int    `json:"baudrate"`
	Timeout  int64  `json:"timeout"`
	Message  string `json:"message,omitempty"`
}

// NewRequest creates a request envelope, filling in zero baud rate and
// timeout with the defaults. Discover requests never target a device.
func NewRequest(method Method, p Params) Request {
	r := Request{
		Method:         method,
		Device:         p.Device,
		BaudRate:       p.BaudRate,
		TimeoutSeconds: p.TimeoutSeconds,
		Message:        p.Message,
	}
	if r.BaudRate <= 0 {
		r.BaudRate = DefaultBaudRate
	}
	if r.TimeoutSeconds <= 0 {
		r.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if method == MethodDiscover {
		r.Device = ""
		r.Message = ""
	}
	return r
}

// NewDiscoverRequest creates the request issued by the discovery driver
func NewDiscoverRequest() Request {
	return NewRequest(MethodDiscover, Params{})
}

// Encode serializes the request for the wire, converting the timeout from
// seconds to nanoseconds.
func (r Request) Encode() ([]byte, error) {
	if !r.Method.Valid() {
		return nil, fmt.Errorf("invalid request method %q", r.Method)
	}
	data, err := json.Marshal(wireRequest{
		Method:   r.Method,
		Serial:   r.Device,
		BaudRate: r.BaudRate,
		Timeout:  int64(r.TimeoutSeconds) * nanosPerSecond,
		Message:  r.Message,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", r.Method, err)
	}
	return data, nil
}

// DecodeRequest parses a request frame as the agent would, converting the
// timeout back to whole seconds.
func DecodeRequest(data []byte) (Request, error) {
	var w wireRequest
	if err := json.Unmarshal(data, &w); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	if !w.Method.Valid() {
		return Request{}, fmt.Errorf("invalid request method %q", w.Method)
	}
	return Request{
		Method:         w.Method,
		Device:         w.Serial,
		BaudRate:       w.BaudRate,
		TimeoutSeconds: int(w.Timeout / nanosPerSecond),
		Message:        w.Message,
	}, nil
}
