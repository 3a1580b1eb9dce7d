// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

import (
	"encoding/json"
	"slices"
)

// fields holds the top-level members of a JSON object frame
type fields map[string]json.RawMessage

// classifier reports whether the fields match one shape and builds the frame
type classifier func(f fields, frame *Frame) bool

// Order matters: the shapes overlap, first match wins.
var classifiers = []classifier{
	classifyDiscovery,
	classifyError,
	classifySerialData,
	classifyClientEcho,
}

// Classify decides which message an inbound frame carries by its shape.
// It never fails; anything unrecognized, including invalid JSON, is
// returned as KindUnknown.
func Classify(raw []byte) Frame {
	frame := Frame{Kind: KindUnknown, Raw: raw}

	var f fields
	if err := json.Unmarshal(raw, &f); err != nil || f == nil {
		return frame
	}

	for _, c := range classifiers {
		if c(f, &frame) {
			return frame
		}
	}
	return frame
}

func classifyDiscovery(f fields, frame *Frame) bool {
	iat := f.nonEmptyString(fieldTimestamp)
	if iat == "" {
		return false
	}
	devices, ok := f.stringList(fieldDevices)
	if !ok {
		return false
	}
	frame.Kind = KindDiscovery
	frame.Discovery = &Discovery{Timestamp: iat, Devices: devices}
	return true
}

func classifyError(f fields, frame *Frame) bool {
	msg := f.nonEmptyString(fieldError)
	if msg == "" {
		return false
	}
	device, _ := f.string(fieldDevice)
	frame.Kind = KindError
	frame.Error = &Error{Device: device, Error: msg}
	return true
}

func classifySerialData(f fields, frame *Frame) bool {
	device := f.nonEmptyString(fieldDevice)
	text := f.nonEmptyString(fieldMessage)
	iat := f.nonEmptyString(fieldTimestamp)
	if device == "" || text == "" || iat == "" {
		return false
	}
	frame.Kind = KindSerialData
	frame.SerialData = &SerialData{Device: device, Timestamp: iat, Text: text}
	return true
}

func classifyClientEcho(f fields, frame *Frame) bool {
	method, ok := f.string(fieldMethod)
	if !ok || !Method(method).Valid() {
		return false
	}
	device, _ := f.string(fieldDevice)
	frame.Kind = KindClientEcho
	frame.ClientEcho = &ClientEcho{Method: Method(method), Device: device}
	return true
}

// string returns the named member if it is a JSON string
func (f fields) string(name string) (string, bool) {
	raw, ok := f[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func (f fields) nonEmptyString(name string) string {
	s, _ := f.string(name)
	return s
}

// stringList returns the named member if it is present and decodes as a
// list of strings. A JSON null counts as an empty list.
func (f fields) stringList(name string) ([]string, bool) {
	raw, ok := f[name]
	if !ok {
		return nil, false
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, false
	}
	if list == nil {
		list = []string{}
	}
	return slices.Compact(sortedCopy(list)), true
}

func sortedCopy(list []string) []string {
	out := slices.Clone(list)
	slices.Sort(out)
	return out
}
