// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"time"

	"github.com/Thermoquad/serialdash/pkg/wire"
)

// Origin tells whether a log entry came from the agent or from us
type Origin int

const (
	Remote Origin = iota
	Local
)

func (o Origin) String() string {
	if o == Local {
		return "local"
	}
	return "remote"
}

// Entry is one line of the message log
type Entry struct {
	Device    string
	Timestamp string
	Text      string
	Origin    Origin
}

// Time parses the entry timestamp (RFC 3339)
func (e Entry) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, e.Timestamp)
}

// Feed is the ordered message log. Remote entries are deduplicated against
// the last accepted serial data; local echo entries never are.
type Feed struct {
	entries     []Entry
	maxEntries  int
	lastInbound *wire.SerialData
}

// NewFeed creates a feed holding at most maxEntries (0 means unbounded)
func NewFeed(maxEntries int) *Feed {
	if maxEntries < 0 {
		maxEntries = 0
	}
	return &Feed{maxEntries: maxEntries}
}

// AppendRemote appends serial data unless it repeats the (device, timestamp)
// of the last accepted serial data. It reports whether the entry was kept.
func (f *Feed) AppendRemote(m wire.SerialData) bool {
	if f.lastInbound != nil && f.lastInbound.Device == m.Device && f.lastInbound.Timestamp == m.Timestamp {
		return false
	}
	last := m
	f.lastInbound = &last
	f.append(Entry{Device: m.Device, Timestamp: m.Timestamp, Text: m.Text, Origin: Remote})
	return true
}

// AppendLocal appends an echo of a command we sent
func (f *Feed) AppendLocal(device, text string, at time.Time) {
	f.append(Entry{
		Device:    device,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
		Text:      text,
		Origin:    Local,
	})
}

func (f *Feed) append(e Entry) {
	if f.maxEntries > 0 && len(f.entries) >= f.maxEntries {
		// Drop oldest first. Reslicing leaves the copy to append, which
		// only happens when the backing array runs out.
		drop := len(f.entries) - f.maxEntries + 1
		clear(f.entries[:drop])
		f.entries = f.entries[drop:]
	}
	f.entries = append(f.entries, e)
}

// Clear empties the log. The dedup key survives so a redelivered frame
// does not reappear.
func (f *Feed) Clear() {
	f.entries = nil
}

// Len returns the number of entries
func (f *Feed) Len() int {
	return len(f.entries)
}

// Entries returns a copy of the log, oldest first
func (f *Feed) Entries() []Entry {
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out
}

// LastInbound returns the last accepted serial data, if any
func (f *Feed) LastInbound() (wire.SerialData, bool) {
	if f.lastInbound == nil {
		return wire.SerialData{}, false
	}
	return *f.lastInbound, true
}
