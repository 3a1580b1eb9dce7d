// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package session holds the dashboard's single source of truth: which
// devices the agent can reach, what they last said and what went wrong.
//
// A Store is not safe for concurrent use. It is owned by one goroutine
// (the engine loop) and shared with everyone else through snapshots.
package session

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/serialdash/pkg/logger"
	"github.com/Thermoquad/serialdash/pkg/transport"
	"github.com/Thermoquad/serialdash/pkg/wire"
)

// Clock returns the current time; used to stamp local echo entries
type Clock func() time.Time

// Options configure a Store
type Options struct {
	// MaxEntries bounds the message log (0 means unbounded)
	MaxEntries int
	Clock      Clock
	Logger     zerolog.Logger
}

// Store applies classified frames and lifecycle transitions as state changes
type Store struct {
	readyState transport.ReadyState
	handle     uuid.UUID
	paused     bool

	known      map[string]struct{}
	selected   string
	dialogOpen bool
	lastError  *LastError

	feed  *Feed
	stats *Statistics
	clock Clock
	log   zerolog.Logger
}

// NewStore creates an empty store in the Uninstantiated state
func NewStore(opts Options) *Store {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Store{
		readyState: transport.Uninstantiated,
		known:      make(map[string]struct{}),
		feed:       NewFeed(opts.MaxEntries),
		stats:      NewStatistics(opts.Clock()),
		clock:      opts.Clock,
		log:        logger.WithComponent(opts.Logger, "session"),
	}
}

// Apply runs the reducer for a classified frame and reports whether the
// state changed.
func (s *Store) Apply(frame wire.Frame) bool {
	s.stats.Update(frame.Kind, s.clock())

	switch frame.Kind {
	case wire.KindDiscovery:
		return s.applyDiscovery(*frame.Discovery)
	case wire.KindError:
		return s.applyError(*frame.Error)
	case wire.KindSerialData:
		return s.applySerialData(*frame.SerialData)
	case wire.KindClientEcho:
		s.log.Debug().Str("method", string(frame.ClientEcho.Method)).Str("device", frame.ClientEcho.Device).Msg("client echo ignored")
		return false
	default:
		s.log.Warn().Bytes("frame", frame.Raw).Msg("unknown message")
		return false
	}
}

// applyDiscovery replaces the known device set wholesale
func (s *Store) applyDiscovery(d wire.Discovery) bool {
	s.log.Debug().Strs("devices", d.Devices).Msg("discovered")

	known := make(map[string]struct{}, len(d.Devices))
	for _, device := range d.Devices {
		known[device] = struct{}{}
	}
	changed := !maps.Equal(known, s.known)
	s.known = known

	if s.selected == "" && len(d.Devices) > 0 {
		s.selected = slices.Min(d.Devices)
		changed = true
	}
	if s.invalidateDialog() {
		changed = true
	}
	return changed
}

func (s *Store) applyError(e wire.Error) bool {
	s.log.Debug().Str("device", e.Device).Str("error", e.Error).Msg("agent error")
	s.lastError = &LastError{Device: e.Device, Error: e.Error}
	return true
}

func (s *Store) applySerialData(m wire.SerialData) bool {
	if !s.feed.AppendRemote(m) {
		s.stats.Duplicates++
		s.log.Debug().Str("device", m.Device).Str("iat", m.Timestamp).Msg("duplicate message dropped")
		return false
	}
	return true
}

// invalidateDialog closes the connect dialog when the selected device is no
// longer reachable. The selection itself is left to the consumer.
func (s *Store) invalidateDialog() bool {
	if !s.dialogOpen || s.selected == "" {
		return false
	}
	if _, ok := s.known[s.selected]; ok {
		return false
	}
	s.dialogOpen = false
	return true
}

// SetReadyState records a transport transition. Leaving Open forgets every
// known device in the same transition.
func (s *Store) SetReadyState(state transport.ReadyState, handle uuid.UUID) bool {
	if state == s.readyState && handle == s.handle {
		return false
	}
	prev := s.readyState
	s.readyState = state
	s.handle = handle

	if state == transport.Open && prev != transport.Open {
		s.stats.Connects++
	}
	if state != transport.Open && len(s.known) > 0 {
		s.known = make(map[string]struct{})
		s.invalidateDialog()
	}
	return true
}

// AppendLocal records a command we just sent
func (s *Store) AppendLocal(device, text string) {
	s.feed.AppendLocal(device, text, s.clock())
	s.stats.LocalEchoes++
}

// DispatchDropped counts a request refused because the channel was not ready
func (s *Store) DispatchDropped() {
	s.stats.DroppedDispatches++
}

// Select makes device the target of commands. Unknown devices are refused.
func (s *Store) Select(device string) bool {
	if _, ok := s.known[device]; !ok || device == s.selected {
		return false
	}
	s.selected = device
	return true
}

// OpenConnectDialog opens the dialog for the selected device if it is known
func (s *Store) OpenConnectDialog() bool {
	if s.dialogOpen || s.selected == "" {
		return false
	}
	if _, ok := s.known[s.selected]; !ok {
		return false
	}
	s.dialogOpen = true
	return true
}

// CloseConnectDialog closes the connect dialog
func (s *Store) CloseConnectDialog() bool {
	if !s.dialogOpen {
		return false
	}
	s.dialogOpen = false
	return true
}

// ClearLog empties the message log
func (s *Store) ClearLog() bool {
	if s.feed.Len() == 0 {
		return false
	}
	s.feed.Clear()
	return true
}

// SetPaused mirrors the transport's pause flag
func (s *Store) SetPaused(paused bool) bool {
	if s.paused == paused {
		return false
	}
	s.paused = paused
	return true
}

// ReadyState returns the current transport state
func (s *Store) ReadyState() transport.ReadyState {
	return s.readyState
}

// Selected returns the selected device
func (s *Store) Selected() string {
	return s.selected
}

// LastInbound returns the last accepted serial data
func (s *Store) LastInbound() (wire.SerialData, bool) {
	return s.feed.LastInbound()
}

// Snapshot copies the current state
func (s *Store) Snapshot() Snapshot {
	known := slices.Sorted(maps.Keys(s.known))
	if known == nil {
		known = []string{}
	}

	snap := Snapshot{
		ReadyState:        s.readyState,
		Paused:            s.paused,
		KnownDevices:      known,
		SelectedDevice:    s.selected,
		ConnectDialogOpen: s.dialogOpen,
		Log:               s.feed.Entries(),
		Stats:             *s.stats,
	}
	if s.handle != uuid.Nil {
		snap.Handle = s.handle.String()
	}
	if s.lastError != nil {
		e := *s.lastError
		snap.LastError = &e
	}
	snap.Stats.CalculateRates(s.clock())
	return snap
}
