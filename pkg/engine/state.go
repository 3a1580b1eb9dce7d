// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package engine

import (
	"sync"

	"github.com/Thermoquad/serialdash/pkg/session"
)

// Snapshot returns the most recently published state
func (e *Engine) Snapshot() session.Snapshot {
	return *e.snapshot.Load()
}

// Subscribe returns a channel that always holds the latest snapshot. A slow
// reader only ever misses intermediate snapshots. The channel is closed when
// Run returns; the returned func unsubscribes.
func (e *Engine) Subscribe() (<-chan session.Snapshot, func()) {
	ch := make(chan session.Snapshot, 1)

	e.subMu.Lock()
	ch <- *e.snapshot.Load()
	if e.closed {
		close(ch)
		e.subMu.Unlock()
		return ch, func() {}
	}
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subs, id)
			e.subMu.Unlock()
		})
	}
}

// publish stores a fresh snapshot and hands it to every subscriber
func (e *Engine) publish() {
	snap := e.store.Snapshot()

	e.subMu.Lock()
	defer e.subMu.Unlock()

	e.snapshot.Store(&snap)
	for _, ch := range e.subs {
		// Latest wins
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// Select makes device the target of typed commands
func (e *Engine) Select(device string) bool {
	return e.update(func(s *session.Store) bool {
		return s.Select(device)
	})
}

// OpenConnectDialog opens the connect dialog for the selected device
func (e *Engine) OpenConnectDialog() bool {
	return e.update((*session.Store).OpenConnectDialog)
}

// CloseConnectDialog closes the connect dialog
func (e *Engine) CloseConnectDialog() bool {
	return e.update((*session.Store).CloseConnectDialog)
}

// ClearLog empties the message log
func (e *Engine) ClearLog() bool {
	return e.update((*session.Store).ClearLog)
}

// Pause closes the connection and stops reconnecting. The transport is
// paused from the caller's goroutine so a write stalled on the loop is
// interrupted rather than waited for.
func (e *Engine) Pause() bool {
	e.transport.Pause()
	return e.update(func(s *session.Store) bool {
		return s.SetPaused(true)
	})
}

// Resume lets the transport reconnect
func (e *Engine) Resume() bool {
	e.transport.Resume()
	return e.update(func(s *session.Store) bool {
		return s.SetPaused(false)
	})
}
