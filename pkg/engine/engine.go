// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package engine ties the transport, the session store and the discovery
// timer together.
//
// Everything that touches session state runs on the goroutine executing
// Run: transport events, discovery ticks and caller intents are serialized
// through one select. Other goroutines read state through Snapshot or
// Subscribe and change it only through the Engine's methods.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/Thermoquad/serialdash/pkg/logger"
	"github.com/Thermoquad/serialdash/pkg/session"
	"github.com/Thermoquad/serialdash/pkg/transport"
	"github.com/Thermoquad/serialdash/pkg/wire"
)

// DefaultDiscoveryInterval is how often discovery repeats while connected
const DefaultDiscoveryInterval = 10 * time.Second

// ErrAlreadyRunning is returned by a second call to Run
var ErrAlreadyRunning = errors.New("engine: already running")

// Transport is the connection the engine drives. *transport.Channel
// satisfies it. Pause and Resume are called from any goroutine, and Pause
// must interrupt a Send in progress.
type Transport interface {
	Run(ctx context.Context)
	Events() <-chan transport.Event
	Send(payload []byte) error
	Pause()
	Resume()
}

// Options configure an Engine
type Options struct {
	Transport         Transport
	DiscoveryInterval time.Duration
	MaxEntries        int
	Clock             session.Clock
	Logger            zerolog.Logger
}

// Engine owns the session store and everything that mutates it
type Engine struct {
	transport Transport
	interval  time.Duration
	log       zerolog.Logger

	// Loop-owned state
	store      *session.Store
	handle     uuid.UUID
	ticker     *time.Ticker
	readParams wire.Params
	dirty      bool

	calls   chan func()
	done    chan struct{}
	running *atomic.Bool

	snapshot *atomic.Pointer[session.Snapshot]

	subMu   sync.Mutex
	subs    map[int]chan session.Snapshot
	nextSub int
	closed  bool
}

// New creates an engine. Intents block until Run is called.
func New(opts Options) *Engine {
	if opts.DiscoveryInterval <= 0 {
		opts.DiscoveryInterval = DefaultDiscoveryInterval
	}
	log := logger.WithComponent(opts.Logger, "engine")

	e := &Engine{
		transport: opts.Transport,
		interval:  opts.DiscoveryInterval,
		log:       log,
		store: session.NewStore(session.Options{
			MaxEntries: opts.MaxEntries,
			Clock:      opts.Clock,
			Logger:     opts.Logger,
		}),
		calls:    make(chan func()),
		done:     make(chan struct{}),
		running:  atomic.NewBool(false),
		snapshot: atomic.NewPointer[session.Snapshot](nil),
		subs:     make(map[int]chan session.Snapshot),
	}
	snap := e.store.Snapshot()
	e.snapshot.Store(&snap)
	return e
}

// Run starts the transport and processes events until ctx is cancelled and
// the transport has delivered its final transition.
func (e *Engine) Run(ctx context.Context) error {
	if e.running.Swap(true) {
		return ErrAlreadyRunning
	}
	defer e.shutdown()

	go e.transport.Run(ctx)
	events := e.transport.Events()

	for {
		var tick <-chan time.Time
		if e.ticker != nil {
			tick = e.ticker.C
		}

		select {
		case ev, ok := <-events:
			if !ok {
				e.stopDiscovery()
				return nil
			}
			e.handleEvent(ev)
		case <-tick:
			e.Dispatch(wire.MethodDiscover, wire.Params{})
		case fn := <-e.calls:
			fn()
		}

		if e.dirty {
			e.dirty = false
			e.publish()
		}
	}
}

// Done is closed once Run has returned
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

func (e *Engine) shutdown() {
	e.publish()
	close(e.done)

	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.closed = true
	for id, ch := range e.subs {
		close(ch)
		delete(e.subs, id)
	}
}

func (e *Engine) handleEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.EventState:
		prev := e.store.ReadyState()
		e.handle = ev.Handle
		if e.store.SetReadyState(ev.State, ev.Handle) {
			e.dirty = true
		}

		switch {
		case ev.State == transport.Open && prev != transport.Open:
			e.startDiscovery()
		case ev.State != transport.Open && prev == transport.Open:
			e.stopDiscovery()
		}

	case transport.EventFrame:
		if ev.Handle != e.handle {
			e.log.Debug().Str("handle", ev.Handle.String()).Msg("frame from stale handle dropped")
			return
		}
		if e.store.Apply(wire.Classify(ev.Frame)) {
			e.dirty = true
		}
	}
}

// startDiscovery asks for the device list right away and then on every tick
func (e *Engine) startDiscovery() {
	e.stopDiscovery()
	e.Dispatch(wire.MethodDiscover, wire.Params{})
	e.ticker = time.NewTicker(e.interval)
}

func (e *Engine) stopDiscovery() {
	if e.ticker == nil {
		return
	}
	e.ticker.Stop()
	e.ticker = nil
}

// call runs fn on the loop goroutine and waits for its result. Any change
// fn made is published before call returns. After Run has returned it
// reports false without running fn.
func (e *Engine) call(fn func() bool) bool {
	result := make(chan bool, 1)
	run := func() {
		r := fn()
		if e.dirty {
			e.dirty = false
			e.publish()
		}
		result <- r
	}
	select {
	case e.calls <- run:
	case <-e.done:
		return false
	}
	return <-result
}

// update runs a store mutation on the loop goroutine
func (e *Engine) update(fn func(s *session.Store) bool) bool {
	return e.call(func() bool {
		changed := fn(e.store)
		if changed {
			e.dirty = true
		}
		return changed
	})
}
