// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport owns the connection to the serial agent.
//
// A Channel keeps one connection handle at a time, reports every lifecycle
// transition and every inbound frame on a single ordered event stream, and
// reconnects with exponential backoff unless it has been paused.
package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/Thermoquad/serialdash/pkg/logger"
)

// Reconnection backoff defaults
const (
	DefaultBackoffMin = 1 * time.Second
	DefaultBackoffMax = 30 * time.Second
)

// DefaultWriteTimeout bounds a single frame write
const DefaultWriteTimeout = 10 * time.Second

// Options configure a Channel
type Options struct {
	URL    string
	Dialer Dialer // defaults to WebSocketDialer{}

	BackoffMin time.Duration
	BackoffMax time.Duration

	WriteTimeout time.Duration

	Logger zerolog.Logger
}

// Channel manages the connection lifecycle and reconnection
type Channel struct {
	url        string
	dialer     Dialer
	backoffMin time.Duration
	backoffMax time.Duration
	writeTTL   time.Duration
	log        zerolog.Logger

	events chan Event
	wake   chan struct{}

	state  *atomic.Int32
	paused *atomic.Bool

	// mu guards the live handle. It is never held across I/O so Close can
	// always interrupt a stalled write.
	mu         sync.Mutex
	conn       Conn
	handle     uuid.UUID
	cancelDial context.CancelFunc

	// writeMu serializes writes
	writeMu sync.Mutex
}

// New creates a channel. Nothing is dialed until Run is called.
func New(opts Options) *Channel {
	if opts.Dialer == nil {
		opts.Dialer = WebSocketDialer{}
	}
	if opts.BackoffMin <= 0 {
		opts.BackoffMin = DefaultBackoffMin
	}
	if opts.BackoffMax < opts.BackoffMin {
		opts.BackoffMax = max(DefaultBackoffMax, opts.BackoffMin)
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	return &Channel{
		url:        opts.URL,
		dialer:     opts.Dialer,
		backoffMin: opts.BackoffMin,
		backoffMax: opts.BackoffMax,
		writeTTL:   opts.WriteTimeout,
		log:        logger.WithComponent(opts.Logger, "transport"),
		events:     make(chan Event, 16),
		wake:       make(chan struct{}, 1),
		state:      atomic.NewInt32(int32(Uninstantiated)),
		paused:     atomic.NewBool(false),
	}
}

// Events returns the ordered stream of transitions and frames. It must be
// drained until closed; the channel closes it after Run returns.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// State returns the state of the current handle
func (c *Channel) State() ReadyState {
	return ReadyState(c.state.Load())
}

// Paused reports whether reconnection is suspended
func (c *Channel) Paused() bool {
	return c.paused.Load()
}

// Send writes one text frame. When no handle is open the payload is
// dropped, a warning is logged and ErrNotOpen is returned. A write that does
// not finish within the write timeout fails, and Pause or cancellation
// interrupt it by closing the handle.
func (c *Channel) Send(payload []byte) error {
	c.mu.Lock()
	conn, handle := c.conn, c.handle
	c.mu.Unlock()

	if c.State() != Open || conn == nil {
		c.log.Warn().Str("state", c.State().String()).Msg("send failed: connection not open")
		return ErrNotOpen
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(c.writeTTL)); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.log.Warn().Err(err).Str("handle", handle.String()).Msg("send failed")
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Pause closes the live handle and suspends reconnection until Resume
func (c *Channel) Pause() {
	if c.paused.Swap(true) {
		return
	}
	c.log.Info().Msg("paused")

	c.mu.Lock()
	if c.cancelDial != nil {
		c.cancelDial()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.mu.Unlock()
	c.poke()
}

// Resume allows the channel to connect again
func (c *Channel) Resume() {
	if !c.paused.Swap(false) {
		return
	}
	c.log.Info().Msg("resumed")
	c.poke()
}

func (c *Channel) poke() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Run connects and keeps reconnecting until ctx is cancelled. Attempts are
// strictly sequential: a new handle is dialed only after the previous one
// reported Closed.
func (c *Channel) Run(ctx context.Context) {
	defer close(c.events)

	backoff := c.backoffMin
	for {
		if ctx.Err() != nil {
			return
		}

		if c.paused.Load() {
			select {
			case <-ctx.Done():
				return
			case <-c.wake:
			}
			continue
		}

		opened, err := c.connectOnce(ctx)
		if opened {
			backoff = c.backoffMin
		}
		if ctx.Err() != nil {
			return
		}
		if c.paused.Load() {
			continue
		}

		c.log.Info().Err(err).Dur("backoff", backoff).Msg("connection lost, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-c.wake:
		case <-time.After(backoff):
		}

		// Exponential backoff
		if !opened {
			backoff = min(backoff*2, c.backoffMax)
		}
	}
}

// connectOnce runs one handle from Connecting to Closed. It reports whether
// the handle reached Open and the error that ended it.
func (c *Channel) connectOnce(ctx context.Context) (bool, error) {
	handle := uuid.New()
	c.emitState(handle, Connecting, nil)

	dialCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelDial = cancel
	c.mu.Unlock()

	conn, err := c.dialer.Dial(dialCtx, c.url)

	c.mu.Lock()
	c.cancelDial = nil
	cancel()
	if err == nil && (c.paused.Load() || ctx.Err() != nil) {
		conn.Close()
		err = context.Canceled
	}
	if err != nil {
		c.mu.Unlock()
		c.log.Warn().Err(err).Str("url", c.url).Msg("connect failed")
		c.emitState(handle, Closed, err)
		return false, err
	}
	c.conn = conn
	c.handle = handle
	c.mu.Unlock()

	c.emitState(handle, Open, nil)
	c.log.Info().Str("url", c.url).Str("handle", handle.String()).Msg("connected")

	// Closing the connection is the only way to unblock ReadMessage
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			conn.Close()
			c.mu.Unlock()
		case <-stop:
		}
	}()

	readErr := c.readLoop(handle, conn)
	close(stop)

	c.emitState(handle, Closing, readErr)
	c.mu.Lock()
	c.conn = nil
	conn.Close()
	c.mu.Unlock()
	c.emitState(handle, Closed, readErr)

	return true, readErr
}

// readLoop forwards frames until the connection fails or is closed
func (c *Channel) readLoop(handle uuid.UUID, conn Conn) error {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		c.events <- Event{Kind: EventFrame, Handle: handle, Frame: data}
	}
}

// emitState records a transition and delivers it; transitions are never
// dropped, even during teardown.
func (c *Channel) emitState(handle uuid.UUID, state ReadyState, err error) {
	c.state.Store(int32(state))
	c.log.Debug().Str("handle", handle.String()).Str("state", state.String()).Msg("transition")
	c.events <- Event{Kind: EventState, Handle: handle, State: state, Err: err}
}
