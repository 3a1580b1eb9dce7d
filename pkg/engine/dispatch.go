// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package engine

import (
	"github.com/Thermoquad/serialdash/pkg/transport"
	"github.com/Thermoquad/serialdash/pkg/wire"
)

// Dispatch builds a request and sends it. It must only be called from the
// loop goroutine; callers elsewhere use Request.
//
// Requests are never queued: when the channel is not Open the request is
// dropped with a warning and false is returned.
func (e *Engine) Dispatch(method wire.Method, p wire.Params) bool {
	if state := e.store.ReadyState(); state != transport.Open {
		e.log.Warn().Str("method", string(method)).Str("state", state.String()).Msg("dispatch dropped: connection not ready")
		e.store.DispatchDropped()
		return false
	}

	req := wire.NewRequest(method, p)
	payload, err := req.Encode()
	if err != nil {
		e.log.Warn().Err(err).Msg("dispatch dropped: invalid request")
		return false
	}
	if err := e.transport.Send(payload); err != nil {
		e.store.DispatchDropped()
		return false
	}

	e.log.Debug().
		Str("method", string(req.Method)).
		Str("device", req.Device).
		Int("baudrate", req.BaudRate).
		Int("timeout", req.TimeoutSeconds).
		Msg("request sent")

	if req.Method == wire.MethodRead {
		e.readParams = wire.Params{Device: req.Device, BaudRate: req.BaudRate, TimeoutSeconds: req.TimeoutSeconds}
	}
	if req.Message != "" {
		e.store.AppendLocal(req.Device, req.Message)
		e.dirty = true
	}
	return true
}

// Request dispatches from any goroutine and reports whether the request
// was sent
func (e *Engine) Request(method wire.Method, p wire.Params) bool {
	return e.call(func() bool {
		return e.Dispatch(method, p)
	})
}

// Discover asks the agent for its accessible devices
func (e *Engine) Discover() bool {
	return e.Request(wire.MethodDiscover, wire.Params{})
}

// Read opens device on the agent and starts streaming its output. Zero
// values take the protocol defaults.
func (e *Engine) Read(device string, baudRate, timeoutSeconds int) bool {
	return e.Request(wire.MethodRead, wire.Params{
		Device:         device,
		BaudRate:       baudRate,
		TimeoutSeconds: timeoutSeconds,
	})
}

// List asks the agent about one device
func (e *Engine) List(device string) bool {
	return e.Request(wire.MethodList, wire.Params{Device: device})
}

// SendCommand writes text to the selected device. The baud rate and
// timeout of the last read of that device are reused.
func (e *Engine) SendCommand(text string) bool {
	if text == "" {
		return false
	}
	return e.call(func() bool {
		device := e.store.Selected()
		if device == "" {
			e.log.Warn().Msg("command dropped: no device selected")
			return false
		}

		p := wire.Params{Device: device, Message: text}
		if e.readParams.Device == device {
			p.BaudRate = e.readParams.BaudRate
			p.TimeoutSeconds = e.readParams.TimeoutSeconds
		}
		return e.Dispatch(wire.MethodRead, p)
	})
}
