// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one established connection. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	// Close must be safe to call while a write is in progress
	Close() error
}

// Dialer establishes connections to the agent
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Conn, error)
}

// WebSocketDialer dials the agent over ws:// or wss://
type WebSocketDialer struct {
	// Username and Password enable HTTP Basic auth when both are set
	Username string
	Password string

	// SkipTLSVerify disables certificate verification (wss:// only)
	SkipTLSVerify bool

	// HandshakeTimeout defaults to 10 seconds
	HandshakeTimeout time.Duration
}

// Dial opens a WebSocket connection
func (d WebSocketDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: d.SkipTLSVerify,
		}
	}

	headers := http.Header{}
	if d.Username != "" && d.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(d.Username + ":" + d.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	conn, resp, err := dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket connection failed: %w", err)
	}
	return conn, nil
}

// ParseURL validates an agent URL
func ParseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %q (use ws:// or wss://)", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid URL %q: missing host", rawURL)
	}
	return u, nil
}
