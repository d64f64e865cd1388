// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ws exposes a duplex message channel after a successful HTTP
// upgrade: send/receive text or binary frames, observe close, and enforce
// frame-size, idle-ping, and pre-open buffering limits uniformly across the
// native socket path and a foreign host's bridge proxy path.
package ws

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Limits bounds a Conn's frame size, outbound pre-open buffer, and idle-ping
// cadence. The zero value is invalid; use DefaultLimits or construct from
// configuration.
type Limits struct {
	MaxFrameBytes    int64
	IdleTimeout      time.Duration
	MaxBufferedBytes int64
}

// DefaultLimits matches the configuration defaults: 1 MiB frames, 60s idle
// timeout, 8 MiB pre-open buffer.
func DefaultLimits() Limits {
	return Limits{
		MaxFrameBytes:    1 << 20,
		IdleTimeout:      60 * time.Second,
		MaxBufferedBytes: 8 << 20,
	}
}

// pingInterval is max(1000ms, idle/2).
func (l Limits) pingInterval() time.Duration {
	half := l.IdleTimeout / 2
	if half < time.Second {
		return time.Second
	}
	return half
}

// MessageKind tags whether a received Message carries text or binary data.
type MessageKind int

const (
	TextMessage MessageKind = iota
	BinaryMessage
)

// Message is one inbound frame delivered over Conn.Messages.
type Message struct {
	Kind MessageKind
	Text string
	Data []byte
}

// frame is a queued outbound send awaiting flush, for the pre-open
// buffering case (bridge proxy path).
type frame struct {
	messageType int
	data        []byte
}

// BridgeSocket is implemented by a foreign host's bridge adapter. A Conn
// backed by a BridgeSocket forwards every send/close through it instead of
// a local gorilla connection; the host in turn proxies frames over its own
// out-of-band WebSocket channel.
type BridgeSocket interface {
	SendText(text string) error
	SendBytes(data []byte) error
	Close(code int, reason string) error
}

// errFrameTooLarge is surfaced to a local send call that exceeds
// MaxFrameBytes; the connection itself is also closed with code 1009.
var errFrameTooLarge = errors.New("osrv/ws: frame too large")

// errBufferExceeded is returned by a pre-open send once MaxBufferedBytes is
// exceeded.
var errBufferExceeded = errors.New("osrv/ws: pre-open send buffer exceeded")

// Conn is a WebSocket handle returned by UpgradeWebSocket. All methods are
// safe for concurrent use. Sends issued before the handshake completes (the
// native path completes it synchronously, so this matters only for the
// bridge proxy path, whose host finishes the upgrade out-of-band) are
// buffered and flushed in call order once the connection opens.
type Conn struct {
	limits Limits

	underlying *websocket.Conn // set for the native path
	proxy      BridgeSocket    // set for the bridge proxy path

	sendMu       sync.Mutex
	closed       bool
	open         bool
	pending      []frame
	pendingBytes int64

	messages      chan Message
	done          chan struct{}
	closeOnce     sync.Once
	writeDeadline time.Duration
}

// newNativeConn wraps an already-upgraded gorilla connection. The
// connection is open immediately: the native handshake completes
// synchronously before this constructor is called.
func newNativeConn(underlying *websocket.Conn, limits Limits) *Conn {
	c := &Conn{
		limits:        limits,
		underlying:    underlying,
		messages:      make(chan Message, 16),
		done:          make(chan struct{}),
		open:          true,
		writeDeadline: 10 * time.Second,
	}
	underlying.SetReadLimit(limits.MaxFrameBytes)
	c.armIdleDeadline()
	underlying.SetPongHandler(func(string) error {
		c.armIdleDeadline()
		return nil
	})
	go c.readLoop()
	go c.pingLoop()
	return c
}

// newBridgeConn wraps a host-supplied BridgeSocket. The connection starts
// closed-for-writes (open=false): the host completes the upgrade
// out-of-band and calls MarkOpen once it has. Inbound frames arrive via
// Deliver, called by the host as it receives them.
func newBridgeConn(proxy BridgeSocket, limits Limits) *Conn {
	return &Conn{
		limits:        limits,
		proxy:         proxy,
		messages:      make(chan Message, 16),
		done:          make(chan struct{}),
		open:          false,
		writeDeadline: 10 * time.Second,
	}
}

// MarkOpen flips a bridge-backed Conn to open and flushes any frames
// buffered before the host finished the upgrade, in call order. Called by
// the bridge adapter once the host confirms the handshake completed. It has
// no effect on a native-backed Conn, which is already open.
func (c *Conn) MarkOpen() {
	c.sendMu.Lock()
	if c.open || c.closed {
		c.sendMu.Unlock()
		return
	}
	c.open = true
	pending := c.pending
	c.pending = nil
	c.pendingBytes = 0
	c.sendMu.Unlock()

	for _, f := range pending {
		_ = c.rawSend(f.messageType, f.data)
	}
}

// Deliver pushes an inbound frame into Messages, for the bridge proxy path
// where the host — not a local readLoop — receives frames off the wire.
func (c *Conn) Deliver(msg Message) {
	select {
	case c.messages <- msg:
	case <-c.done:
	}
}

// MarkClosed tears down a bridge-backed Conn once the host reports the
// underlying socket closed. It has no effect if already closed.
func (c *Conn) MarkClosed() {
	c.finish()
}

func (c *Conn) armIdleDeadline() {
	_ = c.underlying.SetReadDeadline(time.Now().Add(c.limits.IdleTimeout))
}

func (c *Conn) readLoop() {
	defer c.finish()
	for {
		mt, data, err := c.underlying.ReadMessage()
		if err != nil {
			return
		}
		switch mt {
		case websocket.TextMessage:
			select {
			case c.messages <- Message{Kind: TextMessage, Text: string(data)}:
			case <-c.done:
				return
			}
		case websocket.BinaryMessage:
			select {
			case c.messages <- Message{Kind: BinaryMessage, Data: data}:
			case <-c.done:
				return
			}
		case websocket.CloseMessage:
			return
		}
	}
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(c.limits.pingInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sendMu.Lock()
			err := c.underlying.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeDeadline))
			c.sendMu.Unlock()
			if err != nil {
				c.finish()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Conn) finish() {
	c.closeOnce.Do(func() {
		c.sendMu.Lock()
		c.open = false
		c.closed = true
		c.sendMu.Unlock()
		close(c.done)
		close(c.messages)
	})
}

// SendText sends a text frame. It fails with errFrameTooLarge if len(s)
// exceeds MaxFrameBytes, closing the connection with code 1009.
func (c *Conn) SendText(s string) error {
	return c.send(websocket.TextMessage, []byte(s))
}

// SendBytes sends a binary frame, subject to the same size limit as
// SendText.
func (c *Conn) SendBytes(b []byte) error {
	return c.send(websocket.BinaryMessage, b)
}

func (c *Conn) send(messageType int, data []byte) error {
	if int64(len(data)) > c.limits.MaxFrameBytes {
		_ = c.closeWithCode(1009, "Frame too large")
		return errFrameTooLarge
	}

	c.sendMu.Lock()
	if c.closed {
		c.sendMu.Unlock()
		return fmt.Errorf("osrv/ws: connection closed")
	}
	if !c.open {
		if c.pendingBytes+int64(len(data)) > c.limits.MaxBufferedBytes {
			c.sendMu.Unlock()
			return errBufferExceeded
		}
		c.pending = append(c.pending, frame{messageType: messageType, data: data})
		c.pendingBytes += int64(len(data))
		c.sendMu.Unlock()
		return nil
	}
	c.sendMu.Unlock()
	return c.rawSend(messageType, data)
}

// rawSend writes directly to the backend, bypassing the pre-open buffer.
// Callers must already know the connection is open (or be MarkOpen
// flushing its own buffer).
func (c *Conn) rawSend(messageType int, data []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return fmt.Errorf("osrv/ws: connection closed")
	}
	if c.underlying != nil {
		if err := c.underlying.SetWriteDeadline(time.Now().Add(c.writeDeadline)); err != nil {
			return err
		}
		return c.underlying.WriteMessage(messageType, data)
	}
	if messageType == websocket.TextMessage {
		return c.proxy.SendText(string(data))
	}
	return c.proxy.SendBytes(data)
}

// Close sends a close frame with code (default 1000) and reason, then tears
// down the connection.
func (c *Conn) Close(code int, reason string) error {
	if code == 0 {
		code = websocket.CloseNormalClosure
	}
	return c.closeWithCode(code, reason)
}

func (c *Conn) closeWithCode(code int, reason string) error {
	c.sendMu.Lock()
	if c.closed {
		c.sendMu.Unlock()
		return nil
	}
	c.sendMu.Unlock()

	var err error
	if c.underlying != nil {
		deadline := time.Now().Add(c.writeDeadline)
		c.sendMu.Lock()
		err = c.underlying.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		c.sendMu.Unlock()
		_ = c.underlying.Close()
	} else {
		err = c.proxy.Close(code, reason)
	}
	c.finish()
	return err
}

// Messages yields inbound text/binary frames in arrival order. The channel
// closes when the connection closes.
func (c *Conn) Messages() <-chan Message { return c.messages }

// IsOpen reports whether the connection has completed its open handshake
// and has not yet closed.
func (c *Conn) IsOpen() bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.open
}

// Done is closed once the connection has terminated, for any reason.
func (c *Conn) Done() <-chan struct{} { return c.done }
