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

package ws

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"rivaas.dev/osrv/osrequest"
	"rivaas.dev/osrv/runtimectx"
	"rivaas.dev/osrv/transport/native"
)

// upgrader is shared across native upgrades; CheckOrigin is left permissive
// since origin policy belongs to middleware ahead of the fetch handler, not
// to the transport.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// UpgradeWebSocket completes an HTTP upgrade for req and returns a duplex
// Conn. It fails if req was already upgraded. On the native transport it
// performs the standard handshake synchronously; on a bridge-fronted host
// it allocates a proxy Conn that the host drives via Deliver/MarkOpen once
// it completes the handshake out-of-band, and newSocket is called to let
// the caller register whatever pending-upgrade bookkeeping the host needs
// against the socket id already stashed on req's runtime context.
func UpgradeWebSocket(req *osrequest.Request, limits Limits, newSocket func(socketPayload any) (BridgeSocket, error)) (*Conn, error) {
	if req.WebSocketUpgraded() {
		return nil, fmt.Errorf("osrv/ws: request already upgraded")
	}

	raw := req.Runtime.Raw
	switch raw.Kind {
	case runtimectx.HandleNative:
		handle, ok := raw.Payload.(native.NativeHandle)
		if !ok {
			return nil, fmt.Errorf("osrv/ws: native raw handle has unexpected type %T", raw.Payload)
		}
		underlying, err := upgrader.Upgrade(handle.W, handle.R, nil)
		if err != nil {
			return nil, fmt.Errorf("osrv/ws: handshake failed: %w", err)
		}
		conn := newNativeConn(underlying, limits)
		req.MarkWebSocketUpgraded(conn)
		return conn, nil

	default:
		if newSocket == nil {
			return nil, fmt.Errorf("osrv/ws: no bridge socket factory provided for host %q", raw.Kind)
		}
		socket, err := newSocket(raw.Payload)
		if err != nil {
			return nil, err
		}
		conn := newBridgeConn(socket, limits)
		req.MarkWebSocketUpgraded(conn)
		return conn, nil
	}
}
