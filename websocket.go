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

package osrv

import (
	"context"

	"rivaas.dev/osrv/osrequest"
	"rivaas.dev/osrv/ws"
)

// WebSocketLimits reports the resolved frame-size, idle-timeout, and
// pre-open-buffer limits a fetch handler should pass to UpgradeWebSocket.
func (s *Server) WebSocketLimits() ws.Limits {
	return ws.Limits{
		MaxFrameBytes:    s.cfg.ws.maxFrameBytes,
		IdleTimeout:      s.cfg.ws.idleTimeout,
		MaxBufferedBytes: s.cfg.ws.maxBufferedBytes,
	}
}

// UpgradeWebSocket completes an HTTP upgrade for req, using this Server's
// configured WebSocket limits. newSocket is only consulted for requests
// delivered by a bridge-fronted host; pass nil when only the native
// transport is in use.
func (s *Server) UpgradeWebSocket(req *osrequest.Request, newSocket func(socketPayload any) (ws.BridgeSocket, error)) (*ws.Conn, error) {
	conn, err := ws.UpgradeWebSocket(req, s.WebSocketLimits(), newSocket)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordWebSocketDelta(context.Background(), 1)
		go func() {
			<-conn.Done()
			s.metrics.RecordWebSocketDelta(context.Background(), -1)
		}()
	}
	return conn, nil
}
