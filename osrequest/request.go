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

package osrequest

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"rivaas.dev/osrv/runtimectx"
)

// Request is the semantic, immutable-shape Request value type. Its URL,
// method, headers, and runtime metadata are derived once during transport
// decode, before any middleware observes the request — the transport's
// laziness (if any) is an implementation optimization, never a contract
// middleware can rely on.
//
// Request exclusively owns its context bag and body stream; there is no
// hidden side table mapping a foreign host request to extra metadata.
type Request struct {
	URL     *url.URL
	Method  string
	Headers *Headers

	Runtime *runtimectx.Context

	ClientIP string

	body     io.ReadCloser
	bodyUsed bool
	bodyMu   sync.Mutex

	context   map[string]any
	contextMu sync.RWMutex

	waitUntil runtimectx.WaitUntilFunc

	wsUpgraded bool
	rawWS      any
}

// New constructs a Request. body may be nil for methods that never carry
// one (GET, HEAD, TRACE per §4.2).
func New(method string, u *url.URL, headers *Headers, body io.ReadCloser, rt *runtimectx.Context, clientIP string) *Request {
	if headers == nil {
		headers = NewHeaders()
	}
	return &Request{
		URL:      u,
		Method:   method,
		Headers:  headers,
		Runtime:  rt,
		ClientIP: clientIP,
		body:     body,
		context:  make(map[string]any),
	}
}

// Body returns the request body stream. It is consumable at most once;
// a second call returns an error. A request without a body returns
// http.NoBody on every call and is never marked as used.
func (r *Request) Body() (io.ReadCloser, error) {
	r.bodyMu.Lock()
	defer r.bodyMu.Unlock()
	if r.bodyUsed {
		return nil, fmt.Errorf("osrequest: body already consumed")
	}
	if r.body == nil {
		return http.NoBody, nil
	}
	r.bodyUsed = true
	return r.body, nil
}

// BodyUsed reports whether the body stream has been consumed.
func (r *Request) BodyUsed() bool {
	r.bodyMu.Lock()
	defer r.bodyMu.Unlock()
	return r.bodyUsed
}

// Context returns a value previously stored with SetContext, or nil.
func (r *Request) Context(key string) any {
	r.contextMu.RLock()
	defer r.contextMu.RUnlock()
	return r.context[key]
}

// SetContext stores a value in the per-request mutable context bag. Keys
// are always strings; the bag is owned exclusively by this Request and is
// never shared across requests.
func (r *Request) SetContext(key string, value any) {
	r.contextMu.Lock()
	defer r.contextMu.Unlock()
	r.context[key] = value
}

// WaitUntil registers task as fire-and-forget background work that must
// complete (or be abandoned at the graceful timeout) before the server's
// next non-forced Close returns.
func (r *Request) WaitUntil(task func() error) {
	if r.waitUntil != nil {
		r.waitUntil(task)
	}
}

// SetWaitUntilSink wires the background-task registry. Called once by the
// orchestrator when it attaches a Request to its RuntimeContext.
func (r *Request) SetWaitUntilSink(fn runtimectx.WaitUntilFunc) {
	r.waitUntil = fn
}

// WebSocketUpgraded reports whether this request has already completed a
// WebSocket upgrade. ws.UpgradeWebSocket fails on a request where this is true.
func (r *Request) WebSocketUpgraded() bool {
	return r.wsUpgraded
}

// MarkWebSocketUpgraded records that this request was upgraded, stashing
// the raw handle the upgrade produced (ws.UpgradeWebSocket stores its
// *ws.Conn here on both the native and the bridge path).
func (r *Request) MarkWebSocketUpgraded(raw any) {
	r.wsUpgraded = true
	r.rawWS = raw
}

// RawWebSocket returns the raw handle stashed by MarkWebSocketUpgraded.
func (r *Request) RawWebSocket() any {
	return r.rawWS
}
