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

// Package runtimectx carries per-request runtime metadata: which protocol
// and HTTP version served the request, whether TLS terminated it, local and
// remote addresses, an environment snapshot, a waitUntil sink for
// fire-and-forget background work, and a tagged "raw handle" for whichever
// concrete host delivered the request.
package runtimectx

// Protocol is the wire scheme a request arrived on.
type Protocol string

const (
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTPS Protocol = "https"
)

// HTTPVersion is the negotiated HTTP version.
type HTTPVersion string

const (
	HTTP10 HTTPVersion = "1.0"
	HTTP11 HTTPVersion = "1.1"
	HTTP2  HTTPVersion = "2"
)

// WaitUntilFunc registers a fire-and-forget background task that must
// complete, or be abandoned after gracefulTimeout, before a graceful close
// returns. Implementations must be safe for concurrent use.
type WaitUntilFunc func(task func() error)

// HandleKind tags which concrete host delivered the request. Nothing in the
// core depends on a particular arm; hosts other than Native/Bridge exist so
// a foreign-runtime bridge adapter can stash its native handle without the
// core needing to know its shape.
type HandleKind string

const (
	HandleNone       HandleKind = ""
	HandleNative     HandleKind = "native"
	HandleBridge     HandleKind = "bridge"
	HandleNode       HandleKind = "node"
	HandleBun        HandleKind = "bun"
	HandleDeno       HandleKind = "deno"
	HandleCloudflare HandleKind = "cloudflare"
	HandleVercel     HandleKind = "vercel"
	HandleNetlify    HandleKind = "netlify"
)

// RawHandle is a tagged variant carrying a host-specific opaque payload.
// Only code written specifically for a given host ever inspects Payload.
type RawHandle struct {
	Kind    HandleKind
	Payload any
}

// Context is the per-request runtime metadata carrier. It is immutable once
// attached to a Request: any one-shot derivation (URL assembly, IP
// resolution) happens during decode, before middleware observes the
// request, per the no-lazy-hydration design constraint.
type Context struct {
	Name          string
	Protocol      Protocol
	HTTPVersion   HTTPVersion
	TLS           bool
	LocalAddress  string
	RemoteAddress string
	Env           map[string]string
	Raw           RawHandle
	WaitUntil     WaitUntilFunc
}

// Capabilities reflects what the bound transport actually supports, set
// once after Serve returns ready.
type Capabilities struct {
	HTTP1             bool
	HTTPS             bool
	HTTP2             bool
	WebSocket         bool
	RequestStreaming  bool
	ResponseStreaming bool
	WaitUntil         bool
	Edge              bool
	TLS               bool
	EdgeProviders     []string
}
