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

// Package semconv defines the attribute-name constants osmetrics and
// ostracing attach consistently to metrics and spans, following
// OpenTelemetry semantic conventions where one applies.
package semconv

// Service metadata constants, typically set once at Server construction
// rather than per request.
const (
	ServiceName       = "service.name"
	ServiceVersion    = "service.version"
	DeploymentEnviron = "deployment.environment"
)

// HTTP attribute constants recorded once per dispatch.
const (
	HTTPMethod     = "http.method"
	HTTPTarget     = "http.target"
	HTTPStatusCode = "http.status_code"
	HTTPScheme     = "http.scheme"
	HTTPVersion    = "http.flavor"
)

// Network attribute constants distinguishing the immediate peer from the
// resolved client (which may differ when trustProxy is enabled).
const (
	NetworkPeerIP   = "network.peer.ip"
	NetworkClientIP = "network.client.ip"
)

// Trace correlation constants.
const (
	TraceID = "trace_id"
	SpanID  = "span_id"
)

// Server-lifecycle and background-task attribute constants, specific to
// this domain rather than carried over from generic HTTP semantic
// conventions.
const (
	LifecycleStage  = "osrv.lifecycle.stage"
	PluginName      = "osrv.plugin.name"
	BackgroundTasks = "osrv.background_tasks.pending"
	WebSocketConns  = "osrv.websocket.connections"
)
