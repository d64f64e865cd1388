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
	"rivaas.dev/osrv/oserrors"
	"rivaas.dev/osrv/oslog"
	"rivaas.dev/osrv/osmetrics"
	"rivaas.dev/osrv/ostracing"
)

// WithMiddleware appends one or more middlewares to the chain, in the
// order given. Middleware declaration order is the onion order (§4.1).
func WithMiddleware(mw ...MiddlewareFunc) Option {
	return func(c *buildState) { c.middlewares = append(c.middlewares, mw...) }
}

// WithPlugin registers one or more plugins, in the order given. Plugin
// hooks run in this declaration order within each phase (§5).
func WithPlugin(plugins ...Plugin) Option {
	return func(c *buildState) { c.plugins = append(c.plugins, plugins...) }
}

// WithErrorHandler installs a user error handler invoked for request-stage
// failures before the default Formatter is consulted (§4.5, §7).
func WithErrorHandler(fn ErrorHandlerFunc) Option {
	return func(c *buildState) { c.errorHandler = fn }
}

// WithFormatter overrides the default error Formatter used when no user
// error handler is installed, or when the user error handler itself fails.
func WithFormatter(f oserrors.Formatter) Option {
	return func(c *buildState) { c.formatter = f }
}

// WithLogger attaches a Logger. If omitted, New builds a default JSON
// Logger at info level.
func WithLogger(l *oslog.Logger) Option {
	return func(c *buildState) { c.logger = l }
}

// WithMetrics wires an osmetrics.Recorder into the Server: its request
// middleware is prepended so every dispatch is timed regardless of
// declaration order of the caller's own middleware, and the
// background-task gauge tracks the waitUntil registry directly.
func WithMetrics(recorder *osmetrics.Recorder) Option {
	return func(c *buildState) {
		c.metrics = recorder
		c.middlewares = append([]MiddlewareFunc{recorder.Middleware()}, c.middlewares...)
	}
}

// WithTracing wires an ostracing.Recorder into the Server: its dispatch
// span middleware is prepended like WithMetrics's, and Close shuts the
// TracerProvider down alongside the transport. Call recorder.Start before
// New, since Start may fail (e.g. an unreachable OTLP collector) and New
// itself never returns an error for a caller-owned recorder.
func WithTracing(recorder *ostracing.Recorder) Option {
	return func(c *buildState) {
		c.tracing = recorder
		c.middlewares = append([]MiddlewareFunc{recorder.Middleware()}, c.middlewares...)
	}
}
