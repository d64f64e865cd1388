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

// Package osrv is a unified HTTP/1.1+HTTP/2+TLS server core exposing a
// single Fetch-style handler contract, wrapped with a middleware pipeline,
// plugin lifecycle hooks, structured error handling, graceful shutdown
// with background-task draining, and an optional WebSocket upgrade path.
//
// Routing, templating, authentication, an HTTP client, database access,
// object mapping, and multi-process supervision are out of scope; compose
// them above this core.
package osrv

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"rivaas.dev/osrv/oserrors"
	"rivaas.dev/osrv/oslog"
	"rivaas.dev/osrv/osmetrics"
	"rivaas.dev/osrv/osrequest"
	"rivaas.dev/osrv/osresponse"
	"rivaas.dev/osrv/ostracing"
	"rivaas.dev/osrv/runtimectx"
)

// Transport is implemented by anything capable of binding a listener (or
// proxying one, for the bridge/foreign-host case) and calling back into
// Server.Dispatch for each request (§9: conditional-import transport
// selection expressed as an interface with multiple implementations).
type Transport interface {
	// Bind starts accepting connections and returns once the listener is
	// ready (or failed to become ready). dispatch is called once per
	// request; Bind must not return until it is safe to call dispatch.
	Bind(ctx context.Context, dispatch func(context.Context, *osrequest.Request) (*osresponse.Response, error)) error

	// Capabilities reports what this transport actually supports after
	// Bind returns successfully.
	Capabilities() runtimectx.Capabilities

	// Close stops accepting new connections. If force is false, the
	// transport should allow in-flight requests to complete up to its
	// own idle/read timeouts before returning.
	Close(ctx context.Context, force bool) error
}

// buildState accumulates every New option before Server construction. It
// embeds config so the WithX option bodies in options.go/env.go can set
// config fields directly (c.port = ...) via field promotion.
type buildState struct {
	config

	middlewares  []MiddlewareFunc
	plugins      []Plugin
	errorHandler ErrorHandlerFunc
	formatter    oserrors.Formatter
	logger       *oslog.Logger
	mtls         *mtlsConfig
	metrics      *osmetrics.Recorder
	tracing      *ostracing.Recorder
}

// Server is the request-serving orchestrator described in §4.1: it owns
// configuration, the plugin list, the middleware chain, the
// background-task registry, and the lifecycle state machine. A Server
// instance is one-shot — once Close returns, a later Serve call returns nil
// without binding the transport again.
type Server struct {
	cfg          config
	fetch        HandlerFunc
	chain        HandlerFunc
	plugins      *pluginRegistry
	errorHandler ErrorHandlerFunc
	formatter    oserrors.Formatter
	logger       *oslog.Logger
	metrics      *osmetrics.Recorder
	tracing      *ostracing.Recorder

	transport Transport

	lifecycle lifecycle
	tasks     *backgroundTaskRegistry
	readiness *ReadinessManager

	mu           sync.Mutex
	capabilities runtimectx.Capabilities
}

// New constructs a Server. fetch is the user handler at the center of the
// middleware onion; transport is the bound implementation (native, bridge,
// or a test double) the Server drives through Bind/Close.
func New(fetch HandlerFunc, transport Transport, opts ...Option) (*Server, error) {
	if fetch == nil {
		return nil, fmt.Errorf("osrv: fetch handler must not be nil")
	}
	if transport == nil {
		return nil, fmt.Errorf("osrv: transport must not be nil")
	}

	b := &buildState{config: defaultConfig()}
	applyEnvironment(b)
	for _, opt := range opts {
		opt(b)
	}
	if err := b.config.validate(); err != nil {
		return nil, err
	}
	if b.mtls != nil {
		if err := b.mtls.validate(); err != nil {
			return nil, err
		}
	}

	formatter := b.formatter
	if formatter == nil {
		formatter = &oserrors.Default{IsProduction: b.isProduction}
	}
	logger := b.logger
	if logger == nil {
		logger = oslog.New(oslog.WithHandler(oslog.JSONHandler), oslog.WithLevel(oslog.LevelInfo))
	}

	s := &Server{
		cfg:          b.config,
		fetch:        fetch,
		chain:        buildChain(b.middlewares, fetch),
		plugins:      newPluginRegistry(b.plugins),
		errorHandler: b.errorHandler,
		formatter:    formatter,
		logger:       logger,
		metrics:      b.metrics,
		tracing:      b.tracing,
		transport:    transport,
		tasks:        newBackgroundTaskRegistry(),
	}
	s.readiness = newReadinessManager(&s.lifecycle, logger)
	if b.metrics != nil {
		s.tasks.onDelta = func(delta int64) {
			b.metrics.RecordBackgroundTaskDelta(context.Background(), delta)
		}
	}
	return s, nil
}

// Serve transitions Constructed -> Registering -> Starting -> Serving
// (§4.1). It is idempotent: a call while already past Constructed returns
// nil without repeating any step.
func (s *Server) Serve(ctx context.Context) error {
	if !s.lifecycle.transition(stateConstructed, stateRegistering) {
		return nil
	}

	if err := s.plugins.runRegister(ctx); err != nil {
		s.failLifecycle(ctx, oserrors.StageRegister, err)
		return &oserrors.LifecycleError{Stage: oserrors.StageRegister, Err: err}
	}

	s.lifecycle.set(stateStarting)
	if err := s.plugins.runBeforeServe(ctx); err != nil {
		s.failLifecycle(ctx, oserrors.StageBeforeServe, err)
		return &oserrors.LifecycleError{Stage: oserrors.StageBeforeServe, Err: err}
	}

	if err := s.transport.Bind(ctx, s.dispatch); err != nil {
		wrapped := &oserrors.TransportError{Op: "bind", Err: err}
		s.failLifecycle(ctx, oserrors.StageTransport, wrapped)
		return wrapped
	}

	s.mu.Lock()
	s.capabilities = s.transport.Capabilities()
	s.mu.Unlock()

	s.lifecycle.set(stateServing)
	if err := s.plugins.runAfterServe(ctx); err != nil {
		s.failLifecycle(ctx, oserrors.StageAfterServe, err)
		return &oserrors.LifecycleError{Stage: oserrors.StageAfterServe, Err: err}
	}

	s.logger.Flush()
	if s.bannerEnabled() {
		s.printStartupBanner()
	}
	s.logger.Info("server serving", "port", s.cfg.port, "protocol", string(s.cfg.protocol))
	return nil
}

// bannerEnabled resolves WithBanner's default: on in development, off in
// production, unless the caller set it explicitly.
func (s *Server) bannerEnabled() bool {
	if s.cfg.bannerEnabled != nil {
		return *s.cfg.bannerEnabled
	}
	return !s.cfg.isProduction
}

// Close transitions Serving -> Draining -> Closed (§4.1). With force=false
// it awaits background tasks up to gracefulTimeout before proceeding
// regardless; with force=true it skips the drain entirely. Exit is
// guaranteed either way.
func (s *Server) Close(ctx context.Context, force bool) error {
	if !s.lifecycle.transition(stateServing, stateDraining) {
		return nil
	}

	if err := s.plugins.runBeforeClose(ctx); err != nil {
		s.logger.Error("onBeforeClose hook failed", "error", err)
		s.emitError(ctx, oserrors.StageBeforeClose, err, nil)
	}

	transportErr := s.transport.Close(ctx, force)

	if !force {
		if !s.tasks.drain(s.cfg.gracefulTimeout) {
			s.logger.Warn("graceful timeout elapsed with background tasks still pending",
				"gracefulTimeout", s.cfg.gracefulTimeout, "pending", s.tasks.count())
		}
	}

	if err := s.plugins.runAfterClose(ctx); err != nil {
		s.logger.Error("onAfterClose hook failed", "error", err)
		s.emitError(ctx, oserrors.StageAfterClose, err, nil)
	}

	if s.tracing != nil {
		if err := s.tracing.Shutdown(ctx); err != nil {
			s.logger.Warn("tracing shutdown failed", "error", err)
		}
	}
	if s.metrics != nil {
		if err := s.metrics.Shutdown(ctx); err != nil {
			s.logger.Warn("metrics shutdown failed", "error", err)
		}
	}

	s.lifecycle.set(stateClosed)

	if transportErr != nil {
		wrapped := &oserrors.TransportError{Op: "close", Err: transportErr}
		s.emitError(ctx, oserrors.StageTransport, wrapped, nil)
		return wrapped
	}
	return nil
}

// IsServing reports whether the Server is currently in the Serving state.
func (s *Server) IsServing() bool { return s.lifecycle.get() == stateServing }

// Readiness returns the Server's ReadinessManager, shared across the whole
// lifetime of the Server, for an external health endpoint to register
// gates against and query.
func (s *Server) Readiness() *ReadinessManager { return s.readiness }

// Capabilities reports the transport's actual capabilities after Serve has
// bound it. Before Serve completes it is the zero value.
func (s *Server) Capabilities() runtimectx.Capabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capabilities
}

// WaitUntilSink returns the function wired onto every Request's
// waitUntil, registering fire-and-forget work against this Server's
// background-task registry.
func (s *Server) WaitUntilSink() runtimectx.WaitUntilFunc {
	return func(task func() error) {
		s.tasks.add(task, func(err error) {
			s.logger.Error("background task failed", "error", err)
		})
	}
}

// dispatch is the entry point a Transport calls once per request (§4.1).
// It runs the middleware chain around the user fetch handler, recovering
// panics as HandlerError, and on failure produces a response via the user
// error handler or the default Formatter.
func (s *Server) dispatch(ctx context.Context, req *osrequest.Request) (resp *osresponse.Response, err error) {
	req.SetWaitUntilSink(s.WaitUntilSink())

	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			handlerErr := &oserrors.HandlerError{Panic: r}
			resp, err = s.handleRequestError(ctx, handlerErr, stack, req)
		}
	}()

	resp, handlerErr := s.chain(req)
	if handlerErr != nil {
		wrapped := &oserrors.HandlerError{Err: handlerErr}
		return s.handleRequestError(ctx, wrapped, "", req)
	}
	return resp, nil
}

func (s *Server) handleRequestError(ctx context.Context, err error, stackTrace string, req *osrequest.Request) (*osresponse.Response, error) {
	s.emitError(ctx, oserrors.StageRequest, err, req)

	if s.errorHandler != nil {
		resp, handlerErr := func() (hResp *osresponse.Response, hErr error) {
			defer func() {
				if r := recover(); r != nil {
					hErr = fmt.Errorf("osrv: error handler panicked: %v", r)
				}
			}()
			return s.errorHandler(err, stackTrace, req)
		}()
		if handlerErr != nil {
			s.logger.Error("user error handler failed", "error", handlerErr)
		} else {
			return resp, nil
		}
	}

	return s.formatter.Format(err)
}

func (s *Server) emitError(ctx context.Context, stage oserrors.Stage, err error, req *osrequest.Request) {
	s.plugins.emitError(ctx, stage, err, "", req, func(dropped error) {
		s.logger.Warn("dropped nested plugin error", "stage", stage, "error", dropped)
	})
}

func (s *Server) failLifecycle(ctx context.Context, stage oserrors.Stage, err error) {
	s.lifecycle.fail()
	s.emitError(ctx, stage, err, nil)
}
