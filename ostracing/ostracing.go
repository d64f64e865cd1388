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

// Package ostracing opens one OpenTelemetry span per dispatch, tagged with
// the HTTP attributes in semconv, and exports it through a Noop, Stdout, or
// OTLP provider.
package ostracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"rivaas.dev/osrv/osrequest"
	"rivaas.dev/osrv/osresponse"
	"rivaas.dev/osrv/semconv"
)

func resourceFor(serviceName, serviceVersion string) *resource.Resource {
	r, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String(semconv.ServiceName, serviceName),
		attribute.String(semconv.ServiceVersion, serviceVersion),
	))
	if err != nil {
		return resource.Default()
	}
	return r
}

// Provider selects where spans are exported.
type Provider string

const (
	NoopProvider   Provider = "noop"
	StdoutProvider Provider = "stdout"
	OTLPProvider   Provider = "otlp"
)

// Recorder owns a TracerProvider and the Tracer used to start dispatch
// spans.
type Recorder struct {
	serviceName    string
	serviceVersion string
	provider       Provider
	otlpEndpoint   string

	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithServiceName sets the service.name attached to every span's resource.
func WithServiceName(name string) Option { return func(r *Recorder) { r.serviceName = name } }

// WithServiceVersion sets the service.version attached to every span's
// resource.
func WithServiceVersion(version string) Option {
	return func(r *Recorder) { r.serviceVersion = version }
}

// WithProvider selects the exporter. Defaults to NoopProvider.
func WithProvider(p Provider) Option { return func(r *Recorder) { r.provider = p } }

// WithOTLPEndpoint sets the collector endpoint used by OTLPProvider.
func WithOTLPEndpoint(endpoint string) Option {
	return func(r *Recorder) { r.otlpEndpoint = endpoint }
}

// New constructs a Recorder. Call Start before dispatching any requests.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		serviceName:    "osrv",
		serviceVersion: "0.0.0",
		provider:       NoopProvider,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start initializes the exporter and TracerProvider. Safe to call once,
// before Serve.
func (r *Recorder) Start(ctx context.Context) error {
	var exporter sdktrace.SpanExporter
	var err error

	switch r.provider {
	case NoopProvider:
		r.tracer = trace.NewNoopTracerProvider().Tracer("rivaas.dev/osrv")
		return nil
	case StdoutProvider:
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case OTLPProvider:
		exporter, err = otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(r.otlpEndpoint), otlptracehttp.WithInsecure())
	default:
		return fmt.Errorf("ostracing: unsupported provider %q", r.provider)
	}
	if err != nil {
		return fmt.Errorf("ostracing: create exporter: %w", err)
	}

	r.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resourceFor(r.serviceName, r.serviceVersion)),
	)
	r.tracer = r.tracerProvider.Tracer("rivaas.dev/osrv")
	return nil
}

// Shutdown flushes and stops the exporter, if one is running.
func (r *Recorder) Shutdown(ctx context.Context) error {
	if r.tracerProvider == nil {
		return nil
	}
	return r.tracerProvider.Shutdown(ctx)
}

// Middleware returns a middleware function that opens one span per
// dispatch, named "osrv.dispatch", tagged with HTTP method/target/scheme
// and closed with the outcome's status code (or an error status on
// failure). Its signature matches osrv.MiddlewareFunc structurally, so it
// can be passed directly to osrv.WithMiddleware without an import cycle.
func (r *Recorder) Middleware() func(req *osrequest.Request, next func(*osrequest.Request) (*osresponse.Response, error)) (*osresponse.Response, error) {
	return func(req *osrequest.Request, next func(*osrequest.Request) (*osresponse.Response, error)) (*osresponse.Response, error) {
		tracer := r.tracer
		if tracer == nil {
			tracer = trace.NewNoopTracerProvider().Tracer("rivaas.dev/osrv")
		}

		scheme := "http"
		if req.Runtime != nil {
			scheme = string(req.Runtime.Protocol)
		}

		parentCtx := context.Background()
		if v, ok := req.Context("_ctx").(context.Context); ok {
			parentCtx = v
		}

		ctx, span := tracer.Start(parentCtx, "osrv.dispatch",
			trace.WithAttributes(
				attribute.String(semconv.HTTPMethod, req.Method),
				attribute.String(semconv.HTTPTarget, req.URL.Path),
				attribute.String(semconv.HTTPScheme, scheme),
			),
		)
		defer span.End()
		req.SetContext("_ctx", ctx)

		resp, err := next(req)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return resp, err
		}
		if resp != nil {
			span.SetAttributes(attribute.Int(semconv.HTTPStatusCode, resp.Status))
			if resp.Status >= 500 {
				span.SetStatus(codes.Error, "")
			}
		}
		return resp, nil
	}
}
