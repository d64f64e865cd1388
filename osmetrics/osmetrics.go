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

// Package osmetrics records request count/duration, the background-task
// gauge, and the WebSocket connection gauge through an OpenTelemetry
// MeterProvider backed by a Prometheus registry (scraped via an http.Handler
// the caller mounts itself), an OTLP push exporter, or a Stdout exporter for
// local development.
package osmetrics

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	stdoutmetric "go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"rivaas.dev/osrv/osrequest"
	"rivaas.dev/osrv/osresponse"
	"rivaas.dev/osrv/semconv"
)

// Provider selects where metrics are exported.
type Provider string

const (
	PrometheusProvider Provider = "prometheus"
	OTLPProvider       Provider = "otlp"
	// StdoutProvider pretty-prints each collected metric to os.Stdout on
	// every export interval, mirroring ostracing.StdoutProvider. Useful for
	// local development when neither a scraper nor a collector is running.
	StdoutProvider Provider = "stdout"
)

// DefaultDurationBuckets are histogram boundaries for request duration in
// seconds, covering sub-millisecond to 10 second responses.
var DefaultDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Recorder owns the MeterProvider and the instruments backing the request
// count/duration histogram, the background-task gauge, and the WebSocket
// connection gauge.
type Recorder struct {
	serviceName     string
	provider        Provider
	otlpEndpoint    string
	durationBuckets []float64

	meterProvider *sdkmetric.MeterProvider
	registry      *promclient.Registry
	handler       http.Handler

	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	backgroundTasks metric.Int64UpDownCounter
	wsConnections   metric.Int64UpDownCounter
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithServiceName records a service name on the Recorder. It is not attached
// to exported metrics, neither as a resource nor as an attribute.
func WithServiceName(name string) Option { return func(r *Recorder) { r.serviceName = name } }

// WithProvider selects the exporter. Defaults to PrometheusProvider.
func WithProvider(p Provider) Option { return func(r *Recorder) { r.provider = p } }

// WithOTLPEndpoint sets the collector endpoint used by OTLPProvider.
func WithOTLPEndpoint(endpoint string) Option {
	return func(r *Recorder) { r.otlpEndpoint = endpoint }
}

// WithDurationBuckets overrides DefaultDurationBuckets.
func WithDurationBuckets(buckets ...float64) Option {
	return func(r *Recorder) { r.durationBuckets = buckets }
}

// New constructs a Recorder and initializes its provider and instruments.
// For PrometheusProvider, Handler returns the /metrics http.Handler the
// caller mounts; for OTLPProvider and StdoutProvider, metrics are exported
// on a periodic reader's own schedule and Handler returns nil.
func New(opts ...Option) (*Recorder, error) {
	r := &Recorder{
		serviceName:     "osrv",
		provider:        PrometheusProvider,
		durationBuckets: DefaultDurationBuckets,
	}
	for _, opt := range opts {
		opt(r)
	}

	var err error
	switch r.provider {
	case PrometheusProvider:
		err = r.initPrometheus()
	case OTLPProvider:
		err = r.initOTLP()
	case StdoutProvider:
		err = r.initStdout()
	default:
		return nil, fmt.Errorf("osmetrics: unsupported provider %q", r.provider)
	}
	if err != nil {
		return nil, err
	}

	return r, r.initInstruments()
}

func (r *Recorder) initPrometheus() error {
	r.registry = promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(r.registry))
	if err != nil {
		return fmt.Errorf("osmetrics: create prometheus exporter: %w", err)
	}
	r.meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	r.handler = promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
	return nil
}

func (r *Recorder) initOTLP() error {
	exporter, err := otlpmetrichttp.New(context.Background(), otlpmetrichttp.WithEndpoint(r.otlpEndpoint), otlpmetrichttp.WithInsecure())
	if err != nil {
		return fmt.Errorf("osmetrics: create otlp exporter: %w", err)
	}
	r.meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	return nil
}

func (r *Recorder) initStdout() error {
	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stdout), stdoutmetric.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("osmetrics: create stdout exporter: %w", err)
	}
	r.meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	return nil
}

func (r *Recorder) initInstruments() error {
	meter := r.meterProvider.Meter("rivaas.dev/osrv")

	var err error
	if r.requestCount, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of dispatched requests")); err != nil {
		return err
	}
	if r.requestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("Request duration in seconds"),
		metric.WithExplicitBucketBoundaries(r.durationBuckets...)); err != nil {
		return err
	}
	if r.backgroundTasks, err = meter.Int64UpDownCounter("osrv_background_tasks_pending",
		metric.WithDescription("Background waitUntil tasks currently pending")); err != nil {
		return err
	}
	if r.wsConnections, err = meter.Int64UpDownCounter("osrv_websocket_connections",
		metric.WithDescription("Open WebSocket connections")); err != nil {
		return err
	}
	return nil
}

// Handler returns the Prometheus scrape handler, or nil under OTLPProvider
// and StdoutProvider.
func (r *Recorder) Handler() http.Handler { return r.handler }

// Shutdown flushes and stops the underlying MeterProvider.
func (r *Recorder) Shutdown(ctx context.Context) error {
	if r.meterProvider == nil {
		return nil
	}
	return r.meterProvider.Shutdown(ctx)
}

// RecordBackgroundTaskDelta adjusts the pending-background-task gauge by
// delta (+1 on add, -1 on completion).
func (r *Recorder) RecordBackgroundTaskDelta(ctx context.Context, delta int64) {
	r.backgroundTasks.Add(ctx, delta)
}

// RecordWebSocketDelta adjusts the open-WebSocket-connection gauge by delta.
func (r *Recorder) RecordWebSocketDelta(ctx context.Context, delta int64) {
	r.wsConnections.Add(ctx, delta)
}

// Middleware returns a middleware function recording one request_count
// increment and one duration observation per dispatch, tagged with method
// and status. Its signature matches osrv.MiddlewareFunc structurally, so it
// can be passed directly to osrv.WithMiddleware without an import cycle.
func (r *Recorder) Middleware() func(req *osrequest.Request, next func(*osrequest.Request) (*osresponse.Response, error)) (*osresponse.Response, error) {
	return func(req *osrequest.Request, next func(*osrequest.Request) (*osresponse.Response, error)) (*osresponse.Response, error) {
		start := time.Now()
		resp, err := next(req)
		elapsed := time.Since(start).Seconds()

		status := 0
		if resp != nil {
			status = resp.Status
		} else if err != nil {
			status = 500
		}

		attrs := metric.WithAttributes(
			attribute.String(semconv.HTTPMethod, req.Method),
			attribute.Int(semconv.HTTPStatusCode, status),
		)
		ctx := context.Background()
		r.requestCount.Add(ctx, 1, attrs)
		r.requestDuration.Record(ctx, elapsed, attrs)

		return resp, err
	}
}
