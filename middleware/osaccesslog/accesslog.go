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

// Package accesslog logs one structured line per dispatch: method, path,
// status, duration, client IP, and the request id left behind by the
// requestid middleware, if any.
package accesslog

import (
	"time"

	"rivaas.dev/osrv/middleware/osrequestid"
	"rivaas.dev/osrv/oslog"
	"rivaas.dev/osrv/osrequest"
	"rivaas.dev/osrv/osresponse"
)

// config holds the resolved access-log options.
type config struct {
	logger       *oslog.Logger
	excludePaths map[string]struct{}
}

// Option configures the access-log middleware.
type Option func(*config)

// WithLogger sets the logger lines are written to. Required; New panics if
// omitted, since an access-log middleware with nowhere to log is a mistake,
// not a valid configuration.
func WithLogger(l *oslog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithExcludePaths skips logging for the given exact paths (e.g. a health
// check or metrics scrape endpoint hit far more often than it's useful to
// log).
func WithExcludePaths(paths ...string) Option {
	return func(c *config) {
		if c.excludePaths == nil {
			c.excludePaths = make(map[string]struct{}, len(paths))
		}
		for _, p := range paths {
			c.excludePaths[p] = struct{}{}
		}
	}
}

// New builds the access-log middleware.
func New(opts ...Option) func(req *osrequest.Request, next func(*osrequest.Request) (*osresponse.Response, error)) (*osresponse.Response, error) {
	c := &config{}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		panic("accesslog: WithLogger is required")
	}

	return func(req *osrequest.Request, next func(*osrequest.Request) (*osresponse.Response, error)) (*osresponse.Response, error) {
		if _, skip := c.excludePaths[req.URL.Path]; skip {
			return next(req)
		}

		start := time.Now()
		resp, err := next(req)
		elapsed := time.Since(start)

		status := 0
		if resp != nil {
			status = resp.Status
		} else if err != nil {
			status = 500
		}

		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"duration_ms", float64(elapsed.Microseconds()) / 1000,
			"client_ip", req.ClientIP,
		}
		if id := requestid.Get(req); id != "" {
			fields = append(fields, "request_id", id)
		}
		if err != nil {
			fields = append(fields, "error", err)
			c.logger.Error("request failed", fields...)
			return resp, err
		}
		c.logger.Info("request handled", fields...)
		return resp, nil
	}
}
