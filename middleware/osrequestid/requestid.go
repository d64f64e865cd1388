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

// Package requestid assigns a UUIDv7 request id to every dispatch, honoring
// an inbound id from the client when configured to, and stashes it in the
// request's context bag for downstream middleware, handlers, and log lines
// to read back with Get.
package requestid

import (
	"github.com/google/uuid"

	"rivaas.dev/osrv/osrequest"
	"rivaas.dev/osrv/osresponse"
)

const contextKey = "osrv.requestid"

// config holds the resolved options for New.
type config struct {
	headerName    string
	generator     func() string
	allowClientID bool
}

// Option configures the request id middleware.
type Option func(*config)

// WithHeaderName sets the request/response header carrying the id.
// Default: "x-request-id".
func WithHeaderName(name string) Option {
	return func(c *config) { c.headerName = name }
}

// WithGenerator overrides the id generator. Default generates a UUIDv7 so
// ids sort chronologically.
func WithGenerator(fn func() string) Option {
	return func(c *config) { c.generator = fn }
}

// WithAllowClientID accepts an inbound header value as the id instead of
// always generating one. Default: false (never trust client-supplied ids).
func WithAllowClientID(allow bool) Option {
	return func(c *config) { c.allowClientID = allow }
}

func defaultGenerator() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// New builds the middleware. Every dispatch gets an id: either the one
// accepted from the inbound header (if WithAllowClientID and present) or a
// freshly generated one. The id is set on both Request.Headers (so
// downstream middleware sees it as an ordinary header) and the response,
// and stashed under the context key Get reads.
func New(opts ...Option) func(req *osrequest.Request, next func(*osrequest.Request) (*osresponse.Response, error)) (*osresponse.Response, error) {
	c := &config{
		headerName: "x-request-id",
		generator:  defaultGenerator,
	}
	for _, opt := range opts {
		opt(c)
	}

	return func(req *osrequest.Request, next func(*osrequest.Request) (*osresponse.Response, error)) (*osresponse.Response, error) {
		id := ""
		if c.allowClientID {
			id = req.Headers.Get(c.headerName)
		}
		if id == "" {
			id = c.generator()
		}

		req.Headers.Set(c.headerName, id)
		req.SetContext(contextKey, id)

		resp, err := next(req)
		if resp != nil {
			resp.Headers.Set(c.headerName, id)
		}
		return resp, err
	}
}

// Get returns the request id stashed by New, or "" if this middleware was
// never installed.
func Get(req *osrequest.Request) string {
	id, _ := req.Context(contextKey).(string)
	return id
}
