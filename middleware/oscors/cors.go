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

// Package cors handles Cross-Origin Resource Sharing: it answers preflight
// OPTIONS requests directly and annotates every other response with the
// configured access-control headers.
//
//	osrv.WithMiddleware(cors.New(
//	    cors.WithAllowedOrigins("https://example.com"),
//	    cors.WithAllowedMethods("GET", "POST"),
//	))
package cors

import (
	"strconv"
	"strings"

	"rivaas.dev/osrv/osrequest"
	"rivaas.dev/osrv/osresponse"
)

// config holds the resolved CORS policy.
type config struct {
	allowedOrigins   []string
	allowAllOrigins  bool
	allowedMethods   []string
	allowedHeaders   []string
	exposedHeaders   []string
	allowCredentials bool
	maxAge           int
	allowOriginFunc  func(origin string) bool
}

// Option configures the CORS middleware.
type Option func(*config)

// WithAllowedOrigins sets the list of allowed origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(c *config) {
		c.allowedOrigins = origins
		c.allowAllOrigins = false
	}
}

// WithAllowAllOrigins allows every origin via Access-Control-Allow-Origin: *.
// When WithAllowCredentials is also set, the request's own origin is echoed
// back (with Vary: Origin) instead of *, since browsers reject a wildcard
// origin on credentialed requests.
func WithAllowAllOrigins(allow bool) Option {
	return func(c *config) { c.allowAllOrigins = allow }
}

// WithAllowedMethods sets the methods advertised in preflight responses.
// Default: GET, POST, PUT, PATCH, DELETE, HEAD, OPTIONS.
func WithAllowedMethods(methods ...string) Option {
	return func(c *config) { c.allowedMethods = methods }
}

// WithAllowedHeaders sets the request headers advertised in preflight
// responses. Default: Origin, Content-Type, Accept, Authorization.
func WithAllowedHeaders(headers ...string) Option {
	return func(c *config) { c.allowedHeaders = headers }
}

// WithExposedHeaders sets the response headers exposed to client-side script.
func WithExposedHeaders(headers ...string) Option {
	return func(c *config) { c.exposedHeaders = headers }
}

// WithAllowCredentials enables cookies/authorization headers on cross-origin
// requests. Default: false.
func WithAllowCredentials(allow bool) Option {
	return func(c *config) { c.allowCredentials = allow }
}

// WithMaxAge sets the preflight cache lifetime in seconds. Default: 3600.
func WithMaxAge(seconds int) Option {
	return func(c *config) { c.maxAge = seconds }
}

// WithAllowOriginFunc sets a custom predicate for dynamic origin validation,
// consulted instead of the static allowed-origins list when non-nil.
func WithAllowOriginFunc(fn func(origin string) bool) Option {
	return func(c *config) { c.allowOriginFunc = fn }
}

func (c *config) originAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	if c.allowOriginFunc != nil {
		return c.allowOriginFunc(origin)
	}
	if c.allowAllOrigins {
		return true
	}
	for _, o := range c.allowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

// New builds the CORS middleware. Preflight OPTIONS requests bearing an
// access-control-request-method header are answered directly with a 204 and
// never reach next; every other request is annotated on its way back out.
func New(opts ...Option) func(req *osrequest.Request, next func(*osrequest.Request) (*osresponse.Response, error)) (*osresponse.Response, error) {
	c := &config{
		allowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		allowedHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		maxAge:         3600,
	}
	for _, opt := range opts {
		opt(c)
	}

	return func(req *osrequest.Request, next func(*osrequest.Request) (*osresponse.Response, error)) (*osresponse.Response, error) {
		origin := req.Headers.Get("origin")
		allowed := c.originAllowed(origin)

		isPreflight := req.Method == "OPTIONS" && req.Headers.Get("access-control-request-method") != ""
		if isPreflight {
			resp, err := osresponse.New(204)
			if err != nil {
				return nil, err
			}
			if allowed {
				c.applyOriginHeaders(resp, origin)
				resp.Headers.Set("access-control-allow-methods", strings.Join(c.allowedMethods, ", "))
				resp.Headers.Set("access-control-allow-headers", strings.Join(c.allowedHeaders, ", "))
				resp.Headers.Set("access-control-max-age", strconv.Itoa(c.maxAge))
			}
			return resp, nil
		}

		resp, err := next(req)
		if resp != nil && allowed {
			c.applyOriginHeaders(resp, origin)
			if len(c.exposedHeaders) > 0 {
				resp.Headers.Set("access-control-expose-headers", strings.Join(c.exposedHeaders, ", "))
			}
		}
		return resp, err
	}
}

func (c *config) applyOriginHeaders(resp *osresponse.Response, origin string) {
	if c.allowAllOrigins && !c.allowCredentials {
		resp.Headers.Set("access-control-allow-origin", "*")
	} else {
		resp.Headers.Set("access-control-allow-origin", origin)
		resp.Headers.Set("vary", "Origin")
	}
	if c.allowCredentials {
		resp.Headers.Set("access-control-allow-credentials", "true")
	}
}
