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

// Package osresponse defines the semantic Response value type produced by
// fetch handlers and middleware and consumed by the transport writer.
package osresponse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"rivaas.dev/osrv/osrequest"
)

// Response is the value a fetch handler, middleware, or error handler
// returns. Status must be in [100,599]. Body is consumable at most once.
type Response struct {
	Status     int
	ReasonText string
	Headers    *osrequest.Headers

	body     io.ReadCloser
	buffered []byte
	bodyUsed bool
	bodyMu   sync.Mutex
}

// New builds a Response with an empty body.
func New(status int) (*Response, error) {
	if status < 100 || status > 599 {
		return nil, fmt.Errorf("osresponse: status %d out of range [100,599]", status)
	}
	return &Response{Status: status, Headers: osrequest.NewHeaders()}, nil
}

// Text builds a 200 "text/plain" Response with body s.
func Text(s string) *Response {
	r, _ := New(200)
	r.Headers.Set("content-type", "text/plain; charset=utf-8")
	r.buffered = []byte(s)
	return r
}

// JSON builds a status Response whose body is the JSON encoding of v.
func JSON(status int, v any) (*Response, error) {
	r, err := New(status)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("osresponse: marshal JSON body: %w", err)
	}
	r.Headers.Set("content-type", "application/json; charset=utf-8")
	r.buffered = b
	return r, nil
}

// Stream builds a Response whose body is read lazily from body.
func Stream(status int, body io.ReadCloser) (*Response, error) {
	r, err := New(status)
	if err != nil {
		return nil, err
	}
	r.body = body
	return r, nil
}

// Body returns the body as a single ReadCloser, consumable at most once.
func (r *Response) Body() (io.ReadCloser, error) {
	r.bodyMu.Lock()
	defer r.bodyMu.Unlock()
	if r.bodyUsed {
		return nil, fmt.Errorf("osresponse: body already consumed")
	}
	r.bodyUsed = true
	if r.body != nil {
		return r.body, nil
	}
	return io.NopCloser(bytes.NewReader(r.buffered)), nil
}

// BodyUsed reports whether the body has already been consumed.
func (r *Response) BodyUsed() bool {
	r.bodyMu.Lock()
	defer r.bodyMu.Unlock()
	return r.bodyUsed
}

// BufferedBytes returns the body eagerly as a byte slice when it was
// constructed from a buffer (Text/JSON) rather than a stream. It is used by
// the bridge transport, which must base64-encode the whole body up front.
func (r *Response) BufferedBytes() ([]byte, bool) {
	if r.body != nil {
		return nil, false
	}
	return r.buffered, true
}
