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

// Package transport holds pieces shared by every concrete Transport
// implementation (native sockets, the foreign-host bridge): the
// size-limited body reader translating an over-budget body into
// oserrors.RequestLimitExceeded, the way the teacher's router caps request
// bodies with http.MaxBytesReader.
package transport

import (
	"io"

	"rivaas.dev/osrv/oserrors"
)

// LimitedBody wraps a body stream, failing with *oserrors.RequestLimitExceeded
// once cumulative bytes read exceed maxBytes (§4.2). The error's
// ActualBytes reports the body's true total size rather than whatever had
// been read at the moment the limit was crossed: once tripped, Read drains
// and counts the rest of the underlying reader before returning.
type LimitedBody struct {
	r         io.ReadCloser
	maxBytes  int64
	readSoFar int64
	tripped   bool
}

// NewLimitedBody wraps r so reads beyond maxBytes fail.
func NewLimitedBody(r io.ReadCloser, maxBytes int64) *LimitedBody {
	return &LimitedBody{r: r, maxBytes: maxBytes}
}

func (b *LimitedBody) Read(p []byte) (int, error) {
	if b.tripped {
		return 0, &oserrors.RequestLimitExceeded{MaxBytes: b.maxBytes, ActualBytes: b.readSoFar}
	}

	n, err := b.r.Read(p)
	b.readSoFar += int64(n)
	if b.readSoFar > b.maxBytes {
		if rest, drainErr := io.Copy(io.Discard, b.r); drainErr == nil {
			b.readSoFar += rest
		}
		b.tripped = true
		return n, &oserrors.RequestLimitExceeded{MaxBytes: b.maxBytes, ActualBytes: b.readSoFar}
	}
	return n, err
}

func (b *LimitedBody) Close() error { return b.r.Close() }
