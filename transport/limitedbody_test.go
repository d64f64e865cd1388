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

package transport

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivaas.dev/osrv/oserrors"
)

func TestLimitedBody_allowsExactlyAtLimit(t *testing.T) {
	t.Parallel()

	body := NewLimitedBody(io.NopCloser(strings.NewReader("12345")), 5)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "12345", string(data))
}

func TestLimitedBody_failsOverLimit(t *testing.T) {
	t.Parallel()

	body := NewLimitedBody(io.NopCloser(strings.NewReader("123456789")), 5)
	_, err := io.ReadAll(body)
	require.Error(t, err)

	var limitErr *oserrors.RequestLimitExceeded
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, int64(5), limitErr.MaxBytes)
	assert.Equal(t, int64(9), limitErr.ActualBytes)
}

// TestLimitedBody_reportsTrueActualBytesForOversizedBody guards against
// reporting a truncated count: a body many times larger than maxBytes must
// still surface its real total size, not merely maxBytes+1, per the
// maxRequestBodyBytes=4/10-byte-body example.
func TestLimitedBody_reportsTrueActualBytesForOversizedBody(t *testing.T) {
	t.Parallel()

	const maxBytes = 4
	want := strings.Repeat("x", 10*maxBytes)
	body := NewLimitedBody(io.NopCloser(strings.NewReader(want)), maxBytes)

	_, err := io.ReadAll(body)
	require.Error(t, err)

	var limitErr *oserrors.RequestLimitExceeded
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, int64(maxBytes), limitErr.MaxBytes)
	assert.Equal(t, int64(len(want)), limitErr.ActualBytes)
}

// TestLimitedBody_reportsTrueActualBytesAcrossSmallReads exercises the
// drain path when the caller reads in chunks smaller than the body, so the
// overage is detected mid-stream with data still left unread.
func TestLimitedBody_reportsTrueActualBytesAcrossSmallReads(t *testing.T) {
	t.Parallel()

	const maxBytes = 4
	want := strings.Repeat("y", 50)
	body := NewLimitedBody(io.NopCloser(strings.NewReader(want)), maxBytes)

	buf := make([]byte, 3)
	var err error
	for {
		_, err = body.Read(buf)
		if err != nil {
			break
		}
	}
	require.Error(t, err)

	var limitErr *oserrors.RequestLimitExceeded
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, int64(maxBytes), limitErr.MaxBytes)
	assert.Equal(t, int64(len(want)), limitErr.ActualBytes)
}

func TestLimitedBody_Close_delegatesToUnderlying(t *testing.T) {
	t.Parallel()

	closed := false
	body := NewLimitedBody(&closeTrackingReader{closed: &closed}, 10)
	require.NoError(t, body.Close())
	assert.True(t, closed)
}

type closeTrackingReader struct {
	closed *bool
}

func (r *closeTrackingReader) Read(p []byte) (int, error) { return 0, io.EOF }
func (r *closeTrackingReader) Close() error {
	*r.closed = true
	return nil
}
