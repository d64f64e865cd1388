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

package osrequest

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_Body_consumableOnce(t *testing.T) {
	t.Parallel()

	u, _ := url.Parse("http://example.test/")
	req := New("POST", u, nil, io.NopCloser(strings.NewReader("hello")), nil, "127.0.0.1")

	body, err := req.Body()
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.True(t, req.BodyUsed())

	_, err = req.Body()
	assert.Error(t, err)
}

func TestRequest_Body_nilYieldsNoBody(t *testing.T) {
	t.Parallel()

	u, _ := url.Parse("http://example.test/")
	req := New("GET", u, nil, nil, nil, "127.0.0.1")

	body, err := req.Body()
	require.NoError(t, err)
	assert.Equal(t, http.NoBody, body)
}

func TestRequest_ContextRoundTrips(t *testing.T) {
	t.Parallel()

	u, _ := url.Parse("http://example.test/")
	req := New("GET", u, nil, nil, nil, "127.0.0.1")

	assert.Nil(t, req.Context("missing"))
	req.SetContext("key", "value")
	assert.Equal(t, "value", req.Context("key"))
}

func TestRequest_WaitUntil_noopWithoutSink(t *testing.T) {
	t.Parallel()

	u, _ := url.Parse("http://example.test/")
	req := New("GET", u, nil, nil, nil, "127.0.0.1")

	assert.NotPanics(t, func() {
		req.WaitUntil(func() error { return nil })
	})
}

func TestRequest_WaitUntil_invokesSink(t *testing.T) {
	t.Parallel()

	u, _ := url.Parse("http://example.test/")
	req := New("GET", u, nil, nil, nil, "127.0.0.1")

	var got func() error
	req.SetWaitUntilSink(func(task func() error) { got = task })

	task := func() error { return nil }
	req.WaitUntil(task)
	require.NotNil(t, got)
}

func TestRequest_WebSocketUpgradeBookkeeping(t *testing.T) {
	t.Parallel()

	u, _ := url.Parse("http://example.test/ws")
	req := New("GET", u, nil, nil, nil, "127.0.0.1")

	assert.False(t, req.WebSocketUpgraded())
	req.MarkWebSocketUpgraded("raw-handle")
	assert.True(t, req.WebSocketUpgraded())
	assert.Equal(t, "raw-handle", req.RawWebSocket())
}

func TestNew_defaultsNilHeaders(t *testing.T) {
	t.Parallel()

	u, _ := url.Parse("http://example.test/")
	req := New("GET", u, nil, nil, nil, "127.0.0.1")
	require.NotNil(t, req.Headers)
	assert.Equal(t, 0, req.Headers.Len())
}
