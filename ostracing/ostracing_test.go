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

package ostracing

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivaas.dev/osrv/osrequest"
	"rivaas.dev/osrv/osresponse"
)

func TestNew_defaultsToNoop(t *testing.T) {
	t.Parallel()

	r := New()
	assert.Equal(t, NoopProvider, r.provider)
}

func TestRecorder_Start_noopNeverFails(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Shutdown(context.Background()))
}

func TestRecorder_Start_unsupportedProvider(t *testing.T) {
	t.Parallel()

	r := New(WithProvider(Provider("bogus")))
	assert.Error(t, r.Start(context.Background()))
}

func TestRecorder_Start_stdoutProvider(t *testing.T) {
	t.Parallel()

	r := New(WithServiceName("svc"), WithServiceVersion("1.2.3"), WithProvider(StdoutProvider))
	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(func() { _ = r.Shutdown(context.Background()) })
}

func TestRecorder_Middleware_closesSpanWithoutTracerStarted(t *testing.T) {
	t.Parallel()

	r := New()
	mw := r.Middleware()

	u, _ := url.Parse("http://example.test/widgets")
	req := osrequest.New("GET", u, nil, nil, nil, "127.0.0.1")

	resp, err := mw(req, func(*osrequest.Request) (*osresponse.Response, error) {
		return osresponse.New(204)
	})
	require.NoError(t, err)
	assert.Equal(t, 204, resp.Status)
}

func TestRecorder_Middleware_propagatesErrors(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(func() { _ = r.Shutdown(context.Background()) })
	mw := r.Middleware()

	u, _ := url.Parse("http://example.test/widgets")
	req := osrequest.New("GET", u, nil, nil, nil, "127.0.0.1")

	boom := assertError{}
	_, err := mw(req, func(*osrequest.Request) (*osresponse.Response, error) {
		return nil, boom
	})
	assert.Equal(t, boom, err)
}

type assertError struct{}

func (assertError) Error() string { return "boom" }
