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

package osrv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivaas.dev/osrv/osrequest"
	"rivaas.dev/osrv/osresponse"
)

func recordingMiddleware(name string, order *[]string) MiddlewareFunc {
	return func(req *osrequest.Request, next NextFunc) (*osresponse.Response, error) {
		*order = append(*order, name+":before")
		resp, err := next(req)
		*order = append(*order, name+":after")
		return resp, err
	}
}

func TestBuildChain_onionOrder(t *testing.T) {
	t.Parallel()

	var order []string
	fetch := HandlerFunc(func(req *osrequest.Request) (*osresponse.Response, error) {
		order = append(order, "fetch")
		return osresponse.New(200)
	})

	chain := buildChain([]MiddlewareFunc{
		recordingMiddleware("m1", &order),
		recordingMiddleware("m2", &order),
	}, fetch)

	_, err := chain(newTestRequest())
	require.NoError(t, err)
	assert.Equal(t, []string{"m1:before", "m2:before", "fetch", "m2:after", "m1:after"}, order)
}

func TestBuildChain_emptyMiddlewareListCallsFetchDirectly(t *testing.T) {
	t.Parallel()

	called := false
	fetch := HandlerFunc(func(req *osrequest.Request) (*osresponse.Response, error) {
		called = true
		return osresponse.New(204)
	})

	chain := buildChain(nil, fetch)
	resp, err := chain(newTestRequest())
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, 204, resp.Status)
}

func TestBuildChain_shortCircuitSkipsFetchAndLaterAfters(t *testing.T) {
	t.Parallel()

	var order []string
	fetch := HandlerFunc(func(req *osrequest.Request) (*osresponse.Response, error) {
		order = append(order, "fetch")
		return osresponse.New(200)
	})

	shortCircuit := func(req *osrequest.Request, next NextFunc) (*osresponse.Response, error) {
		order = append(order, "m1:before")
		return osresponse.New(403)
	}

	chain := buildChain([]MiddlewareFunc{shortCircuit, recordingMiddleware("m2", &order)}, fetch)
	resp, err := chain(newTestRequest())
	require.NoError(t, err)
	assert.Equal(t, 403, resp.Status)
	assert.Equal(t, []string{"m1:before"}, order)
}
