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
)

func TestDefaultConfig_isValid(t *testing.T) {
	t.Parallel()

	c := defaultConfig()
	require.NoError(t, c.validate())
	assert.Equal(t, 3000, c.port)
	assert.Equal(t, ProtocolHTTP, c.protocol)
}

func TestConfig_validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config)
		wantErr bool
	}{
		{"port too low", func(c *config) { c.port = -1 }, true},
		{"port too high", func(c *config) { c.port = 70000 }, true},
		{"unknown protocol", func(c *config) { c.protocol = "ftp" }, true},
		{"https without tls material", func(c *config) { c.protocol = ProtocolHTTPS }, true},
		{"https with tls material", func(c *config) {
			c.protocol = ProtocolHTTPS
			c.tls.certPEM = "cert"
			c.tls.keyPEM = "key"
		}, false},
		{"non-positive body limit", func(c *config) { c.maxRequestBodyBytes = 0 }, true},
		{"non-positive graceful timeout", func(c *config) { c.gracefulTimeout = 0 }, true},
		{"non-positive force timeout", func(c *config) { c.forceTimeout = 0 }, true},
		{"non-positive ws frame limit", func(c *config) { c.ws.maxFrameBytes = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := defaultConfig()
			tt.mutate(&c)
			err := c.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTLSConfig_configured(t *testing.T) {
	t.Parallel()

	assert.False(t, tlsConfig{}.configured())
	assert.True(t, tlsConfig{certPEM: "a"}.configured())
	assert.True(t, tlsConfig{keyPEM: "a"}.configured())
	assert.True(t, tlsConfig{certFile: "a"}.configured())
	assert.True(t, tlsConfig{keyFile: "a"}.configured())
}
