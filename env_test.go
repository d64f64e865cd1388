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
)

// Environment variable tests cannot run in parallel with each other since
// they share process-wide state via t.Setenv.

func TestParseBoolish(t *testing.T) {
	t.Parallel()

	truthy := []string{"1", "true", "TRUE", "yes", "on", " on "}
	for _, v := range truthy {
		value, recognized := parseBoolish(v)
		assert.True(t, recognized, v)
		assert.True(t, value, v)
	}

	falsy := []string{"0", "false", "no", "off"}
	for _, v := range falsy {
		value, recognized := parseBoolish(v)
		assert.True(t, recognized, v)
		assert.False(t, value, v)
	}

	unrecognized := []string{"", "maybe", "2"}
	for _, v := range unrecognized {
		_, recognized := parseBoolish(v)
		assert.False(t, recognized, v)
	}
}

func TestFirstEnv_prefersFirstSetName(t *testing.T) {
	t.Setenv("OSRV_TEST_BARE", "bare-value")
	value, ok := firstEnv("OSRV_TEST_PREFIXED", "OSRV_TEST_BARE")
	assert.True(t, ok)
	assert.Equal(t, "bare-value", value)

	_, ok = firstEnv("OSRV_TEST_NEVER_SET")
	assert.False(t, ok)
}

func TestApplyEnvironment_overridesPortHostnameAndProtocol(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("OSRV_HOSTNAME", "api.internal")
	t.Setenv("OSRV_PROTOCOL", "https")
	t.Setenv("OSRV_TLS_CERT", "cert-pem")
	t.Setenv("OSRV_TLS_KEY", "key-pem")

	c := &buildState{config: defaultConfig()}
	applyEnvironment(c)

	assert.Equal(t, 9999, c.port)
	assert.Equal(t, "api.internal", c.hostname)
	assert.Equal(t, ProtocolHTTPS, c.protocol)
	assert.Equal(t, "cert-pem", c.tls.certPEM)
	assert.Equal(t, "key-pem", c.tls.keyPEM)
}

func TestApplyEnvironment_tlsEnabledForcesHTTPS(t *testing.T) {
	t.Setenv("OSRV_TLS", "yes")

	c := &buildState{config: defaultConfig()}
	applyEnvironment(c)
	assert.Equal(t, ProtocolHTTPS, c.protocol)
}

func TestApplyEnvironment_certMaterialForcesHTTPSEvenWithoutExplicitProtocol(t *testing.T) {
	t.Setenv("TLS_CERT", "cert-pem")
	t.Setenv("TLS_KEY", "key-pem")

	c := &buildState{config: defaultConfig()}
	applyEnvironment(c)
	assert.Equal(t, ProtocolHTTPS, c.protocol)
}

func TestApplyEnvironment_http2DisabledFlag(t *testing.T) {
	t.Setenv("OSRV_HTTP2", "off")

	c := &buildState{config: defaultConfig()}
	applyEnvironment(c)
	assert.True(t, c.tls.http2Disabled)
}

func TestApplyEnvironment_productionModeRecognizesAllThreeNames(t *testing.T) {
	for _, envVar := range []string{"OSRV_ENV", "ENV", "NODE_ENV"} {
		t.Run(envVar, func(t *testing.T) {
			t.Setenv(envVar, "production")
			c := &buildState{config: defaultConfig()}
			applyEnvironment(c)
			assert.True(t, c.isProduction)
		})
	}
}

func TestApplyEnvironment_unrecognizedProtocolIsIgnored(t *testing.T) {
	t.Setenv("OSRV_PROTOCOL", "ftp")

	c := &buildState{config: defaultConfig()}
	applyEnvironment(c)
	assert.Equal(t, ProtocolHTTP, c.protocol)
}
