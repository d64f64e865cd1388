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
	"crypto/tls"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithMTLS_defaultsToTLS13(t *testing.T) {
	t.Parallel()

	b := &buildState{}
	WithMTLS(WithClientCAs(x509.NewCertPool()))(b)

	require.NotNil(t, b.mtls)
	assert.Equal(t, uint16(tls.VersionTLS13), b.mtls.minVersion)
}

func TestWithMTLS_optionsApplyInOrder(t *testing.T) {
	t.Parallel()

	pool := x509.NewCertPool()
	authorize := func(cert *x509.Certificate) (string, bool) { return "", false }

	b := &buildState{}
	WithMTLS(
		WithClientCAs(pool),
		WithMinTLSVersion(tls.VersionTLS12),
		WithAuthorize(authorize),
	)(b)

	require.NotNil(t, b.mtls)
	assert.Same(t, pool, b.mtls.clientCAs)
	assert.Equal(t, uint16(tls.VersionTLS12), b.mtls.minVersion)
	assert.NotNil(t, b.mtls.authorize)
}

func TestMTLSConfig_validate_requiresClientCAs(t *testing.T) {
	t.Parallel()

	cfg := &mtlsConfig{}
	assert.Error(t, cfg.validate())

	cfg.clientCAs = x509.NewCertPool()
	assert.NoError(t, cfg.validate())
}

func TestNativeMTLS_nilWithoutMTLSOption(t *testing.T) {
	t.Parallel()

	b := &buildState{}
	assert.Nil(t, b.nativeMTLS())
}

func TestNativeMTLS_translatesConfig(t *testing.T) {
	t.Parallel()

	pool := x509.NewCertPool()
	b := &buildState{}
	WithMTLS(WithClientCAs(pool), WithMinTLSVersion(tls.VersionTLS12))(b)

	nativeCfg := b.nativeMTLS()
	require.NotNil(t, nativeCfg)
	assert.Same(t, pool, nativeCfg.ClientCAs)
	assert.Equal(t, uint16(tls.VersionTLS12), nativeCfg.MinVersion)
}
