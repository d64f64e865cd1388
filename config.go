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
	"fmt"
	"time"
)

// Protocol is the scheme the transport binds.
type Protocol string

const (
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTPS Protocol = "https"
)

// tlsConfig holds PEM-encoded (or file-path) TLS material.
type tlsConfig struct {
	certPEM       string
	keyPEM        string
	certFile      string
	keyFile       string
	passphrase    string
	http2Disabled bool
}

func (t tlsConfig) configured() bool {
	return t.certPEM != "" || t.certFile != "" || t.keyPEM != "" || t.keyFile != ""
}

// wsLimits bounds the WebSocket adapter (§4.4, §6.4).
type wsLimits struct {
	maxFrameBytes    int64
	idleTimeout      time.Duration
	maxBufferedBytes int64
}

// config is the fully resolved, immutable-after-construction configuration
// for a Server. New assembles it by applying, in order, built-in defaults,
// then the environment snapshot, then explicit constructor Options — so an
// explicit Option always wins over an environment variable, which always
// wins over a default, regardless of the order Options were passed to New.
type config struct {
	serviceName    string
	serviceVersion string
	bannerEnabled  *bool

	port       int
	hostname   string
	protocol   Protocol
	reusePort  bool
	trustProxy bool

	tls tlsConfig

	isProduction bool

	maxRequestBodyBytes int64
	requestTimeout      time.Duration
	headersTimeout      time.Duration
	gracefulTimeout     time.Duration
	forceTimeout        time.Duration

	ws wsLimits
}

func defaultConfig() config {
	return config{
		serviceName:    "osrv",
		serviceVersion: "0.0.0",

		port:     3000,
		hostname: "0.0.0.0",
		protocol: ProtocolHTTP,

		maxRequestBodyBytes: 10 << 20, // 10 MiB
		requestTimeout:      30 * time.Second,
		headersTimeout:      15 * time.Second,
		gracefulTimeout:     10 * time.Second,
		forceTimeout:        30 * time.Second,

		ws: wsLimits{
			maxFrameBytes:    1 << 20, // 1 MiB
			idleTimeout:      60 * time.Second,
			maxBufferedBytes: 8 << 20, // 8 MiB
		},
	}
}

// validate cross-checks the resolved configuration, mirroring the
// teacher's serverConfig.Validate cross-field checks.
func (c *config) validate() error {
	if c.port < 0 || c.port > 65535 {
		return fmt.Errorf("osrv: port %d out of range [0,65535]", c.port)
	}
	if c.protocol != ProtocolHTTP && c.protocol != ProtocolHTTPS {
		return fmt.Errorf("osrv: protocol %q must be %q or %q", c.protocol, ProtocolHTTP, ProtocolHTTPS)
	}
	if c.protocol == ProtocolHTTPS && !c.tls.configured() {
		return fmt.Errorf("osrv: protocol %q requires TLS certificate and key material", ProtocolHTTPS)
	}
	if c.maxRequestBodyBytes <= 0 {
		return fmt.Errorf("osrv: maxRequestBodyBytes must be positive, got %d", c.maxRequestBodyBytes)
	}
	if c.gracefulTimeout <= 0 {
		return fmt.Errorf("osrv: gracefulTimeout must be positive, got %s", c.gracefulTimeout)
	}
	if c.forceTimeout <= 0 {
		return fmt.Errorf("osrv: forceTimeout must be positive, got %s", c.forceTimeout)
	}
	if c.ws.maxFrameBytes <= 0 {
		return fmt.Errorf("osrv: ws maxFrameBytes must be positive, got %d", c.ws.maxFrameBytes)
	}
	return nil
}
