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
	"os"
	"strconv"
	"strings"
)

// Recognized environment variable names (§4.1). Several settings accept two
// spellings: an OSRV_-prefixed name and a bare name shared with other
// runtimes (PORT, TLS_CERT, ENV, NODE_ENV, ...).
const (
	envPort          = "OSRV_PORT"
	envPortBare      = "PORT"
	envHostname      = "OSRV_HOSTNAME"
	envHostnameBare  = "HOSTNAME"
	envProtocol      = "OSRV_PROTOCOL"
	envTLS           = "OSRV_TLS"
	envTLSCert       = "OSRV_TLS_CERT"
	envTLSCertBare   = "TLS_CERT"
	envTLSKey        = "OSRV_TLS_KEY"
	envTLSKeyBare    = "TLS_KEY"
	envTLSPassphrase = "OSRV_TLS_PASSPHRASE"
	envTLSPassBare   = "TLS_PASSPHRASE"
	envHTTP2         = "OSRV_HTTP2"
	envMode          = "OSRV_ENV"
	envModeBare      = "ENV"
	envModeNode      = "NODE_ENV"
)

// firstEnv returns the value of the first variable among names that is set
// to a non-empty value, and whether any was.
func firstEnv(names ...string) (string, bool) {
	for _, name := range names {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// parseBoolish implements the boolish parse rule from §4.1:
// 1|true|yes|on vs 0|false|no|off; any other value is "unspecified".
func parseBoolish(v string) (value bool, recognized bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

// applyEnvironment overlays the process environment snapshot onto cfg, per
// the recognized variables enumerated in §4.1. It runs after defaultConfig
// and before any explicit Option, so an Option always overrides it.
func applyEnvironment(c *buildState) {
	if v, ok := firstEnv(envPort, envPortBare); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.port = n
		}
	}
	if v, ok := firstEnv(envHostname, envHostnameBare); ok {
		c.hostname = v
	}
	if v, ok := firstEnv(envProtocol); ok {
		switch Protocol(strings.ToLower(v)) {
		case ProtocolHTTP, ProtocolHTTPS:
			c.protocol = Protocol(strings.ToLower(v))
		}
	}
	if v, ok := firstEnv(envTLS); ok {
		if enabled, recognized := parseBoolish(v); recognized && enabled {
			c.protocol = ProtocolHTTPS
		}
	}
	if v, ok := firstEnv(envTLSCert, envTLSCertBare); ok {
		c.tls.certPEM = v
	}
	if v, ok := firstEnv(envTLSKey, envTLSKeyBare); ok {
		c.tls.keyPEM = v
	}
	if v, ok := firstEnv(envTLSPassphrase, envTLSPassBare); ok {
		c.tls.passphrase = v
	}
	if v, ok := firstEnv(envHTTP2); ok {
		if enabled, recognized := parseBoolish(v); recognized {
			c.tls.http2Disabled = !enabled
		}
	}
	if v, ok := firstEnv(envMode, envModeBare, envModeNode); ok {
		switch strings.ToLower(v) {
		case "prod", "production":
			c.isProduction = true
		}
	}
	if c.protocol == ProtocolHTTP && c.tls.configured() {
		c.protocol = ProtocolHTTPS
	}
}
