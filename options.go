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

import "time"

// Option configures a Server during New. Options are applied after the
// environment snapshot, so an explicit Option always takes precedence over
// an environment variable (§4.1).
type Option func(*buildState)

// WithServiceName sets the name shown in the startup banner. Default "osrv".
// It is not passed to the tracing or metrics Recorders, which take their own
// service name through their own WithServiceName options.
func WithServiceName(name string) Option {
	return func(c *buildState) { c.serviceName = name }
}

// WithServiceVersion sets the version shown in the startup banner. Default
// "0.0.0".
func WithServiceVersion(version string) Option {
	return func(c *buildState) { c.serviceVersion = version }
}

// WithBanner overrides whether the startup banner is printed. Default: on
// in development mode, off in production mode (mirrors the teacher's
// isProduction gating of startup log verbosity).
func WithBanner(enabled bool) Option {
	return func(c *buildState) { c.bannerEnabled = &enabled }
}

// WithPort sets the listener port. Default 3000.
func WithPort(port int) Option {
	return func(c *buildState) { c.port = port }
}

// WithHostname sets the bind hostname/interface. Default "0.0.0.0".
func WithHostname(hostname string) Option {
	return func(c *buildState) { c.hostname = hostname }
}

// WithProtocol forces the scheme the transport binds. It is normally
// derived from whether TLS material is configured.
func WithProtocol(protocol Protocol) Option {
	return func(c *buildState) { c.protocol = protocol }
}

// WithTLS configures PEM-encoded certificate and key text and switches the
// protocol to https. An optional passphrase decrypts an encrypted key.
func WithTLS(certPEM, keyPEM string, passphrase ...string) Option {
	return func(c *buildState) {
		c.tls.certPEM = certPEM
		c.tls.keyPEM = keyPEM
		if len(passphrase) > 0 {
			c.tls.passphrase = passphrase[0]
		}
		c.protocol = ProtocolHTTPS
	}
}

// WithTLSFiles is like WithTLS but reads certificate and key material from
// file paths at bind time rather than taking PEM text directly.
func WithTLSFiles(certFile, keyFile string, passphrase ...string) Option {
	return func(c *buildState) {
		c.tls.certFile = certFile
		c.tls.keyFile = keyFile
		if len(passphrase) > 0 {
			c.tls.passphrase = passphrase[0]
		}
		c.protocol = ProtocolHTTPS
	}
}

// WithHTTP2Disabled forces HTTP/2 off even when the TLS stack would
// otherwise support it, falling back to HTTPS-over-HTTP/1.1.
func WithHTTP2Disabled() Option {
	return func(c *buildState) { c.tls.http2Disabled = true }
}

// WithReusePort requests SO_REUSEPORT on the listening socket where the
// host OS supports it; ignored otherwise (§4.2).
func WithReusePort(enabled bool) Option {
	return func(c *buildState) { c.reusePort = enabled }
}

// WithTrustProxy makes client IP resolution prefer the first
// comma-separated token of the X-Forwarded-For header over the socket
// remote address (§4.2).
func WithTrustProxy(enabled bool) Option {
	return func(c *buildState) { c.trustProxy = enabled }
}

// WithProduction marks the server as running in production mode, which
// governs the default error Formatter's verbosity (§7).
func WithProduction(isProduction bool) Option {
	return func(c *buildState) { c.isProduction = isProduction }
}

// WithMaxRequestBodyBytes bounds the cumulative request body size; a body
// exceeding it fails the stream with RequestLimitExceeded. Default 10 MiB.
func WithMaxRequestBodyBytes(max int64) Option {
	return func(c *buildState) { c.maxRequestBodyBytes = max }
}

// WithRequestTimeout bounds idle connection time, applied as the listener
// idle timeout. Default 30s.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *buildState) { c.requestTimeout = d }
}

// WithHeadersTimeout bounds how long the transport waits to receive the
// full request header block. Default 15s.
func WithHeadersTimeout(d time.Duration) Option {
	return func(c *buildState) { c.headersTimeout = d }
}

// WithGracefulTimeout bounds how long Close(force=false) waits for
// in-flight requests and background tasks to settle before proceeding
// anyway. Default 10s. Per §9's Open Question resolution, this field (not
// any duplicate carried on a security-limits record) is authoritative for
// background-task drain.
func WithGracefulTimeout(d time.Duration) Option {
	return func(c *buildState) { c.gracefulTimeout = d }
}

// WithForceTimeout sets forceTimeout, which must be positive. Default 30s.
// It is passed to the native transport's Config, whose forced close after
// an exceeded graceful timeout is immediate and does not read it.
func WithForceTimeout(d time.Duration) Option {
	return func(c *buildState) { c.forceTimeout = d }
}

// WithWebSocketLimits bounds the WebSocket adapter's frame size, ping
// cadence, and pre-open send buffer (§4.4, §6.4).
func WithWebSocketLimits(maxFrameBytes int64, idleTimeout time.Duration, maxBufferedBytes int64) Option {
	return func(c *buildState) {
		c.ws = wsLimits{
			maxFrameBytes:    maxFrameBytes,
			idleTimeout:      idleTimeout,
			maxBufferedBytes: maxBufferedBytes,
		}
	}
}
