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
	"context"
	"log/slog"

	"rivaas.dev/osrv/transport/native"
)

func (b *buildState) nativeMTLS() *native.MTLSConfig {
	if b.mtls == nil {
		return nil
	}
	return &native.MTLSConfig{
		ClientCAs:  b.mtls.clientCAs,
		MinVersion: b.mtls.minVersion,
		Authorize:  b.mtls.authorize,
	}
}

// NewNative builds a Server bound to a real native.Transport (TCP/TLS
// sockets). It resolves configuration once (defaults, environment,
// Options) to size the transport, then passes the same Options to New so
// both see an identical, consistently resolved config.
func NewNative(fetch HandlerFunc, opts ...Option) (*Server, error) {
	b := &buildState{config: defaultConfig()}
	applyEnvironment(b)
	for _, opt := range opts {
		opt(b)
	}
	if err := b.config.validate(); err != nil {
		return nil, err
	}

	var logger *slog.Logger
	if b.logger != nil {
		logger = b.logger.Slog()
	}

	var srv *Server
	nt := native.New(native.Config{
		Hostname:            b.hostname,
		Port:                b.port,
		Protocol:            string(b.protocol),
		TLSCert:             b.tls.certPEM,
		TLSKey:              b.tls.keyPEM,
		TLSCertFile:         b.tls.certFile,
		TLSKeyFile:          b.tls.keyFile,
		HTTP2Disabled:       b.tls.http2Disabled,
		ReusePort:           b.reusePort,
		TrustProxy:          b.trustProxy,
		MTLS:                b.nativeMTLS(),
		MaxRequestBodyBytes: b.maxRequestBodyBytes,
		RequestTimeout:      b.requestTimeout,
		HeadersTimeout:      b.headersTimeout,
		GracefulTimeout:     b.gracefulTimeout,
		ForceTimeout:        b.forceTimeout,
		NotifySignals:       true,
		OnSignal: func() {
			if srv != nil {
				_ = srv.Close(context.Background(), false)
			}
		},
		Logger: logger,
	})

	var err error
	srv, err = New(fetch, nt, opts...)
	if err != nil {
		return nil, err
	}
	return srv, nil
}
