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

// Package native binds a real TCP/TLS listener and adapts net/http to the
// Server's (Request)->Response contract: HTTP/1.1 plain, HTTPS with ALPN
// advertising h2 and http/1.1, and a fallback to HTTPS-over-HTTP/1.1 when
// the host TLS stack can't negotiate HTTP/2. Grounded on the teacher's
// app/server.go runServer/StartTLS shape and, for ALPN/http2.ConfigureServer
// wiring the teacher's code leaves implicit, the explicit TLS bind in the
// retrieved reference server implementation.
package native

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/net/http2"

	"rivaas.dev/osrv/oserrors"
	"rivaas.dev/osrv/osrequest"
	"rivaas.dev/osrv/osresponse"
	"rivaas.dev/osrv/runtimectx"
	"rivaas.dev/osrv/transport"
)

// NativeHandle is the raw handle payload stashed on every request decoded
// by this transport. ws.UpgradeWebSocket type-asserts RuntimeContext.Raw
// down to this to reach the underlying connection for hijacking.
type NativeHandle struct {
	W http.ResponseWriter
	R *http.Request
}

// MTLSConfig requires and verifies a client certificate on every TLS
// handshake, rejecting the connection whenever Authorize declines it.
type MTLSConfig struct {
	ClientCAs  *x509.CertPool
	MinVersion uint16
	Authorize  func(*x509.Certificate) (principal string, allowed bool)
}

// hopByHop is the header set stripped from both the decoded request and the
// outgoing response, the same set net/http's own ReverseProxy treats as
// hop-by-hop. A fetch handler that wants to negotiate its own upgrade
// (WebSocket) does so through ws.UpgradeWebSocket, never by setting the
// upgrade header by hand, so stripping it here costs nothing.
var hopByHop = map[string]struct{}{
	"connection":          {},
	"keep-alive":          {},
	"proxy-connection":    {},
	"transfer-encoding":   {},
	"upgrade":             {},
	"te":                  {},
	"trailer":             {},
	"proxy-authenticate":  {},
	"proxy-authorization": {},
}

// Config configures a Transport.
type Config struct {
	Hostname      string
	Port          int
	Protocol      string // "http" or "https"
	TLSCert       string
	TLSKey        string
	TLSCertFile   string
	TLSKeyFile    string
	HTTP2Disabled bool
	ReusePort     bool
	TrustProxy    bool

	// MTLS, when non-nil, requires and verifies a client certificate on
	// every TLS handshake.
	MTLS *MTLSConfig

	MaxRequestBodyBytes int64
	RequestTimeout      time.Duration
	HeadersTimeout      time.Duration

	// GracefulTimeout bounds how long a non-forced Close waits for in-flight
	// requests before closing the remaining connections outright.
	// ForceTimeout is carried alongside it, but Close does not read it: that
	// forced close does not wait.
	GracefulTimeout time.Duration
	ForceTimeout    time.Duration

	// NotifySignals, when true, subscribes to SIGINT/SIGTERM and invokes
	// the supplied onSignal callback (normally Server.Close) when raised.
	NotifySignals bool
	OnSignal      func()

	Logger *slog.Logger
}

// Transport implements osrv.Transport over real TCP/TLS sockets.
type Transport struct {
	cfg Config

	mu           sync.Mutex
	httpServer   *http.Server
	listener     net.Listener
	capabilities runtimectx.Capabilities
	stopSignals  context.CancelFunc
}

// New constructs a native Transport. Call Bind to start accepting
// connections.
func New(cfg Config) *Transport {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Transport{cfg: cfg}
}

// Bind implements osrv.Transport.
func (t *Transport) Bind(ctx context.Context, dispatch func(context.Context, *osrequest.Request) (*osresponse.Response, error)) error {
	addr := fmt.Sprintf("%s:%d", t.cfg.Hostname, t.cfg.Port)

	handler := t.buildHandler(dispatch)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: t.cfg.HeadersTimeout,
		IdleTimeout:       t.cfg.RequestTimeout,
	}

	caps := runtimectx.Capabilities{
		HTTP1:             true,
		RequestStreaming:  true,
		ResponseStreaming: true,
		WaitUntil:         true,
		WebSocket:         true,
	}

	lc := net.ListenConfig{}
	if t.cfg.ReusePort {
		lc.Control = reusePortControl
	}

	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return &oserrors.TransportError{Op: "listen", Err: err}
	}

	if t.cfg.Protocol == "https" {
		tlsConf, err := t.buildTLSConfig()
		if err != nil {
			_ = listener.Close()
			return &oserrors.TransportError{Op: "tls-config", Err: err}
		}
		httpServer.TLSConfig = tlsConf
		caps.HTTPS = true
		caps.TLS = true

		if !t.cfg.HTTP2Disabled {
			if err := http2.ConfigureServer(httpServer, &http2.Server{}); err != nil {
				t.cfg.Logger.Warn("HTTP/2 not supported by host TLS stack, falling back to HTTP/1.1 over TLS", "error", err)
				caps.HTTP2 = false
			} else {
				caps.HTTP2 = true
			}
		}

		listener = tls.NewListener(listener, tlsConf)
	}

	t.mu.Lock()
	t.httpServer = httpServer
	t.listener = listener
	t.capabilities = caps
	t.mu.Unlock()

	go func() {
		serveErr := httpServer.Serve(listener)
		if serveErr != nil && serveErr != http.ErrServerClosed {
			t.cfg.Logger.Error("native transport serve failed", "error", serveErr)
		}
	}()

	if t.cfg.NotifySignals {
		sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		t.stopSignals = stop
		go func() {
			<-sigCtx.Done()
			if t.cfg.OnSignal != nil {
				t.cfg.OnSignal()
			}
		}()
	}

	return nil
}

// Capabilities implements osrv.Transport.
func (t *Transport) Capabilities() runtimectx.Capabilities {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.capabilities
}

// Close implements osrv.Transport. With force=false it calls Shutdown,
// which lets in-flight requests complete for up to GracefulTimeout (or
// until ctx ends, if sooner), then closes every remaining connection at
// once; with force=true it closes the listener immediately.
func (t *Transport) Close(ctx context.Context, force bool) error {
	t.mu.Lock()
	httpServer := t.httpServer
	stopSignals := t.stopSignals
	t.mu.Unlock()

	if stopSignals != nil {
		stopSignals()
	}
	if httpServer == nil {
		return nil
	}

	if force {
		return httpServer.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, t.cfg.GracefulTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		t.cfg.Logger.Warn("graceful shutdown deadline exceeded, forcing close", "error", err)
		return httpServer.Close()
	}
	return nil
}

func (t *Transport) buildTLSConfig() (*tls.Config, error) {
	var cert tls.Certificate
	var err error
	switch {
	case t.cfg.TLSCertFile != "" && t.cfg.TLSKeyFile != "":
		cert, err = tls.LoadX509KeyPair(t.cfg.TLSCertFile, t.cfg.TLSKeyFile)
	default:
		cert, err = tls.X509KeyPair([]byte(t.cfg.TLSCert), []byte(t.cfg.TLSKey))
	}
	if err != nil {
		return nil, err
	}
	conf := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if !t.cfg.HTTP2Disabled {
		conf.NextProtos = []string{"h2", "http/1.1"}
	} else {
		conf.NextProtos = []string{"http/1.1"}
	}

	if m := t.cfg.MTLS; m != nil {
		conf.ClientAuth = tls.RequireAndVerifyClientCert
		conf.ClientCAs = m.ClientCAs
		if m.MinVersion != 0 {
			conf.MinVersion = m.MinVersion
		}
		if m.Authorize != nil {
			conf.VerifyConnection = func(cs tls.ConnectionState) error {
				if len(cs.PeerCertificates) == 0 {
					return fmt.Errorf("mtls: no peer certificate presented")
				}
				if _, allowed := m.Authorize(cs.PeerCertificates[0]); !allowed {
					return fmt.Errorf("mtls: client certificate rejected by authorize callback")
				}
				return nil
			}
		}
	}

	return conf, nil
}

// buildHandler adapts an http.Handler to call dispatch, translating the
// stdlib Request/ResponseWriter into the semantic Request/Response.
func (t *Transport) buildHandler(dispatch func(context.Context, *osrequest.Request) (*osresponse.Response, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := t.decodeRequest(w, r)
		resp, err := dispatch(r.Context(), req)
		if req.WebSocketUpgraded() {
			// The handshake already wrote the 101 response and hijacked the
			// connection; there is nothing left for this handler to write.
			return
		}
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		t.writeResponse(w, r, resp)
	})
}

// decodeRequest assembles the semantic Request and RuntimeContext from a
// stdlib *http.Request per §4.2's decoding discipline.
func (t *Transport) decodeRequest(w http.ResponseWriter, r *http.Request) *osrequest.Request {
	method := strings.ToUpper(r.Method)

	headers := osrequest.NewHeaders()
	for name, values := range r.Header {
		if _, skip := hopByHop[strings.ToLower(name)]; skip {
			continue
		}
		for _, v := range values {
			headers.Add(name, v)
		}
	}
	if r.Host != "" {
		headers.Set("host", r.Host)
	}

	reqURL := assembleURL(r, t.cfg.Hostname, t.cfg.Protocol)

	body := r.Body
	var limited *transport.LimitedBody
	if method != "GET" && method != "HEAD" && method != "TRACE" && body != nil {
		limited = transport.NewLimitedBody(body, t.cfg.MaxRequestBodyBytes)
	}

	httpVersion := runtimectx.HTTP11
	if r.ProtoMajor == 2 {
		httpVersion = runtimectx.HTTP2
	} else if r.ProtoMinor == 0 {
		httpVersion = runtimectx.HTTP10
	}

	protocol := runtimectx.ProtocolHTTP
	if r.TLS != nil {
		protocol = runtimectx.ProtocolHTTPS
	}

	clientIP := r.RemoteAddr
	if t.cfg.TrustProxy {
		if xff := r.Header.Get("x-forwarded-for"); xff != "" {
			clientIP = strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
		}
	}

	rt := &runtimectx.Context{
		Name:          "native",
		Protocol:      protocol,
		HTTPVersion:   httpVersion,
		TLS:           r.TLS != nil,
		LocalAddress:  localAddrString(r),
		RemoteAddress: r.RemoteAddr,
		Env:           map[string]string{},
		Raw:           runtimectx.RawHandle{Kind: runtimectx.HandleNative, Payload: NativeHandle{W: w, R: r}},
	}

	var bodyReadCloser = body
	if limited != nil {
		bodyReadCloser = limited
	} else if method == "GET" || method == "HEAD" || method == "TRACE" {
		bodyReadCloser = nil
	}

	return osrequest.New(method, reqURL, headers, bodyReadCloser, rt, clientIP)
}

func localAddrString(r *http.Request) string {
	if addr, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr); ok {
		return addr.String()
	}
	return ""
}

// assembleURL implements the URL assembly rule in §4.2: prefer an absolute
// request URL, else combine scheme + bound host (substituting the
// configured hostname for a wildcard bind address) + the Host header.
func assembleURL(r *http.Request, boundHostname, protocol string) *url.URL {
	if r.URL.IsAbs() {
		return r.URL
	}

	scheme := protocol
	if scheme == "" {
		scheme = "http"
		if r.TLS != nil {
			scheme = "https"
		}
	}

	host := r.Host
	if host == "" {
		host = boundHostname
	}
	if host == "0.0.0.0" || host == "::" || host == "[::]" {
		host = boundHostname
	}

	u := *r.URL
	u.Scheme = scheme
	u.Host = host
	return &u
}

// writeResponse translates a semantic Response to the stdlib
// ResponseWriter, filtering hop-by-hop headers and preserving set-cookie
// multiplicity (§4.2, §6.2).
func (t *Transport) writeResponse(w http.ResponseWriter, r *http.Request, resp *osresponse.Response) {
	resp.Headers.Range(func(name, value string) {
		if _, skip := hopByHop[strings.ToLower(name)]; skip {
			return
		}
		w.Header().Add(name, value)
	})

	w.WriteHeader(resp.Status)

	body, err := resp.Body()
	if err != nil {
		return
	}
	defer body.Close()
	if _, err := io.Copy(w, body); err != nil {
		t.cfg.Logger.Warn("response body write failed", "error", err)
	}
}
