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

// Package bridge lets a foreign host runtime invoke a Server's dispatch
// without owning a native socket. The host hands over a JSON envelope; this
// package decodes it into a Request and RuntimeContext, and encodes the
// returned Response back into the wire envelope. Body bytes travel
// base64-encoded in both directions. A WebSocket upgrade is signaled by
// status 101 carrying UpgradeHintHeader with value "websocket"; the host
// then completes the upgrade out-of-band and binds the socket id it had
// already associated with the request.
package bridge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sync"

	"rivaas.dev/osrv/oserrors"
	"rivaas.dev/osrv/osrequest"
	"rivaas.dev/osrv/osresponse"
	"rivaas.dev/osrv/runtimectx"
	"rivaas.dev/osrv/transport"
	"rivaas.dev/osrv/ws"
)

// UpgradeHintHeader is the response header name a host watches for to learn
// that a 101 response is a WebSocket upgrade it must complete itself.
const UpgradeHintHeader = "x-osrv-upgrade"

// requestEnvelope is the "request" object of the wire schema.
type requestEnvelope struct {
	URL        string      `json:"url"`
	Method     string      `json:"method"`
	Headers    [][2]string `json:"headers"`
	BodyBase64 *string     `json:"bodyBase64"`
}

// runtimeEnvelope is the "runtime" object of the wire schema.
type runtimeEnvelope struct {
	Provider      string            `json:"provider"`
	Runtime       string            `json:"runtime"`
	Protocol      string            `json:"protocol"`
	HTTPVersion   string            `json:"httpVersion"`
	TLS           bool              `json:"tls"`
	IP            *string           `json:"ip"`
	LocalAddress  *string           `json:"localAddress"`
	RemoteAddress *string           `json:"remoteAddress"`
	Env           map[string]string `json:"env"`
	RequestID     *string           `json:"requestId"`
}

// Envelope is the full request payload a host sends in.
type Envelope struct {
	Request requestEnvelope `json:"request"`
	Runtime runtimeEnvelope `json:"runtime"`
	Context json.RawMessage `json:"context"`
}

// ResponseEnvelope is the full response payload sent back to a host.
type ResponseEnvelope struct {
	Status     int         `json:"status"`
	Headers    [][2]string `json:"headers"`
	BodyBase64 *string     `json:"bodyBase64"`
}

// handleKindForProvider maps a runtime envelope's provider name to the
// tagged raw-handle kind so nothing downstream needs to string-match it
// again.
func handleKindForProvider(provider string) runtimectx.HandleKind {
	switch provider {
	case "node":
		return runtimectx.HandleNode
	case "bun":
		return runtimectx.HandleBun
	case "deno":
		return runtimectx.HandleDeno
	case "cloudflare":
		return runtimectx.HandleCloudflare
	case "vercel":
		return runtimectx.HandleVercel
	case "netlify":
		return runtimectx.HandleNetlify
	default:
		return runtimectx.HandleBridge
	}
}

// Decode parses a raw JSON request payload into a Request, tagging its
// RuntimeContext's raw handle with socketPayload so a later ws.UpgradeWebSocket
// call can recover whatever socket id the host associated with it.
func Decode(raw []byte, maxRequestBodyBytes int64, socketPayload any) (*osrequest.Request, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &oserrors.TransportError{Op: "bridge decode", Err: fmt.Errorf("osrv/bridge: invalid envelope: %w", err)}
	}

	u, err := url.Parse(env.Request.URL)
	if err != nil {
		return nil, &oserrors.TransportError{Op: "bridge decode", Err: fmt.Errorf("osrv/bridge: invalid url %q: %w", env.Request.URL, err)}
	}

	headers := osrequest.HeadersFromPairs(env.Request.Headers)

	var body io.ReadCloser
	if env.Request.BodyBase64 != nil {
		decoded, err := base64.StdEncoding.DecodeString(*env.Request.BodyBase64)
		if err != nil {
			return nil, &oserrors.TransportError{Op: "bridge decode", Err: fmt.Errorf("osrv/bridge: invalid bodyBase64: %w", err)}
		}
		body = transport.NewLimitedBody(io.NopCloser(bytes.NewReader(decoded)), maxRequestBodyBytes)
	}

	clientIP := ""
	if env.Runtime.IP != nil {
		clientIP = *env.Runtime.IP
	}
	localAddr, remoteAddr := "", ""
	if env.Runtime.LocalAddress != nil {
		localAddr = *env.Runtime.LocalAddress
	}
	if env.Runtime.RemoteAddress != nil {
		remoteAddr = *env.Runtime.RemoteAddress
	}

	protocol := runtimectx.ProtocolHTTP
	if env.Runtime.Protocol == string(runtimectx.ProtocolHTTPS) {
		protocol = runtimectx.ProtocolHTTPS
	}

	rt := &runtimectx.Context{
		Name:          env.Runtime.Runtime,
		Protocol:      protocol,
		HTTPVersion:   runtimectx.HTTPVersion(env.Runtime.HTTPVersion),
		TLS:           env.Runtime.TLS,
		LocalAddress:  localAddr,
		RemoteAddress: remoteAddr,
		Env:           env.Runtime.Env,
		Raw:           runtimectx.RawHandle{Kind: handleKindForProvider(env.Runtime.Provider), Payload: socketPayload},
	}

	req := osrequest.New(env.Request.Method, u, headers, body, rt, clientIP)
	if env.Context != nil {
		var ctxValues map[string]any
		if err := json.Unmarshal(env.Context, &ctxValues); err == nil {
			for k, v := range ctxValues {
				req.SetContext(k, v)
			}
		}
	}
	return req, nil
}

// Encode converts a Response into the wire response envelope, buffering its
// body and base64-encoding it. A streamed body is read through Body and so
// is consumed; a buffered body is read through BufferedBytes and is left
// unconsumed.
func Encode(resp *osresponse.Response) (*ResponseEnvelope, error) {
	var bodyB64 *string
	if buf, ok := resp.BufferedBytes(); ok {
		if len(buf) > 0 {
			s := base64.StdEncoding.EncodeToString(buf)
			bodyB64 = &s
		}
	} else {
		body, err := resp.Body()
		if err != nil {
			return nil, err
		}
		defer body.Close()
		buf, err := io.ReadAll(body)
		if err != nil {
			return nil, &oserrors.TransportError{Op: "bridge encode", Err: err}
		}
		if len(buf) > 0 {
			s := base64.StdEncoding.EncodeToString(buf)
			bodyB64 = &s
		}
	}

	var headerPairs [][2]string
	if resp.Headers != nil {
		headerPairs = resp.Headers.Pairs()
	}

	return &ResponseEnvelope{
		Status:     resp.Status,
		Headers:    headerPairs,
		BodyBase64: bodyB64,
	}, nil
}

// Dispatch is the function signature a Transport calls once per request;
// defined here to avoid an import cycle back onto the root package.
type Dispatch func(context.Context, *osrequest.Request) (*osresponse.Response, error)

// Transport is a Server.Transport implementation for foreign hosts that
// cannot bind a native socket. Bind does not listen on anything itself; a
// host calls Handle directly, once per incoming envelope, after Bind has
// stored the dispatch callback.
type Transport struct {
	MaxRequestBodyBytes int64

	dispatch Dispatch

	socketsMu sync.Mutex
	sockets   map[string]*ws.Conn
}

// New constructs a bridge Transport. maxRequestBodyBytes bounds decoded
// request bodies the same way the native transport's LimitedBody does.
func New(maxRequestBodyBytes int64) *Transport {
	return &Transport{
		MaxRequestBodyBytes: maxRequestBodyBytes,
		sockets:             make(map[string]*ws.Conn),
	}
}

// RegisterSocket associates a WebSocket Conn with the socket id the host
// assigned it, so later DeliverMessage/MarkSocketOpen/MarkSocketClosed
// calls from the host can find it. A host's ws.BridgeSocket factory (passed
// to ws.UpgradeWebSocket as newSocket) should call this once it knows the
// id, before returning.
func (t *Transport) RegisterSocket(socketID string, conn *ws.Conn) {
	t.socketsMu.Lock()
	defer t.socketsMu.Unlock()
	t.sockets[socketID] = conn
}

// DeliverMessage pushes an inbound frame the host received for socketID
// into the matching Conn's Messages channel.
func (t *Transport) DeliverMessage(socketID string, msg ws.Message) {
	if conn := t.socket(socketID); conn != nil {
		conn.Deliver(msg)
	}
}

// MarkSocketOpen flushes a socket's pre-open send buffer once the host
// confirms the out-of-band upgrade completed.
func (t *Transport) MarkSocketOpen(socketID string) {
	if conn := t.socket(socketID); conn != nil {
		conn.MarkOpen()
	}
}

// MarkSocketClosed tears down a socket's Conn and forgets it once the host
// reports the underlying connection closed.
func (t *Transport) MarkSocketClosed(socketID string) {
	if conn := t.socket(socketID); conn != nil {
		conn.MarkClosed()
	}
	t.socketsMu.Lock()
	delete(t.sockets, socketID)
	t.socketsMu.Unlock()
}

func (t *Transport) socket(socketID string) *ws.Conn {
	t.socketsMu.Lock()
	defer t.socketsMu.Unlock()
	return t.sockets[socketID]
}

// Bind stores dispatch for later Handle calls. There is no listener to
// start; it always succeeds.
func (t *Transport) Bind(ctx context.Context, dispatch func(context.Context, *osrequest.Request) (*osresponse.Response, error)) error {
	t.dispatch = dispatch
	return nil
}

// Capabilities reports what a bridge-fronted host can offer. WebSocket
// support is host-dependent and reported as available, since the bridge
// protocol carries upgrades; a host that cannot actually offer it should
// not advertise this Transport. Request and response streaming are reported
// unavailable, since bodies cross the bridge as whole base64 buffers.
func (t *Transport) Capabilities() runtimectx.Capabilities {
	return runtimectx.Capabilities{
		HTTP1:             true,
		HTTPS:             true,
		HTTP2:             false,
		WebSocket:         true,
		RequestStreaming:  false,
		ResponseStreaming: false,
		WaitUntil:         true,
		Edge:              true,
		TLS:               true,
	}
}

// Close is a no-op: the bridge Transport owns no listener or connections of
// its own, those belong to the host.
func (t *Transport) Close(ctx context.Context, force bool) error {
	return nil
}

// Handle decodes raw, runs it through the stored dispatch callback, and
// encodes the result. socketPayload is stashed on the decoded Request's
// RuntimeContext.Raw so a WebSocket upgrade can recover whatever socket id
// the host already associated with this request.
func (t *Transport) Handle(ctx context.Context, raw []byte, socketPayload any) (*ResponseEnvelope, error) {
	if t.dispatch == nil {
		return nil, &oserrors.TransportError{Op: "bridge handle", Err: fmt.Errorf("osrv/bridge: Bind was never called")}
	}

	req, err := Decode(raw, t.MaxRequestBodyBytes, socketPayload)
	if err != nil {
		return nil, err
	}

	resp, err := t.dispatch(ctx, req)
	if err != nil {
		return nil, err
	}
	return Encode(resp)
}
