// Package transport owns the single bidirectional WebSocket byte channel a
// Session speaks frames over.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"spacetimedb.com/client/pkg/sdkerrors"
)

// InboundHandler is invoked once per inbound frame, in on-wire order.
type InboundHandler func(frame []byte)

// ErrorHandler is invoked once when the transport becomes unusable.
type ErrorHandler func(err error)

// Transport owns one WebSocket connection. A Transport that has failed is
// unusable and must be replaced by opening a new one.
type Transport struct {
	conn *websocket.Conn

	outbound chan []byte

	onInbound InboundHandler
	onError   ErrorHandler

	mu     sync.Mutex
	closed bool
}

// Options configures Open.
type Options struct {
	URL               string
	Headers           http.Header
	Subprotocols      []string
	HandshakeTimeout  time.Duration
	OutboundQueueSize int
}

// Open performs the WebSocket handshake and starts the reader/writer
// goroutines. On a non-101 handshake response, the error is classified
// into a concrete sdkerrors kind per the failure taxonomy.
func Open(ctx context.Context, opts Options, onInbound InboundHandler, onError ErrorHandler) (*Transport, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: opts.HandshakeTimeout,
		Subprotocols:     opts.Subprotocols,
	}
	conn, resp, err := dialer.DialContext(ctx, opts.URL, opts.Headers)
	if err != nil {
		return nil, classifyDialError(opts.URL, resp, err)
	}

	t := &Transport{
		conn:      conn,
		outbound:  make(chan []byte, queueSizeOrDefault(opts.OutboundQueueSize)),
		onInbound: onInbound,
		onError:   onError,
	}
	go t.writeLoop()
	go t.readLoop()
	return t, nil
}

func queueSizeOrDefault(n int) int {
	if n <= 0 {
		return 256
	}
	return n
}

func classifyDialError(url string, resp *http.Response, err error) error {
	if resp == nil {
		return sdkerrors.NewRefusedConnection(url, err)
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return sdkerrors.NewGenericConnectionError("handshake returned 404", err, "see diagnostics for database-not-found vs database-not-published")
	case http.StatusUnauthorized, http.StatusForbidden:
		return sdkerrors.NewAuthenticationError(resp.Status, false)
	default:
		headers := map[string]string{}
		for k := range resp.Header {
			headers[k] = resp.Header.Get(k)
		}
		return sdkerrors.NewWebSocketHandshakeError(resp.StatusCode, resp.Status, url, headers)
	}
}

// Send enqueues frame for the writer goroutine. Concurrent Send calls are
// serialized; payload bytes from different calls are never interleaved.
func (t *Transport) Send(frame []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return sdkerrors.NewConnectionTerminated()
	}
	t.mu.Unlock()

	select {
	case t.outbound <- frame:
		return nil
	default:
		return sdkerrors.NewTransportError(fmt.Errorf("transport: outbound queue full"))
	}
}

func (t *Transport) writeLoop() {
	for frame := range t.outbound {
		if err := t.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			t.fail(sdkerrors.NewTransportError(err))
			return
		}
	}
}

func (t *Transport) readLoop() {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.fail(sdkerrors.NewTransportError(err))
			return
		}
		t.onInbound(data)
	}
}

func (t *Transport) fail(err error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	close(t.outbound)
	t.conn.Close()
	if t.onError != nil {
		t.onError(err)
	}
}

// Close closes the underlying connection with the given WebSocket close
// code and reason. Subsequent Send calls fail with ConnectionTerminated.
func (t *Transport) Close(code int, reason string) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(code, reason)
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	close(t.outbound)
	return t.conn.Close()
}
