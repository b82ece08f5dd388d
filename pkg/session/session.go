// Package session implements the protocol engine that owns a single
// logical connection to a database: it serializes outbound frames,
// dispatches inbound frames, and correlates request IDs, subscription
// IDs, and pending one-off queries. It also owns the connection's
// reconnect lifecycle (backoff policy and circuit breaker).
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"spacetimedb.com/client/internal/logger"
	"spacetimedb.com/client/pkg/circuitbreaker"
	"spacetimedb.com/client/pkg/codec"
	"spacetimedb.com/client/pkg/compression"
	"spacetimedb.com/client/pkg/retrypolicy"
	"spacetimedb.com/client/pkg/sdkerrors"
	"spacetimedb.com/client/pkg/transport"
	"spacetimedb.com/client/pkg/wire"
)

// State is one of the five states a Session may occupy.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Options configures a Session's connect parameters.
type Options struct {
	Host       string
	Database   string
	Secure     bool
	DBIdentity string

	Subprotocol wire.Subprotocol

	CompressionOffered   []compression.Algorithm
	CompressionThreshold int
	CompressionLevel     compression.Level

	HandshakeTimeout time.Duration

	AutoReconnect        bool
	ReconnectMaxAttempts int
}

// Handlers are the user-facing callbacks a Session invokes from its
// single dispatch goroutine. Any handler left nil is simply not called.
type Handlers struct {
	OnIdentity               func(identity codec.Identity, connectionID codec.ConnectionId, token string)
	OnConnectionEvent        func(ConnectionEvent)
	OnTransactionUpdate      func(wire.TransactionUpdate)
	OnTransactionUpdateLight func(wire.TransactionUpdateLight)
	OnError                  func(error)
}

// SubscriptionSink receives every inbound message the Subscription
// Manager cares about. A Session with no sink attached still dispatches
// correctly; subscription-related frames are simply dropped after
// completing any pending-request slot they also satisfy.
type SubscriptionSink interface {
	HandleInitialSubscription(wire.InitialSubscription)
	HandleSubscribeApplied(wire.SubscribeApplied)
	HandleUnsubscribeApplied(wire.UnsubscribeApplied)
	HandleSubscribeMultiApplied(wire.SubscribeMultiApplied)
	HandleUnsubscribeMultiApplied(wire.UnsubscribeMultiApplied)
	HandleSubscriptionError(wire.SubscriptionError)
	HandleTransactionUpdate(wire.TransactionUpdate)
	HandleTransactionUpdateLight(wire.TransactionUpdateLight)
	Reapply(ctx context.Context)
}

// Result completes a pending call_reducer/subscribe/unsubscribe slot.
type Result struct {
	Message wire.ServerMessage
	Err     error
}

// OneOffResult completes a pending one-off query slot.
type OneOffResult struct {
	Tables       []wire.TableUpdate
	Error        string
	HostDuration time.Duration
}

// Session owns one logical connection's transport, codec, and dispatch.
type Session struct {
	opts     Options
	collab   Collaborators
	handlers Handlers

	dial DialFunc

	breaker   *circuitbreaker.Breaker
	reconnect retrypolicy.Policy

	nextRequestID atomic.Uint32
	nextQueryID   atomic.Uint32

	mu           sync.RWMutex
	state        State
	identity     codec.Identity
	connectionID codec.ConnectionId
	haveIdentity bool
	transport    *transport.Transport
	negotiator   *compression.Negotiator

	pendingMu     sync.Mutex
	pending       map[codec.RequestId]chan Result
	pendingOneOff map[[16]byte]chan OneOffResult

	handshakeMu sync.Mutex
	handshakeCh chan struct{}

	sinkMu sync.RWMutex
	sink   SubscriptionSink

	closeOnce sync.Once
	closed    chan struct{}
}

// DialFunc performs one WebSocket handshake attempt: it dials the
// transport, advertises offered in preference order via handshake
// headers, and returns the algorithm the server selected (compression.None
// if none). onInbound/onError are wired to the opened Transport so the
// Session's dispatch takes over immediately. A classified sdkerrors value
// is returned on failure.
type DialFunc func(ctx context.Context, token string, offered []compression.Algorithm, onInbound transport.InboundHandler, onError transport.ErrorHandler) (tr *transport.Transport, selected compression.Algorithm, err error)

// New constructs a Session. dial is called once per connect/reconnect
// attempt and must perform the full WebSocket handshake, returning an
// open Transport or a classified sdkerrors value.
func New(opts Options, collab Collaborators, handlers Handlers, dial DialFunc) *Session {
	if opts.CompressionThreshold <= 0 {
		opts.CompressionThreshold = 1024
	}
	if opts.CompressionLevel == "" {
		opts.CompressionLevel = compression.LevelDefault
	}
	if opts.Subprotocol == "" {
		opts.Subprotocol = wire.SubprotocolBSATN
	}
	s := &Session{
		opts:          opts,
		collab:        collab,
		handlers:      handlers,
		dial:          dial,
		breaker:       circuitbreaker.New(5, 30*time.Second),
		reconnect:     retrypolicy.ReconnectPolicy(opts.ReconnectMaxAttempts),
		pending:       make(map[codec.RequestId]chan Result),
		pendingOneOff: make(map[[16]byte]chan OneOffResult),
		closed:        make(chan struct{}),
	}
	s.negotiator = compression.New(compression.None, opts.CompressionThreshold, opts.CompressionLevel)
	return s
}

// negotiatorSnapshot returns the Negotiator in effect for the current
// connection. It changes identity across reconnects, so callers read it
// fresh per frame rather than caching the pointer.
func (s *Session) negotiatorSnapshot() *compression.Negotiator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.negotiator
}

// SetSubscriptionSink attaches the Subscription Manager. Call before
// Connect; inbound dispatch reads it under a lock, so late attachment is
// also safe but may race the very first frames.
func (s *Session) SetSubscriptionSink(sink SubscriptionSink) {
	s.sinkMu.Lock()
	s.sink = sink
	s.sinkMu.Unlock()
}

func (s *Session) getSink() SubscriptionSink {
	s.sinkMu.RLock()
	defer s.sinkMu.RUnlock()
	return s.sink
}

// State returns the Session's current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Identity returns the server-assigned identity and connection id, valid
// once Connected has been reached at least once.
func (s *Session) Identity() (codec.Identity, codec.ConnectionId, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity, s.connectionID, s.haveIdentity
}

func (s *Session) setState(next State, err error) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	kind := EventConnecting
	switch next {
	case Connecting:
		kind = EventConnecting
	case Connected:
		kind = EventConnected
	case Reconnecting:
		kind = EventReconnecting
	case Disconnected:
		kind = EventDisconnected
	case Closed:
		kind = EventClosed
	}
	event := ConnectionEvent{Kind: kind, At: time.Now(), Err: err}
	s.collab.reports().Report(event)
	if s.handlers.OnConnectionEvent != nil {
		s.handlers.OnConnectionEvent(event)
	}
}

// Connect dials the transport and waits for the handshake-completing
// IdentityToken. It returns nil once Connected is reached, or an error
// if the credential source or the dial fails, ctx is done, or the
// Session is closed.
func (s *Session) Connect(ctx context.Context) error {
	s.setState(Connecting, nil)

	token := ""
	if s.collab.Credentials != nil {
		t, err := s.collab.Credentials.Token(ctx)
		if err != nil {
			return fmt.Errorf("session: credential source: %w", err)
		}
		token = t
	}

	s.handshakeMu.Lock()
	s.handshakeCh = make(chan struct{})
	handshakeCh := s.handshakeCh
	s.handshakeMu.Unlock()

	var tr *transport.Transport
	var selected compression.Algorithm
	err := s.breaker.Call(func() error {
		var dialErr error
		tr, selected, dialErr = s.dial(ctx, token, s.opts.CompressionOffered, s.onInboundFrame, s.onTransportError)
		return dialErr
	})
	if err != nil {
		s.setState(Disconnected, err)
		return err
	}

	s.mu.Lock()
	s.transport = tr
	s.negotiator = compression.New(selected, s.opts.CompressionThreshold, s.opts.CompressionLevel)
	s.mu.Unlock()

	select {
	case <-handshakeCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
		return sdkerrors.NewConnectionTerminated()
	}
}

// transportDropped is invoked from the dispatch goroutine when the
// underlying transport fails. It fails all pending slots, and if
// auto-reconnect is enabled and the Session is not closed, starts the
// reconnect loop.
func (s *Session) transportDropped(err error) {
	s.mu.RLock()
	closed := s.state == Closed
	s.mu.RUnlock()
	if closed {
		return
	}

	s.failAllPending(err)

	if !s.opts.AutoReconnect {
		s.setState(Disconnected, err)
		return
	}
	s.setState(Reconnecting, err)
	go s.reconnectLoop()
}

func (s *Session) reconnectLoop() {
	for attempt := 1; attempt <= s.reconnect.MaxAttempts; attempt++ {
		select {
		case <-s.closed:
			return
		default:
		}
		time.Sleep(s.reconnect.Delay(attempt))

		ctx, cancel := context.WithTimeout(context.Background(), s.opts.HandshakeTimeout+5*time.Second)
		err := s.Connect(ctx)
		cancel()
		if err == nil {
			logger.Info("session: reconnected", "attempt", attempt)
			if sink := s.getSink(); sink != nil {
				sink.Reapply(context.Background())
			}
			return
		}
		logger.Warn("session: reconnect attempt failed", "attempt", attempt, "error", err)
	}
	logger.Warn("session: reconnect attempts exhausted")
	s.setState(Disconnected, sdkerrors.NewConnectionTerminated())
}

// Close terminates the Session. All outstanding pending slots complete
// with a connection-terminated error; the transport is closed; no further
// reconnect attempts occur.
func (s *Session) Close() error {
	var retErr error
	s.closeOnce.Do(func() {
		s.setState(Closed, nil)
		close(s.closed)
		s.failAllPending(sdkerrors.NewConnectionTerminated())

		s.mu.RLock()
		tr := s.transport
		s.mu.RUnlock()
		if tr != nil {
			retErr = tr.Close(1000, "session closed")
		}
	})
	return retErr
}

func (s *Session) failAllPending(err error) {
	s.pendingMu.Lock()
	for id, ch := range s.pending {
		ch <- Result{Err: err}
		delete(s.pending, id)
	}
	for id, ch := range s.pendingOneOff {
		ch <- OneOffResult{Error: err.Error()}
		delete(s.pendingOneOff, id)
	}
	s.pendingMu.Unlock()
}
