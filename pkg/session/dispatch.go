package session

import (
	"fmt"

	"spacetimedb.com/client/internal/logger"
	"spacetimedb.com/client/pkg/codec"
	"spacetimedb.com/client/pkg/compression"
	"spacetimedb.com/client/pkg/sdkerrors"
	"spacetimedb.com/client/pkg/wire"
)

// encodeFrame prefixes every frame body with a single byte naming the
// algorithm, if any, used to compress the bytes that follow.
// Frames below the compression threshold are prefixed with
// compression.None and sent verbatim.
func encodeFrame(n *compression.Negotiator, payload []byte) ([]byte, error) {
	out, compressed, err := n.EncodeOutbound(payload)
	if err != nil {
		return nil, err
	}
	tag := compression.None
	if compressed {
		tag = n.Algorithm()
	}
	framed := make([]byte, 0, len(out)+1)
	framed = append(framed, byte(tag))
	framed = append(framed, out...)
	return framed, nil
}

func decodeFrame(n *compression.Negotiator, frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("session: empty frame")
	}
	tag := compression.Algorithm(frame[0])
	body := frame[1:]
	if tag == compression.None {
		return body, nil
	}
	inner := compression.New(tag, 0, compression.LevelDefault)
	return inner.DecodeInbound(body)
}

// onInboundFrame is wired to the Transport as its InboundHandler. It runs
// on the transport's single reader goroutine, which is this Session's
// dispatch thread: user callbacks invoked from here run in-order.
func (s *Session) onInboundFrame(frame []byte) {
	payload, err := decodeFrame(s.negotiatorSnapshot(), frame)
	if err != nil {
		logger.Error("session: frame decompression failed", "error", err)
		s.onTransportError(sdkerrors.NewCodecError("decompress frame", err))
		return
	}

	var msg wire.ServerMessage
	if s.opts.Subprotocol == wire.SubprotocolJSON {
		msg, err = wire.DecodeServerMessageJSON(payload)
	} else {
		r := codec.NewReader(payload)
		msg, err = wire.DecodeServerMessageBSATN(r)
	}
	if err != nil {
		logger.Error("session: frame decode failed", "error", err)
		s.onTransportError(sdkerrors.NewCodecError("decode server message", err))
		return
	}

	s.handleServerMessage(msg)
}

func (s *Session) onTransportError(err error) {
	if s.handlers.OnError != nil {
		s.handlers.OnError(err)
	}
	s.transportDropped(err)
}

func (s *Session) handleServerMessage(msg wire.ServerMessage) {
	switch m := msg.(type) {
	case wire.IdentityToken:
		s.handleIdentityToken(m)
	case wire.InitialSubscription:
		s.completePending(m.RequestID, Result{Message: m})
		if sink := s.getSink(); sink != nil {
			sink.HandleInitialSubscription(m)
		}
	case wire.TransactionUpdate:
		s.completePending(m.ReducerCall.RequestID, Result{Message: m})
		if s.handlers.OnTransactionUpdate != nil {
			s.handlers.OnTransactionUpdate(m)
		}
		if sink := s.getSink(); sink != nil {
			sink.HandleTransactionUpdate(m)
		}
	case wire.TransactionUpdateLight:
		s.completePending(m.RequestID, Result{Message: m})
		if s.handlers.OnTransactionUpdateLight != nil {
			s.handlers.OnTransactionUpdateLight(m)
		}
		if sink := s.getSink(); sink != nil {
			sink.HandleTransactionUpdateLight(m)
		}
	case wire.SubscribeApplied:
		s.completePending(m.RequestID, Result{Message: m})
		if sink := s.getSink(); sink != nil {
			sink.HandleSubscribeApplied(m)
		}
	case wire.UnsubscribeApplied:
		s.completePending(m.RequestID, Result{Message: m})
		if sink := s.getSink(); sink != nil {
			sink.HandleUnsubscribeApplied(m)
		}
	case wire.SubscribeMultiApplied:
		s.completePending(m.RequestID, Result{Message: m})
		if sink := s.getSink(); sink != nil {
			sink.HandleSubscribeMultiApplied(m)
		}
	case wire.UnsubscribeMultiApplied:
		s.completePending(m.RequestID, Result{Message: m})
		if sink := s.getSink(); sink != nil {
			sink.HandleUnsubscribeMultiApplied(m)
		}
	case wire.SubscriptionError:
		if m.RequestID != nil {
			s.completePending(*m.RequestID, Result{Err: fmt.Errorf("subscription error: %s", m.Error)})
		}
		if sink := s.getSink(); sink != nil {
			sink.HandleSubscriptionError(m)
		}
	case wire.OneOffQueryResponse:
		s.completeOneOff(m.MessageID, OneOffResult{Tables: m.Tables, Error: m.Error, HostDuration: m.TotalHostExecutionDuration})
	default:
		logger.Warn("session: unrecognized server message", "type", fmt.Sprintf("%T", msg))
	}
}

func (s *Session) handleIdentityToken(m wire.IdentityToken) {
	s.mu.Lock()
	alreadySet := s.haveIdentity
	if !alreadySet {
		s.identity = m.Identity
		s.connectionID = m.ConnectionID
		s.haveIdentity = true
	}
	wasReconnecting := s.state == Reconnecting || s.state == Connecting
	s.mu.Unlock()

	if wasReconnecting {
		s.setState(Connected, nil)
	}

	s.handshakeMu.Lock()
	if s.handshakeCh != nil {
		select {
		case <-s.handshakeCh:
		default:
			close(s.handshakeCh)
		}
	}
	s.handshakeMu.Unlock()

	if s.handlers.OnIdentity != nil {
		s.handlers.OnIdentity(m.Identity, m.ConnectionID, m.Token)
	}
}

func (s *Session) completePending(id codec.RequestId, res Result) {
	s.pendingMu.Lock()
	ch, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.pendingMu.Unlock()
	if ok {
		ch <- res
	}
}

func (s *Session) completeOneOff(id [16]byte, res OneOffResult) {
	s.pendingMu.Lock()
	ch, ok := s.pendingOneOff[id]
	if ok {
		delete(s.pendingOneOff, id)
	}
	s.pendingMu.Unlock()
	if ok {
		ch <- res
	}
}
