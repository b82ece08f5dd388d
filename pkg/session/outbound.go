package session

import (
	"context"
	"crypto/rand"

	"spacetimedb.com/client/pkg/codec"
	"spacetimedb.com/client/pkg/sdkerrors"
	"spacetimedb.com/client/pkg/wire"
)

func (s *Session) nextRequest() codec.RequestId {
	return codec.RequestId(s.nextRequestID.Add(1))
}

func (s *Session) nextQuery() codec.QueryId {
	return codec.QueryId(s.nextQueryID.Add(1))
}

// send encodes msg per the negotiated subprotocol, applies frame
// compression, and hands the result to the transport. Encode, compress,
// and transport-send happen as one atomic unit per call so concurrent
// callers never interleave partial frames.
func (s *Session) send(msg wire.ClientMessage) error {
	s.mu.RLock()
	state := s.state
	tr := s.transport
	s.mu.RUnlock()
	if state != Connected || tr == nil {
		return sdkerrors.NewNotConnected()
	}

	var payload []byte
	var err error
	if s.opts.Subprotocol == wire.SubprotocolJSON {
		payload, err = wire.EncodeClientMessageJSON(msg)
	} else {
		w := codec.NewWriter()
		if encErr := wire.EncodeClientMessageBSATN(w, msg); encErr != nil {
			return sdkerrors.NewCodecError("encode client message", encErr)
		}
		if w.Err() != nil {
			return sdkerrors.NewCodecError("encode client message", w.Err())
		}
		payload = w.Bytes()
	}
	if err != nil {
		return sdkerrors.NewCodecError("encode client message", err)
	}

	framed, err := encodeFrame(s.negotiatorSnapshot(), payload)
	if err != nil {
		return sdkerrors.NewCodecError("compress frame", err)
	}
	return tr.Send(framed)
}

func (s *Session) registerPending(id codec.RequestId) chan Result {
	ch := make(chan Result, 1)
	s.pendingMu.Lock()
	s.pending[id] = ch
	s.pendingMu.Unlock()
	return ch
}

func (s *Session) forgetPending(id codec.RequestId) {
	s.pendingMu.Lock()
	delete(s.pending, id)
	s.pendingMu.Unlock()
}

// Await blocks until the pending slot for requestID completes or ctx is
// done. It does not retract the frame already sent on cancellation.
func (s *Session) Await(ctx context.Context, requestID codec.RequestId, ch chan Result) (Result, error) {
	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		s.forgetPending(requestID)
		return Result{}, ctx.Err()
	case <-s.closed:
		return Result{Err: sdkerrors.NewConnectionTerminated()}, nil
	}
}

// CallReducer invokes a server-side reducer. It returns the request_id
// immediately and a channel the caller may Await for the matching
// TransactionUpdate.
func (s *Session) CallReducer(reducer string, argsBytes []byte, flags wire.Flags) (codec.RequestId, chan Result, error) {
	id := s.nextRequest()
	ch := s.registerPending(id)
	msg := wire.CallReducer{Reducer: reducer, ArgsBytes: argsBytes, RequestID: id, Flags: flags}
	if err := s.send(msg); err != nil {
		s.forgetPending(id)
		return id, nil, err
	}
	return id, ch, nil
}

// SubscribeSingle subscribes to a single query under a freshly allocated
// QueryId. Bare table names are expanded to SELECT * before send.
func (s *Session) SubscribeSingle(query string) (codec.RequestId, codec.QueryId, chan Result, error) {
	reqID := s.nextRequest()
	queryID := s.nextQuery()
	ch := s.registerPending(reqID)
	msg := wire.SubscribeSingle{Query: wire.RewriteBareTableName(query), RequestID: reqID, QueryID: queryID}
	if err := s.send(msg); err != nil {
		s.forgetPending(reqID)
		return reqID, queryID, nil, err
	}
	return reqID, queryID, ch, nil
}

// SubscribeMulti subscribes to several queries as one logical
// subscription under a freshly allocated QueryId.
func (s *Session) SubscribeMulti(queries []string) (codec.RequestId, codec.QueryId, chan Result, error) {
	reqID := s.nextRequest()
	queryID := s.nextQuery()
	ch := s.registerPending(reqID)
	msg := wire.SubscribeMulti{Queries: wire.RewriteBareTableNames(queries), RequestID: reqID, QueryID: queryID}
	if err := s.send(msg); err != nil {
		s.forgetPending(reqID)
		return reqID, queryID, nil, err
	}
	return reqID, queryID, ch, nil
}

// ResubscribeSingle reissues a SubscribeSingle for an existing QueryId
// under a fresh request_id, used by the Subscription Manager to replay
// durable subscriptions after reconnect.
func (s *Session) ResubscribeSingle(query string, queryID codec.QueryId) (codec.RequestId, chan Result, error) {
	reqID := s.nextRequest()
	ch := s.registerPending(reqID)
	msg := wire.SubscribeSingle{Query: wire.RewriteBareTableName(query), RequestID: reqID, QueryID: queryID}
	if err := s.send(msg); err != nil {
		s.forgetPending(reqID)
		return reqID, nil, err
	}
	return reqID, ch, nil
}

// ResubscribeMulti is ResubscribeSingle's multi-query counterpart.
func (s *Session) ResubscribeMulti(queries []string, queryID codec.QueryId) (codec.RequestId, chan Result, error) {
	reqID := s.nextRequest()
	ch := s.registerPending(reqID)
	msg := wire.SubscribeMulti{Queries: wire.RewriteBareTableNames(queries), RequestID: reqID, QueryID: queryID}
	if err := s.send(msg); err != nil {
		s.forgetPending(reqID)
		return reqID, nil, err
	}
	return reqID, ch, nil
}

// Unsubscribe cancels a single-query subscription.
func (s *Session) Unsubscribe(queryID codec.QueryId) (codec.RequestId, chan Result, error) {
	reqID := s.nextRequest()
	ch := s.registerPending(reqID)
	msg := wire.Unsubscribe{RequestID: reqID, QueryID: queryID}
	if err := s.send(msg); err != nil {
		s.forgetPending(reqID)
		return reqID, nil, err
	}
	return reqID, ch, nil
}

// UnsubscribeMulti cancels a multi-query subscription.
func (s *Session) UnsubscribeMulti(queryID codec.QueryId) (codec.RequestId, chan Result, error) {
	reqID := s.nextRequest()
	ch := s.registerPending(reqID)
	msg := wire.UnsubscribeMulti{RequestID: reqID, QueryID: queryID}
	if err := s.send(msg); err != nil {
		s.forgetPending(reqID)
		return reqID, nil, err
	}
	return reqID, ch, nil
}

// OneOffQuery runs an ad hoc SQL query outside any subscription. It
// returns the u128 message id immediately and a channel the caller may
// await for the response.
func (s *Session) OneOffQuery(queryString string) ([16]byte, chan OneOffResult, error) {
	var id [16]byte
	if _, err := rand.Read(id[:]); err != nil {
		return id, nil, sdkerrors.NewGenericConnectionError("generate one-off query id", err, "")
	}
	ch := make(chan OneOffResult, 1)
	s.pendingMu.Lock()
	s.pendingOneOff[id] = ch
	s.pendingMu.Unlock()

	msg := wire.OneOffQuery{MessageID: id, QueryString: wire.RewriteBareTableName(queryString)}
	if err := s.send(msg); err != nil {
		s.pendingMu.Lock()
		delete(s.pendingOneOff, id)
		s.pendingMu.Unlock()
		return id, nil, err
	}
	return id, ch, nil
}

// AwaitOneOff blocks until the one-off query completes or ctx is done.
func (s *Session) AwaitOneOff(ctx context.Context, id [16]byte, ch chan OneOffResult) (OneOffResult, error) {
	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		s.pendingMu.Lock()
		delete(s.pendingOneOff, id)
		s.pendingMu.Unlock()
		return OneOffResult{}, ctx.Err()
	case <-s.closed:
		return OneOffResult{Error: sdkerrors.NewConnectionTerminated().Error()}, nil
	}
}
