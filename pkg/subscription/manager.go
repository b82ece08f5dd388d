package subscription

import (
	"context"
	"fmt"
	"sync"

	"spacetimedb.com/client/internal/logger"
	"spacetimedb.com/client/pkg/codec"
	"spacetimedb.com/client/pkg/session"
	"spacetimedb.com/client/pkg/wire"
)

// sessionHandle is the subset of *session.Session the Manager depends
// on, narrowed for testability.
type sessionHandle interface {
	SubscribeSingle(query string) (codec.RequestId, codec.QueryId, chan session.Result, error)
	SubscribeMulti(queries []string) (codec.RequestId, codec.QueryId, chan session.Result, error)
	ResubscribeSingle(query string, queryID codec.QueryId) (codec.RequestId, chan session.Result, error)
	ResubscribeMulti(queries []string, queryID codec.QueryId) (codec.RequestId, chan session.Result, error)
	Unsubscribe(queryID codec.QueryId) (codec.RequestId, chan session.Result, error)
	UnsubscribeMulti(queryID codec.QueryId) (codec.RequestId, chan session.Result, error)
}

// Manager owns every Subscription created against one Session. It
// implements session.SubscriptionSink and is wired in via
// Session.SetSubscriptionSink.
type Manager struct {
	sess sessionHandle

	mu        sync.Mutex
	byQuery   map[codec.QueryId]*Subscription
	byRequest map[codec.RequestId]*Subscription
}

// NewManager creates a Manager and attaches it to sess as its
// SubscriptionSink.
func NewManager(sess *session.Session) *Manager {
	mgr := &Manager{
		sess:      sess,
		byQuery:   make(map[codec.QueryId]*Subscription),
		byRequest: make(map[codec.RequestId]*Subscription),
	}
	sess.SetSubscriptionSink(mgr)
	return mgr
}

// SubscribeSingle registers a single-query subscription and sends it
// immediately. The returned Subscription starts Pending.
func (mgr *Manager) SubscribeSingle(query string, durable bool, cb Callbacks) (*Subscription, error) {
	reqID, queryID, _, err := mgr.sess.SubscribeSingle(query)
	if err != nil {
		return nil, err
	}
	sub := newSubscription(queryID, []string{query}, durable, cb)
	mgr.index(reqID, sub)
	return sub, nil
}

// SubscribeMulti registers a multi-query subscription under one QueryId.
func (mgr *Manager) SubscribeMulti(queries []string, durable bool, cb Callbacks) (*Subscription, error) {
	reqID, queryID, _, err := mgr.sess.SubscribeMulti(queries)
	if err != nil {
		return nil, err
	}
	sub := newSubscription(queryID, queries, durable, cb)
	mgr.index(reqID, sub)
	return sub, nil
}

// Unsubscribe cancels sub. Local bookkeeping is released when the
// server's acknowledgment arrives, not immediately.
func (mgr *Manager) Unsubscribe(sub *Subscription) error {
	var reqID codec.RequestId
	var err error
	if len(sub.Queries) > 1 {
		reqID, _, err = mgr.sess.UnsubscribeMulti(sub.QueryID)
	} else {
		reqID, _, err = mgr.sess.Unsubscribe(sub.QueryID)
	}
	if err != nil {
		return err
	}
	mgr.mu.Lock()
	mgr.byRequest[reqID] = sub
	mgr.mu.Unlock()
	return nil
}

// Get looks up a Subscription by QueryId.
func (mgr *Manager) Get(queryID codec.QueryId) (*Subscription, bool) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	sub, ok := mgr.byQuery[queryID]
	return sub, ok
}

func (mgr *Manager) index(reqID codec.RequestId, sub *Subscription) {
	mgr.mu.Lock()
	mgr.byQuery[sub.QueryID] = sub
	mgr.byRequest[reqID] = sub
	mgr.mu.Unlock()
}

func (mgr *Manager) takeByRequest(reqID codec.RequestId) (*Subscription, bool) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	sub, ok := mgr.byRequest[reqID]
	if ok {
		delete(mgr.byRequest, reqID)
	}
	return sub, ok
}

func (mgr *Manager) forget(queryID codec.QueryId) {
	mgr.mu.Lock()
	delete(mgr.byQuery, queryID)
	mgr.mu.Unlock()
}

// HandleInitialSubscription is a no-op here: legacy Subscribe's result
// lands on the caller's pending-request Result, not through a
// Subscription handle.
func (mgr *Manager) HandleInitialSubscription(wire.InitialSubscription) {}

func (mgr *Manager) HandleSubscribeApplied(m wire.SubscribeApplied) {
	sub, ok := mgr.resolve(m.RequestID, m.QueryID)
	if !ok {
		logger.Warn("subscription: SubscribeApplied for unknown query", "query_id", m.QueryID)
		return
	}
	du := wire.DatabaseUpdate{Tables: []wire.TableUpdate{{TableID: m.TableID, TableName: m.TableName, Inserts: m.TableRows}}}
	sub.markApplied(du)
}

func (mgr *Manager) HandleSubscribeMultiApplied(m wire.SubscribeMultiApplied) {
	sub, ok := mgr.resolve(m.RequestID, m.QueryID)
	if !ok {
		logger.Warn("subscription: SubscribeMultiApplied for unknown query", "query_id", m.QueryID)
		return
	}
	sub.markApplied(m.Update)
}

func (mgr *Manager) HandleUnsubscribeApplied(m wire.UnsubscribeApplied) {
	mgr.releaseOnUnsubscribe(m.RequestID, m.QueryID)
}

func (mgr *Manager) HandleUnsubscribeMultiApplied(m wire.UnsubscribeMultiApplied) {
	mgr.releaseOnUnsubscribe(m.RequestID, m.QueryID)
}

func (mgr *Manager) releaseOnUnsubscribe(reqID codec.RequestId, queryID codec.QueryId) {
	sub, ok := mgr.resolve(reqID, queryID)
	if !ok {
		return
	}
	mgr.forget(sub.QueryID)
	sub.end()
}

func (mgr *Manager) HandleSubscriptionError(m wire.SubscriptionError) {
	err := fmt.Errorf("subscription error: %s", m.Error)
	if m.QueryID == nil {
		mgr.broadcastPending(err)
		return
	}
	sub, ok := mgr.Get(*m.QueryID)
	if !ok {
		return
	}
	mgr.forget(sub.QueryID)
	sub.fail(err)
}

func (mgr *Manager) broadcastPending(err error) {
	mgr.mu.Lock()
	pending := make([]*Subscription, 0, len(mgr.byQuery))
	for _, sub := range mgr.byQuery {
		if sub.Status() == Pending {
			pending = append(pending, sub)
		}
	}
	mgr.mu.Unlock()
	for _, sub := range pending {
		mgr.forget(sub.QueryID)
		sub.fail(err)
	}
}

func (mgr *Manager) HandleTransactionUpdate(m wire.TransactionUpdate) {
	if m.Status.Update == nil {
		return
	}
	mgr.routeUpdate(*m.Status.Update)
}

func (mgr *Manager) HandleTransactionUpdateLight(m wire.TransactionUpdateLight) {
	mgr.routeUpdate(m.Update)
}

// routeUpdate delivers du, split per Subscription, to every Subscription
// whose tracked table set intersects it.
func (mgr *Manager) routeUpdate(du wire.DatabaseUpdate) {
	mgr.mu.Lock()
	subs := make([]*Subscription, 0, len(mgr.byQuery))
	for _, sub := range mgr.byQuery {
		subs = append(subs, sub)
	}
	mgr.mu.Unlock()

	for _, sub := range subs {
		if sub.hasAnyTable(du) {
			sub.deliverOrBuffer(filterTables(du, sub))
		}
	}
}

func filterTables(du wire.DatabaseUpdate, sub *Subscription) wire.DatabaseUpdate {
	filtered := wire.DatabaseUpdate{Tables: make([]wire.TableUpdate, 0, len(du.Tables))}
	for _, t := range du.Tables {
		if sub.tracksTable(t.TableName) {
			filtered.Tables = append(filtered.Tables, t)
		}
	}
	return filtered
}

// resolve looks a Subscription up first by request_id (and consumes that
// correlation), falling back to QueryId so late or duplicate acks still
// land.
func (mgr *Manager) resolve(reqID codec.RequestId, queryID codec.QueryId) (*Subscription, bool) {
	if sub, ok := mgr.takeByRequest(reqID); ok {
		return sub, true
	}
	return mgr.Get(queryID)
}

// Reapply replays every durable Subscription under fresh request_ids,
// keeping QueryIds stable, after a reconnect. Non-durable subscriptions
// do not survive a reconnect: they are marked Errored and dropped.
func (mgr *Manager) Reapply(ctx context.Context) {
	mgr.mu.Lock()
	subs := make([]*Subscription, 0, len(mgr.byQuery))
	for _, sub := range mgr.byQuery {
		subs = append(subs, sub)
	}
	mgr.mu.Unlock()

	for _, sub := range subs {
		if !sub.Durable {
			mgr.forget(sub.QueryID)
			sub.fail(fmt.Errorf("subscription: connection reset, non-durable subscription dropped"))
			continue
		}
		sub.markPendingForReapply()

		var reqID codec.RequestId
		var err error
		if len(sub.Queries) > 1 {
			reqID, _, err = mgr.sess.ResubscribeMulti(sub.Queries, sub.QueryID)
		} else {
			reqID, _, err = mgr.sess.ResubscribeSingle(sub.Queries[0], sub.QueryID)
		}
		if err != nil {
			logger.Error("subscription: reapply failed", "query_id", sub.QueryID, "error", err)
			mgr.forget(sub.QueryID)
			sub.fail(err)
			continue
		}
		mgr.mu.Lock()
		mgr.byRequest[reqID] = sub
		mgr.mu.Unlock()
	}
}
