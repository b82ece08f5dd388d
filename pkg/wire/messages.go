// Package wire defines the client/server message variants exchanged over a
// Session's frame transport, and their BSATN encodings. JSON framing uses
// the same Go structs via their struct tags; see json.go.
package wire

import (
	"time"

	"spacetimedb.com/client/pkg/codec"
)

// Flags controls whether a successful CallReducer still notifies the
// caller via a TransactionUpdate.
type Flags uint8

const (
	FullUpdate      Flags = 0
	NoSuccessNotify Flags = 1
)

// Client-to-server message variant indices, used as the BSATN enum tag.
const (
	TagCallReducer uint32 = iota
	TagSubscribe
	TagSubscribeSingle
	TagSubscribeMulti
	TagUnsubscribe
	TagUnsubscribeMulti
	TagOneOffQuery
)

// Server-to-client message variant indices.
const (
	TagIdentityToken uint32 = iota
	TagInitialSubscription
	TagTransactionUpdate
	TagTransactionUpdateLight
	TagSubscribeApplied
	TagUnsubscribeApplied
	TagSubscriptionError
	TagSubscribeMultiApplied
	TagUnsubscribeMultiApplied
	TagOneOffQueryResponse
)

// ClientMessage is implemented by every client-to-server variant.
type ClientMessage interface {
	clientTag() uint32
	encodeFields(w *codec.Writer) error
}

// CallReducer invokes a server-side reducer by name.
type CallReducer struct {
	Reducer   string          `json:"reducer"`
	ArgsBytes []byte          `json:"args_bytes"`
	RequestID codec.RequestId `json:"request_id"`
	Flags     Flags           `json:"flags"`
}

func (CallReducer) clientTag() uint32 { return TagCallReducer }

func (m CallReducer) encodeFields(w *codec.Writer) error {
	return writeStruct(w, 4, func(f *fieldWriter) {
		f.str("reducer", m.Reducer)
		f.bytes("args_bytes", m.ArgsBytes)
		f.u32("request_id", uint32(m.RequestID))
		f.u8("flags", uint8(m.Flags))
	})
}

// Subscribe subscribes to a set of queries under a single request (legacy
// multi-query form without a QueryId, retained for wire compatibility).
type Subscribe struct {
	Queries   []string        `json:"queries"`
	RequestID codec.RequestId `json:"request_id"`
}

func (Subscribe) clientTag() uint32 { return TagSubscribe }

func (m Subscribe) encodeFields(w *codec.Writer) error {
	return writeStruct(w, 2, func(f *fieldWriter) {
		f.strList("queries", m.Queries)
		f.u32("request_id", uint32(m.RequestID))
	})
}

// SubscribeSingle subscribes to a single query under a fresh QueryId.
type SubscribeSingle struct {
	Query     string          `json:"query"`
	RequestID codec.RequestId `json:"request_id"`
	QueryID   codec.QueryId   `json:"query_id"`
}

func (SubscribeSingle) clientTag() uint32 { return TagSubscribeSingle }

func (m SubscribeSingle) encodeFields(w *codec.Writer) error {
	return writeStruct(w, 3, func(f *fieldWriter) {
		f.str("query", m.Query)
		f.u32("request_id", uint32(m.RequestID))
		f.u32("query_id", uint32(m.QueryID))
	})
}

// SubscribeMulti subscribes to several queries as one logical subscription.
type SubscribeMulti struct {
	Queries   []string        `json:"queries"`
	RequestID codec.RequestId `json:"request_id"`
	QueryID   codec.QueryId   `json:"query_id"`
}

func (SubscribeMulti) clientTag() uint32 { return TagSubscribeMulti }

func (m SubscribeMulti) encodeFields(w *codec.Writer) error {
	return writeStruct(w, 3, func(f *fieldWriter) {
		f.strList("queries", m.Queries)
		f.u32("request_id", uint32(m.RequestID))
		f.u32("query_id", uint32(m.QueryID))
	})
}

// Unsubscribe cancels a single-query subscription.
type Unsubscribe struct {
	RequestID codec.RequestId `json:"request_id"`
	QueryID   codec.QueryId   `json:"query_id"`
}

func (Unsubscribe) clientTag() uint32 { return TagUnsubscribe }

func (m Unsubscribe) encodeFields(w *codec.Writer) error {
	return writeStruct(w, 2, func(f *fieldWriter) {
		f.u32("request_id", uint32(m.RequestID))
		f.u32("query_id", uint32(m.QueryID))
	})
}

// UnsubscribeMulti cancels a multi-query subscription.
type UnsubscribeMulti struct {
	RequestID codec.RequestId `json:"request_id"`
	QueryID   codec.QueryId   `json:"query_id"`
}

func (UnsubscribeMulti) clientTag() uint32 { return TagUnsubscribeMulti }

func (m UnsubscribeMulti) encodeFields(w *codec.Writer) error {
	return writeStruct(w, 2, func(f *fieldWriter) {
		f.u32("request_id", uint32(m.RequestID))
		f.u32("query_id", uint32(m.QueryID))
	})
}

// OneOffQuery runs a single ad hoc SQL query outside any subscription.
type OneOffQuery struct {
	MessageID   [16]byte `json:"message_id"`
	QueryString string   `json:"query_string"`
}

func (OneOffQuery) clientTag() uint32 { return TagOneOffQuery }

func (m OneOffQuery) encodeFields(w *codec.Writer) error {
	return writeStruct(w, 2, func(f *fieldWriter) {
		f.bytes("message_id", m.MessageID[:])
		f.str("query_string", m.QueryString)
	})
}

// EncodeClientMessageBSATN writes msg's enum tag followed by its fields.
func EncodeClientMessageBSATN(w *codec.Writer, msg ClientMessage) error {
	if err := w.WriteEnumHeader(msg.clientTag()); err != nil {
		return err
	}
	return msg.encodeFields(w)
}

// TableUpdate carries a table's row deltas for one transaction or
// subscription result set. Rows are opaque BSATN- or JSON-encoded payloads
// interpreted by the caller's generated row type.
type TableUpdate struct {
	TableID   uint32   `json:"table_id"`
	TableName string   `json:"table_name"`
	Inserts   [][]byte `json:"inserts"`
	Deletes   [][]byte `json:"deletes"`
}

// DatabaseUpdate is the set of per-table deltas committed by one
// transaction or delivered as a subscription's initial result set.
type DatabaseUpdate struct {
	Tables []TableUpdate `json:"tables"`
}

// UpdateStatusKind closes the sum type the reference SDK's JSON decoder
// otherwise collapses into a bare string.
type UpdateStatusKind string

const (
	StatusCommitted   UpdateStatusKind = "committed"
	StatusFailed      UpdateStatusKind = "failed"
	StatusOutOfEnergy UpdateStatusKind = "out_of_energy"
)

// UpdateStatus is TransactionUpdate's outcome, preserved as a tagged
// variant rather than a bare string.
type UpdateStatus struct {
	Kind        UpdateStatusKind `json:"kind"`
	Update      *DatabaseUpdate  `json:"update,omitempty"`
	FailMessage string           `json:"fail_message,omitempty"`
}

// ReducerCallInfo identifies the reducer invocation a TransactionUpdate
// reports on.
type ReducerCallInfo struct {
	Name      string          `json:"name"`
	ID        uint32          `json:"id"`
	Args      []byte          `json:"args"`
	RequestID codec.RequestId `json:"request_id"`
}

// IdentityToken is the handshake-completing frame: it carries the
// server-assigned identity and connection id.
type IdentityToken struct {
	Identity     codec.Identity     `json:"identity"`
	Token        string             `json:"token"`
	ConnectionID codec.ConnectionId `json:"connection_id"`
}

func (IdentityToken) serverTag() uint32 { return TagIdentityToken }

// InitialSubscription carries the first result set for a legacy Subscribe.
type InitialSubscription struct {
	DatabaseUpdate              DatabaseUpdate  `json:"database_update"`
	RequestID                   codec.RequestId `json:"request_id"`
	TotalHostExecutionDuration  time.Duration   `json:"total_host_execution_duration"`
}

func (InitialSubscription) serverTag() uint32 { return TagInitialSubscription }

// TransactionUpdate reports a committed (or failed) server-side transaction.
type TransactionUpdate struct {
	Status                      UpdateStatus         `json:"status"`
	Timestamp                   int64                `json:"timestamp"`
	CallerIdentity              codec.Identity       `json:"caller_identity"`
	CallerConnectionID          codec.ConnectionId   `json:"caller_connection_id"`
	ReducerCall                 ReducerCallInfo      `json:"reducer_call"`
	EnergyQuantaUsed            codec.EnergyQuanta   `json:"energy_quanta_used"`
	TotalHostExecutionDuration  time.Duration        `json:"total_host_execution_duration"`
}

func (TransactionUpdate) serverTag() uint32 { return TagTransactionUpdate }

// TransactionUpdateLight is a reduced-payload transaction notice carrying
// only the affected rows, with no reducer-call metadata.
type TransactionUpdateLight struct {
	RequestID codec.RequestId `json:"request_id"`
	Update    DatabaseUpdate  `json:"update"`
}

func (TransactionUpdateLight) serverTag() uint32 { return TagTransactionUpdateLight }

// SubscribeApplied acknowledges a SubscribeSingle, delivering its initial
// rows.
type SubscribeApplied struct {
	RequestID      codec.RequestId `json:"request_id"`
	DurationMicros int64           `json:"duration_micros"`
	QueryID        codec.QueryId   `json:"query_id"`
	TableID        uint32          `json:"table_id"`
	TableName      string          `json:"table_name"`
	TableRows      [][]byte        `json:"table_rows"`
}

func (SubscribeApplied) serverTag() uint32 { return TagSubscribeApplied }

// UnsubscribeApplied acknowledges an Unsubscribe, in the same shape as
// SubscribeApplied.
type UnsubscribeApplied SubscribeApplied

func (UnsubscribeApplied) serverTag() uint32 { return TagUnsubscribeApplied }

// SubscriptionError reports a subscription-scoped failure. RequestID,
// QueryID, and TableID are optional: a nil QueryID means the error is
// broadcast to every Pending subscription.
type SubscriptionError struct {
	DurationMicros int64            `json:"duration_micros"`
	RequestID      *codec.RequestId `json:"request_id,omitempty"`
	QueryID        *codec.QueryId   `json:"query_id,omitempty"`
	TableID        *uint32          `json:"table_id,omitempty"`
	Error          string           `json:"error"`
}

func (SubscriptionError) serverTag() uint32 { return TagSubscriptionError }

// SubscribeMultiApplied acknowledges a SubscribeMulti, delivering its
// initial result set across all member tables.
type SubscribeMultiApplied struct {
	RequestID      codec.RequestId `json:"request_id"`
	DurationMicros int64           `json:"duration_micros"`
	QueryID        codec.QueryId   `json:"query_id"`
	Update         DatabaseUpdate  `json:"update"`
}

func (SubscribeMultiApplied) serverTag() uint32 { return TagSubscribeMultiApplied }

// UnsubscribeMultiApplied acknowledges an UnsubscribeMulti.
type UnsubscribeMultiApplied SubscribeMultiApplied

func (UnsubscribeMultiApplied) serverTag() uint32 { return TagUnsubscribeMultiApplied }

// OneOffQueryResponse answers an OneOffQuery by its message id.
type OneOffQueryResponse struct {
	MessageID                   [16]byte      `json:"message_id"`
	Error                       string        `json:"error,omitempty"`
	Tables                      []TableUpdate `json:"tables"`
	TotalHostExecutionDuration  time.Duration `json:"total_host_execution_duration"`
}

func (OneOffQueryResponse) serverTag() uint32 { return TagOneOffQueryResponse }

// ServerMessage is implemented by every server-to-client variant.
type ServerMessage interface {
	serverTag() uint32
}
