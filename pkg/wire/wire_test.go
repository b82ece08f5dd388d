package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spacetimedb.com/client/pkg/codec"
)

func TestClientMessage_CallReducer_RoundTripsBSATN(t *testing.T) {
	msg := CallReducer{Reducer: "create_user", ArgsBytes: []byte{1, 2, 3}, RequestID: 7, Flags: FullUpdate}

	w := codec.NewWriter()
	require.NoError(t, EncodeClientMessageBSATN(w, msg))
	require.NoError(t, w.Err())

	r := codec.NewReader(w.Bytes())
	variant, err := r.ReadEnumHeader()
	require.NoError(t, err)
	assert.Equal(t, TagCallReducer, variant)
}

func TestServerMessage_IdentityToken_RoundTripsBSATN(t *testing.T) {
	var id codec.Identity
	id[0] = 0xAB
	var conn codec.ConnectionId
	conn[0] = 0x11

	msg := IdentityToken{Identity: id, Token: "tok", ConnectionID: conn}
	w := codec.NewWriter()
	require.NoError(t, EncodeServerMessageBSATN(w, msg))
	require.NoError(t, w.Err())

	r := codec.NewReader(w.Bytes())
	decoded, err := DecodeServerMessageBSATN(r)
	require.NoError(t, err)
	got, ok := decoded.(IdentityToken)
	require.True(t, ok)
	assert.Equal(t, msg, got)
}

func TestServerMessage_TransactionUpdate_PreservesStructuredStatus(t *testing.T) {
	msg := TransactionUpdate{
		Status:             UpdateStatus{Kind: StatusFailed, FailMessage: "out of budget"},
		Timestamp:          1234,
		ReducerCall:        ReducerCallInfo{Name: "create_user", ID: 1, RequestID: 5},
		EnergyQuantaUsed:   42,
		TotalHostExecutionDuration: 3 * time.Millisecond,
	}

	w := codec.NewWriter()
	require.NoError(t, EncodeServerMessageBSATN(w, msg))

	r := codec.NewReader(w.Bytes())
	decoded, err := DecodeServerMessageBSATN(r)
	require.NoError(t, err)
	got, ok := decoded.(TransactionUpdate)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, got.Status.Kind)
	assert.Equal(t, "out of budget", got.Status.FailMessage)
	assert.Equal(t, msg.ReducerCall, got.ReducerCall)
}

func TestDecode_SkipsUnknownStructFields(t *testing.T) {
	w := codec.NewWriter()
	require.NoError(t, w.WriteEnumHeader(TagIdentityToken))
	require.NoError(t, w.WriteStructHeader(4))
	require.NoError(t, w.WriteFieldName("identity"))
	var id codec.Identity
	require.NoError(t, w.WriteIdentity(id))
	require.NoError(t, w.WriteFieldName("future_field"))
	require.NoError(t, w.WriteString("server added this later"))
	require.NoError(t, w.WriteFieldName("token"))
	require.NoError(t, w.WriteString("tok"))
	require.NoError(t, w.WriteFieldName("connection_id"))
	var conn codec.ConnectionId
	require.NoError(t, w.WriteConnectionId(conn))

	r := codec.NewReader(w.Bytes())
	decoded, err := DecodeServerMessageBSATN(r)
	require.NoError(t, err)
	got, ok := decoded.(IdentityToken)
	require.True(t, ok)
	assert.Equal(t, "tok", got.Token)
	assert.Equal(t, 0, r.Remaining())
}

func TestRewriteBareTableName(t *testing.T) {
	assert.Equal(t, "SELECT * FROM users", RewriteBareTableName("users"))
	assert.Equal(t, "SELECT * FROM users WHERE id = 1", RewriteBareTableName("SELECT * FROM users WHERE id = 1"))
}

func TestBuildConnectURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:3000/v1/database/demo/subscribe", BuildConnectURL("localhost:3000", "demo", false, ""))
	assert.Equal(t, "wss://cloud.spacetimedb.com/v1/database/demo/subscribe?db_identity=abc", BuildConnectURL("cloud.spacetimedb.com", "demo", true, "abc"))
}

func TestEncodeClientMessageJSON_TagsEnvelopeByVariant(t *testing.T) {
	data, err := EncodeClientMessageJSON(SubscribeSingle{Query: "SELECT * FROM users", RequestID: 3, QueryID: 9})
	require.NoError(t, err)
	assert.Contains(t, string(data), "SubscribeSingle")
}

func TestDecodeServerMessageJSON_PreservesStructuredStatus(t *testing.T) {
	data := []byte(`{"TransactionUpdate":{"status":{"kind":"failed","fail_message":"boom"},"timestamp":1,"caller_identity":[0],"caller_connection_id":[0],"reducer_call":{"name":"f","id":1,"args":null,"request_id":1},"energy_quanta_used":1,"total_host_execution_duration":0}}`)
	decoded, err := DecodeServerMessageJSON(data)
	require.NoError(t, err)
	got, ok := decoded.(TransactionUpdate)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, got.Status.Kind)
	assert.Equal(t, "boom", got.Status.FailMessage)
}
