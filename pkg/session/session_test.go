package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spacetimedb.com/client/pkg/codec"
	"spacetimedb.com/client/pkg/compression"
	"spacetimedb.com/client/pkg/sdkerrors"
	"spacetimedb.com/client/pkg/transport"
	"spacetimedb.com/client/pkg/wire"
)

// scriptedServer upgrades one WebSocket connection and runs script against
// it: script is handed the raw connection and decides what to send/expect.
func scriptedServer(t *testing.T, script func(conn *websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		script(conn)
	}))
}

func frameBytes(t *testing.T, msg wire.ServerMessage) []byte {
	w := codec.NewWriter()
	require.NoError(t, wire.EncodeServerMessageBSATN(w, msg))
	require.NoError(t, w.Err())
	body := w.Bytes()
	return append([]byte{byte(compression.None)}, body...)
}

func dialFuncFor(url string) DialFunc {
	return func(ctx context.Context, token string, offered []compression.Algorithm, onInbound transport.InboundHandler, onError transport.ErrorHandler) (*transport.Transport, compression.Algorithm, error) {
		tr, err := transport.Open(ctx, transport.Options{URL: url, HandshakeTimeout: time.Second}, onInbound, onError)
		return tr, compression.None, err
	}
}

func TestSession_ConnectCompletesOnIdentityToken(t *testing.T) {
	var identity codec.Identity
	identity[0] = 0xAB
	var connID codec.ConnectionId
	connID[0] = 0xCD

	srv := scriptedServer(t, func(conn *websocket.Conn) {
		frame := frameBytes(t, wire.IdentityToken{Identity: identity, Token: "tok", ConnectionID: connID})
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frame))
		conn.ReadMessage()
	})
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	sess := New(Options{HandshakeTimeout: time.Second}, Collaborators{}, Handlers{}, dialFuncFor(url))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sess.Connect(ctx))
	defer sess.Close()

	assert.Equal(t, Connected, sess.State())
	gotIdentity, gotConnID, ok := sess.Identity()
	require.True(t, ok)
	assert.Equal(t, identity, gotIdentity)
	assert.Equal(t, connID, gotConnID)
}

func TestSession_CallReducer_CompletesOnMatchingTransactionUpdate(t *testing.T) {
	srv := scriptedServer(t, func(conn *websocket.Conn) {
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frameBytes(t, wire.IdentityToken{})))

		_, _, err := conn.ReadMessage()
		require.NoError(t, err)

		update := wire.TransactionUpdate{
			Status:       wire.UpdateStatus{Kind: wire.StatusCommitted, Update: &wire.DatabaseUpdate{}},
			ReducerCall:  wire.ReducerCallInfo{Name: "my_reducer", RequestID: 1},
		}
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frameBytes(t, update)))
		conn.ReadMessage()
	})
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	var received wire.TransactionUpdate
	done := make(chan struct{})
	sess := New(Options{HandshakeTimeout: time.Second}, Collaborators{}, Handlers{
		OnTransactionUpdate: func(u wire.TransactionUpdate) {
			received = u
			close(done)
		},
	}, dialFuncFor(url))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sess.Connect(ctx))
	defer sess.Close()

	_, _, err := sess.CallReducer("my_reducer", nil, wire.FullUpdate)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transaction update")
	}
	assert.Equal(t, "my_reducer", received.ReducerCall.Name)
	assert.Equal(t, wire.StatusCommitted, received.Status.Kind)
}

func TestSession_OutboundCallBeforeConnectFailsNotConnected(t *testing.T) {
	sess := New(Options{}, Collaborators{}, Handlers{}, nil)
	_, _, err := sess.CallReducer("x", nil, wire.FullUpdate)
	require.Error(t, err)
	var notConnected *sdkerrors.NotConnectedError
	assert.ErrorAs(t, err, &notConnected)
}

func TestSession_CloseFailsAllPendingSlots(t *testing.T) {
	srv := scriptedServer(t, func(conn *websocket.Conn) {
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frameBytes(t, wire.IdentityToken{})))
		conn.ReadMessage()
	})
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	sess := New(Options{HandshakeTimeout: time.Second}, Collaborators{}, Handlers{}, dialFuncFor(url))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sess.Connect(ctx))

	_, ch, err := sess.CallReducer("x", nil, wire.FullUpdate)
	require.NoError(t, err)

	require.NoError(t, sess.Close())

	select {
	case res := <-ch:
		require.Error(t, res.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("pending slot never completed")
	}
}

func TestSession_RequestIDsAreMonotonic(t *testing.T) {
	srv := scriptedServer(t, func(conn *websocket.Conn) {
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frameBytes(t, wire.IdentityToken{})))
		for i := 0; i < 2; i++ {
			conn.ReadMessage()
		}
	})
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	sess := New(Options{HandshakeTimeout: time.Second}, Collaborators{}, Handlers{}, dialFuncFor(url))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sess.Connect(ctx))
	defer sess.Close()

	id1, _, err := sess.CallReducer("a", nil, wire.FullUpdate)
	require.NoError(t, err)
	id2, _, err := sess.CallReducer("b", nil, wire.FullUpdate)
	require.NoError(t, err)
	assert.Less(t, uint32(id1), uint32(id2))
}
