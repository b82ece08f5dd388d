package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"spacetimedb.com/client/pkg/codec"
	"spacetimedb.com/client/pkg/compression"
	"spacetimedb.com/client/pkg/session"
	"spacetimedb.com/client/pkg/wire"
)

func identityFrame(t *testing.T) []byte {
	w := codec.NewWriter()
	var identity codec.Identity
	identity[0] = 0x01
	var connID codec.ConnectionId
	connID[0] = 0x02
	require.NoError(t, wire.EncodeServerMessageBSATN(w, wire.IdentityToken{Identity: identity, Token: "tok", ConnectionID: connID}))
	require.NoError(t, w.Err())
	return append([]byte{byte(compression.None)}, w.Bytes()...)
}

func TestConnect_WiresSessionSubscriptionAndScheduler(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, identityFrame(t)))
		conn.ReadMessage()
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := Connect(ctx, Config{
		Host:                 host,
		Database:             "demo",
		HandshakeTimeout:     time.Second,
		MaxScheduledInFlight: 1,
	}, session.StaticToken("tok"), session.Handlers{})
	require.NoError(t, err)
	defer c.Close()

	require.Equal(t, session.Connected, c.Session.State())
	require.NotNil(t, c.Subscription)
	require.NotNil(t, c.Scheduler)
	require.Nil(t, c.Energy, "no EnergyMax configured, budget checks stay disabled")
}
