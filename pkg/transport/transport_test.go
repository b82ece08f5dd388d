package transport

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

	"spacetimedb.com/client/pkg/sdkerrors"
)

func echoServer(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

func TestTransport_SendAndReceive_EchoesInOrder(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	received := make(chan []byte, 8)
	tr, err := Open(context.Background(), Options{URL: url, HandshakeTimeout: time.Second}, func(frame []byte) {
		received <- frame
	}, func(err error) {})
	require.NoError(t, err)
	defer tr.Close(websocket.CloseNormalClosure, "")

	require.NoError(t, tr.Send([]byte("one")))
	require.NoError(t, tr.Send([]byte("two")))

	assert.Equal(t, []byte("one"), <-received)
	assert.Equal(t, []byte("two"), <-received)
}

func TestOpen_404HandshakeClassifiedAsGenericConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, err := Open(context.Background(), Options{URL: url, HandshakeTimeout: time.Second}, func([]byte) {}, func(error) {})
	require.Error(t, err)
	var generic *sdkerrors.GenericConnectionError
	assert.ErrorAs(t, err, &generic)
}
