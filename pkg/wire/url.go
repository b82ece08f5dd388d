package wire

import (
	"encoding/base64"
	"fmt"
	"net/url"
)

// Subprotocol selects the wire encoding negotiated during the WebSocket
// handshake.
type Subprotocol string

const (
	SubprotocolBSATN Subprotocol = "v1.bsatn.spacetimedb"
	SubprotocolJSON  Subprotocol = "v1.json.spacetimedb"
)

// BuildConnectURL constructs the subscribe endpoint URL for a database,
// optionally scoping to a specific db_identity.
func BuildConnectURL(host, database string, secure bool, dbIdentity string) string {
	scheme := "ws"
	if secure {
		scheme = "wss"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   host,
		Path:   fmt.Sprintf("/v1/database/%s/subscribe", database),
	}
	if dbIdentity != "" {
		q := u.Query()
		q.Set("db_identity", dbIdentity)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// BasicAuthHeader builds the HTTP Authorization header value for a bearer
// token, encoded as Basic base64("token:<token>").
func BasicAuthHeader(token string) string {
	if token == "" {
		return ""
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte("token:"+token))
}
