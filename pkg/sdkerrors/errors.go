// Package sdkerrors implements the closed error taxonomy every error
// surfaced across a Session boundary belongs to. Each concrete type carries
// a human message, a stable error code, a diagnostic map, and a remediation
// hint, matching the corpus's %w-wrapping discipline.
package sdkerrors

import "fmt"

// ConnectionError is the common interface implemented by every error kind
// in this package.
type ConnectionError interface {
	error
	Code() string
	Diagnostics() map[string]string
	Hint() string
	Unwrap() error
}

// base carries the fields shared by every concrete error kind.
type base struct {
	message     string
	code        string
	diagnostics map[string]string
	hint        string
	cause       error
}

func (b *base) Error() string {
	if b.cause != nil {
		return fmt.Sprintf("%s: %v", b.message, b.cause)
	}
	return b.message
}

func (b *base) Code() string                     { return b.code }
func (b *base) Diagnostics() map[string]string    { return b.diagnostics }
func (b *base) Hint() string                      { return b.hint }
func (b *base) Unwrap() error                     { return b.cause }

// Retryable is implemented by error kinds the retry classifier of
// pkg/retrypolicy accepts as transient.
type Retryable interface {
	ConnectionError
	retryable()
}

type retryableBase struct{ base }

func (*retryableBase) retryable() {}

// ServerNotAvailableError: host unreachable or HTTP health probe failed.
type ServerNotAvailableError struct{ retryableBase }

func NewServerNotAvailable(address, reason string, diagnostics map[string]string) *ServerNotAvailableError {
	return &ServerNotAvailableError{retryableBase{base{
		message:     fmt.Sprintf("cannot reach server at %q: %s", address, reason),
		code:        "SERVER_NOT_AVAILABLE",
		diagnostics: merge(diagnostics, map[string]string{"address": address, "reason": reason}),
		hint:        fmt.Sprintf("verify the server is running and try: curl http://%s/health", address),
	}}}
}

// ConnectionTimeoutError: an operation exceeded its timeout.
type ConnectionTimeoutError struct{ retryableBase }

func NewConnectionTimeout(operation string, timeout string) *ConnectionTimeoutError {
	return &ConnectionTimeoutError{retryableBase{base{
		message:     fmt.Sprintf("timed out during %s (timeout %s)", operation, timeout),
		code:        "CONNECTION_TIMEOUT",
		diagnostics: map[string]string{"operation": operation, "timeout": timeout},
		hint:        "increase the timeout or check network/server load",
	}}}
}

// TransportError: an open frame transport failed and must be replaced.
type TransportError struct{ retryableBase }

func NewTransportError(cause error) *TransportError {
	e := &TransportError{retryableBase{base{
		message: "transport failed",
		code:    "TRANSPORT_ERROR",
		cause:   cause,
	}}}
	return e
}

// RefusedConnectionError: the peer actively refused the TCP connection.
type RefusedConnectionError struct{ retryableBase }

func NewRefusedConnection(address string, cause error) *RefusedConnectionError {
	return &RefusedConnectionError{retryableBase{base{
		message:     fmt.Sprintf("connection refused by %q", address),
		code:        "CONNECTION_REFUSED",
		diagnostics: map[string]string{"address": address},
		hint:        "verify the host:port is correct and the server is listening",
		cause:       cause,
	}}}
}

// WebSocketHandshakeError: non-404, non-auth handshake failure.
type WebSocketHandshakeError struct {
	base
	StatusCode int
	URL        string
	Headers    map[string]string
}

func NewWebSocketHandshakeError(statusCode int, statusMessage, url string, headers map[string]string) *WebSocketHandshakeError {
	return &WebSocketHandshakeError{
		base: base{
			message:     fmt.Sprintf("websocket handshake failed: %d %s", statusCode, statusMessage),
			code:        fmt.Sprintf("WS_HANDSHAKE_%d", statusCode),
			diagnostics: map[string]string{"url": url, "status_message": statusMessage},
			hint:        "check connection parameters and server status",
		},
		StatusCode: statusCode,
		URL:        url,
		Headers:    headers,
	}
}

// DatabaseNotFoundError: 404 and diagnostics say the name does not exist.
type DatabaseNotFoundError struct {
	base
	Database string
}

func NewDatabaseNotFound(database string, hint string) *DatabaseNotFoundError {
	if hint == "" {
		hint = fmt.Sprintf("spacetime publish %s --clear-database, or verify the database name", database)
	}
	return &DatabaseNotFoundError{
		base: base{
			message:     fmt.Sprintf("database %q not found", database),
			code:        "DB_NOT_FOUND",
			diagnostics: map[string]string{"database": database},
			hint:        hint,
		},
		Database: database,
	}
}

// DatabaseNotPublishedError: 404 and diagnostics say the name likely exists
// but is unpublished.
type DatabaseNotPublishedError struct {
	base
	Database string
}

func NewDatabaseNotPublished(database, host string) *DatabaseNotPublishedError {
	return &DatabaseNotPublishedError{
		base: base{
			message:     fmt.Sprintf("database %q not found on %s", database, host),
			code:        "DB_NOT_PUBLISHED",
			diagnostics: map[string]string{"database": database, "host": host},
			hint:        fmt.Sprintf("run 'spacetime publish %s' to publish your database", database),
		},
		Database: database,
	}
}

// AuthenticationError: 401/403, distinguishing expired tokens from bad
// credentials.
type AuthenticationError struct {
	base
	TokenExpired bool
}

func NewAuthenticationError(reason string, tokenExpired bool) *AuthenticationError {
	code := "AUTHENTICATION_ERROR"
	hint := "check the auth token or reconnect anonymously"
	if tokenExpired {
		code = "AUTH_TOKEN_EXPIRED"
		hint = "token expired; reconnect without a token to obtain a new one"
	}
	return &AuthenticationError{
		base: base{
			message:     fmt.Sprintf("authentication failed: %s", reason),
			code:        code,
			diagnostics: map[string]string{"reason": reason},
			hint:        hint,
		},
		TokenExpired: tokenExpired,
	}
}

// ProtocolMismatchError: server rejected the requested subprotocol.
type ProtocolMismatchError struct {
	base
	RequestedProtocol string
}

func NewProtocolMismatch(requested string) *ProtocolMismatchError {
	return &ProtocolMismatchError{
		base: base{
			message:     fmt.Sprintf("protocol mismatch: server rejected %q", requested),
			code:        "PROTOCOL_MISMATCH",
			diagnostics: map[string]string{"requested_protocol": requested},
			hint:        "use a supported subprotocol (v1.json.spacetimedb or v1.bsatn.spacetimedb)",
		},
		RequestedProtocol: requested,
	}
}

// OutOfEnergyError: a reducer call or scheduled fire was refused due to
// budget exhaustion.
type OutOfEnergyError struct {
	base
	Required  uint64
	Available uint64
}

func NewOutOfEnergy(required, available uint64) *OutOfEnergyError {
	return &OutOfEnergyError{
		base: base{
			message:     fmt.Sprintf("insufficient energy: required %d, available %d", required, available),
			code:        "OUT_OF_ENERGY",
			diagnostics: map[string]string{"required": fmt.Sprint(required), "available": fmt.Sprint(available)},
			hint:        "reduce call frequency or increase the energy budget",
		},
		Required:  required,
		Available: available,
	}
}

// EnergyExhaustedError: the tracker has hit zero.
type EnergyExhaustedError struct{ base }

func NewEnergyExhausted() *EnergyExhaustedError {
	return &EnergyExhaustedError{base{
		message: "energy exhausted",
		code:    "ENERGY_EXHAUSTED",
		hint:    "wait for replenishment or increase the replenish rate",
	}}
}

// CodecError: invalid tag, invalid UTF-8, invalid float, overflow,
// payload-too-large, or unexpected-eof. Sticky within a single
// encode/decode session.
type CodecError struct {
	base
	Reason string
}

func NewCodecError(reason string, cause error) *CodecError {
	return &CodecError{
		base: base{
			message: fmt.Sprintf("codec error: %s", reason),
			code:    "CODEC_ERROR",
			cause:   cause,
		},
		Reason: reason,
	}
}

// NotConnectedError: an outbound call was attempted before the Session
// reached Connected.
type NotConnectedError struct{ base }

func NewNotConnected() *NotConnectedError {
	return &NotConnectedError{base{
		message: "session is not connected",
		code:    "NOT_CONNECTED",
		hint:    "await Connected before issuing outbound calls",
	}}
}

// ConnectionTerminatedError: the Session closed while a request was
// outstanding.
type ConnectionTerminatedError struct{ base }

func NewConnectionTerminated() *ConnectionTerminatedError {
	return &ConnectionTerminatedError{base{
		message: "connection terminated",
		code:    "CONNECTION_TERMINATED",
	}}
}

// CircuitOpenError: the circuit breaker is open and is failing fast.
type CircuitOpenError struct{ base }

func NewCircuitOpen() *CircuitOpenError {
	return &CircuitOpenError{base{
		message: "circuit breaker is open",
		code:    "CIRCUIT_OPEN",
		hint:    "wait for the recovery timeout to elapse before retrying",
	}}
}

// GenericConnectionError (generic fallback) carries the original cause and a
// remediation hint for anything not covered by a more specific kind.
type GenericConnectionError struct{ base }

func NewGenericConnectionError(message string, cause error, hint string) *GenericConnectionError {
	return &GenericConnectionError{base{
		message: message,
		code:    "CONNECTION_ERROR",
		cause:   cause,
		hint:    hint,
	}}
}

func merge(a, b map[string]string) map[string]string {
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
