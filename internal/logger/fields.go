package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the client SDK.
// Use these keys consistently so logs remain aggregable/queryable across
// the Session, Transport, Subscription Manager, Scheduler, and Energy
// accounting components.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// ========================================================================
	// Session & Connection
	// ========================================================================
	KeyHost         = "host"          // Server host
	KeyDatabase     = "database"      // Target database name
	KeyIdentity     = "identity"      // Hex-encoded Identity (32 bytes)
	KeyConnectionID = "connection_id" // Hex-encoded ConnectionId (16 bytes)
	KeyState        = "state"         // Session state (Connecting, Connected, ...)
	KeySubprotocol  = "subprotocol"   // Negotiated wire subprotocol

	// ========================================================================
	// Requests & Reducers
	// ========================================================================
	KeyRequestID  = "request_id"  // Monotonic outbound request id
	KeyMessageID  = "message_id"  // One-off query message id (u128, hex)
	KeyReducer    = "reducer"     // Reducer name
	KeyFlags      = "flags"       // CallReducerFlags
	KeyArgsBytes  = "args_bytes"  // Length of encoded reducer arguments
	KeyAttempt    = "attempt"     // Retry/reconnect attempt number
	KeyMaxRetries = "max_retries" // Maximum retry attempts

	// ========================================================================
	// Subscriptions
	// ========================================================================
	KeyQueryID    = "query_id"   // QueryId (u32)
	KeyQuery      = "query"      // SQL query text
	KeyQueryCount = "query_count"
	KeyDurable    = "durable"   // Whether a subscription survives reconnect
	KeyTableName  = "table_name"
	KeyTableRows  = "table_rows"

	// ========================================================================
	// Scheduler
	// ========================================================================
	KeyScheduleID  = "schedule_id"
	KeyFireTime    = "fire_time"
	KeyInterval    = "interval"
	KeyExecCount   = "execution_count"
	KeyConcurrency = "max_concurrent_executions"

	// ========================================================================
	// Energy accounting
	// ========================================================================
	KeyEnergyUsed      = "energy_used"
	KeyEnergyReserved  = "energy_reserved"
	KeyEnergyBudget    = "energy_budget"
	KeyEnergyRequired  = "energy_required"
	KeyEnergyAvailable = "energy_available"
	KeyReservationID   = "reservation_id"
	KeyEnergyEvent     = "energy_event"

	// ========================================================================
	// Compression
	// ========================================================================
	KeyAlgorithm      = "algorithm"
	KeyBytesIn        = "bytes_in"
	KeyBytesOut       = "bytes_out"
	KeyCompressRatio  = "compress_ratio"
	KeyThresholdBytes = "threshold_bytes"

	// ========================================================================
	// Operation metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorCode  = "error_code"
	KeyHint       = "hint"
	KeyCircuit    = "circuit_state"
)

// TraceID returns a slog.Attr for an OpenTelemetry-style trace id.
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// SpanID returns a slog.Attr for an OpenTelemetry-style span id.
func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

// Host returns a slog.Attr for the server host.
func Host(h string) slog.Attr { return slog.String(KeyHost, h) }

// Database returns a slog.Attr for the target database name.
func Database(name string) slog.Attr { return slog.String(KeyDatabase, name) }

// Identity returns a slog.Attr for a hex-encoded Identity.
func Identity(hex string) slog.Attr { return slog.String(KeyIdentity, hex) }

// ConnectionID returns a slog.Attr for a hex-encoded ConnectionId.
func ConnectionID(hex string) slog.Attr { return slog.String(KeyConnectionID, hex) }

// State returns a slog.Attr for the current Session state.
func State(s string) slog.Attr { return slog.String(KeyState, s) }

// Subprotocol returns a slog.Attr for the negotiated wire subprotocol.
func Subprotocol(s string) slog.Attr { return slog.String(KeySubprotocol, s) }

// RequestID returns a slog.Attr for a monotonic outbound request id.
func RequestID(id uint32) slog.Attr { return slog.Uint64(KeyRequestID, uint64(id)) }

// MessageID returns a slog.Attr for a one-off query message id.
func MessageID(id string) slog.Attr { return slog.String(KeyMessageID, id) }

// Reducer returns a slog.Attr for a reducer name.
func Reducer(name string) slog.Attr { return slog.String(KeyReducer, name) }

// Attempt returns a slog.Attr for a retry/reconnect attempt number.
func Attempt(n int) slog.Attr { return slog.Int(KeyAttempt, n) }

// MaxRetries returns a slog.Attr for the maximum retry attempts.
func MaxRetries(n int) slog.Attr { return slog.Int(KeyMaxRetries, n) }

// QueryID returns a slog.Attr for a subscription QueryId.
func QueryID(id uint32) slog.Attr { return slog.Uint64(KeyQueryID, uint64(id)) }

// Query returns a slog.Attr for a SQL query string.
func Query(q string) slog.Attr { return slog.String(KeyQuery, q) }

// Durable returns a slog.Attr for the subscription durability flag.
func Durable(d bool) slog.Attr { return slog.Bool(KeyDurable, d) }

// TableName returns a slog.Attr for a table name.
func TableName(name string) slog.Attr { return slog.String(KeyTableName, name) }

// ScheduleID returns a slog.Attr for a scheduled call id.
func ScheduleID(id string) slog.Attr { return slog.String(KeyScheduleID, id) }

// ExecCount returns a slog.Attr for a scheduled call's execution count.
func ExecCount(n uint64) slog.Attr { return slog.Uint64(KeyExecCount, n) }

// ReservationID returns a slog.Attr for an energy reservation id.
func ReservationID(id string) slog.Attr { return slog.String(KeyReservationID, id) }

// EnergyEvent returns a slog.Attr for an energy event kind.
func EnergyEvent(kind string) slog.Attr { return slog.String(KeyEnergyEvent, kind) }

// Algorithm returns a slog.Attr for a compression algorithm name.
func Algorithm(name string) slog.Attr { return slog.String(KeyAlgorithm, name) }

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns a slog.Attr for an error, or a zero Attr for nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a string error code.
func ErrorCode(code string) slog.Attr { return slog.String(KeyErrorCode, code) }

// Hint returns a slog.Attr for a remediation hint.
func Hint(h string) slog.Attr { return slog.String(KeyHint, h) }

// Circuit returns a slog.Attr for a circuit breaker state.
func Circuit(state string) slog.Attr { return slog.String(KeyCircuit, state) }
