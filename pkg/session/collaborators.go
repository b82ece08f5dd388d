package session

import (
	"context"
	"time"
)

// CredentialSource supplies the bearer token used on connect. It replaces
// the reference SDK's OS-keyring/OAuth token stores, which are out of
// scope here: callers that need those wire a CredentialSource of their
// own.
type CredentialSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a CredentialSource that always returns the same token,
// useful for tests and for callers with no refresh flow.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

// ReportSink receives raw lifecycle and energy events for callers that
// want to forward them into their own telemetry or compliance pipeline.
// It replaces the reference SDK's PII-redaction/SOC2 reporting path,
// which is out of scope here. The zero value does nothing.
type ReportSink interface {
	Report(event any)
}

// NoopReportSink discards every event.
type NoopReportSink struct{}

func (NoopReportSink) Report(any) {}

// ConnectionEventKind names a connection lifecycle transition reported to
// a ReportSink.
type ConnectionEventKind string

const (
	EventConnecting   ConnectionEventKind = "connecting"
	EventConnected    ConnectionEventKind = "connected"
	EventReconnecting ConnectionEventKind = "reconnecting"
	EventDisconnected ConnectionEventKind = "disconnected"
	EventClosed       ConnectionEventKind = "closed"
)

// ConnectionEvent is reported on every Session state transition.
type ConnectionEvent struct {
	Kind ConnectionEventKind
	At   time.Time
	Err  error
}

// Collaborators groups the interfaces a Session accepts but does not
// implement. Leaving either field nil is safe: Credentials defaults to no
// token, Reports defaults to NoopReportSink.
type Collaborators struct {
	Credentials CredentialSource
	Reports     ReportSink
}

func (c Collaborators) reports() ReportSink {
	if c.Reports == nil {
		return NoopReportSink{}
	}
	return c.Reports
}
