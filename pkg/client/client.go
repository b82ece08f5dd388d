// Package client is the public entry point: it builds a Session's
// DialFunc from connection Options, and wires a Session together with
// its Subscription Manager, Scheduler, and Energy Manager into one
// handle.
package client

import (
	"context"
	"net/http"
	"time"

	"spacetimedb.com/client/pkg/compression"
	"spacetimedb.com/client/pkg/energy"
	"spacetimedb.com/client/pkg/scheduler"
	"spacetimedb.com/client/pkg/session"
	"spacetimedb.com/client/pkg/subscription"
	"spacetimedb.com/client/pkg/transport"
	"spacetimedb.com/client/pkg/wire"
)

// serverSupportedAlgorithms lists what this client knows how to decode,
// used to pick a compression algorithm locally since the subscribe
// endpoint does not echo its selection in a handshake header. Revisit
// if the protocol grows a negotiation response.
var serverSupportedAlgorithms = []compression.Algorithm{compression.Gzip, compression.Brotli}

// Config describes how to reach a database and the behavior to apply
// once connected.
type Config struct {
	Host       string
	Database   string
	Secure     bool
	DBIdentity string

	Subprotocol wire.Subprotocol

	CompressionOffered   []compression.Algorithm
	CompressionThreshold int
	CompressionLevel     compression.Level

	HandshakeTimeout     time.Duration
	OutboundQueueSize    int
	AutoReconnect        bool
	ReconnectMaxAttempts int

	// MaxScheduledInFlight bounds the Scheduler's concurrent fires.
	MaxScheduledInFlight int

	// EnergyMax, EnergyRatePerSecond, and EnergyBudget configure the
	// Energy Tracker and Budget Manager. A zero EnergyMax disables
	// scheduler budget checks entirely.
	EnergyMax           uint64
	EnergyRatePerSecond uint64
	EnergyBudget        uint64
	EnergyPeriod        time.Duration
}

// Client bundles one Session with the higher-level managers built on
// top of it.
type Client struct {
	Session      *session.Session
	Subscription *subscription.Manager
	Scheduler    *scheduler.Scheduler
	Energy       *energy.Manager
}

// Connect builds a Client for cfg and opens the Session. credentials
// supplies the bearer token; handlers receives Session-level events.
func Connect(ctx context.Context, cfg Config, credentials session.CredentialSource, handlers session.Handlers) (*Client, error) {
	sessOpts := session.Options{
		Host:                 cfg.Host,
		Database:             cfg.Database,
		Secure:               cfg.Secure,
		DBIdentity:           cfg.DBIdentity,
		Subprotocol:          cfg.Subprotocol,
		CompressionOffered:   cfg.CompressionOffered,
		CompressionThreshold: cfg.CompressionThreshold,
		CompressionLevel:     cfg.CompressionLevel,
		HandshakeTimeout:     cfg.HandshakeTimeout,
		AutoReconnect:        cfg.AutoReconnect,
		ReconnectMaxAttempts: cfg.ReconnectMaxAttempts,
	}

	sess := session.New(sessOpts, session.Collaborators{Credentials: credentials}, handlers, dialFunc(cfg))
	if err := sess.Connect(ctx); err != nil {
		return nil, err
	}

	mgr := subscription.NewManager(sess)

	var budget *energy.Manager
	var sched *scheduler.Scheduler
	if cfg.EnergyMax > 0 {
		tracker := energy.NewTracker(cfg.EnergyMax, cfg.EnergyRatePerSecond, cfg.EnergyMax/10)
		period := cfg.EnergyPeriod
		if period <= 0 {
			period = time.Minute
		}
		budget = energy.NewManager(tracker, cfg.EnergyBudget, period)
		sched = scheduler.New(sess, scheduler.Options{
			MaxInFlight: cfg.MaxScheduledInFlight,
			Budget:      energy.NewSchedulerBudget(budget, "scheduled_reducer_call"),
		})
	} else {
		sched = scheduler.New(sess, scheduler.Options{MaxInFlight: cfg.MaxScheduledInFlight})
	}

	return &Client{Session: sess, Subscription: mgr, Scheduler: sched, Energy: budget}, nil
}

// Close tears the Client's Session and Scheduler down.
func (c *Client) Close() error {
	c.Scheduler.Close()
	return c.Session.Close()
}

// dialFunc builds a session.DialFunc that opens a transport.Transport
// against cfg's database endpoint and locally negotiates compression.
func dialFunc(cfg Config) session.DialFunc {
	return func(ctx context.Context, token string, offered []compression.Algorithm, onInbound transport.InboundHandler, onError transport.ErrorHandler) (*transport.Transport, compression.Algorithm, error) {
		selected := compression.Negotiate(offered, serverSupportedAlgorithms)

		url := wire.BuildConnectURL(cfg.Host, cfg.Database, cfg.Secure, cfg.DBIdentity)
		headers := http.Header{}
		if token != "" {
			headers.Set("Authorization", wire.BasicAuthHeader(token))
		}

		tr, err := transport.Open(ctx, transport.Options{
			URL:               url,
			Headers:           headers,
			Subprotocols:      []string{string(subprotocolOrDefault(cfg.Subprotocol))},
			HandshakeTimeout:  cfg.HandshakeTimeout,
			OutboundQueueSize: cfg.OutboundQueueSize,
		}, onInbound, onError)
		if err != nil {
			return nil, compression.None, err
		}
		return tr, selected, nil
	}
}

func subprotocolOrDefault(sp wire.Subprotocol) wire.Subprotocol {
	if sp == "" {
		return wire.SubprotocolBSATN
	}
	return sp
}
