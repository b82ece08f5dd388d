// Package diagnostics runs a best-effort preflight probe ahead of
// Session.Connect and maps handshake failures into concrete
// pkg/sdkerrors kinds using what the probe learned.
package diagnostics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"spacetimedb.com/client/pkg/apiclient"
	"spacetimedb.com/client/pkg/collections"
	"spacetimedb.com/client/pkg/sdkerrors"
)

// Confidence is the probe's belief about whether a database exists.
type Confidence string

const (
	Exists             Confidence = "exists"
	LikelyExists       Confidence = "likely-exists"
	NotExists          Confidence = "not-exists"
	ExistsNeedsUpgrade Confidence = "exists-but-needs-upgrade"
	Unknown            Confidence = "unknown"
)

// Report is a preflight probe's result for one (host, database) pair.
type Report struct {
	SocketReachable bool
	HTTPReachable   bool
	ServerVersion   string
	ResponseTime    time.Duration
	DatabaseStatus  Confidence
}

const defaultTTL = 60 * time.Second

type cacheKey struct {
	host     string
	database string
}

// Prober runs the preflight probe and caches results per (host,
// database) for a TTL.
type Prober struct {
	http   *apiclient.Client
	dialer net.Dialer
	cache  *collections.LRU[cacheKey, Report]
}

// NewProber creates a Prober with the default 60s cache TTL.
func NewProber() *Prober {
	return &Prober{
		http:  apiclient.New(),
		cache: collections.NewLRU[cacheKey, Report](256, defaultTTL),
	}
}

// Probe runs the three-step preflight check against host, reusing a
// cached Report if one is still fresh.
func (p *Prober) Probe(ctx context.Context, host, database string, secure bool) Report {
	key := cacheKey{host: host, database: database}
	if cached, ok := p.cache.Get(key); ok {
		return cached
	}

	report := Report{DatabaseStatus: Unknown}

	if !p.socketReachable(ctx, host) {
		p.cache.Put(key, report)
		return report
	}
	report.SocketReachable = true

	scheme := "http"
	if secure {
		scheme = "https"
	}
	start := time.Now()
	version, ok := p.httpHealth(ctx, scheme, host)
	report.ResponseTime = time.Since(start)
	if !ok {
		p.cache.Put(key, report)
		return report
	}
	report.HTTPReachable = true
	report.ServerVersion = version

	report.DatabaseStatus = p.databaseStatus(ctx, scheme, host, database)
	p.cache.Put(key, report)
	return report
}

func (p *Prober) socketReachable(ctx context.Context, host string) bool {
	dialCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	conn, err := p.dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func (p *Prober) httpHealth(ctx context.Context, scheme, host string) (version string, ok bool) {
	status, body, err := p.http.Get(ctx, fmt.Sprintf("%s://%s/health", scheme, host))
	if err != nil || status >= 400 {
		return "", false
	}
	return strings.TrimSpace(string(body)), true
}

func (p *Prober) databaseStatus(ctx context.Context, scheme, host, database string) Confidence {
	status, _, err := p.http.Get(ctx, fmt.Sprintf("%s://%s/v1/database/%s", scheme, host, database))
	if err != nil {
		return Unknown
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return LikelyExists
	case status == http.StatusNotFound:
		return NotExists
	case status >= 200 && status < 300:
		return Exists
	default:
		return Unknown
	}
}

// MapHandshakeError classifies a failed handshake's status code and
// message into a concrete sdkerrors kind, using report to disambiguate
// a 404 between "not found" and "not published".
func MapHandshakeError(statusCode int, message string, database, host string, report Report) error {
	lower := strings.ToLower(message)
	switch {
	case statusCode == http.StatusNotFound:
		switch report.DatabaseStatus {
		case NotExists:
			return sdkerrors.NewDatabaseNotFound(database, "")
		case LikelyExists, ExistsNeedsUpgrade:
			return sdkerrors.NewDatabaseNotPublished(database, host)
		default:
			return sdkerrors.NewDatabaseNotFound(database, "database may be unpublished")
		}
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return sdkerrors.NewAuthenticationError(message, strings.Contains(lower, "expired"))
	case strings.Contains(lower, "protocol") && (strings.Contains(lower, "mismatch") || strings.Contains(lower, "rejected")):
		return sdkerrors.NewProtocolMismatch(message)
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out"):
		return sdkerrors.NewConnectionTimeout("handshake", "")
	default:
		return sdkerrors.NewGenericConnectionError(message, nil, "check host, database name, and network reachability")
	}
}
