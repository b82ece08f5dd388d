package client

import (
	"context"
	"errors"
	"fmt"

	"spacetimedb.com/client/internal/config"
	"spacetimedb.com/client/internal/logger"
	"spacetimedb.com/client/pkg/compression"
	"spacetimedb.com/client/pkg/diagnostics"
	"spacetimedb.com/client/pkg/retrypolicy"
	"spacetimedb.com/client/pkg/sdkerrors"
	"spacetimedb.com/client/pkg/session"
	"spacetimedb.com/client/pkg/wire"
)

// ConfigFromClientConfig translates a loaded config.ClientConfig into the
// flat Config Connect expects. Defaults are assumed already applied
// (config.Load and config.GetDefaultConfig both do this).
func ConfigFromClientConfig(cfg *config.ClientConfig) Config {
	algorithms := make([]compression.Algorithm, 0, len(cfg.Compression.Algorithms))
	for _, name := range cfg.Compression.Algorithms {
		switch name {
		case "brotli":
			algorithms = append(algorithms, compression.Brotli)
		case "gzip":
			algorithms = append(algorithms, compression.Gzip)
		}
	}

	return Config{
		Host:       cfg.Connect.Host,
		Database:   cfg.Connect.Database,
		Secure:     cfg.Connect.Secure,
		DBIdentity: "",

		Subprotocol: wire.Subprotocol(cfg.Connect.Subprotocol),

		CompressionOffered:   algorithms,
		CompressionThreshold: int(cfg.Compression.ThresholdBytes),
		CompressionLevel:     compression.Level(cfg.Compression.Level),

		HandshakeTimeout:     cfg.Connect.HandshakeTimeout,
		AutoReconnect:        cfg.Reconnect.Enabled,
		ReconnectMaxAttempts: cfg.Reconnect.MaxAttempts,

		EnergyMax:           cfg.Energy.MaxEnergy,
		EnergyRatePerSecond: cfg.Energy.ReplenishRate,
		EnergyBudget:        cfg.Energy.BudgetPerPeriod,
		EnergyPeriod:        cfg.Energy.PeriodLength,
	}
}

// CredentialsFromConfig wraps cfg.Connect.Token as a static
// session.CredentialSource. Callers with a dynamic token source (e.g. a
// refreshing OAuth flow) should build their own CredentialSource instead
// of calling this.
func CredentialsFromConfig(cfg *config.ClientConfig) session.CredentialSource {
	return session.StaticToken(cfg.Connect.Token)
}

// RetryPolicyFromConfig builds the connect-attempt retry policy named or
// customized by cfg. A non-zero Custom.MaxAttempts overrides Preset.
func RetryPolicyFromConfig(cfg config.RetryConfig) retrypolicy.Policy {
	if cfg.Custom.MaxAttempts > 0 {
		return retrypolicy.Policy{
			MaxAttempts:     cfg.Custom.MaxAttempts,
			InitialDelay:    cfg.Custom.InitialDelay,
			MaxDelay:        cfg.Custom.MaxDelay,
			Base:            cfg.Custom.Base,
			BackoffStrategy: retrypolicy.BackoffStrategy(cfg.Custom.BackoffStrategy),
		}
	}

	switch cfg.Preset {
	case "aggressive":
		return retrypolicy.Aggressive()
	case "conservative":
		return retrypolicy.Conservative()
	case "none":
		return retrypolicy.NoRetry()
	default:
		return retrypolicy.Standard()
	}
}

// ConnectWithConfig initializes ambient logging from cfg.Logging, then
// dials per cfg.Connect/Compression/Reconnect/Energy, retrying the
// initial connect attempt per cfg.Retry.
func ConnectWithConfig(ctx context.Context, cfg *config.ClientConfig, credentials session.CredentialSource, handlers session.Handlers) (*Client, error) {
	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return nil, fmt.Errorf("client: configure logging: %w", err)
	}

	clientCfg := ConfigFromClientConfig(cfg)
	policy := RetryPolicyFromConfig(cfg.Retry)

	var prober *diagnostics.Prober
	if cfg.Diagnostics.Enabled {
		prober = diagnostics.NewProber()
	}

	var c *Client
	err := retrypolicy.Execute(func(attempt int) error {
		var err error
		c, err = Connect(ctx, clientCfg, credentials, handlers)
		if err != nil {
			return remapHandshakeError(ctx, prober, cfg, err)
		}
		return nil
	}, policy)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// remapHandshakeError classifies a failed handshake into a more specific
// sdkerrors kind using a fresh diagnostics probe, when one is enabled.
// Non-handshake errors and a disabled prober pass err through unchanged.
func remapHandshakeError(ctx context.Context, prober *diagnostics.Prober, cfg *config.ClientConfig, err error) error {
	if prober == nil {
		return err
	}
	var handshakeErr *sdkerrors.WebSocketHandshakeError
	if !errors.As(err, &handshakeErr) {
		return err
	}

	report := prober.Probe(ctx, cfg.Connect.Host, cfg.Connect.Database, cfg.Connect.Secure)
	return diagnostics.MapHandshakeError(handshakeErr.StatusCode, handshakeErr.Error(), cfg.Connect.Database, cfg.Connect.Host, report)
}
