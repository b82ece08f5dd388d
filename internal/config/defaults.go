package config

import (
	"strings"
	"time"

	"spacetimedb.com/client/internal/bytesize"
)

// ApplyDefaults fills unspecified fields with sensible defaults. Zero values
// are replaced; explicit values are preserved.
func ApplyDefaults(cfg *ClientConfig) {
	applyConnectDefaults(&cfg.Connect)
	applyCompressionDefaults(&cfg.Compression)
	applyRetryDefaults(&cfg.Retry)
	applyReconnectDefaults(&cfg.Reconnect)
	applyEnergyDefaults(&cfg.Energy)
	applyDiagnosticsDefaults(&cfg.Diagnostics)
	applyLoggingDefaults(&cfg.Logging)
}

func applyConnectDefaults(cfg *ConnectConfig) {
	if cfg.Subprotocol == "" {
		cfg.Subprotocol = "v1.bsatn.spacetimedb"
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
}

func applyCompressionDefaults(cfg *CompressionConfig) {
	if len(cfg.Algorithms) == 0 {
		cfg.Algorithms = []string{"brotli", "gzip"}
	}
	if cfg.ThresholdBytes == 0 {
		cfg.ThresholdBytes = bytesize.KiB
	}
	if cfg.Level == "" {
		cfg.Level = "default"
	}
}

func applyRetryDefaults(cfg *RetryConfig) {
	if cfg.Preset == "" && cfg.Custom.MaxAttempts == 0 {
		cfg.Preset = "standard"
	}
	if cfg.Custom.BackoffStrategy != "" {
		cfg.Custom.BackoffStrategy = strings.ToLower(cfg.Custom.BackoffStrategy)
	}
}

func applyReconnectDefaults(cfg *ReconnectConfig) {
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = 60 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 10
	}
}

func applyEnergyDefaults(cfg *EnergyConfig) {
	if cfg.MaxEnergy == 0 {
		cfg.MaxEnergy = 1_000_000
	}
	if cfg.ReplenishRate == 0 {
		cfg.ReplenishRate = 1_000
	}
	if cfg.BudgetPerPeriod == 0 {
		cfg.BudgetPerPeriod = cfg.MaxEnergy
	}
	if cfg.PeriodLength == 0 {
		cfg.PeriodLength = time.Hour
	}
	if cfg.LowThreshold == 0 {
		cfg.LowThreshold = cfg.MaxEnergy / 10
	}
}

func applyDiagnosticsDefaults(cfg *DiagnosticsConfig) {
	if cfg.TCPTimeout == 0 {
		cfg.TCPTimeout = 3 * time.Second
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 5 * time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 60 * time.Second
	}
	if cfg.CacheEntries == 0 {
		cfg.CacheEntries = 64
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// GetDefaultConfig returns a ClientConfig with all defaults applied, except
// for the required Connect.Host/Database fields which the caller must set.
func GetDefaultConfig() *ClientConfig {
	cfg := &ClientConfig{
		Connect: ConnectConfig{
			Host:     "localhost:3000",
			Database: "",
		},
		Diagnostics: DiagnosticsConfig{
			Enabled: true,
		},
		Reconnect: ReconnectConfig{
			Enabled: true,
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
