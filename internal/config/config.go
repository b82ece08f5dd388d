// Package config loads the client SDK's static configuration: how to reach
// the server, which wire subprotocol and compression to negotiate, the retry
// and reconnect posture, energy budget defaults, and ambient logging.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (SPACETIME_*)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"spacetimedb.com/client/internal/bytesize"
)

// ClientConfig is the top-level configuration for a Session.
type ClientConfig struct {
	// Connect describes how to reach the server and which database to open.
	Connect ConnectConfig `mapstructure:"connect" yaml:"connect"`

	// Compression controls frame compression negotiation and thresholds.
	Compression CompressionConfig `mapstructure:"compression" yaml:"compression"`

	// Retry is the retry policy applied to connect attempts and, where the
	// caller opts in, to individual outbound calls.
	Retry RetryConfig `mapstructure:"retry" yaml:"retry"`

	// Reconnect bounds the Session's internal reconnect backoff.
	Reconnect ReconnectConfig `mapstructure:"reconnect" yaml:"reconnect"`

	// Energy configures the client-side energy tracker and budget manager.
	Energy EnergyConfig `mapstructure:"energy" yaml:"energy"`

	// Diagnostics controls the preflight reachability probe.
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics" yaml:"diagnostics"`

	// Logging controls ambient log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// ConnectConfig describes the target server and database.
type ConnectConfig struct {
	// Host is "host[:port]" without a scheme.
	Host string `mapstructure:"host" validate:"required" yaml:"host"`

	// Secure selects wss/https over ws/http.
	Secure bool `mapstructure:"secure" yaml:"secure"`

	// Database is the target database name.
	Database string `mapstructure:"database" validate:"required" yaml:"database"`

	// Subprotocol is one of "v1.bsatn.spacetimedb" or "v1.json.spacetimedb".
	Subprotocol string `mapstructure:"subprotocol" validate:"required,oneof=v1.bsatn.spacetimedb v1.json.spacetimedb" yaml:"subprotocol"`

	// Token is an opaque bearer token sent as HTTP Basic auth ("token:<Token>").
	// Empty means connect anonymously.
	Token string `mapstructure:"token" yaml:"token,omitempty"`

	// HandshakeTimeout bounds the WebSocket upgrade request.
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" yaml:"handshake_timeout"`
}

// CompressionConfig controls frame compression.
type CompressionConfig struct {
	// Algorithms lists advertised algorithms in preference order.
	// Valid entries: "brotli", "gzip".
	Algorithms []string `mapstructure:"algorithms" yaml:"algorithms"`

	// ThresholdBytes is the minimum encoded frame size eligible for
	// compression, accepted as a plain integer or a human-readable size
	// like "1Ki" or "512KB".
	ThresholdBytes bytesize.ByteSize `mapstructure:"threshold_bytes" validate:"omitempty,gt=0" yaml:"threshold_bytes"`

	// Level is one of "fast", "default", "best".
	Level string `mapstructure:"level" validate:"omitempty,oneof=fast default best" yaml:"level"`
}

// RetryConfig selects a named retry preset or a fully custom policy.
type RetryConfig struct {
	// Preset is one of "aggressive", "standard", "conservative", "none".
	// Ignored if Custom.MaxAttempts is non-zero.
	Preset string `mapstructure:"preset" validate:"omitempty,oneof=aggressive standard conservative none" yaml:"preset"`

	// Custom overrides Preset when MaxAttempts is non-zero.
	Custom CustomRetryConfig `mapstructure:"custom" yaml:"custom,omitempty"`
}

// CustomRetryConfig mirrors retrypolicy.Policy's tunables for config-file use.
type CustomRetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts" yaml:"max_attempts,omitempty"`
	InitialDelay    time.Duration `mapstructure:"initial_delay" yaml:"initial_delay,omitempty"`
	MaxDelay        time.Duration `mapstructure:"max_delay" yaml:"max_delay,omitempty"`
	Base            float64       `mapstructure:"base" yaml:"base,omitempty"`
	BackoffStrategy string        `mapstructure:"backoff_strategy" validate:"omitempty,oneof=constant linear exponential exponential_jitter" yaml:"backoff_strategy,omitempty"`
}

// ReconnectConfig bounds the Session's internal reconnect backoff.
type ReconnectConfig struct {
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	MaxAttempts  int           `mapstructure:"max_attempts" validate:"omitempty,gte=0" yaml:"max_attempts"`
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
}

// EnergyConfig sets defaults for the energy tracker and budget manager.
type EnergyConfig struct {
	MaxEnergy       uint64        `mapstructure:"max_energy" yaml:"max_energy"`
	ReplenishRate   uint64        `mapstructure:"replenish_rate" yaml:"replenish_rate"`
	BudgetPerPeriod uint64        `mapstructure:"budget_per_period" yaml:"budget_per_period"`
	PeriodLength    time.Duration `mapstructure:"period_length" yaml:"period_length"`
	LowThreshold    uint64        `mapstructure:"low_threshold" yaml:"low_threshold"`
}

// DiagnosticsConfig controls the preflight reachability probe.
type DiagnosticsConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	TCPTimeout   time.Duration `mapstructure:"tcp_timeout" yaml:"tcp_timeout"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout" yaml:"http_timeout"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	CacheEntries int           `mapstructure:"cache_entries" validate:"omitempty,gt=0" yaml:"cache_entries"`
}

// LoggingConfig controls ambient log output behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// Load loads configuration from file, environment, and defaults.
//
// Precedence (highest to lowest): environment variables (SPACETIME_*),
// configuration file, default values.
func Load(configPath string) (*ClientConfig, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !found {
		// Seed viper with the defaults so SPACETIME_* variables still
		// override them when no configuration file exists.
		data, err := yaml.Marshal(GetDefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal default config: %w", err)
		}
		v.SetConfigType("yaml")
		if err := v.ReadConfig(strings.NewReader(string(data))); err != nil {
			return nil, fmt.Errorf("failed to load default config: %w", err)
		}
	}

	var cfg ClientConfig
	hook := mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.TextUnmarshallerHookFunc(),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if !found {
		return &cfg, nil
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// SaveConfig writes cfg to path in YAML form with owner-only permissions
// (the file may carry a bearer token).
func SaveConfig(cfg *ClientConfig, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("SPACETIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	configDir := getConfigDir()
	v.AddConfigPath(configDir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// durationDecodeHook converts strings and numbers to time.Duration, enabling
// config files to use human-readable durations like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "spacetimedb-client")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "spacetimedb-client")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
