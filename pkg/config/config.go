// Package config provides YAML-based configuration loading for avsync.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
	// AppName optional logical name of the client instance
	AppName string `mapstructure:"app_name"`

	// Log holds logging configuration
	Log LogConfig `mapstructure:"log"`

	// Backend describes the simulation server connection
	Backend BackendConfig `mapstructure:"backend"`

	// Session tunes the periodic senders of the backend session
	Session SessionConfig `mapstructure:"session"`

	// Fleet lists nodes registered at startup
	Fleet FleetConfig `mapstructure:"fleet"`

	TRx      TRxConfig      `mapstructure:"trx"`
	Recorder RecorderConfig `mapstructure:"recorder"`
	Bridge   BridgeConfig   `mapstructure:"bridge"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: list of outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `mapstructure:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// BackendConfig describes the stream connection to the simulation server.
// Example YAML:
//
//	backend:
//	  kind: tcp
//	  address: 127.0.0.1:12123
//	  codec: json
//	  retry_interval_ms: 2000
type BackendConfig struct {
	// Kind: tcp, mem or winpipe
	Kind    string `mapstructure:"kind"`
	Address string `mapstructure:"address"`
	// Codec: json, cbor or proto (payload encoding inside each frame)
	Codec           string `mapstructure:"codec"`
	DialTimeoutMS   int    `mapstructure:"dial_timeout_ms"`
	IdleTimeoutMS   int    `mapstructure:"idle_timeout_ms"`
	RetryIntervalMS int    `mapstructure:"retry_interval_ms"`
	ReadBufferBytes int    `mapstructure:"read_buffer_bytes"`
}

func (b BackendConfig) DialTimeout() time.Duration   { return ms(b.DialTimeoutMS) }
func (b BackendConfig) IdleTimeout() time.Duration   { return ms(b.IdleTimeoutMS) }
func (b BackendConfig) RetryInterval() time.Duration { return ms(b.RetryIntervalMS) }

// SessionConfig tunes heartbeat and link telemetry.
type SessionConfig struct {
	HeartbeatIntervalMS int `mapstructure:"heartbeat_interval_ms"`
	TelemetryIntervalMS int `mapstructure:"telemetry_interval_ms"`
	// UnknownDistanceM is reported for pairs where a position is unavailable
	UnknownDistanceM float64 `mapstructure:"unknown_distance_m"`
}

func (s SessionConfig) HeartbeatInterval() time.Duration { return ms(s.HeartbeatIntervalMS) }
func (s SessionConfig) TelemetryInterval() time.Duration { return ms(s.TelemetryIntervalMS) }

// FleetConfig lists statically positioned nodes registered in order.
type FleetConfig struct {
	Nodes []NodeConfig `mapstructure:"nodes"`
}

// NodeConfig is one node with a fixed geodetic position (degrees, meters).
type NodeConfig struct {
	Name string  `mapstructure:"name"`
	Lon  float64 `mapstructure:"lon"`
	Lat  float64 `mapstructure:"lat"`
	Alt  float64 `mapstructure:"alt"`
}

// TRxConfig controls retention of throughput samples.
type TRxConfig struct {
	SampleTTLMS int `mapstructure:"sample_ttl_ms"`
	// MaxBytes caps the encoded size of all stored samples; 0 is unlimited.
	MaxBytes uint64 `mapstructure:"max_bytes"`
}

func (t TRxConfig) SampleTTL() time.Duration { return ms(t.SampleTTLMS) }

// RecorderConfig controls the SQLite event recorder.
type RecorderConfig struct {
	Enable          bool   `mapstructure:"enable"`
	Path            string `mapstructure:"path"`
	BatchSize       int    `mapstructure:"batch_size"`
	FlushIntervalMS int    `mapstructure:"flush_interval_ms"`
}

func (r RecorderConfig) FlushInterval() time.Duration { return ms(r.FlushIntervalMS) }

// BridgeConfig controls the HTTP/WebSocket bridge used by the rendering layer.
type BridgeConfig struct {
	Enable bool   `mapstructure:"enable"`
	Listen string `mapstructure:"listen"`
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		AppName: "avsync",
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			Outputs:     []string{"stdout"},
			Development: true,
			Rotation: RotationConfig{
				Enable:     false,
				Filename:   "logs/avsync.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Backend: BackendConfig{
			Kind:            "tcp",
			Address:         "127.0.0.1:12123",
			Codec:           "json",
			DialTimeoutMS:   3000,
			IdleTimeoutMS:   3000,
			RetryIntervalMS: 2000,
			ReadBufferBytes: 64 * 1024,
		},
		Session: SessionConfig{
			HeartbeatIntervalMS: 1000,
			TelemetryIntervalMS: 1000,
			UnknownDistanceM:    10_000_000,
		},
		TRx: TRxConfig{SampleTTLMS: 10_000, MaxBytes: 1 << 20},
		Recorder: RecorderConfig{
			Enable:          false,
			Path:            "",
			BatchSize:       1000,
			FlushIntervalMS: 1000,
		},
		Bridge: BridgeConfig{Enable: false, Listen: "127.0.0.1:8090"},
	}
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// A .env file in the working directory is loaded first when present.
// Environment variables use the prefix AVSYNC and `.`/`-` are replaced with `_`.
// Example: AVSYNC_BACKEND_ADDRESS=10.0.0.5:12123
func Load(path string) (*Config, error) {
	cfg := Default()

	// a missing .env is fine; real env vars keep precedence
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("AVSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("app_name", cfg.AppName)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	// Backend defaults
	v.SetDefault("backend.kind", cfg.Backend.Kind)
	v.SetDefault("backend.address", cfg.Backend.Address)
	v.SetDefault("backend.codec", cfg.Backend.Codec)
	v.SetDefault("backend.dial_timeout_ms", cfg.Backend.DialTimeoutMS)
	v.SetDefault("backend.idle_timeout_ms", cfg.Backend.IdleTimeoutMS)
	v.SetDefault("backend.retry_interval_ms", cfg.Backend.RetryIntervalMS)
	v.SetDefault("backend.read_buffer_bytes", cfg.Backend.ReadBufferBytes)
	// Session defaults
	v.SetDefault("session.heartbeat_interval_ms", cfg.Session.HeartbeatIntervalMS)
	v.SetDefault("session.telemetry_interval_ms", cfg.Session.TelemetryIntervalMS)
	v.SetDefault("session.unknown_distance_m", cfg.Session.UnknownDistanceM)
	v.SetDefault("fleet.nodes", cfg.Fleet.Nodes)
	v.SetDefault("trx.sample_ttl_ms", cfg.TRx.SampleTTLMS)
	v.SetDefault("trx.max_bytes", cfg.TRx.MaxBytes)
	v.SetDefault("recorder.enable", cfg.Recorder.Enable)
	v.SetDefault("recorder.path", cfg.Recorder.Path)
	v.SetDefault("recorder.batch_size", cfg.Recorder.BatchSize)
	v.SetDefault("recorder.flush_interval_ms", cfg.Recorder.FlushIntervalMS)
	v.SetDefault("bridge.enable", cfg.Bridge.Enable)
	v.SetDefault("bridge.listen", cfg.Bridge.Listen)

	// Choose config file
	if path == "" {
		// Allow override via env var
		if envPath := os.Getenv("AVSYNC_CONFIG"); envPath != "" {
			path = envPath
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search common locations with base name `avsync`
		v.SetConfigName("avsync")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".avsync"))
		}
	}

	// Read config file if present; if not found, continue with defaults/env
	if err := v.ReadInConfig(); err != nil {
		var viperConfigFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &viperConfigFileNotFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch lvl {
	case "debug", "info", "warn", "warning", "error":
		// ok
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}

	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stdout"}
	}

	c.Backend.Kind = strings.ToLower(strings.TrimSpace(c.Backend.Kind))
	if c.Backend.Kind == "" {
		c.Backend.Kind = "tcp"
	}
	c.Backend.Codec = strings.ToLower(strings.TrimSpace(c.Backend.Codec))
	switch c.Backend.Codec {
	case "":
		c.Backend.Codec = "json"
	case "json", "cbor", "proto", "protobuf":
	default:
		return fmt.Errorf("invalid backend.codec: %q", c.Backend.Codec)
	}
	if strings.TrimSpace(c.Backend.Address) == "" {
		return errors.New("backend.address is required")
	}
	if c.Backend.RetryIntervalMS <= 0 {
		return fmt.Errorf("invalid backend.retry_interval_ms: %d", c.Backend.RetryIntervalMS)
	}
	if c.Session.HeartbeatIntervalMS <= 0 || c.Session.TelemetryIntervalMS <= 0 {
		return errors.New("session intervals must be positive")
	}
	if c.Recorder.Enable && c.Recorder.BatchSize <= 0 {
		c.Recorder.BatchSize = 1000
	}
	return nil
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}
