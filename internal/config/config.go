// Package config manages the platform/explore service configuration
// using koanf/v2: an INI service file (§6 CLI), environment overrides,
// and defaults, producing one validated Config per process.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/mitchellh/mapstructure"
)

// weakUnmarshal decodes koanf's flat map into v, letting values arriving
// from the INI/env text providers (always strings) land in the struct's
// typed fields (uint16, bool, …) without every field needing a manual
// string conversion.
func weakUnmarshal(k *koanf.Koanf, path string, v interface{}) error {
	return k.UnmarshalWithConf(path, v, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           v,
		},
	})
}

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds one service's full runtime configuration.
type Config struct {
	Service ServiceConfig `koanf:"service"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// ServiceConfig holds the INI-file fields named in §6 CLI: network
// binds for the player-facing platform listener, the channel listener
// the explore services dial into, and the explore service's own binds.
type ServiceConfig struct {
	// BindIP/BindPort is the platform server's player-facing listener.
	BindIP   string `koanf:"bind_ip"`
	BindPort uint16 `koanf:"bind_port"`

	// ChannelPort is the platform server's channel-multiplexer listener
	// that explore services dial into as peers.
	ChannelPort uint16 `koanf:"channel_port"`

	// BindWebPort is the HTTP admin server's listen port.
	BindWebPort uint16 `koanf:"bind_web_port"`

	// ExploreChannelIP/Port is the platform-side address an explore
	// service dials to register as a channel peer.
	ExploreChannelIP   string `koanf:"explore_channel_ip"`
	ExploreChannelPort uint16 `koanf:"explore_channel_port"`

	// ExploreServerIP/Port is this explore service's own player-facing
	// listener address.
	ExploreServerIP   string `koanf:"explore_server_ip"`
	ExploreServerPort uint16 `koanf:"explore_server_port"`

	// PlayerDB is the SQLite DSN/path for internal/store.
	PlayerDB string `koanf:"player_db"`

	// ServerID identifies this process among its peers (used to tag
	// explore ids and log output).
	ServerID uint32 `koanf:"server_id"`

	// ConfigDir is where Partner.json/Common.json live.
	ConfigDir string `koanf:"config_dir"`

	// LogTrace enables trace-level (debug) logging regardless of
	// Log.Level, matching the runtime template's log_trace toggle.
	LogTrace bool `koanf:"log_trace"`
}

// LogConfig holds the logging configuration (ambient; not named by the
// INI key list, carried the way the runtime template always does).
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
	Path string `koanf:"path"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults; Load
// merges a service's INI file and environment on top of this base.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			BindIP:             "0.0.0.0",
			BindPort:           7000,
			ChannelPort:        7100,
			BindWebPort:        8080,
			ExploreChannelIP:   "127.0.0.1",
			ExploreChannelPort: 7100,
			ExploreServerIP:    "127.0.0.1",
			ExploreServerPort:  7200,
			PlayerDB:           "./data/player.db",
			ServerID:           1,
			ConfigDir:          "./configs",
			LogTrace:           false,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for service overrides,
// e.g. HEXPLORE_BIND_PORT, HEXPLORE_LOG_LEVEL.
const envPrefix = "HEXPLORE_"

// Load reads the INI file at path, overlays environment variable
// overrides (HEXPLORE_ prefix), and merges on top of DefaultConfig().
// Missing keys inherit defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), INIParser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	// The INI file has no "[service]" header, so its keys land at koanf's
	// root rather than nested under "service" the way Config's own
	// struct tag implies; unmarshal the Service fields directly off the
	// root, then Log/Metrics off their own nested paths.
	if err := weakUnmarshal(k, "", &cfg.Service); err != nil {
		return nil, fmt.Errorf("unmarshal service section: %w", err)
	}
	if err := weakUnmarshal(k, "log", &cfg.Log); err != nil {
		return nil, fmt.Errorf("unmarshal log section: %w", err)
	}
	if err := weakUnmarshal(k, "metrics", &cfg.Metrics); err != nil {
		return nil, fmt.Errorf("unmarshal metrics section: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms HEXPLORE_BIND_PORT -> bind_port (flat Service
// keys) and HEXPLORE_LOG_LEVEL -> log.level / HEXPLORE_METRICS_ADDR ->
// metrics.addr (the two nested ambient sections).
func envKeyMapper(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	switch {
	case strings.HasPrefix(s, "log_"):
		return "log." + strings.TrimPrefix(s, "log_")
	case strings.HasPrefix(s, "metrics_"):
		return "metrics." + strings.TrimPrefix(s, "metrics_")
	default:
		return s
	}
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"bind_ip":              defaults.Service.BindIP,
		"bind_port":            defaults.Service.BindPort,
		"channel_port":         defaults.Service.ChannelPort,
		"bind_web_port":        defaults.Service.BindWebPort,
		"explore_channel_ip":   defaults.Service.ExploreChannelIP,
		"explore_channel_port": defaults.Service.ExploreChannelPort,
		"explore_server_ip":    defaults.Service.ExploreServerIP,
		"explore_server_port":  defaults.Service.ExploreServerPort,
		"player_db":            defaults.Service.PlayerDB,
		"server_id":            defaults.Service.ServerID,
		"config_dir":           defaults.Service.ConfigDir,
		"log_trace":            defaults.Service.LogTrace,
		"log.level":            defaults.Log.Level,
		"log.format":           defaults.Log.Format,
		"metrics.addr":         defaults.Metrics.Addr,
		"metrics.path":         defaults.Metrics.Path,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

var (
	ErrEmptyBindIP     = errors.New("service.bind_ip must not be empty")
	ErrInvalidBindPort = errors.New("service.bind_port must be > 0")
	ErrInvalidServerID = errors.New("service.server_id must be >= 1")
	ErrEmptyPlayerDB   = errors.New("service.player_db must not be empty")
	ErrEmptyConfigDir  = errors.New("service.config_dir must not be empty")
)

// Validate checks the configuration for logical errors. Returns the
// first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Service.BindIP == "" {
		return ErrEmptyBindIP
	}
	if cfg.Service.BindPort == 0 {
		return ErrInvalidBindPort
	}
	if cfg.Service.ServerID < 1 {
		return ErrInvalidServerID
	}
	if cfg.Service.PlayerDB == "" {
		return ErrEmptyPlayerDB
	}
	if cfg.Service.ConfigDir == "" {
		return ErrEmptyConfigDir
	}
	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the
// corresponding slog.Level. Unknown values default to slog.LevelInfo.
// A true LogTrace always wins, matching the runtime template's
// trace-overrides-level convention.
func ParseLogLevel(level string, trace bool) slog.Level {
	if trace {
		return slog.LevelDebug
	}
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
