// Package config manages loranetd daemon configuration using koanf/v2.
//
// Supports YAML files, environment variables, and default merging, the
// same three-layer pipeline the teacher's daemon uses.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete loranetd configuration.
type Config struct {
	Metrics   MetricsConfig   `koanf:"metrics"`
	Log       LogConfig       `koanf:"log"`
	Mesh      MeshConfig      `koanf:"mesh"`
	Radio     RadioConfig     `koanf:"radio"`
	Discovery DiscoveryConfig `koanf:"discovery"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// MeshConfig holds the engine-level site and duty-cycle parameters
// (spec §6 init / set_local_addr / set_duty_cycle).
type MeshConfig struct {
	// SiteIDHex is the site prefix transmitted in the clear, hex-encoded.
	SiteIDHex string `koanf:"site_id_hex"`

	// SiteKeyHex is the 16-byte site key, hex-encoded (32 hex chars).
	// Never logged; HKDF-derived into the actual frame key at Init.
	SiteKeyHex string `koanf:"site_key_hex"`

	// LocalAddr is this unit's one-byte mesh address (0-254; 255 reserved).
	LocalAddr uint8 `koanf:"local_addr"`

	// DutyCycleWindow is the governor's sliding window (spec §4.E clamps
	// to [10s, 3600s]).
	DutyCycleWindow time.Duration `koanf:"duty_cycle_window"`

	// DutyCyclePermillage is the per-window transmit budget in parts per
	// thousand (spec §4.E clamps to [1, 1000]).
	DutyCyclePermillage int `koanf:"duty_cycle_permillage"`
}

// RadioConfig selects and parameterizes the radio transport.
type RadioConfig struct {
	// Mode is "mock" (in-process loopback pair, for demos) or "udp"
	// (loopback UDP transport, for multi-process integration testing).
	// The real SX127x hardware driver is out of scope (spec §1).
	Mode string `koanf:"mode"`

	// LocalUDPAddr and RemoteUDPAddr are used when Mode == "udp".
	LocalUDPAddr  string `koanf:"local_udp_addr"`
	RemoteUDPAddr string `koanf:"remote_udp_addr"`
}

// DiscoveryConfig configures the peer table (spec §6 "set_nodes(roster)
// or enable_discovery(...) -- mutually exclusive modes").
type DiscoveryConfig struct {
	// Enabled switches the engine into discovery mode; when false, Roster
	// must be non-empty.
	Enabled bool `koanf:"enabled"`

	// Capacity bounds the discovery buffer when Enabled is true.
	Capacity int `koanf:"capacity"`

	// Roster is the fixed peer address list used when Enabled is false.
	Roster []uint8 `koanf:"roster"`
}

// GenerationID is a process-lifetime identifier stamped onto every config
// load, so operators can correlate a running daemon's logged behavior
// against the exact config snapshot it loaded (distinct reloads get
// distinct ids even when the file contents are byte-identical).
type GenerationID = uuid.UUID

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults. The
// duty-cycle defaults are conservative starting points suitable for a
// shared-medium regulatory regime (e.g. EU868 1% duty cycle).
func DefaultConfig() *Config {
	return &Config{
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Mesh: MeshConfig{
			DutyCycleWindow:     60 * time.Second,
			DutyCyclePermillage: 10,
		},
		Radio: RadioConfig{
			Mode: "mock",
		},
		Discovery: DiscoveryConfig{
			Enabled:  false,
			Capacity: 16,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for loranetd configuration.
// Variables are named LORANET_<section>_<key>, e.g., LORANET_MESH_LOCAL_ADDR.
const envPrefix = "LORANET_"

// LoadResult bundles the parsed config with the generation id stamped at
// load time.
type LoadResult struct {
	Config *Config
	Gen    GenerationID
}

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (LORANET_ prefix), and merges on top of
// DefaultConfig(). Missing fields inherit defaults.
func Load(path string) (*LoadResult, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return &LoadResult{Config: cfg, Gen: uuid.New()}, nil
}

// envKeyMapper transforms LORANET_MESH_LOCAL_ADDR -> mesh.local_addr.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"metrics.addr":                  defaults.Metrics.Addr,
		"metrics.path":                  defaults.Metrics.Path,
		"log.level":                     defaults.Log.Level,
		"log.format":                    defaults.Log.Format,
		"mesh.duty_cycle_window":        defaults.Mesh.DutyCycleWindow.String(),
		"mesh.duty_cycle_permillage":    defaults.Mesh.DutyCyclePermillage,
		"radio.mode":                    defaults.Radio.Mode,
		"discovery.enabled":             defaults.Discovery.Enabled,
		"discovery.capacity":            defaults.Discovery.Capacity,
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

// Validation errors.
var (
	// ErrEmptyMetricsAddr indicates the metrics listen address is empty.
	ErrEmptyMetricsAddr = errors.New("metrics.addr must not be empty")

	// ErrInvalidSiteKey indicates site_key_hex is not exactly 16 bytes.
	ErrInvalidSiteKey = errors.New("mesh.site_key_hex must decode to exactly 16 bytes")

	// ErrInvalidSiteID indicates site_id_hex failed to decode.
	ErrInvalidSiteID = errors.New("mesh.site_id_hex must be valid hex")

	// ErrInvalidLocalAddr indicates local_addr is the reserved value 0xFF.
	ErrInvalidLocalAddr = errors.New("mesh.local_addr must not be 255 (reserved)")

	// ErrInvalidPermillage indicates duty_cycle_permillage is out of [1,1000].
	ErrInvalidPermillage = errors.New("mesh.duty_cycle_permillage must be in [1, 1000]")

	// ErrTableModeConflict indicates discovery is enabled and a roster was
	// also supplied, or discovery is disabled with an empty roster.
	ErrTableModeConflict = errors.New("discovery.enabled and discovery.roster are mutually exclusive, and exactly one must be populated")

	// ErrInvalidRadioMode indicates radio.mode is not a recognized value.
	ErrInvalidRadioMode = errors.New("radio.mode must be \"mock\" or \"udp\"")

	// ErrMissingUDPAddrs indicates radio.mode == "udp" without both
	// addresses configured.
	ErrMissingUDPAddrs = errors.New("radio.mode \"udp\" requires local_udp_addr and remote_udp_addr")
)

// ValidRadioModes lists the recognized radio.mode strings.
var ValidRadioModes = map[string]bool{
	"mock": true,
	"udp":  true,
}

// Validate checks the configuration for logical errors.
func Validate(cfg *Config) error {
	if cfg.Metrics.Addr == "" {
		return ErrEmptyMetricsAddr
	}

	if cfg.Mesh.SiteIDHex != "" {
		if _, err := hex.DecodeString(cfg.Mesh.SiteIDHex); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSiteID, err)
		}
	}

	if cfg.Mesh.SiteKeyHex != "" {
		key, err := hex.DecodeString(cfg.Mesh.SiteKeyHex)
		if err != nil || len(key) != 16 {
			return ErrInvalidSiteKey
		}
	}

	if cfg.Mesh.LocalAddr == 0xFF {
		return ErrInvalidLocalAddr
	}

	if cfg.Mesh.DutyCyclePermillage < 1 || cfg.Mesh.DutyCyclePermillage > 1000 {
		return ErrInvalidPermillage
	}

	if !ValidRadioModes[cfg.Radio.Mode] {
		return fmt.Errorf("%w: %q", ErrInvalidRadioMode, cfg.Radio.Mode)
	}
	if cfg.Radio.Mode == "udp" && (cfg.Radio.LocalUDPAddr == "" || cfg.Radio.RemoteUDPAddr == "") {
		return ErrMissingUDPAddrs
	}

	if cfg.Discovery.Enabled == (len(cfg.Discovery.Roster) > 0) {
		return ErrTableModeConflict
	}

	return nil
}

// -------------------------------------------------------------------------
// Derived accessors
// -------------------------------------------------------------------------

// SiteID decodes Mesh.SiteIDHex.
func (c *Config) SiteID() ([]byte, error) {
	return hex.DecodeString(c.Mesh.SiteIDHex)
}

// SiteKey decodes Mesh.SiteKeyHex.
func (c *Config) SiteKey() ([]byte, error) {
	return hex.DecodeString(c.Mesh.SiteKeyHex)
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
func ParseLogLevel(level string) slog.Level {
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
