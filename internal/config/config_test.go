package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/loranet/loranet/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}

	if cfg.Mesh.DutyCycleWindow != 60*time.Second {
		t.Errorf("Mesh.DutyCycleWindow = %v, want %v", cfg.Mesh.DutyCycleWindow, 60*time.Second)
	}

	if cfg.Mesh.DutyCyclePermillage != 10 {
		t.Errorf("Mesh.DutyCyclePermillage = %d, want %d", cfg.Mesh.DutyCyclePermillage, 10)
	}

	if cfg.Radio.Mode != "mock" {
		t.Errorf("Radio.Mode = %q, want %q", cfg.Radio.Mode, "mock")
	}

	// Defaults carry an empty roster and discovery disabled, which fails
	// Validate's table-mode-conflict check deliberately: an operator must
	// pick one mode explicitly.
	if err := config.Validate(cfg); !errors.Is(err, config.ErrTableModeConflict) {
		t.Errorf("Validate(DefaultConfig()) error = %v, want %v", err, config.ErrTableModeConflict)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
metrics:
  addr: ":9200"
  path: "/custom-metrics"
log:
  level: "debug"
  format: "text"
mesh:
  site_id_hex: "4c4f52414e4554"
  site_key_hex: "000102030405060708090a0b0c0d0e0f"
  local_addr: 1
  duty_cycle_window: "30s"
  duty_cycle_permillage: 5
radio:
  mode: mock
discovery:
  enabled: true
  capacity: 8
`

	path := writeTemp(t, yamlContent)

	result, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}
	cfg := result.Config

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "text")
	}

	if cfg.Mesh.LocalAddr != 1 {
		t.Errorf("Mesh.LocalAddr = %d, want %d", cfg.Mesh.LocalAddr, 1)
	}

	if cfg.Mesh.DutyCycleWindow != 30*time.Second {
		t.Errorf("Mesh.DutyCycleWindow = %v, want %v", cfg.Mesh.DutyCycleWindow, 30*time.Second)
	}

	if cfg.Mesh.DutyCyclePermillage != 5 {
		t.Errorf("Mesh.DutyCyclePermillage = %d, want %d", cfg.Mesh.DutyCyclePermillage, 5)
	}

	if !cfg.Discovery.Enabled || cfg.Discovery.Capacity != 8 {
		t.Errorf("Discovery = %+v, want enabled with capacity 8", cfg.Discovery)
	}

	key, err := cfg.SiteKey()
	if err != nil || len(key) != 16 {
		t.Errorf("SiteKey() = %x, %v, want 16 bytes, nil error", key, err)
	}

	if result.Gen == (config.GenerationID{}) {
		t.Error("Load() returned a zero-value generation id")
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	yamlContent := `
log:
  level: "warn"
mesh:
  local_addr: 2
discovery:
  roster: [2, 3]
`

	path := writeTemp(t, yamlContent)

	result, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}
	cfg := result.Config

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}

	// Default values should be preserved.
	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want default %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Mesh.DutyCycleWindow != 60*time.Second {
		t.Errorf("Mesh.DutyCycleWindow = %v, want default %v", cfg.Mesh.DutyCycleWindow, 60*time.Second)
	}

	if cfg.Mesh.DutyCyclePermillage != 10 {
		t.Errorf("Mesh.DutyCyclePermillage = %d, want default %d", cfg.Mesh.DutyCyclePermillage, 10)
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	validBase := func() *config.Config {
		cfg := config.DefaultConfig()
		cfg.Mesh.LocalAddr = 1
		cfg.Discovery.Roster = []uint8{2, 3}
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name: "empty metrics addr",
			modify: func(cfg *config.Config) {
				cfg.Metrics.Addr = ""
			},
			wantErr: config.ErrEmptyMetricsAddr,
		},
		{
			name: "reserved local addr",
			modify: func(cfg *config.Config) {
				cfg.Mesh.LocalAddr = 0xFF
			},
			wantErr: config.ErrInvalidLocalAddr,
		},
		{
			name: "zero permillage",
			modify: func(cfg *config.Config) {
				cfg.Mesh.DutyCyclePermillage = 0
			},
			wantErr: config.ErrInvalidPermillage,
		},
		{
			name: "permillage too large",
			modify: func(cfg *config.Config) {
				cfg.Mesh.DutyCyclePermillage = 1001
			},
			wantErr: config.ErrInvalidPermillage,
		},
		{
			name: "bad site key length",
			modify: func(cfg *config.Config) {
				cfg.Mesh.SiteKeyHex = "ab"
			},
			wantErr: config.ErrInvalidSiteKey,
		},
		{
			name: "bad radio mode",
			modify: func(cfg *config.Config) {
				cfg.Radio.Mode = "spi"
			},
			wantErr: config.ErrInvalidRadioMode,
		},
		{
			name: "udp mode missing addrs",
			modify: func(cfg *config.Config) {
				cfg.Radio.Mode = "udp"
			},
			wantErr: config.ErrMissingUDPAddrs,
		},
		{
			name: "discovery enabled with roster also set",
			modify: func(cfg *config.Config) {
				cfg.Discovery.Enabled = true
			},
			wantErr: config.ErrTableModeConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validBase()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "INFO", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "WARN", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "Error", want: slog.LevelError},
		{input: "unknown", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "trace", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got := config.ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/path/config.yml")
	if err == nil {
		t.Fatal("Load() returned nil error for nonexistent file")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	yamlContent := `
metrics:
  addr: ":9100"
  path: "/metrics"
mesh:
  local_addr: 1
discovery:
  roster: [2]
`
	path := writeTemp(t, yamlContent)

	t.Setenv("LORANET_METRICS_ADDR", ":9200")
	t.Setenv("LORANET_METRICS_PATH", "/custom")

	result, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if result.Config.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q (from env)", result.Config.Metrics.Addr, ":9200")
	}

	if result.Config.Metrics.Path != "/custom" {
		t.Errorf("Metrics.Path = %q, want %q (from env)", result.Config.Metrics.Path, "/custom")
	}
}

// writeTemp creates a temporary YAML file and returns its path.
// The file is automatically cleaned up when the test finishes.
func writeTemp(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "loranetd.yml")

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	return path
}
