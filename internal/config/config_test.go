package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("log defaults = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.DrainInterval != time.Second {
		t.Errorf("DrainInterval = %v", cfg.DrainInterval)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != ":9100" || cfg.Metrics.Namespace != "quasar" {
		t.Errorf("metrics defaults = %+v", cfg.Metrics)
	}
	if cfg.Tracing.Enabled {
		t.Error("tracing enabled by default")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quasar.yaml")
	doc := `
log_level: debug
metrics:
  enabled: false
connections:
  - name: main
    server: db1.internal
    database: app
    username: svc
    password: hunter2
  - name: archive
    database: archive
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Metrics.Enabled {
		t.Error("metrics still enabled")
	}
	if len(cfg.Connections) != 2 {
		t.Fatalf("connections = %d", len(cfg.Connections))
	}
	if cfg.Connections[0].Server != "db1.internal" {
		t.Errorf("server = %q", cfg.Connections[0].Server)
	}

	// Normalize filled the per-block defaults for the sparse second block.
	if cfg.Connections[1].Server != "127.0.0.1" || cfg.Connections[1].Port != 5432 {
		t.Errorf("normalized block = %+v", cfg.Connections[1])
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("no error for missing file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("QUASAR_LOG_LEVEL", "warn")
	t.Setenv("QUASAR_PG_SERVER", "db2.internal")
	t.Setenv("QUASAR_PG_PORT", "5433")
	t.Setenv("QUASAR_PG_DATABASE", "app")
	t.Setenv("QUASAR_PG_USERNAME", "svc")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if len(cfg.Connections) != 1 {
		t.Fatalf("connections = %d, want the synthesized main block", len(cfg.Connections))
	}
	b := cfg.Connections[0]
	if b.Name != "main" || b.Server != "db2.internal" || b.Port != 5433 || b.Database != "app" {
		t.Errorf("main block = %+v", b)
	}
}

func TestLoadFromEnvNoOverrides(t *testing.T) {
	for _, k := range []string{
		"QUASAR_LOG_LEVEL", "QUASAR_LOG_FORMAT", "QUASAR_METRICS_ADDR",
		"QUASAR_PG_SERVER", "QUASAR_PG_PORT", "QUASAR_PG_DATABASE",
		"QUASAR_PG_USERNAME", "QUASAR_PG_PASSWORD",
	} {
		t.Setenv(k, "")
	}

	cfg := DefaultConfig()
	cfg.Connections = []ConnectionBlock{{Name: "archive", Database: "archive"}}
	LoadFromEnv(cfg)

	if len(cfg.Connections) != 1 || cfg.Connections[0].Name != "archive" {
		t.Fatalf("connections = %+v, want the archive block alone", cfg.Connections)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate after no-op env load: %v", err)
	}
}

func TestLoadFromEnvOverridesExistingMain(t *testing.T) {
	t.Setenv("QUASAR_PG_PASSWORD", "rotated")

	cfg := DefaultConfig()
	cfg.Connections = []ConnectionBlock{{Name: "main", Database: "app", Password: "stale"}}
	LoadFromEnv(cfg)

	if len(cfg.Connections) != 1 {
		t.Fatalf("connections = %d, want 1", len(cfg.Connections))
	}
	if cfg.Connections[0].Password != "rotated" {
		t.Errorf("password = %q", cfg.Connections[0].Password)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		blocks  []ConnectionBlock
		wantErr bool
	}{
		{"empty", nil, false},
		{"valid", []ConnectionBlock{{Name: "main", Database: "app"}}, false},
		{"duplicate names", []ConnectionBlock{
			{Name: "main", Database: "app"},
			{Name: "main", Database: "other"},
		}, true},
		{"missing database", []ConnectionBlock{{Name: "main"}}, true},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Connections = tt.blocks
		err := cfg.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}
