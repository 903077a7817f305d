package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConnectionBlock describes one logical Postgres connection. Blocks are
// matched to live connections by name on every reload.
type ConnectionBlock struct {
	Name     string `yaml:"name"`
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MetricsConfig holds Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// Config is the central configuration struct for the daemon.
type Config struct {
	LogLevel      string            `yaml:"log_level"`
	LogFormat     string            `yaml:"log_format"`
	DrainInterval time.Duration     `yaml:"drain_interval"`
	Metrics       MetricsConfig     `yaml:"metrics"`
	Tracing       TracingConfig     `yaml:"tracing"`
	Connections   []ConnectionBlock `yaml:"connections"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:      "info",
		LogFormat:     "text",
		DrainInterval: time.Second,
		Metrics: MetricsConfig{
			Enabled:   true,
			Addr:      ":9100",
			Namespace: "quasar",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    "otlp-http",
			Endpoint:    "localhost:4318",
			ServiceName: "quasar",
			SampleRate:  1.0,
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Normalize()
	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to the config.
// QUASAR_PG_* variables override (or create) the "main" connection block.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("QUASAR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("QUASAR_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("QUASAR_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}

	applyPgEnv(cfg)
	cfg.Normalize()
}

// applyPgEnv folds the QUASAR_PG_* overrides into the "main" block. The
// block is only fetched (or synthesized) when at least one override is set,
// so a config without a "main" block survives a no-op environment untouched.
func applyPgEnv(cfg *Config) {
	server := os.Getenv("QUASAR_PG_SERVER")
	port := os.Getenv("QUASAR_PG_PORT")
	database := os.Getenv("QUASAR_PG_DATABASE")
	username := os.Getenv("QUASAR_PG_USERNAME")
	password := os.Getenv("QUASAR_PG_PASSWORD")
	if server == "" && port == "" && database == "" && username == "" && password == "" {
		return
	}

	main := cfg.mainBlock()
	if server != "" {
		main.Server = server
	}
	if port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			main.Port = n
		}
	}
	if database != "" {
		main.Database = database
	}
	if username != "" {
		main.Username = username
	}
	if password != "" {
		main.Password = password
	}
}

// mainBlock returns the "main" connection block, creating it when the env
// overrides are the only source of connection settings.
func (c *Config) mainBlock() *ConnectionBlock {
	for i := range c.Connections {
		if c.Connections[i].Name == "main" || c.Connections[i].Name == "" {
			return &c.Connections[i]
		}
	}
	c.Connections = append(c.Connections, ConnectionBlock{Name: "main"})
	return &c.Connections[len(c.Connections)-1]
}

// Normalize fills per-block defaults.
func (c *Config) Normalize() {
	for i := range c.Connections {
		b := &c.Connections[i]
		if b.Name == "" {
			b.Name = "main"
		}
		if b.Server == "" {
			b.Server = "127.0.0.1"
		}
		if b.Port == 0 {
			b.Port = 5432
		}
	}
	if c.DrainInterval <= 0 {
		c.DrainInterval = time.Second
	}
}

// Validate rejects configurations the lifecycle layer cannot act on.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Connections))
	for _, b := range c.Connections {
		if seen[b.Name] {
			return fmt.Errorf("duplicate connection block %q", b.Name)
		}
		seen[b.Name] = true
		if b.Database == "" {
			return fmt.Errorf("connection block %q: database is required", b.Name)
		}
	}
	return nil
}
