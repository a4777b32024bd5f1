// Package config loads signald configuration from YAML with environment
// overrides. Missing files yield defaults so the binaries run with zero
// setup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all signald configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Push    PushConfig    `yaml:"push"`
	Agent   AgentConfig   `yaml:"agent"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the signal server bindings.
type ServerConfig struct {
	// Transport selects the session binding: "stdio" or "http".
	Transport string `yaml:"transport"`
	// Listen is the HTTP bind address, used when Transport is "http".
	Listen string `yaml:"listen"`
}

// StoreConfig configures event persistence.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// PushConfig configures the plain HTTP push endpoint.
type PushConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// AgentConfig configures the outbound agent and event generator.
type AgentConfig struct {
	// ServerURL is the signal server endpoint for the http transport,
	// or the server command line for the stdio transport.
	ServerURL string `yaml:"server_url"`
	Transport string `yaml:"transport"`
	Count     int    `yaml:"count"`
	Delay     string `yaml:"delay"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
	JSON    bool `yaml:"json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Transport: "stdio",
			Listen:    ":8000",
		},
		Store: StoreConfig{
			DatabasePath: "signal_events.db",
		},
		Push: PushConfig{
			Enabled: true,
			Listen:  ":8001",
		},
		Agent: AgentConfig{
			ServerURL: "http://localhost:8000/mcp",
			Transport: "http",
			Count:     10,
			Delay:     "2s",
		},
		Logging: LoggingConfig{
			Verbose: false,
			JSON:    false,
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults when
// the file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("SIGNALD_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if addr := os.Getenv("SIGNALD_LISTEN"); addr != "" {
		c.Server.Listen = addr
	}
	if addr := os.Getenv("SIGNALD_PUSH_LISTEN"); addr != "" {
		c.Push.Listen = addr
	}
	if url := os.Getenv("SIGNALD_SERVER_URL"); url != "" {
		c.Agent.ServerURL = url
	}
}

// AgentDelay returns the configured inter-event delay as a duration.
func (c *Config) AgentDelay() time.Duration {
	d, err := time.ParseDuration(c.Agent.Delay)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid server transport: %q", c.Server.Transport)
	}
	switch c.Agent.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid agent transport: %q", c.Agent.Transport)
	}
	if c.Store.DatabasePath == "" {
		return fmt.Errorf("store database_path must not be empty")
	}
	return nil
}
