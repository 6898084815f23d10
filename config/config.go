// Package config provides configuration loading and management for coderonin.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete coderonin configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Generator GeneratorConfig `yaml:"generator"`
	Docs      DocsConfig      `yaml:"docs"`
	Events    EventsConfig    `yaml:"events"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig configures the HTTP surface
type ServerConfig struct {
	// Addr is the listen address (default: :3000)
	Addr string `yaml:"addr"`
	// CORSOrigin is sent as Access-Control-Allow-Origin
	CORSOrigin string `yaml:"cors_origin"`
}

// GeneratorConfig configures the text generation endpoint
type GeneratorConfig struct {
	// Provider selects the wire format ("openai", "anthropic") or a vendor alias such as "groq"
	Provider string `yaml:"provider"`
	// URL is the API base URL
	URL   string `yaml:"url"`
	Model string `yaml:"model"`
	// Temperature controls randomness (0.0-2.0, default: 0.4)
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	// Timeout bounds a single generation call (0 = no client-side limit)
	Timeout time.Duration `yaml:"timeout"`
	// APIKey is normally supplied through the environment
	APIKey string `yaml:"api_key"`
}

// DocsConfig configures documentation context
type DocsConfig struct {
	// Dir overlays the built-in static docs with *.md / *.txt files
	Dir string `yaml:"dir"`
	// Watch reloads Dir when it changes
	Watch        bool              `yaml:"watch"`
	SearchURL    string            `yaml:"search_url"`
	SearchAPIKey string            `yaml:"search_api_key"`
	MaxResults   int               `yaml:"max_results"`
	Sites        map[string]string `yaml:"sites"`
	FetchTimeout time.Duration     `yaml:"fetch_timeout"`
}

// EventsConfig configures the NATS event publisher
type EventsConfig struct {
	// NATSURL enables publishing when set
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:       ":3000",
			CORSOrigin: "*",
		},
		Generator: GeneratorConfig{
			Provider:    "openai",
			URL:         "https://api.groq.com/openai/v1",
			Model:       "llama-3.1-8b-instant",
			Temperature: 0.4,
			MaxTokens:   2048,
		},
		Docs: DocsConfig{
			SearchURL:  "https://google.serper.dev/search",
			MaxResults: 3,
			Sites: map[string]string{
				"pandas": "pandas.pydata.org/docs",
			},
			FetchTimeout: 10 * time.Second,
		},
		Events: EventsConfig{
			SubjectPrefix: "coderonin.sabotage",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Generator.Provider == "" {
		return fmt.Errorf("generator.provider is required")
	}
	if c.Generator.Model == "" {
		return fmt.Errorf("generator.model is required")
	}
	if c.Generator.Temperature < 0 || c.Generator.Temperature > 2 {
		return fmt.Errorf("generator.temperature must be between 0 and 2")
	}
	if c.Generator.MaxTokens <= 0 {
		return fmt.Errorf("generator.max_tokens must be positive")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := config.overlayFile(path); err != nil {
		return nil, err
	}
	return config, nil
}

// overlayFile decodes a YAML file onto c. Keys absent from the file keep their current value.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// SaveToFile saves configuration to a YAML file. The API keys are never written.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	redacted := *c
	redacted.Generator.APIKey = ""
	redacted.Docs.SearchAPIKey = ""

	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Server
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.CORSOrigin != "" {
		c.Server.CORSOrigin = other.Server.CORSOrigin
	}

	// Generator
	if other.Generator.Provider != "" {
		c.Generator.Provider = other.Generator.Provider
	}
	if other.Generator.URL != "" {
		c.Generator.URL = other.Generator.URL
	}
	if other.Generator.Model != "" {
		c.Generator.Model = other.Generator.Model
	}
	if other.Generator.Temperature != 0 {
		c.Generator.Temperature = other.Generator.Temperature
	}
	if other.Generator.MaxTokens != 0 {
		c.Generator.MaxTokens = other.Generator.MaxTokens
	}
	if other.Generator.Timeout != 0 {
		c.Generator.Timeout = other.Generator.Timeout
	}
	if other.Generator.APIKey != "" {
		c.Generator.APIKey = other.Generator.APIKey
	}

	// Docs
	if other.Docs.Dir != "" {
		c.Docs.Dir = other.Docs.Dir
	}
	if other.Docs.Watch {
		c.Docs.Watch = true
	}
	if other.Docs.SearchURL != "" {
		c.Docs.SearchURL = other.Docs.SearchURL
	}
	if other.Docs.SearchAPIKey != "" {
		c.Docs.SearchAPIKey = other.Docs.SearchAPIKey
	}
	if other.Docs.MaxResults != 0 {
		c.Docs.MaxResults = other.Docs.MaxResults
	}
	for lib, site := range other.Docs.Sites {
		if c.Docs.Sites == nil {
			c.Docs.Sites = make(map[string]string)
		}
		c.Docs.Sites[lib] = site
	}
	if other.Docs.FetchTimeout != 0 {
		c.Docs.FetchTimeout = other.Docs.FetchTimeout
	}

	// Events
	if other.Events.NATSURL != "" {
		c.Events.NATSURL = other.Events.NATSURL
	}
	if other.Events.SubjectPrefix != "" {
		c.Events.SubjectPrefix = other.Events.SubjectPrefix
	}

	// Metrics
	if other.Metrics.Path != "" {
		c.Metrics.Path = other.Metrics.Path
	}
}
