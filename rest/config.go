package rest

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jacentio/cloudbridge/bridge"
)

// Config holds configuration for an HTTPSession and Connection.
type Config struct {
	// BaseURL is prepended to every request path (e.g., "https://api.example.com").
	BaseURL string `yaml:"base_url"`

	// Timeout bounds each request.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// UserAgent is sent with every request.
	// Default: "cloudbridge"
	UserAgent string `yaml:"user_agent"`

	// Mapping names the property mapping: "identity" or "underscored".
	// Default: "identity"
	Mapping string `yaml:"mapping"`

	// Headers are sent with every request.
	Headers map[string]string `yaml:"headers"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Timeout:   30 * time.Second,
		UserAgent: "cloudbridge",
		Mapping:   "identity",
	}
}

// validate fills unset values with defaults.
func (c *Config) validate() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "cloudbridge"
	}
	if c.Mapping == "" {
		c.Mapping = "identity"
	}
}

// PropertyMapping returns the mapping named by Mapping.
func (c Config) PropertyMapping() (bridge.PropertyMapping, error) {
	return bridge.MappingByName(c.Mapping)
}

// LoadConfig reads a YAML config file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.validate()
	if _, err := cfg.PropertyMapping(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
