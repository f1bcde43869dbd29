package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for both the invoke client and the server.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	// Client
	BaseURI               string `json:"base_uri" yaml:"base_uri" toml:"base_uri"`
	Model                 string `json:"model" yaml:"model" toml:"model"`
	InvokePath            string `json:"invoke_path" yaml:"invoke_path" toml:"invoke_path"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" yaml:"request_timeout_seconds" toml:"request_timeout_seconds"`
	ConnectTimeoutSeconds int    `json:"connect_timeout_seconds" yaml:"connect_timeout_seconds" toml:"connect_timeout_seconds"`
	DoneMarker            string `json:"done_marker" yaml:"done_marker" toml:"done_marker"`

	// Logging
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	// Server
	Addr             string   `json:"addr" yaml:"addr" toml:"addr"`
	KeepAliveSeconds int      `json:"keepalive_seconds" yaml:"keepalive_seconds" toml:"keepalive_seconds"`
	MaxBodyBytes     int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORSEnabled      bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins      []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`

	Static StaticConfig `json:"static" yaml:"static" toml:"static"`
	OpenAI OpenAIConfig `json:"openai" yaml:"openai" toml:"openai"`
}

// StaticConfig configures the built-in static provider.
type StaticConfig struct {
	Models     []string `json:"models" yaml:"models" toml:"models"`
	Reply      []string `json:"reply" yaml:"reply" toml:"reply"`
	IntervalMS int      `json:"interval_ms" yaml:"interval_ms" toml:"interval_ms"`
}

// OpenAIConfig configures the OpenAI-compatible upstream provider. The
// provider is only registered when BaseURL is set.
type OpenAIConfig struct {
	BaseURL string   `json:"base_url" yaml:"base_url" toml:"base_url"`
	APIKey  string   `json:"api_key" yaml:"api_key" toml:"api_key"`
	Models  []string `json:"models" yaml:"models" toml:"models"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	p, err := expandHome(path)
	if err != nil {
		return cfg, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(p)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// expandHome expands a leading '~' to the user's home directory.
func expandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
