package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults match the endpoint and model the debug client has always used.
const (
	DefaultBaseURI          = "http://localhost:8000"
	DefaultModel            = "gpt-3.5-turbo"
	DefaultInvokePath       = "/invoke"
	DefaultAddr             = "0.0.0.0:8000"
	DefaultKeepAliveSeconds = 15
	DefaultMaxBodyBytes     = 1 << 20
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "console"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WEATHERWAX_"

// WithDefaults returns a copy of c with unspecified fields filled in.
func (c Config) WithDefaults() Config {
	if c.BaseURI == "" {
		c.BaseURI = DefaultBaseURI
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.InvokePath == "" {
		c.InvokePath = DefaultInvokePath
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.KeepAliveSeconds <= 0 {
		c.KeepAliveSeconds = DefaultKeepAliveSeconds
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return c
}

// RequestTimeout is the overall deadline for one invocation; zero disables it.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ConnectTimeout bounds dialing the server; zero leaves the dialer default.
func (c Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// KeepAlive is the interval between SSE keep-alive comments.
func (c Config) KeepAlive() time.Duration {
	return time.Duration(c.KeepAliveSeconds) * time.Second
}

// ApplyEnv overrides fields of c from WEATHERWAX_* environment variables.
// OPENAI_API_KEY is honored when no prefixed key is set.
func ApplyEnv(c *Config) {
	setStr(&c.BaseURI, "BASE_URI")
	setStr(&c.Model, "MODEL")
	setStr(&c.InvokePath, "INVOKE_PATH")
	setInt(&c.RequestTimeoutSeconds, "REQUEST_TIMEOUT_SECONDS")
	setInt(&c.ConnectTimeoutSeconds, "CONNECT_TIMEOUT_SECONDS")
	setStr(&c.DoneMarker, "DONE_MARKER")
	setStr(&c.LogLevel, "LOG_LEVEL")
	setStr(&c.LogFormat, "LOG_FORMAT")
	setStr(&c.Addr, "ADDR")
	setInt(&c.KeepAliveSeconds, "KEEPALIVE_SECONDS")
	if v, ok := lookup("MAX_BODY_BYTES"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxBodyBytes = n
		}
	}
	if v, ok := lookup("CORS_ENABLED"); ok {
		s := strings.ToLower(v)
		c.CORSEnabled = s == "1" || s == "true" || s == "yes"
	}
	if v, ok := lookup("CORS_ORIGINS"); ok {
		c.CORSOrigins = SplitCSV(v)
	}
	setStr(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setStr(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// Resolve builds the effective configuration: the file at path (if any),
// then environment overrides (including a .env file in the working
// directory), then defaults.
func Resolve(path string) (Config, error) {
	var cfg Config
	if path != "" {
		c, err := Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = c
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}
	ApplyEnv(&cfg)
	return cfg.WithDefaults(), nil
}

// SplitCSV splits a comma-separated list, trimming blanks and dropping empty items.
func SplitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func lookup(key string) (string, bool) {
	v := os.Getenv(EnvPrefix + key)
	return v, v != ""
}

func setStr(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
