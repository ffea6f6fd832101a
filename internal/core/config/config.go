package config

import (
	"fmt"
	"time"

	"github.com/tasklink/notionbridge/internal/infra/retry"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Notion  NotionConfig  `yaml:"notion"`
	MongoDB MongoConfig   `yaml:"mongodb"`
	Retry   RetryConfig   `yaml:"retry"`
	CORS    CORSConfig    `yaml:"cors"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address in host:port form.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NotionConfig holds Notion API settings. The API key falls back to the
// NOTION_API_KEY environment variable.
type NotionConfig struct {
	APIKey         string `yaml:"api_key"`
	Version        string `yaml:"version"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the per-request Notion API timeout.
func (c NotionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MongoConfig holds MongoDB settings. An empty URI selects the in-memory
// storage backend.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// RetryConfig holds backoff settings for Notion API calls.
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	JitterFactor float64       `yaml:"jitter_factor"`
}

// Policy converts the configured knobs into a retry policy.
func (c RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxRetries:   c.MaxRetries,
		InitialDelay: c.InitialDelay,
		MaxDelay:     c.MaxDelay,
		JitterFactor: c.JitterFactor,
	}
}

// CORSConfig holds the allowed origins for browser callers.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
