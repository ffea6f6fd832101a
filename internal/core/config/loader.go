package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const defaultDatabase = "notion-bridge"

// Load reads configuration from a YAML file. A missing file is not an error;
// the service runs on defaults and environment variables.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// run on defaults
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		// Expand environment variables in the YAML content
		expandedData := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Set defaults if necessary
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}

	if cfg.Notion.APIKey == "" {
		cfg.Notion.APIKey = os.Getenv("NOTION_API_KEY")
	}
	if cfg.Notion.TimeoutSeconds == 0 {
		cfg.Notion.TimeoutSeconds = 10
	}

	if cfg.MongoDB.URI == "" {
		cfg.MongoDB.URI = os.Getenv("MONGODB_URI")
	}
	if cfg.MongoDB.Database == "" {
		cfg.MongoDB.Database = databaseFromURI(cfg.MongoDB.URI)
	}

	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 4
	}
	if cfg.Retry.InitialDelay == 0 {
		cfg.Retry.InitialDelay = 1 * time.Second
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 8 * time.Second
	}
	if cfg.Retry.JitterFactor == 0 {
		cfg.Retry.JitterFactor = 0.2
	}

	if len(cfg.CORS.Origins) == 0 {
		cfg.CORS.Origins = []string{"*"}
	}

	return &cfg, nil
}

// databaseFromURI pulls the database name out of a MongoDB connection
// string, e.g. mongodb://localhost:27017/tasks yields "tasks".
func databaseFromURI(uri string) string {
	if uri == "" {
		return defaultDatabase
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return defaultDatabase
	}
	name := strings.TrimPrefix(parsed.Path, "/")
	if name == "" {
		return defaultDatabase
	}
	return name
}
