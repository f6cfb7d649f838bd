/*
Package config loads the tooldb server configuration.

Configuration is stored as YAML in ~/.tooldb.yaml. Every field is optional;
a missing default file yields Default(). Environment variables override the
file, and command-line flags override both.

Schema:

	server:
	  addr: 0.0.0.0:5000
	  read_timeout: 10s
	  write_timeout: 10s
	  shutdown_timeout: 15s
	store:
	  backend: bleve          # bleve | memory | pgvector
	  collection: connected-agents
	  postgres_dsn: ""
	embeddings:
	  provider: openai
	  model: text-embedding-3-small
	  api_key: ""
	  base_url: ""
	  timeout: 30s
	  max_retries: 2
	  cache: true
	history:
	  enabled: true
	  path: ~/.tooldb/history.db   # a leading ~/ is the home directory
	  retention: 720h
	log:
	  level: info
	  development: false
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/khanglvm/tooldb/internal/vectorstore"
)

// Config is the root configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	History    HistoryConfig    `yaml:"history"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout bounds the graceful drain on SIGINT/SIGTERM.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig selects the vector collection backend.
type StoreConfig struct {
	Backend     string `yaml:"backend"`
	Collection  string `yaml:"collection"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// EmbeddingsConfig configures the embeddings provider used by the memory
// and pgvector backends.
type EmbeddingsConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`

	// Timeout bounds each embeddings request. Zero leaves it to the context.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is how often a failed request is retried.
	MaxRetries int `yaml:"max_retries"`

	// Cache stores computed vectors in the history database.
	Cache bool `yaml:"cache"`
}

// HistoryConfig configures the SQLite audit trail.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`

	// Retention is how long records are kept. Zero keeps them forever.
	Retention time.Duration `yaml:"retention"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// EmbeddingsOpenAI is the only supported embeddings provider.
const EmbeddingsOpenAI = "openai"

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            "0.0.0.0:5000",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Store: StoreConfig{
			Backend:    vectorstore.BackendBleve,
			Collection: vectorstore.DefaultCollectionName,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   EmbeddingsOpenAI,
			Timeout:    30 * time.Second,
			MaxRetries: 2,
			Cache:      true,
		},
		History: HistoryConfig{
			Enabled:   true,
			Retention: 30 * 24 * time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.tooldb.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".tooldb.yaml"), nil
}
