package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/khanglvm/tooldb/internal/vectorstore"
)

// Validate reports the first inconsistency in cfg.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		return errors.New("server timeouts must not be negative")
	}

	if !slices.Contains(vectorstore.Backends(), c.Store.Backend) {
		return fmt.Errorf("store.backend %q is not one of %s",
			c.Store.Backend, strings.Join(vectorstore.Backends(), ", "))
	}
	if c.Store.Backend == vectorstore.BackendPgvector && c.Store.PostgresDSN == "" {
		return fmt.Errorf("store.backend %q requires store.postgres_dsn", vectorstore.BackendPgvector)
	}

	if vectorstore.NeedsEmbeddings(c.Store.Backend) {
		if c.Embeddings.Provider != EmbeddingsOpenAI {
			return fmt.Errorf("embeddings.provider %q is not supported", c.Embeddings.Provider)
		}
		if c.Embeddings.APIKey == "" {
			return fmt.Errorf("store.backend %q requires embeddings.api_key or %s", c.Store.Backend, EnvOpenAIKey)
		}
	}

	if c.Embeddings.Timeout < 0 || c.Embeddings.MaxRetries < 0 {
		return errors.New("embeddings.timeout and embeddings.max_retries must not be negative")
	}

	if c.History.Retention < 0 {
		return errors.New("history.retention must not be negative")
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}
