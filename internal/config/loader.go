package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables overriding the file.
const (
	EnvAddr        = "TOOLDB_ADDR"
	EnvBackend     = "TOOLDB_BACKEND"
	EnvPostgresDSN = "TOOLDB_POSTGRES_DSN"
	EnvOpenAIKey   = "OPENAI_API_KEY"
	EnvLogLevel    = "TOOLDB_LOG_LEVEL"
)

// Load reads the configuration at path, applies environment overrides and
// validates the result. An empty path means DefaultPath, which may be
// absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := LoadFrom(path)
	var notFound *ConfigNotFoundError
	switch {
	case errors.As(err, &notFound) && !explicit:
		cfg = Default()
	case err != nil:
		return nil, err
	}

	ApplyEnv(cfg)

	expanded, err := expandHome(cfg.History.Path)
	if err != nil {
		return nil, err
	}
	cfg.History.Path = expanded

	if err := cfg.Validate(); err != nil {
		return nil, &InvalidConfigError{
			Path:    path,
			Message: err.Error(),
			Hint:    "Fix the value in the file or the matching TOOLDB_* variable",
		}
	}
	return cfg, nil
}

// LoadFrom reads the YAML file at path on top of Default. It does not apply
// environment overrides or validate.
func LoadFrom(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, &ConfigNotFoundError{
				Path: path,
				Hint: "Run 'tooldb config init' to write a default configuration",
			}
		}
		return nil, fmt.Errorf("failed to access config: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, &PermissionError{
				Path:    path,
				Op:      "read",
				Fix:     getReadPermissionFix(path),
				Details: getPermissionDetails(path),
			}
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &InvalidConfigError{
			Path:    path,
			Message: fmt.Sprintf("YAML parse error: %v", err),
			Hint:    "Restore from .bak file if available",
		}
	}

	return cfg, nil
}

// ApplyEnv overrides cfg with the TOOLDB_* and OPENAI_API_KEY variables
// that are set and non-empty.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvAddr); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv(EnvBackend); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		cfg.Store.PostgresDSN = v
	}
	if v := os.Getenv(EnvOpenAIKey); v != "" {
		cfg.Embeddings.APIKey = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
}

// expandHome replaces a leading "~/" in path with the user's home directory.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// getReadPermissionFix returns a platform-specific fix command.
func getReadPermissionFix(path string) string {
	switch runtime.GOOS {
	case "windows":
		return fmt.Sprintf("Right-click %s → Properties → Security → Edit permissions", path)
	default:
		return fmt.Sprintf("Run: chmod 600 %s", path)
	}
}

func getPermissionDetails(path string) string {
	if runtime.GOOS == "windows" {
		return ""
	}
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("Current permissions: %04o", info.Mode().Perm())
}
