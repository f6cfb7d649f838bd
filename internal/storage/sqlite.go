/*
Package storage provides SQLite database migrations and helper functions.

This file contains schema definitions, migration logic, and vector serialization
utilities for the storage layer.
*/
package storage

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// runMigrations executes database schema migrations.
func (s *SQLiteStorage) runMigrations() error {
	if s.db == nil {
		return nil
	}

	if err := s.createMigrationsTable(); err != nil {
		return err
	}

	version, err := s.getCurrentMigrationVersion()
	if err != nil {
		return err
	}

	// Run migrations in order
	migrations := []migration{
		{version: 1, name: "initial_schema", up: s.migration001InitialSchema},
	}

	for _, m := range migrations {
		if version < m.version {
			s.logger.Info("running migration", zap.Int("version", m.version), zap.String("name", m.name))
			if err := m.up(); err != nil {
				return fmt.Errorf("migration %d failed: %w", m.version, err)
			}
			if err := s.setMigrationVersion(m.version, m.name); err != nil {
				return err
			}
		}
	}

	return nil
}

// migration represents a single database migration.
type migration struct {
	version int
	name    string
	up      func() error
}

// createMigrationsTable creates the schema_migrations table.
func (s *SQLiteStorage) createMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`
	_, err := s.db.Exec(query)
	return err
}

// getCurrentMigrationVersion returns the highest applied migration version.
func (s *SQLiteStorage) getCurrentMigrationVersion() (int, error) {
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")

	var version int
	if err := row.Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

// setMigrationVersion records a migration as applied.
func (s *SQLiteStorage) setMigrationVersion(version int, name string) error {
	_, err := s.db.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", version, name)
	return err
}

// migration001InitialSchema creates the initial database schema.
func (s *SQLiteStorage) migration001InitialSchema() error {
	statements := []struct {
		what string
		sql  string
	}{
		{"registrations table", `
			CREATE TABLE IF NOT EXISTS registrations (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				tool_name TEXT NOT NULL,
				fragment_count INTEGER NOT NULL,
				timestamp TEXT NOT NULL
			)`},
		{"registrations tool index", `
			CREATE INDEX IF NOT EXISTS idx_registrations_tool
			ON registrations(tool_name)`},
		{"registrations timestamp index", `
			CREATE INDEX IF NOT EXISTS idx_registrations_timestamp
			ON registrations(timestamp DESC)`},
		{"match_history table", `
			CREATE TABLE IF NOT EXISTS match_history (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				search_id TEXT NOT NULL UNIQUE,
				query_hash TEXT NOT NULL,
				matched_name TEXT NOT NULL,
				found INTEGER NOT NULL,
				timestamp TEXT NOT NULL
			)`},
		{"match_history timestamp index", `
			CREATE INDEX IF NOT EXISTS idx_match_history_timestamp
			ON match_history(timestamp DESC)`},
		{"embeddings table", `
			CREATE TABLE IF NOT EXISTS embeddings (
				text_hash TEXT NOT NULL,
				model TEXT NOT NULL,
				vector TEXT NOT NULL,
				created_at TEXT NOT NULL,
				PRIMARY KEY (text_hash, model)
			)`},
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.what, err)
		}
	}
	return nil
}

// vectorToJSON converts a float32 vector to JSON for storage.
func vectorToJSON(vector []float32) (string, error) {
	data, err := json.Marshal(vector)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// jsonToVector parses JSON storage back to a float32 vector.
func jsonToVector(jsonStr string) ([]float32, error) {
	var vector []float32
	if err := json.Unmarshal([]byte(jsonStr), &vector); err != nil {
		return nil, err
	}
	return vector, nil
}
