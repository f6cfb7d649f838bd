/*
Package storage implements the persistent history kept next to the service.

It records tool registrations and match outcomes for auditing, and caches
embedding vectors so that re-registered text is not embedded twice. It does
not persist the collection itself: the collection starts empty on every run.

The database defaults to ~/.tooldb/history.db and uses modernc.org/sqlite
(a pure Go, CGo-free implementation). If the database cannot be opened the
storage disables itself and every operation becomes a no-op.
*/
package storage

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Storage defines the interface for persistent history operations.
type Storage interface {
	// Init opens the database and runs migrations.
	Init() error

	// RecordRegistration records a tool registration.
	RecordRegistration(reg Registration) error

	// ListRegistrations returns registrations recorded since a given time, newest first.
	ListRegistrations(since time.Time) ([]Registration, error)

	// RecordMatch records the outcome of a match query.
	RecordMatch(match MatchRecord) error

	// MatchStats counts recorded matches since a given time.
	MatchStats(since time.Time) (MatchStats, error)

	// SaveEmbedding caches an embedding vector for a text hash and model.
	SaveEmbedding(textHash, model string, vector []float32) error

	// GetEmbedding retrieves a cached embedding, or nil if absent.
	GetEmbedding(textHash, model string) ([]float32, error)

	// Cleanup removes history older than the retention period.
	Cleanup(retention time.Duration) error

	// Close closes the database connection.
	Close() error
}

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db       *sql.DB
	dbPath   string
	enabled  bool
	logger   *zap.Logger
	mu       sync.Mutex
	initOnce sync.Once
}

// DefaultPath returns ~/.tooldb/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".tooldb", "history.db"), nil
}

// NewStorage creates a SQLite storage instance at dbPath, or at DefaultPath
// when dbPath is empty. If no path can be determined the storage is disabled
// but operations will not fail.
func NewStorage(dbPath string, logger *zap.Logger) *SQLiteStorage {
	if logger == nil {
		logger = zap.NewNop()
	}

	if dbPath == "" {
		p, err := DefaultPath()
		if err != nil {
			logger.Warn("history storage disabled", zap.Error(err))
			return &SQLiteStorage{enabled: false, logger: logger}
		}
		dbPath = p
	}

	return &SQLiteStorage{
		dbPath:  dbPath,
		enabled: true,
		logger:  logger,
	}
}

// Enabled reports whether the storage is usable.
func (s *SQLiteStorage) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled && s.db != nil
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// Init initializes the database and runs migrations.
//
// If initialization fails, storage is disabled and subsequent operations
// become no-ops (graceful degradation).
func (s *SQLiteStorage) Init() error {
	if !s.enabled {
		return nil
	}

	var initErr error
	s.initOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(s.dbPath), 0755); err != nil {
			initErr = fmt.Errorf("failed to create db directory: %w", err)
			s.disable(initErr)
			return
		}

		db, err := sql.Open("sqlite", s.dbPath)
		if err != nil {
			initErr = fmt.Errorf("failed to open database: %w", err)
			s.disable(initErr)
			return
		}
		// A single connection serialises writers; SQLite locks the file anyway.
		db.SetMaxOpenConns(1)
		s.db = db

		if err := db.Ping(); err != nil {
			initErr = fmt.Errorf("failed to ping database: %w", err)
			s.disable(initErr)
			return
		}

		if err := s.runMigrations(); err != nil {
			initErr = fmt.Errorf("failed to run migrations: %w", err)
			s.disable(initErr)
			return
		}
	})

	return initErr
}

// disable turns storage off after a failed Init. Caller holds s.mu.
func (s *SQLiteStorage) disable(err error) {
	s.logger.Warn("history storage disabled", zap.String("path", s.dbPath), zap.Error(err))
	s.enabled = false
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled || s.db == nil {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.db = nil
	return nil
}

// HashQuery creates a SHA256 hash of a query string for privacy.
func HashQuery(query string) string {
	hash := sha256.Sum256([]byte(query))
	return hex.EncodeToString(hash[:])
}
