package storage

import (
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"
)

// SaveEmbedding caches an embedding vector for a text hash and model.
func (s *SQLiteStorage) SaveEmbedding(textHash, model string, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled || s.db == nil {
		return nil
	}

	vectorJSON, err := vectorToJSON(vector)
	if err != nil {
		s.logger.Warn("failed to marshal vector", zap.Error(err))
		return nil
	}

	query := `
		INSERT OR REPLACE INTO embeddings (text_hash, model, vector, created_at)
		VALUES (?, ?, ?, ?)
	`

	if _, err := s.db.Exec(query, textHash, model, vectorJSON, formatTime(time.Now())); err != nil {
		s.logger.Warn("failed to save embedding", zap.Error(err))
	}

	return nil
}

// GetEmbedding retrieves a cached embedding, or nil if none is stored.
func (s *SQLiteStorage) GetEmbedding(textHash, model string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled || s.db == nil {
		return nil, nil
	}

	query := `
		SELECT vector
		FROM embeddings
		WHERE text_hash = ? AND model = ?
	`

	var vectorJSON string
	err := s.db.QueryRow(query, textHash, model).Scan(&vectorJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.logger.Warn("failed to query embedding", zap.Error(err))
		return nil, nil
	}

	vector, err := jsonToVector(vectorJSON)
	if err != nil {
		s.logger.Warn("failed to parse embedding vector", zap.Error(err))
		return nil, nil
	}

	return vector, nil
}
