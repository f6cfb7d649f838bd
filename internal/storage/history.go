package storage

import (
	"time"

	"go.uber.org/zap"
)

// timeLayout is fixed-width UTC so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// RecordRegistration records a tool registration.
func (s *SQLiteStorage) RecordRegistration(reg Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled || s.db == nil {
		return nil
	}

	query := `
		INSERT INTO registrations (tool_name, fragment_count, timestamp)
		VALUES (?, ?, ?)
	`

	if _, err := s.db.Exec(query, reg.ToolName, reg.FragmentCount, formatTime(reg.Timestamp)); err != nil {
		s.logger.Warn("failed to record registration", zap.String("tool", reg.ToolName), zap.Error(err))
	}

	return nil
}

// ListRegistrations retrieves registrations since a given time, newest first.
func (s *SQLiteStorage) ListRegistrations(since time.Time) ([]Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled || s.db == nil {
		return []Registration{}, nil
	}

	query := `
		SELECT tool_name, fragment_count, timestamp
		FROM registrations
		WHERE timestamp >= ?
		ORDER BY timestamp DESC, id DESC
	`

	rows, err := s.db.Query(query, formatTime(since))
	if err != nil {
		s.logger.Warn("failed to query registrations", zap.Error(err))
		return []Registration{}, nil
	}
	defer rows.Close()

	regs := []Registration{}
	for rows.Next() {
		var reg Registration
		var timestampStr string

		if err := rows.Scan(&reg.ToolName, &reg.FragmentCount, &timestampStr); err != nil {
			s.logger.Warn("failed to scan registration row", zap.Error(err))
			continue
		}

		reg.Timestamp, err = time.Parse(timeLayout, timestampStr)
		if err != nil {
			s.logger.Warn("failed to parse timestamp", zap.Error(err))
			continue
		}

		regs = append(regs, reg)
	}

	return regs, nil
}

// RecordMatch records the outcome of a match query.
func (s *SQLiteStorage) RecordMatch(match MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled || s.db == nil {
		return nil
	}

	found := 0
	if match.Found {
		found = 1
	}

	query := `
		INSERT INTO match_history (search_id, query_hash, matched_name, found, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`

	if _, err := s.db.Exec(query,
		match.SearchID,
		match.QueryHash,
		match.MatchedName,
		found,
		formatTime(match.Timestamp),
	); err != nil {
		s.logger.Warn("failed to record match", zap.Error(err))
	}

	return nil
}

// MatchStats counts recorded matches since a given time.
func (s *SQLiteStorage) MatchStats(since time.Time) (MatchStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled || s.db == nil {
		return MatchStats{}, nil
	}

	query := `
		SELECT COUNT(*), COALESCE(SUM(found), 0)
		FROM match_history
		WHERE timestamp >= ?
	`

	var stats MatchStats
	if err := s.db.QueryRow(query, formatTime(since)).Scan(&stats.Total, &stats.Found); err != nil {
		s.logger.Warn("failed to query match stats", zap.Error(err))
		return MatchStats{}, nil
	}
	stats.NotFound = stats.Total - stats.Found
	return stats, nil
}

// Cleanup removes old records based on retention policy.
func (s *SQLiteStorage) Cleanup(retention time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled || s.db == nil {
		return nil
	}

	cutoff := formatTime(time.Now().Add(-retention))

	if _, err := s.db.Exec("DELETE FROM registrations WHERE timestamp < ?", cutoff); err != nil {
		s.logger.Warn("failed to cleanup registrations", zap.Error(err))
	}

	if _, err := s.db.Exec("DELETE FROM match_history WHERE timestamp < ?", cutoff); err != nil {
		s.logger.Warn("failed to cleanup match_history", zap.Error(err))
	}

	// Vacuum to reclaim space
	if _, err := s.db.Exec("VACUUM"); err != nil {
		s.logger.Warn("failed to vacuum database", zap.Error(err))
	}

	return nil
}
