package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SetState writes a run-level key/value pair.
func (s *Store) SetState(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO crawl_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set state %s: %w", key, err)
	}
	return nil
}

// GetState reads a run-level value; missing keys return "".
func (s *Store) GetState(key string) (string, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM crawl_state WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get state %s: %w", key, err)
	}
	return v, nil
}

// LogFetch appends one row to the fetch trail.
func (s *Store) LogFetch(rec FetchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fetchedAt := rec.FetchedAt
	if fetchedAt == 0 {
		fetchedAt = time.Now().UnixMilli()
	}
	var code any
	if rec.StatusCode != 0 {
		code = rec.StatusCode
	}

	_, err := s.db.Exec(`
		INSERT INTO fetch_log (url, status, status_code, error_message, duration_ms, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.URL, rec.Status, code, rec.ErrorMessage, rec.DurationMS, fetchedAt)
	if err != nil {
		return fmt.Errorf("log fetch %s: %w", rec.URL, err)
	}
	return nil
}
