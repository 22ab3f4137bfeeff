package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// maxQueueAttempts caps how often a row interrupted mid-processing is
// handed out again before it is written off as failed.
const maxQueueAttempts = 3

// Enqueue adds a URL to the frontier. A URL already present (any status)
// is left untouched; reports whether a row was inserted.
func (s *Store) Enqueue(url string, depth int, parentURL string, priority int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var parent any
	if parentURL != "" {
		parent = parentURL
	}

	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO crawl_queue (url, depth, parent_url, status, added_at, priority)
		VALUES (?, ?, ?, 'pending', ?, ?)`,
		url, depth, parent, time.Now().UnixMilli(), priority)
	if err != nil {
		return false, fmt.Errorf("enqueue %s: %w", url, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("enqueue %s: %w", url, err)
	}
	return n > 0, nil
}

// NextPending claims the highest-priority pending row, marking it
// processing. Returns ErrNotFound when the frontier is drained.
func (s *Store) NextPending() (*QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var item QueueItem
	var parent sql.NullString
	err := s.db.QueryRow(`
		SELECT url, depth, parent_url, status, added_at, priority, attempts
		FROM crawl_queue WHERE status = 'pending'
		ORDER BY priority DESC, added_at ASC LIMIT 1`).
		Scan(&item.URL, &item.Depth, &parent, &item.Status, &item.AddedAt, &item.Priority, &item.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("next pending: %w", err)
	}
	item.ParentURL = parent.String

	if _, err := s.db.Exec(
		`UPDATE crawl_queue SET status = 'processing', attempts = attempts + 1 WHERE url = ?`,
		item.URL); err != nil {
		return nil, fmt.Errorf("claim %s: %w", item.URL, err)
	}
	item.Status = QueueProcessing
	item.Attempts++
	return &item, nil
}

// MarkCompleted finishes a queue row successfully.
func (s *Store) MarkCompleted(url string) error {
	return s.markQueue(url, QueueCompleted, "")
}

// MarkFailed finishes a queue row with an error reason.
func (s *Store) MarkFailed(url, reason string) error {
	return s.markQueue(url, QueueFailed, reason)
}

func (s *Store) markQueue(url, status, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE crawl_queue SET status = ?, error_message = ? WHERE url = ?`,
		status, reason, url)
	if err != nil {
		return fmt.Errorf("mark %s %s: %w", url, status, err)
	}
	return nil
}

// RequeueStale recovers rows stranded in processing by a crash: rows
// under the attempt cap go back to pending, the rest become failed.
// Returns how many were requeued.
func (s *Store) RequeueStale() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE crawl_queue SET status = 'pending'
		WHERE status = 'processing' AND attempts < ?`, maxQueueAttempts)
	if err != nil {
		return 0, fmt.Errorf("requeue stale: %w", err)
	}
	n, _ := res.RowsAffected()

	if _, err := s.db.Exec(`
		UPDATE crawl_queue SET status = 'failed', error_message = 'abandoned after repeated interruptions'
		WHERE status = 'processing'`); err != nil {
		return 0, fmt.Errorf("fail exhausted stale rows: %w", err)
	}
	return int(n), nil
}

// Known reports whether url is already accounted for: present in the
// frontier or in the document catalog.
func (s *Store) Known(url string) (bool, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT (SELECT COUNT(*) FROM crawl_queue WHERE url = ?1)
		     + (SELECT COUNT(*) FROM documents WHERE url = ?1)`, url).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("known %s: %w", url, err)
	}
	return n > 0, nil
}

// QueueCounts returns the frontier size per status.
func (s *Store) QueueCounts() (map[string]int, error) {
	return s.countsBy(`SELECT status, COUNT(*) FROM crawl_queue GROUP BY status`)
}

func (s *Store) countsBy(query string) (map[string]int, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("counts: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[k] = n
	}
	return counts, rows.Err()
}
