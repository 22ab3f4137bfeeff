package store

import "fmt"

// SearchHit is one full-text match.
type SearchHit struct {
	URL     string
	Title   string
	Snippet string
}

// Search runs an FTS5 MATCH over document title + content, best rank
// first.
func (s *Store) Search(query string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT d.url, d.title,
		       snippet(documents_fts, 1, '[', ']', '…', 12)
		FROM documents_fts
		JOIN documents d ON d.rowid = documents_fts.rowid
		WHERE documents_fts MATCH ?
		ORDER BY rank LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.URL, &h.Title, &h.Snippet); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// StatusCounts returns document counts per status for operator triage.
func (s *Store) StatusCounts() (map[string]int, error) {
	return s.countsBy(`SELECT status, COUNT(*) FROM documents GROUP BY status`)
}
