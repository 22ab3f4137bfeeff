package store

import (
	"database/sql"
	"fmt"
)

// ReplaceLinkEdges replaces the parent's outbound edge set in one
// transaction, mirroring ReplaceFAQItems.
func (s *Store) ReplaceLinkEdges(parentURL string, edges []LinkEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM link_edges WHERE parent_url = ?`, parentURL); err != nil {
			return fmt.Errorf("clear link edges for %s: %w", parentURL, err)
		}
		for _, e := range edges {
			_, err := tx.Exec(`
				INSERT INTO link_edges
					(parent_url, child_url, anchor_text, is_external, canonical_child_url)
				VALUES (?, ?, ?, ?, ?)`,
				parentURL, e.ChildURL, e.AnchorText, e.IsExternal, e.CanonicalChildURL)
			if err != nil {
				return fmt.Errorf("insert link edge for %s: %w", parentURL, err)
			}
		}
		return nil
	})
}

// LinkEdgesFor returns the parent's outbound edges in insertion order.
func (s *Store) LinkEdgesFor(parentURL string) ([]LinkEdge, error) {
	rows, err := s.db.Query(`
		SELECT id, parent_url, child_url, anchor_text, is_external, canonical_child_url
		FROM link_edges WHERE parent_url = ? ORDER BY id`, parentURL)
	if err != nil {
		return nil, fmt.Errorf("link edges for %s: %w", parentURL, err)
	}
	defer rows.Close()
	return scanLinkEdges(rows)
}

// ListLinkEdges returns the full link graph ordered by id.
func (s *Store) ListLinkEdges() ([]LinkEdge, error) {
	rows, err := s.db.Query(`
		SELECT id, parent_url, child_url, anchor_text, is_external, canonical_child_url
		FROM link_edges ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list link edges: %w", err)
	}
	defer rows.Close()
	return scanLinkEdges(rows)
}

func scanLinkEdges(rows *sql.Rows) ([]LinkEdge, error) {
	var edges []LinkEdge
	for rows.Next() {
		var e LinkEdge
		if err := rows.Scan(&e.ID, &e.ParentURL, &e.ChildURL, &e.AnchorText,
			&e.IsExternal, &e.CanonicalChildURL); err != nil {
			return nil, fmt.Errorf("scan link edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
