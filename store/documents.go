package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by point lookups with no matching row.
var ErrNotFound = errors.New("store: not found")

// UpsertDocument writes the full document row, replacing any existing
// row for the same URL. CrawledAt defaults to now when zero.
func (s *Store) UpsertDocument(d Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := d.MetaTags.encode()
	if err != nil {
		return err
	}
	paths, err := d.ArtifactPaths.encode()
	if err != nil {
		return err
	}
	crawledAt := d.CrawledAt
	if crawledAt == 0 {
		crawledAt = time.Now().UnixMilli()
	}

	_, err = s.db.Exec(`
		INSERT INTO documents
			(url, canonical_url, status, depth_from_seed, url_path, content_type,
			 title, content, crawled_at, error_message, meta_tags, local_artifact_paths)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			canonical_url        = excluded.canonical_url,
			status               = excluded.status,
			depth_from_seed      = excluded.depth_from_seed,
			url_path             = excluded.url_path,
			content_type         = excluded.content_type,
			title                = excluded.title,
			content              = excluded.content,
			crawled_at           = excluded.crawled_at,
			error_message        = excluded.error_message,
			meta_tags            = excluded.meta_tags,
			local_artifact_paths = excluded.local_artifact_paths`,
		d.URL, d.CanonicalURL, d.Status, d.DepthFromSeed, d.URLPath, d.ContentType,
		d.Title, d.Content, crawledAt, d.ErrorMessage, meta, paths)
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", d.URL, err)
	}
	return nil
}

// GetDocument returns the row for url, or ErrNotFound.
func (s *Store) GetDocument(url string) (*Document, error) {
	row := s.db.QueryRow(`
		SELECT url, canonical_url, status, depth_from_seed, url_path, content_type,
		       title, content, crawled_at, error_message, meta_tags, local_artifact_paths
		FROM documents WHERE url = ?`, url)
	return scanDocument(row)
}

// ListDocuments returns every document ordered by URL.
func (s *Store) ListDocuments() ([]Document, error) {
	rows, err := s.db.Query(`
		SELECT url, canonical_url, status, depth_from_seed, url_path, content_type,
		       title, content, crawled_at, error_message, meta_tags, local_artifact_paths
		FROM documents ORDER BY url`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var d Document
	var meta, paths string
	err := row.Scan(&d.URL, &d.CanonicalURL, &d.Status, &d.DepthFromSeed,
		&d.URLPath, &d.ContentType, &d.Title, &d.Content, &d.CrawledAt,
		&d.ErrorMessage, &meta, &paths)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	if d.MetaTags, err = decodeMetaTags(meta); err != nil {
		return nil, err
	}
	if d.ArtifactPaths, err = decodeArtifactPaths(paths); err != nil {
		return nil, err
	}
	return &d, nil
}
