package store

import (
	"fmt"
	"time"
)

// RegisterExternalURL records an off-domain URL. First sighting wins;
// repeats are no-ops.
func (s *Store) RegisterExternalURL(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT OR IGNORE INTO external_urls (url, first_seen_at) VALUES (?, ?)`,
		url, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("register external url %s: %w", url, err)
	}
	return nil
}

// RegisterExternalDomain records an off-domain host. First sighting wins.
func (s *Store) RegisterExternalDomain(domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT OR IGNORE INTO external_domains (domain, first_seen_at) VALUES (?, ?)`,
		domain, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("register external domain %s: %w", domain, err)
	}
	return nil
}

// ListExternalURLs returns the registry ordered by URL.
func (s *Store) ListExternalURLs() ([]string, error) {
	return s.listStrings(`SELECT url FROM external_urls ORDER BY url`)
}

// ListExternalDomains returns the registry ordered by domain.
func (s *Store) ListExternalDomains() ([]string, error) {
	return s.listStrings(`SELECT domain FROM external_domains ORDER BY domain`)
}

func (s *Store) listStrings(query string) ([]string, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
