package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// UpsertAsset records a saved asset, deduplicated by asset URL. A later
// sighting of the same URL refreshes the local path but keeps the first
// discovering page.
func (s *Store) UpsertAsset(a Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var source any
	if a.SourcePageURL != "" {
		source = a.SourcePageURL
	}

	_, err := s.db.Exec(`
		INSERT INTO assets (asset_url, source_page_url, asset_type, local_path)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(asset_url) DO UPDATE SET
			asset_type = excluded.asset_type,
			local_path = excluded.local_path`,
		a.AssetURL, source, a.AssetType, a.LocalPath)
	if err != nil {
		return fmt.Errorf("upsert asset %s: %w", a.AssetURL, err)
	}
	return nil
}

// GetAsset returns the row for assetURL, or ErrNotFound.
func (s *Store) GetAsset(assetURL string) (*Asset, error) {
	var a Asset
	var source sql.NullString
	err := s.db.QueryRow(`
		SELECT asset_url, source_page_url, asset_type, local_path
		FROM assets WHERE asset_url = ?`, assetURL).
		Scan(&a.AssetURL, &source, &a.AssetType, &a.LocalPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get asset %s: %w", assetURL, err)
	}
	a.SourcePageURL = source.String
	return &a, nil
}

// ListAssets returns every asset ordered by URL.
func (s *Store) ListAssets() ([]Asset, error) {
	rows, err := s.db.Query(`
		SELECT asset_url, source_page_url, asset_type, local_path
		FROM assets ORDER BY asset_url`)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		var a Asset
		var source sql.NullString
		if err := rows.Scan(&a.AssetURL, &source, &a.AssetType, &a.LocalPath); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		a.SourcePageURL = source.String
		assets = append(assets, a)
	}
	return assets, rows.Err()
}
