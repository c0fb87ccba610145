// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// =============================================================================
// MODEL CACHE
// =============================================================================

// DefaultCacheTTL is how long a cached model list stays fresh.
const DefaultCacheTTL = 24 * time.Hour

// cacheSchema holds one row per (endpoint, model) pair.
const cacheSchema = `
CREATE TABLE IF NOT EXISTS models (
	endpoint           TEXT NOT NULL,
	id                 TEXT NOT NULL,
	supports_images    INTEGER NOT NULL DEFAULT 0,
	supports_reasoning INTEGER NOT NULL DEFAULT 0,
	fetched_at         INTEGER NOT NULL,
	PRIMARY KEY (endpoint, id)
);

CREATE INDEX IF NOT EXISTS idx_models_endpoint ON models(endpoint);
`

// Cache persists model lists per endpoint so capability lookups survive
// restarts and work offline.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
}

// OpenCache opens (or creates) the model cache database at path.
func OpenCache(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model cache: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return &Cache{db: db, ttl: DefaultCacheTTL}, nil
}

// WithTTL overrides the cache freshness window.
func (c *Cache) WithTTL(ttl time.Duration) *Cache {
	c.ttl = ttl
	return c
}

// Close releases the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Models returns the model list for an endpoint, serving from the cache
// when fresh and fetching otherwise. A fetch failure with a stale cache
// present falls back to the stale entries rather than failing the caller.
func (c *Cache) Models(ctx context.Context, listURL, apiKey string) ([]ModelInfo, error) {
	if cached, fresh := c.load(listURL); fresh {
		return cached, nil
	}

	models, err := ListModels(ctx, listURL, apiKey)
	if err != nil {
		if cached, _ := c.load(listURL); len(cached) > 0 {
			return cached, nil
		}
		return nil, err
	}

	if storeErr := c.store(listURL, models); storeErr != nil {
		// Non-fatal, the fetched list is still good
		_ = storeErr
	}
	return models, nil
}

// Refresh forces a fetch and cache update, bypassing the TTL.
func (c *Cache) Refresh(ctx context.Context, listURL, apiKey string) ([]ModelInfo, error) {
	models, err := ListModels(ctx, listURL, apiKey)
	if err != nil {
		return nil, err
	}
	if storeErr := c.store(listURL, models); storeErr != nil {
		_ = storeErr
	}
	return models, nil
}

// load reads the cached list for an endpoint and reports freshness.
func (c *Cache) load(endpoint string) ([]ModelInfo, bool) {
	rows, err := c.db.Query(`
		SELECT id, supports_images, supports_reasoning, fetched_at
		FROM models WHERE endpoint = ? ORDER BY id
	`, endpoint)
	if err != nil {
		return nil, false
	}
	defer rows.Close()

	var models []ModelInfo
	oldest := time.Now().Unix()
	for rows.Next() {
		var m ModelInfo
		var images, reasoning int
		var fetchedAt int64
		if err := rows.Scan(&m.ID, &images, &reasoning, &fetchedAt); err != nil {
			return nil, false
		}
		m.SupportsImages = images != 0
		m.SupportsReasoning = reasoning != 0
		if fetchedAt < oldest {
			oldest = fetchedAt
		}
		models = append(models, m)
	}
	if err := rows.Err(); err != nil || len(models) == 0 {
		return nil, false
	}

	fresh := time.Since(time.Unix(oldest, 0)) < c.ttl
	return models, fresh
}

// store replaces the cached list for an endpoint.
func (c *Cache) store(endpoint string, models []ModelInfo) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM models WHERE endpoint = ?", endpoint); err != nil {
		return err
	}

	now := time.Now().Unix()
	for _, m := range models {
		_, err := tx.Exec(`
			INSERT INTO models (endpoint, id, supports_images, supports_reasoning, fetched_at)
			VALUES (?, ?, ?, ?, ?)
		`, endpoint, m.ID, boolToInt(m.SupportsImages), boolToInt(m.SupportsReasoning), now)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
