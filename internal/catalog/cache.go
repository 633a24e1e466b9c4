package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/tankobon/internal/models"
)

const cacheSchemaSQL = `
CREATE TABLE IF NOT EXISTS catalog_cache (
	title      TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	fetched_at DATETIME NOT NULL
);
`

// Cache is a sqlite-backed Lookup wrapper. Hits younger than the TTL are
// served from disk; empty results are not stored so transient upstream
// failures are retried on the next scan.
type Cache struct {
	conn   *sql.DB
	next   Lookup
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// OpenCache opens (or creates) the cache database at dsn in front of next.
func OpenCache(dsn string, ttl time.Duration, next Lookup, logger *slog.Logger) (*Cache, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("catalog: open cache: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: ping cache: %w", err)
	}
	if _, err := conn.Exec(cacheSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: apply cache schema: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{conn: conn, next: next, ttl: ttl, logger: logger, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	return c.conn.Close()
}

// Lookup serves title from the cache or delegates to the wrapped lookup.
func (c *Cache) Lookup(ctx context.Context, title string) models.CatalogInfo {
	key := NormalizeTitle(title)
	if key == "" {
		return models.CatalogInfo{AltTitles: []string{}}
	}

	info, err := c.get(ctx, key)
	switch {
	case err == nil:
		return info
	case !errors.Is(err, sql.ErrNoRows):
		c.logger.Warn("catalog: cache read failed", slog.String("title", key), slog.String("error", err.Error()))
	}

	info = c.next.Lookup(ctx, key)
	if empty(info) {
		return info
	}
	if err := c.put(ctx, key, info); err != nil {
		c.logger.Warn("catalog: cache write failed", slog.String("title", key), slog.String("error", err.Error()))
	}
	return info
}

func (c *Cache) get(ctx context.Context, key string) (models.CatalogInfo, error) {
	var (
		payload   string
		fetchedAt time.Time
		info      models.CatalogInfo
	)
	err := c.conn.QueryRowContext(ctx,
		`SELECT payload, fetched_at FROM catalog_cache WHERE title = ?`, key,
	).Scan(&payload, &fetchedAt)
	if err != nil {
		return info, err
	}
	if c.ttl > 0 && c.now().Sub(fetchedAt) > c.ttl {
		return info, sql.ErrNoRows
	}
	if err := json.Unmarshal([]byte(payload), &info); err != nil {
		return info, fmt.Errorf("catalog: decode cached entry: %w", err)
	}
	if info.AltTitles == nil {
		info.AltTitles = []string{}
	}
	return info, nil
}

func (c *Cache) put(ctx context.Context, key string, info models.CatalogInfo) error {
	payload, err := json.Marshal(info)
	if err != nil {
		return err
	}
	_, err = c.conn.ExecContext(ctx, `
		INSERT INTO catalog_cache (title, payload, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT(title) DO UPDATE SET
			payload    = excluded.payload,
			fetched_at = excluded.fetched_at
	`, key, string(payload), c.now().UTC())
	return err
}
