package geocode

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/marcboeker/go-duckdb"

	"github.com/route-plotter/backend/internal/models"
)

// cacheFileName is the DuckDB database file under the cache directory.
const cacheFileName = "geocode_cache.duckdb"

// CacheKey returns SHA-256 hex of the normalized address for cache lookup.
func CacheKey(addr models.Address) string {
	normalized := fmt.Sprintf("%s|%s|%s|%s|%s",
		strings.ToLower(strings.TrimSpace(addr.Street)),
		strings.ToLower(strings.TrimSpace(addr.City)),
		strings.ToLower(strings.TrimSpace(addr.State)),
		strings.TrimSpace(addr.Zip),
		strings.ToLower(strings.TrimSpace(addr.Raw)),
	)
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}

// DuckCache persists geocode results in a DuckDB file so repeated uploads of
// the same addresses skip the providers entirely. Non-matches are cached too.
type DuckCache struct {
	db *sql.DB
}

// CacheOptions tune the embedded database.
type CacheOptions struct {
	MemoryLimit string // e.g. "256MB"
	Threads     int
}

// NewDuckCache opens (or creates) the cache database in dir.
func NewDuckCache(dir string, opts CacheOptions) (*DuckCache, error) {
	dbPath := filepath.Join(dir, cacheFileName)

	pragmas := []string{"PRAGMA enable_progress_bar=false"}
	if opts.MemoryLimit != "" {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA memory_limit='%s'", opts.MemoryLimit))
	}
	if opts.Threads > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA threads=%d", opts.Threads))
	}

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return fmt.Errorf("executing %s: %w", pragma, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	db := sql.OpenDB(connector)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS geocode_cache (
			address_hash VARCHAR PRIMARY KEY,
			lat          DOUBLE,
			lon          DOUBLE,
			provider     VARCHAR,
			quality      VARCHAR,
			matched      BOOLEAN,
			cached_at    TIMESTAMP DEFAULT now()
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache table: %w", err)
	}

	return &DuckCache{db: db}, nil
}

// Lookup returns a cached result. Cached non-matches (Matched=false) are
// returned so callers can skip re-querying providers.
func (c *DuckCache) Lookup(ctx context.Context, key string) (*Result, bool) {
	row := c.db.QueryRowContext(ctx,
		`SELECT lat, lon, provider, quality, matched FROM geocode_cache WHERE address_hash = ?`, key)

	var r Result
	if err := row.Scan(&r.Lat, &r.Lon, &r.Provider, &r.Quality, &r.Matched); err != nil {
		return nil, false
	}
	return &r, true
}

// Store inserts or refreshes a geocode result (match or non-match).
func (c *DuckCache) Store(ctx context.Context, key string, result *Result) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (address_hash, lat, lon, provider, quality, matched, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, now())
		ON CONFLICT (address_hash) DO UPDATE SET
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			provider = EXCLUDED.provider,
			quality = EXCLUDED.quality,
			matched = EXCLUDED.matched,
			cached_at = now()`,
		key, result.Lat, result.Lon, result.Provider, result.Quality, result.Matched,
	)
	if err != nil {
		return fmt.Errorf("storing cache entry: %w", err)
	}
	return nil
}

// Len returns the number of cached entries.
func (c *DuckCache) Len() (int, error) {
	var n int
	if err := c.db.QueryRow(`SELECT count(*) FROM geocode_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting cache entries: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (c *DuckCache) Close() error {
	return c.db.Close()
}
