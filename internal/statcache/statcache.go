package statcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"asset-library/internal/contenthash"
	"asset-library/internal/imagestat"
	"asset-library/internal/logging"
	"asset-library/internal/metrics"
)

// Default timeout for cache queries
const defaultTimeout = 5 * time.Second

// ErrNotFound is returned by Get when no entry exists for a hash.
var ErrNotFound = errors.New("statcache: entry not found")

// Cache is a persistent content-hash keyed store of derived image
// statistics. It is a pure memo: every entry can be recomputed from its
// source file.
type Cache struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Open opens (creating if needed) the cache database at dbPath. The
// parent directory must already exist and be writable.
func Open(ctx context.Context, dbPath string) (*Cache, error) {
	logging.Info("Stat cache path: %s", dbPath)

	// WAL mode and busy_timeout to tolerate concurrent readers
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open stat cache: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close stat cache after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to stat cache: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	c := &Cache{db: db, dbPath: dbPath}
	if err := c.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close stat cache after init failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize stat cache schema: %w", err)
	}

	logging.Info("Stat cache initialized at %s", dbPath)
	return c, nil
}

func (c *Cache) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS image_stats (
		hash TEXT PRIMARY KEY,
		stats TEXT NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);
	`
	_, err := c.db.ExecContext(ctx, schema)
	return err
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached stats for hash, or ErrNotFound.
func (c *Cache) Get(ctx context.Context, hash string) (*imagestat.Stats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var blob string
	err = c.db.QueryRowContext(ctx, "SELECT stats FROM image_stats WHERE hash = ?", hash).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var stats imagestat.Stats
	if err = json.Unmarshal([]byte(blob), &stats); err != nil {
		// Unreadable entries are dropped; the memo can always be rebuilt.
		logging.Warn("Dropping unreadable stat cache entry %s: %v", hash, err)
		if delErr := c.Delete(ctx, hash); delErr != nil {
			logging.Error("failed to drop stat cache entry %s: %v", hash, delErr)
		}
		return nil, ErrNotFound
	}
	return &stats, nil
}

// Put stores stats under hash, replacing any previous value.
func (c *Cache) Put(ctx context.Context, hash string, stats *imagestat.Stats) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("put", start, err) }()

	blob, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encoding stats: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO image_stats (hash, stats) VALUES (?, ?)
		ON CONFLICT(hash) DO UPDATE SET stats = excluded.stats
	`, hash, string(blob))
	return err
}

// Delete removes the entry for hash, if any.
func (c *Cache) Delete(ctx context.Context, hash string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete", start, err) }()

	_, err = c.db.ExecContext(ctx, "DELETE FROM image_stats WHERE hash = ?", hash)
	return err
}

// StatsForFile returns the derived stats for the image at path, computing
// and caching them when absent. The content hash of the file is the cache
// key, so a modified file gets fresh stats while renames stay cached.
func (c *Cache) StatsForFile(ctx context.Context, path string) (*imagestat.Stats, error) {
	hash, err := contenthash.HashFile(path)
	if err != nil {
		return nil, err
	}

	if stats, err := c.Get(ctx, hash); err == nil {
		metrics.StatCacheHits.Inc()
		return stats, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	metrics.StatCacheMisses.Inc()

	stats, err := imagestat.Compute(path)
	if err != nil {
		return nil, err
	}
	if err := c.Put(ctx, hash, stats); err != nil {
		logging.Warn("Failed to cache stats for %s: %v", path, err)
	}
	return stats, nil
}

// Count returns the number of cached entries.
func (c *Cache) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM image_stats").Scan(&n)
	return n, err
}

// recordQuery records cache query metrics
func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	metrics.StatCacheQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.StatCacheQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
