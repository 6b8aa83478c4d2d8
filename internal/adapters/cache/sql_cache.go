package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/inbox-classifier/internal/core"
	"go.uber.org/zap"
)

// Timestamps are stored as unix seconds so both drivers agree on the format.
const (
	sqliteSchema = `
		CREATE TABLE IF NOT EXISTS summary_cache (
			cache_key TEXT PRIMARY KEY,
			summary TEXT NOT NULL,
			action_items TEXT NOT NULL,
			model_used TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`
	sqliteIndex  = `CREATE INDEX IF NOT EXISTS idx_summary_expires_at ON summary_cache(expires_at)`
	sqliteUpsert = `
		INSERT OR REPLACE INTO summary_cache
			(cache_key, summary, action_items, model_used, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	mysqlSchema = `
		CREATE TABLE IF NOT EXISTS summary_cache (
			cache_key VARCHAR(255) PRIMARY KEY,
			summary TEXT NOT NULL,
			action_items TEXT NOT NULL,
			model_used VARCHAR(128) NOT NULL,
			created_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL,
			INDEX idx_summary_expires_at (expires_at)
		)`
	mysqlUpsert = `
		INSERT INTO summary_cache
			(cache_key, summary, action_items, model_used, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			summary = VALUES(summary),
			action_items = VALUES(action_items),
			model_used = VALUES(model_used),
			created_at = VALUES(created_at),
			expires_at = VALUES(expires_at)`
)

// SQLCache is a database/sql implementation of the CacheRepository
// interface. NewSQLiteCache and NewMySQLCache pick the dialect.
type SQLCache struct {
	db          *sql.DB
	driver      string
	upsert      string
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewSQLiteCache opens (or creates) a SQLite cache file
func NewSQLiteCache(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	return newSQLCache(db, "sqlite3", []string{sqliteSchema, sqliteIndex}, sqliteUpsert, logger, cleanupFreq)
}

// NewMySQLCache connects to a MySQL cache database
func NewMySQLCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLCache, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	return newSQLCache(db, "mysql", []string{mysqlSchema}, mysqlUpsert, logger, cleanupFreq)
}

func newSQLCache(db *sql.DB, driver string, schema []string, upsert string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLCache, error) {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create %s schema: %w", driver, err)
		}
	}

	cache := &SQLCache{
		db:          db,
		driver:      driver,
		upsert:      upsert,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	if cleanupFreq > 0 {
		go startCleanupTask(cache, cleanupFreq, cache.stopCh, logger)
	}

	return cache, nil
}

// Get retrieves a live entry
func (c *SQLCache) Get(ctx context.Context, key string) (*core.CacheEntry, error) {
	var (
		entry       core.CacheEntry
		actionItems string
		createdAt   int64
		expiresAt   int64
	)

	err := c.db.QueryRowContext(ctx, `
		SELECT cache_key, summary, action_items, model_used, created_at, expires_at
		FROM summary_cache
		WHERE cache_key = ? AND expires_at > ?
	`, key, time.Now().Unix()).Scan(&entry.Key, &entry.Summary, &actionItems, &entry.ModelUsed, &createdAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	if err := json.Unmarshal([]byte(actionItems), &entry.ActionItems); err != nil {
		return nil, fmt.Errorf("failed to decode action items: %w", err)
	}
	entry.CreatedAt = time.Unix(createdAt, 0)
	entry.ExpiresAt = time.Unix(expiresAt, 0)

	return &entry, nil
}

// Set stores a cache entry, replacing any previous one for the key
func (c *SQLCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	actionItems, err := encodeActionItems(entry.ActionItems)
	if err != nil {
		return err
	}

	_, err = c.db.ExecContext(ctx, c.upsert,
		entry.Key, entry.Summary, actionItems, entry.ModelUsed,
		entry.CreatedAt.Unix(), entry.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry
func (c *SQLCache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM summary_cache WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (c *SQLCache) Cleanup(ctx context.Context) error {
	result, err := c.db.ExecContext(ctx, `DELETE FROM summary_cache WHERE expires_at <= ?`, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		c.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		c.logger.Debug("Cleaned up expired cache entries",
			zap.String("driver", c.driver),
			zap.Int64("expired_count", rowsAffected))
	}
	return nil
}

// Stop stops the background cleanup task and closes the database connection
func (c *SQLCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close cache database", zap.String("driver", c.driver), zap.Error(err))
		}
	})
}

func encodeActionItems(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode action items: %w", err)
	}
	return string(data), nil
}
