package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/email-classifier/internal/core"
	"go.uber.org/zap"
)

// sqliteTimeLayout matches the format of sqlite's datetime('now'), so
// expiry comparisons work as plain string comparisons.
const sqliteTimeLayout = "2006-01-02 15:04:05"

// SQLiteCache is a SQLite implementation of the PredictionCache interface
type SQLiteCache struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
}

// NewSQLiteCache creates a new SQLite prediction cache
func NewSQLiteCache(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS prediction_cache (
			content_digest TEXT PRIMARY KEY,
			label TEXT,
			confidence REAL,
			schema_version TEXT,
			model_type TEXT,
			processing_id TEXT,
			predicted_at TIMESTAMP,
			expires_at TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	// Index on expires_at for faster cleanup
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_prediction_expires_at ON prediction_cache(expires_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	cache := &SQLiteCache{
		db:          db,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	go cache.startCleanupTask()

	return cache, nil
}

// Get retrieves a cached prediction for a content digest
func (c *SQLiteCache) Get(ctx context.Context, digest string) (*core.Prediction, bool) {
	var label, schemaVersion, modelType, processingID, predictedAt string
	var confidence float64

	err := c.db.QueryRowContext(ctx, `
		SELECT label, confidence, schema_version, model_type, processing_id, predicted_at
		FROM prediction_cache
		WHERE content_digest = ? AND expires_at > datetime('now')
	`, digest).Scan(&label, &confidence, &schemaVersion, &modelType, &processingID, &predictedAt)

	if err != nil {
		if err != sql.ErrNoRows {
			c.logger.Error("Failed to query cache", zap.Error(err), zap.String("digest", digest))
		}
		return nil, false
	}

	ts, err := time.Parse(sqliteTimeLayout, predictedAt)
	if err != nil {
		c.logger.Error("Failed to parse predicted_at timestamp", zap.Error(err))
		return nil, false
	}

	return &core.Prediction{
		Label:         label,
		Confidence:    confidence,
		SchemaVersion: schemaVersion,
		ModelType:     modelType,
		ProcessingID:  processingID,
		PredictedAt:   ts,
	}, true
}

// Set stores a prediction with the given TTL
func (c *SQLiteCache) Set(ctx context.Context, digest string, pred *core.Prediction, ttl time.Duration) {
	expiresAt := time.Now().Add(ttl)

	_, err := c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO prediction_cache
			(content_digest, label, confidence, schema_version, model_type, processing_id, predicted_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, digest, pred.Label, pred.Confidence, pred.SchemaVersion, pred.ModelType, pred.ProcessingID,
		pred.PredictedAt.UTC().Format(sqliteTimeLayout), expiresAt.UTC().Format(sqliteTimeLayout))

	if err != nil {
		c.logger.Error("Failed to insert cache entry", zap.Error(err), zap.String("digest", digest))
	}
}

// Delete removes a cached prediction
func (c *SQLiteCache) Delete(ctx context.Context, digest string) error {
	_, err := c.db.ExecContext(ctx, `
		DELETE FROM prediction_cache
		WHERE content_digest = ?
	`, digest)

	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (c *SQLiteCache) Cleanup(ctx context.Context) error {
	result, err := c.db.ExecContext(ctx, `
		DELETE FROM prediction_cache
		WHERE expires_at <= datetime('now')
	`)

	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		c.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else if rowsAffected > 0 {
		c.logger.Debug("Cleaned up expired cache entries", zap.Int64("expired_count", rowsAffected))
	}

	return nil
}

// startCleanupTask starts a background task to clean up expired entries
func (c *SQLiteCache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				c.logger.Error("Failed to clean up cache", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task and closes the database connection
func (c *SQLiteCache) Stop() {
	close(c.stopCh)
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close SQLite database", zap.Error(err))
	}
}
