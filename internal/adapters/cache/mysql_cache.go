package cache

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mikey/email-classifier/internal/core"
	"go.uber.org/zap"
)

// MySQLCache is a MySQL implementation of the PredictionCache interface
type MySQLCache struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
}

// NewMySQLCache creates a new MySQL prediction cache
func NewMySQLCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLCache, error) {
	// parseTime lets the driver scan TIMESTAMP columns into time.Time
	if !strings.Contains(dsn, "parseTime") {
		if strings.Contains(dsn, "?") {
			dsn += "&parseTime=true"
		} else {
			dsn += "?parseTime=true"
		}
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS prediction_cache (
			content_digest VARCHAR(64) PRIMARY KEY,
			label VARCHAR(255),
			confidence DOUBLE,
			schema_version VARCHAR(64),
			model_type VARCHAR(64),
			processing_id VARCHAR(36),
			predicted_at TIMESTAMP,
			expires_at TIMESTAMP,
			INDEX idx_prediction_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	cache := &MySQLCache{
		db:          db,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	go cache.startCleanupTask()

	return cache, nil
}

// Get retrieves a cached prediction for a content digest
func (c *MySQLCache) Get(ctx context.Context, digest string) (*core.Prediction, bool) {
	var label, schemaVersion, modelType, processingID string
	var confidence float64
	var predictedAt time.Time

	err := c.db.QueryRowContext(ctx, `
		SELECT label, confidence, schema_version, model_type, processing_id, predicted_at
		FROM prediction_cache
		WHERE content_digest = ? AND expires_at > NOW()
	`, digest).Scan(&label, &confidence, &schemaVersion, &modelType, &processingID, &predictedAt)

	if err != nil {
		if err != sql.ErrNoRows {
			c.logger.Error("Failed to query cache", zap.Error(err), zap.String("digest", digest))
		}
		return nil, false
	}

	return &core.Prediction{
		Label:         label,
		Confidence:    confidence,
		SchemaVersion: schemaVersion,
		ModelType:     modelType,
		ProcessingID:  processingID,
		PredictedAt:   predictedAt,
	}, true
}

// Set stores a prediction with the given TTL
func (c *MySQLCache) Set(ctx context.Context, digest string, pred *core.Prediction, ttl time.Duration) {
	expiresAt := time.Now().Add(ttl)

	_, err := c.db.ExecContext(ctx, `
		REPLACE INTO prediction_cache
			(content_digest, label, confidence, schema_version, model_type, processing_id, predicted_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, digest, pred.Label, pred.Confidence, pred.SchemaVersion, pred.ModelType, pred.ProcessingID,
		pred.PredictedAt, expiresAt)

	if err != nil {
		c.logger.Error("Failed to insert cache entry", zap.Error(err), zap.String("digest", digest))
	}
}

// Delete removes a cached prediction
func (c *MySQLCache) Delete(ctx context.Context, digest string) error {
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
func (c *MySQLCache) Cleanup(ctx context.Context) error {
	result, err := c.db.ExecContext(ctx, `
		DELETE FROM prediction_cache
		WHERE expires_at <= NOW()
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
func (c *MySQLCache) startCleanupTask() {
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
func (c *MySQLCache) Stop() {
	close(c.stopCh)
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close MySQL connection", zap.Error(err))
	}
}
