package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mikey/email-classifier/internal/core"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a cache entry is not found
var ErrNotFound = errors.New("cache entry not found")

// entry is a cached prediction plus its expiry.
type entry struct {
	prediction core.Prediction
	expiresAt  time.Time
}

// MemoryCache is an in-memory implementation of the PredictionCache interface
type MemoryCache struct {
	entries     map[string]entry
	mu          sync.RWMutex
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMemoryCache creates a new in-memory prediction cache
func NewMemoryCache(logger *zap.Logger, cleanupFreq time.Duration) *MemoryCache {
	cache := &MemoryCache{
		entries:     make(map[string]entry),
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	go cache.startCleanupTask()

	return cache
}

// Get retrieves a cached prediction for a content digest
func (c *MemoryCache) Get(_ context.Context, digest string) (*core.Prediction, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[digest]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}

	pred := e.prediction
	return &pred, true
}

// Set stores a prediction with the given TTL
func (c *MemoryCache) Set(_ context.Context, digest string, pred *core.Prediction, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[digest] = entry{
		prediction: *pred,
		expiresAt:  time.Now().Add(ttl),
	}
}

// Delete removes a cached prediction
func (c *MemoryCache) Delete(_ context.Context, digest string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[digest]; !ok {
		return ErrNotFound
	}
	delete(c.entries, digest)
	return nil
}

// Cleanup removes expired entries
func (c *MemoryCache) Cleanup(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var expired int
	for digest, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, digest)
			expired++
		}
	}
	if expired > 0 {
		c.logger.Debug("Cleaned up expired cache entries", zap.Int("expired_count", expired))
	}
	return nil
}

// startCleanupTask starts a background task to clean up expired entries
func (c *MemoryCache) startCleanupTask() {
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

// Stop stops the background cleanup task
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}
