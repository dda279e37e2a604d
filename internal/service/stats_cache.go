package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StatsCache keeps filter statistics in Redis for a short TTL. All errors are
// swallowed after logging: statistics are a convenience, never a hard
// dependency, and a Redis outage must not take list endpoints down.
type StatsCache struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *MetricsService
	logger  *zap.Logger
}

// NewStatsCache creates a stats cache. A nil client yields a disabled cache.
func NewStatsCache(client *redis.Client, ttl time.Duration, metrics *MetricsService, logger *zap.Logger) *StatsCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		return nil
	}
	return &StatsCache{client: client, ttl: ttl, metrics: metrics, logger: logger}
}

// Get unmarshals the cached value into dest, reporting whether it was found.
func (c *StatsCache) Get(ctx context.Context, key string, dest interface{}) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("stats cache get failed", zap.String("key", key), zap.Error(err))
		}
		c.metrics.RecordCacheLookup(false)
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Warn("stats cache entry corrupt", zap.String("key", key), zap.Error(err))
		c.metrics.RecordCacheLookup(false)
		return false
	}
	c.metrics.RecordCacheLookup(true)
	return true
}

// Set stores the value under key for the configured TTL.
func (c *StatsCache) Set(ctx context.Context, key string, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("stats cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Debug("stats cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete drops the cached value, typically after a write invalidates it.
func (c *StatsCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Debug("stats cache delete failed", zap.String("key", key), zap.Error(err))
	}
}
