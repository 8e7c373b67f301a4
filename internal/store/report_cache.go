// Package store keeps finished session reports in Redis so they can be
// fetched after the session is gone.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"heart-sound-session-service/internal/apperr"
	"heart-sound-session-service/internal/models"
	"heart-sound-session-service/internal/observability/metrics"
)

// Config holds report cache configuration. An empty Addr disables the cache.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// ReportCache stores session reports with a TTL.
type ReportCache struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewReportCache creates the cache. With no address it runs disabled: writes
// are dropped and every lookup misses.
func NewReportCache(cfg Config, logger zerolog.Logger, m *metrics.Metrics) *ReportCache {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "heart:report:"
	}
	c := &ReportCache{
		prefix:  cfg.KeyPrefix,
		ttl:     cfg.TTL,
		logger:  logger.With().Str("component", "store.reports").Logger(),
		metrics: m,
	}
	if cfg.Addr == "" {
		c.logger.Info().Msg("Report cache disabled, no Redis address configured")
		return c
	}

	c.client = redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	c.logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Dur("ttl", cfg.TTL).Msg("Report cache initialized")
	return c
}

// Enabled reports whether a Redis client is configured.
func (c *ReportCache) Enabled() bool {
	return c.client != nil
}

func (c *ReportCache) key(sessionID string) string {
	return c.prefix + sessionID
}

// Ping checks the Redis connection.
func (c *ReportCache) Ping(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Put stores a report under its session id.
func (c *ReportCache) Put(ctx context.Context, report models.SessionReport) error {
	if c.client == nil {
		return nil
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	err = c.client.Set(ctx, c.key(report.SessionID), data, c.ttl).Err()
	c.metrics.RecordCacheOp("put", err)
	if err != nil {
		return fmt.Errorf("failed to cache report %s: %w", report.SessionID, err)
	}
	c.logger.Debug().Str("sessionId", report.SessionID).Msg("Report cached")
	return nil
}

// Deliver stores the report; it lets the cache act as a session report sink.
func (c *ReportCache) Deliver(ctx context.Context, report models.SessionReport) error {
	return c.Put(ctx, report)
}

// Get returns the cached report for a session, or a NOT_FOUND error.
func (c *ReportCache) Get(ctx context.Context, sessionID string) (models.SessionReport, error) {
	const op = "store.Get"
	if c.client == nil {
		return models.SessionReport{}, apperr.E(apperr.CodeNotFound, op, "report not found", nil)
	}

	data, err := c.client.Get(ctx, c.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.metrics.RecordCacheOp("get", nil)
		return models.SessionReport{}, apperr.E(apperr.CodeNotFound, op, "report not found", nil)
	}
	c.metrics.RecordCacheOp("get", err)
	if err != nil {
		return models.SessionReport{}, fmt.Errorf("failed to get report %s: %w", sessionID, err)
	}

	var report models.SessionReport
	if err := json.Unmarshal(data, &report); err != nil {
		return models.SessionReport{}, fmt.Errorf("failed to unmarshal report %s: %w", sessionID, err)
	}
	return report, nil
}

// Close closes the Redis client.
func (c *ReportCache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
