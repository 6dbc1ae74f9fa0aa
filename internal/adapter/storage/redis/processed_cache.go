package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ProcessedCache implements ports.ProcessedCache: a fast-path marker for
// webhook fingerprints whose processing completed. The Postgres ledger is
// the durable layer; this cache only spares it the read on hot retries.
type ProcessedCache struct {
	client *goredis.Client
	prefix string
}

// NewProcessedCache creates a Redis-backed processed-fingerprint cache.
func NewProcessedCache(client *goredis.Client) *ProcessedCache {
	return &ProcessedCache{
		client: client,
		prefix: "webhook:processed:",
	}
}

// IsProcessed reports whether the fingerprint completed processing recently.
func (c *ProcessedCache) IsProcessed(ctx context.Context, fingerprint string) (bool, error) {
	err := c.client.Get(ctx, c.prefix+fingerprint).Err()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis processed-cache get: %w", err)
	}
	return true, nil
}

// MarkProcessed remembers the fingerprint for ttl.
func (c *ProcessedCache) MarkProcessed(ctx context.Context, fingerprint string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+fingerprint, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis processed-cache set: %w", err)
	}
	return nil
}
