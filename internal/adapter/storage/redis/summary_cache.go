package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// SummaryCache implements ports.SummaryCache using Redis. It holds the
// caller-independent portion of the member summary; every mutation on
// the account invalidates its entry.
type SummaryCache struct {
	client *goredis.Client
	prefix string
}

// NewSummaryCache creates a new Redis-backed summary cache.
func NewSummaryCache(client *goredis.Client) *SummaryCache {
	return &SummaryCache{
		client: client,
		prefix: "summary:",
	}
}

// Get retrieves a cached summary by account id.
// Returns nil, nil if the key does not exist.
func (c *SummaryCache) Get(ctx context.Context, accountID int64) ([]byte, error) {
	val, err := c.client.Get(ctx, c.key(accountID)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis summary get: %w", err)
	}
	return val, nil
}

// Set stores a summary with TTL.
func (c *SummaryCache) Set(ctx context.Context, accountID int64, payload []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(accountID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis summary set: %w", err)
	}
	return nil
}

// Invalidate drops the cached summary after a successful mutation.
func (c *SummaryCache) Invalidate(ctx context.Context, accountID int64) error {
	if err := c.client.Del(ctx, c.key(accountID)).Err(); err != nil {
		return fmt.Errorf("redis summary invalidate: %w", err)
	}
	return nil
}

func (c *SummaryCache) key(accountID int64) string {
	return c.prefix + strconv.FormatInt(accountID, 10)
}
