// Package prevweek builds and caches the previous-week snapshot the
// repetition detector scans: every item served per path on the dates
// exactly 7 days before the active range.
package prevweek

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"menuhall/api/internal/menu"

	"github.com/redis/go-redis/v9"
)

// Cache stores computed snapshots in Redis so re-opening the editor for
// the same range does not rescan every company menu. Entries expire; a
// miss falls back to recomputation.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCache connects to Redis and verifies the connection.
func NewCache(redisURL string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Cache{client: client, prefix: "prevweek:", ttl: ttl}, nil
}

// NewCacheWithClient wraps an existing Redis client.
func NewCacheWithClient(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, prefix: "prevweek:", ttl: ttl}
}

// The snapshot is built from every company's menus, so the key carries
// only the range start: one entry serves all editors of that week, and
// invalidating it covers them all.
func (c *Cache) key(startDate string) string {
	return c.prefix + startDate
}

// Get returns the cached snapshot for the range starting at startDate,
// or ok=false on a miss.
func (c *Cache) Get(ctx context.Context, startDate string) (menu.PrevWeek, bool, error) {
	data, err := c.client.Get(ctx, c.key(startDate)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get snapshot: %w", err)
	}

	var snapshot menu.PrevWeek
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snapshot, true, nil
}

// Put stores a snapshot with the cache TTL.
func (c *Cache) Put(ctx context.Context, startDate string, snapshot menu.PrevWeek) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key(startDate), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot for the range starting at
// startDate. Called after company menus are regenerated.
func (c *Cache) Invalidate(ctx context.Context, startDate string) error {
	if err := c.client.Del(ctx, c.key(startDate)).Err(); err != nil {
		return fmt.Errorf("invalidate snapshot: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
