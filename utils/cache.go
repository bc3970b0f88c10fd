package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache TTL constants
const (
	CacheTTLTalksList      = 10 * time.Minute
	CacheTTLSponsorsList   = 1 * time.Hour
	CacheTTLPackagesList   = 1 * time.Hour
	CacheTTLTaxonomiesList = 6 * time.Hour
	CacheTTLPagesList      = 1 * time.Hour
)

var ErrCacheUnavailable = errors.New("redis not available")

// Cache stores JSON values in Redis. A Cache without a client is valid:
// reads and writes return ErrCacheUnavailable, deletes do nothing.
type Cache struct {
	client *redis.Client
}

// NewCache wraps client, which may be nil
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Available checks if a Redis client is connected
func (c *Cache) Available() bool {
	return c != nil && c.client != nil
}

// Get retrieves cached data and unmarshals it into dest
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	if !c.Available() {
		return ErrCacheUnavailable
	}

	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(val), dest)
}

// Set stores data in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.Available() {
		return ErrCacheUnavailable
	}

	jsonData, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, jsonData, ttl).Err()
}

// Delete removes cache keys
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if !c.Available() || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// DeletePattern removes all keys matching pattern (e.g., "talks:*")
func (c *Cache) DeletePattern(ctx context.Context, pattern string) error {
	if !c.Available() {
		return nil
	}

	var cursor uint64
	var keys []string
	for {
		scanKeys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return err
		}
		keys = append(keys, scanKeys...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	if len(keys) > 0 {
		return c.client.Del(ctx, keys...).Err()
	}
	return nil
}

// BuildCacheKey builds a cache key from parts
func BuildCacheKey(parts ...interface{}) string {
	s := make([]string, len(parts))
	for i, part := range parts {
		s[i] = fmt.Sprintf("%v", part)
	}
	return strings.Join(s, ":")
}
