package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
)

/* Redis implementation of Backend
 * Uses plain strings for cache values and a Lua script for window counters
 */

// fixedWindowScript increments the counter and arms its expiry on the first hit
// of the window. Both happen atomically so a crash cannot leave an immortal key.
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

type Redis struct {
	client *redis.Client
}

// NewRedis builds a Redis backend from a store URL and access token.
// https:// URLs (REST style endpoints) are mapped to rediss:// on port 6379.
// No connection is made here; the first command dials lazily.
func NewRedis(rawURL, token string) (*Redis, error) {
	opts, err := parseOptions(rawURL, token)
	if err != nil {
		return nil, err
	}
	return &Redis{client: redis.NewClient(opts)}, nil
}

// NewRedisFromClient wraps an existing client
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func parseOptions(rawURL, token string) (*redis.Options, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing store url: %w", err)
	}
	switch u.Scheme {
	case "redis", "rediss":
	case "https":
		u.Scheme = "rediss"
		if u.Port() == "" {
			u.Host = u.Hostname() + ":6379"
		}
		u.Path = ""
	default:
		return nil, fmt.Errorf("unsupported store url scheme %q", u.Scheme)
	}

	opts, err := redis.ParseURL(u.String())
	if err != nil {
		return nil, fmt.Errorf("parsing store url: %w", err)
	}
	if token != "" {
		if opts.Username == "" {
			opts.Username = "default"
		}
		opts.Password = token
	}
	return opts, nil
}

// Get returns the raw string stored under key
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting key: %w", err)
	}
	return value, true, nil
}

// Set stores value with an optional expiry
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("setting key: %w", err)
	}
	return nil
}

// Del removes key
func (r *Redis) Del(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("deleting key: %w", err)
	}
	return nil
}

// IncrWindow increments a window counter, arming its expiry on first use
func (r *Redis) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := fixedWindowScript.Run(ctx, r.client, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("incrementing window: %w", err)
	}
	return count, nil
}

// Count returns the current counter value
func (r *Redis) Count(ctx context.Context, key string) (int64, error) {
	count, err := r.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading counter: %w", err)
	}
	return count, nil
}

// DelCounters deletes exactly keys, without pattern matching
func (r *Redis) DelCounters(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("deleting counters: %w", err)
	}
	return nil
}

// PoolStats exposes connection pool statistics for metrics
func (r *Redis) PoolStats() *redis.PoolStats {
	return r.client.PoolStats()
}

// Client returns the underlying Redis client for advanced operations
func (r *Redis) Client() *redis.Client {
	return r.client
}

// Close closes the Redis connection pool
func (r *Redis) Close() error {
	return r.client.Close()
}
