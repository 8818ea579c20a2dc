package store

import (
	"context"
	"time"
)

/* Small interfaces over the backing key-value store
 * Cache code only needs KV, the rate limiter only needs Counter
 */

// KV provides plain string get/set/delete
type KV interface {
	/* Get returns ok=false when the key does not exist
	 * A missing key is not an error
	 */
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	/* Set stores value under key; ttl <= 0 means no expiry */
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Counter provides the primitives behind a fixed-window rate limiter
type Counter interface {
	/* IncrWindow increments key and starts its expiry on the first hit
	 * Returns the counter value after the increment
	 */
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
	/* Count returns the current value of key, 0 when missing */
	Count(ctx context.Context, key string) (int64, error)
	/* DelCounters removes the given counters; missing keys are ignored */
	DelCounters(ctx context.Context, keys ...string) error
}

// Backend is everything the reliability layer needs from the store
type Backend interface {
	KV
	Counter
	Close() error
}
