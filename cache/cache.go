package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/marcelsud/plop-reliability/store"
	"github.com/rs/zerolog"
)

/* Cache is a namespaced, fail-open key-value cache.
 * While the backing store is available every call goes to it; on the first
 * store error the shared Health flips and this and every later call in the
 * process is served by the in-process map. Store errors never reach callers.
 */
type Cache struct {
	prefix     string
	defaultTTL time.Duration
	handle     *store.Handle
	memory     *memory
	logger     zerolog.Logger
}

// Option configures a Cache
type Option func(*Cache)

// WithLogger sets the logger used for debug output
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithClock replaces time.Now for the in-process fallback
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.memory.now = now }
}

// New creates a cache whose keys are all prefixed with prefix.
// defaultTTLSeconds is used when Set is called without Options; 0 means no expiry.
func New(handle *store.Handle, prefix string, defaultTTLSeconds uint32, opts ...Option) *Cache {
	if handle == nil {
		handle = store.Disabled()
	}
	c := &Cache{
		prefix:     prefix,
		defaultTTL: time.Duration(defaultTTLSeconds) * time.Second,
		handle:     handle,
		memory:     newMemory(time.Now),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Prefix returns the namespace prefix
func (c *Cache) Prefix() string {
	return c.prefix
}

// Get returns the value stored under key, ok=false when missing or expired
func (c *Cache) Get(ctx context.Context, key string) (Value, bool) {
	k := c.key(key)
	if c.handle.Available() {
		raw, ok, err := c.handle.KV().Get(ctx, k)
		if err == nil {
			if !ok {
				return Value{}, false
			}
			return decodeValue(raw), true
		}
		c.demote(err, "get", k)
	}

	raw, ok := c.memory.get(k)
	if !ok {
		return Value{}, false
	}
	return decodeValue(raw), true
}

// Set JSON-encodes value and stores it. Without opts the namespace default TTL
// applies. The only error is a value that cannot be encoded.
func (c *Cache) Set(ctx context.Context, key string, value any, opts ...Options) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding cache value: %w", err)
	}

	ttl := c.defaultTTL
	if len(opts) > 0 {
		ttl = opts[len(opts)-1].duration()
	}

	k := c.key(key)
	if c.handle.Available() {
		err := c.handle.KV().Set(ctx, k, string(encoded), ttl)
		if err == nil {
			return nil
		}
		c.demote(err, "set", k)
	}

	c.memory.set(k, string(encoded), ttl)
	return nil
}

// Delete removes key
func (c *Cache) Delete(ctx context.Context, key string) {
	k := c.key(key)
	if c.handle.Available() {
		err := c.handle.KV().Del(ctx, k)
		if err == nil {
			return
		}
		c.demote(err, "delete", k)
	}

	c.memory.delete(k)
}

// GetAs reads key and decodes it into T
func GetAs[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var zero T
	value, ok := c.Get(ctx, key)
	if !ok {
		return zero, false
	}
	var out T
	if err := value.Decode(&out); err != nil {
		c.logger.Debug().Err(err).Str("key", c.key(key)).Msg("cache value has unexpected shape")
		return zero, false
	}
	return out, true
}

func (c *Cache) key(key string) string {
	return c.prefix + key
}

// demote flips the shared health flag; Health logs the transition once
func (c *Cache) demote(err error, op, key string) {
	if !c.handle.Health().MarkUnhealthy(err) {
		c.logger.Debug().Err(err).Str("op", op).Str("key", key).Msg("cache store error after demotion")
	}
}
