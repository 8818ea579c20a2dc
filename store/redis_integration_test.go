//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedis_KV_Integration(t *testing.T) {
	ctx := context.Background()
	backend := SetupRedis(t, ctx)

	t.Run("missing key is not an error", func(t *testing.T) {
		_, ok, err := backend.Get(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set get delete", func(t *testing.T) {
		require.NoError(t, backend.Set(ctx, "team:1", `{"a":1}`, 0))

		value, ok, err := backend.Get(ctx, "team:1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `{"a":1}`, value)

		ttl, err := backend.Client().TTL(ctx, "team:1").Result()
		require.NoError(t, err)
		assert.Equal(t, time.Duration(-1), ttl, "no expiry")

		require.NoError(t, backend.Del(ctx, "team:1"))
		_, ok, err = backend.Get(ctx, "team:1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ttl is applied", func(t *testing.T) {
		require.NoError(t, backend.Set(ctx, "replication:1", "true", 30*time.Second))

		ttl, err := backend.Client().TTL(ctx, "replication:1").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 25*time.Second)
		assert.LessOrEqual(t, ttl, 30*time.Second)
	})
}

func TestRedis_Counter_Integration(t *testing.T) {
	ctx := context.Background()
	backend := SetupRedis(t, ctx)

	t.Run("first increment arms the window", func(t *testing.T) {
		count, err := backend.IncrWindow(ctx, "ratelimit:k:1", 10*time.Second)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		ttl, err := backend.Client().PTTL(ctx, "ratelimit:k:1").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))

		count, err = backend.IncrWindow(ctx, "ratelimit:k:1", 10*time.Second)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		current, err := backend.Count(ctx, "ratelimit:k:1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), current)
	})

	t.Run("delete counters removes exact keys only", func(t *testing.T) {
		for _, key := range []string{"ratelimit:a:1", "ratelimit:a:2", "ratelimit:a*:1", "ratelimit:a:b:1"} {
			_, err := backend.IncrWindow(ctx, key, time.Minute)
			require.NoError(t, err)
		}

		require.NoError(t, backend.DelCounters(ctx, "ratelimit:a*:1", "ratelimit:a:2"))

		for key, want := range map[string]int64{"ratelimit:a:1": 1, "ratelimit:a:2": 0, "ratelimit:a*:1": 0, "ratelimit:a:b:1": 1} {
			count, err := backend.Count(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, want, count, key)
		}
	})
}
