//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/marcelsud/plop-reliability/cache"
	"github.com/marcelsud/plop-reliability/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testcontainersredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupRedis(t *testing.T, ctx context.Context) *store.Redis {
	t.Helper()

	container, err := testcontainersredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "failed to start Redis container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	backend, err := store.NewRedis(uri, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return backend
}

func TestCache_Redis_Integration(t *testing.T) {
	ctx := context.Background()
	backend := setupRedis(t, ctx)
	handle := healthyHandle(backend)

	t.Run("namespaced keys and default ttl", func(t *testing.T) {
		c := cache.New(handle, "team:", 300)
		require.NoError(t, c.Set(ctx, "t1", map[string]any{"enabled": true}))

		value, ok := c.Get(ctx, "t1")
		require.True(t, ok)
		assert.NotNil(t, value)

		ttl, err := backend.Client().TTL(ctx, "team:t1").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 290*time.Second)

		c.Delete(ctx, "t1")
		_, ok = c.Get(ctx, "t1")
		assert.False(t, ok)
	})

	t.Run("explicit no expiry", func(t *testing.T) {
		c := cache.New(handle, "team:", 300)
		require.NoError(t, c.Set(ctx, "t2", "x", cache.NoExpiry()))

		ttl, err := backend.Client().TTL(ctx, "team:t2").Result()
		require.NoError(t, err)
		assert.Equal(t, time.Duration(-1), ttl)
	})

	t.Run("replication marker", func(t *testing.T) {
		marker := cache.NewReplicationMarker(handle)
		assert.False(t, marker.RecentlyWritten(ctx, "mailbox-1"))

		marker.MarkWrite(ctx, "mailbox-1")
		assert.True(t, marker.RecentlyWritten(ctx, "mailbox-1"))

		ttl, err := backend.Client().TTL(ctx, "replication:mailbox-1").Result()
		require.NoError(t, err)
		assert.LessOrEqual(t, ttl, 15*time.Second)

		marker.Clear(ctx, "mailbox-1")
		assert.False(t, marker.RecentlyWritten(ctx, "mailbox-1"))
	})

	assert.True(t, store.NewHandle(backend, nil).Healthy())
}
