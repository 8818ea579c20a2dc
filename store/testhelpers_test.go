//go:build integration

package store_test

import (
	"context"
	"strings"
	"testing"

	"github.com/marcelsud/plop-reliability/store"
	"github.com/stretchr/testify/require"
	testcontainersredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

/* Test Helpers for Redis Integration Tests
 * One container per test keeps keyspaces isolated
 */

// SetupRedis starts a Redis testcontainer and returns a connected backend
func SetupRedis(t *testing.T, ctx context.Context) *store.Redis {
	t.Helper()

	container, err := testcontainersredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "failed to start Redis container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err, "failed to get Redis connection string")
	require.True(t, strings.HasPrefix(uri, "redis://"))

	backend, err := store.NewRedis(uri, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	require.NoError(t, backend.Client().Ping(ctx).Err())
	return backend
}
