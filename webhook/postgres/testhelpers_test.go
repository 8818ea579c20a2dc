//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SetupPostgres starts a PostgreSQL container and returns a migrated repository
func SetupPostgres(t *testing.T, ctx context.Context) *Repository {
	t.Helper()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	repo, err := NewRepository(connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close(context.Background()) })

	require.NoError(t, repo.Migrate(ctx))
	return repo
}

// SeedEndpoint inserts a webhook endpoint row
func SeedEndpoint(t *testing.T, ctx context.Context, repo *Repository, id, url string, active bool, secret *string) {
	t.Helper()
	_, err := repo.DB.ExecContext(ctx,
		"INSERT INTO webhook_endpoints (id, url, active, secret) VALUES ($1, $2, $3, $4)",
		id, url, active, nullString(secret))
	require.NoError(t, err)
}

// SeedMessage inserts a message row
func SeedMessage(t *testing.T, ctx context.Context, repo *Repository, id, mailbox string, receivedAt time.Time) {
	t.Helper()
	_, err := repo.DB.ExecContext(ctx, `
		INSERT INTO messages (id, mailbox, mailbox_with_tag, tag, from_address, to_address, subject, received_at, domain)
		VALUES ($1, $2, $2, NULL, 'alice@example.com', $2 || '@plop.test', 'hello', $3, 'plop.test')`,
		id, mailbox, receivedAt)
	require.NoError(t, err)
}
