//go:build integration

// Package pgtest starts a throwaway Postgres for repository tests.
package pgtest

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/corray333/food-ordering/order/internal/dal/postgres"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// NewClient runs a Postgres container with the service schema applied and
// returns a client connected to it. The test is skipped without a container runtime.
func NewClient(t *testing.T) *postgres.Client {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("orders"),
		tcpostgres.WithUsername("order"),
		tcpostgres.WithPassword("order"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	client, err := postgres.NewClient(ctx, dsn, migrationsPath())
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return client
}

// Exec runs raw SQL, typically to seed the read models.
func Exec(t *testing.T, client *postgres.Client, sql string, args ...any) {
	t.Helper()

	_, err := client.Pool().Exec(context.Background(), sql, args...)
	require.NoError(t, err)
}

func migrationsPath() string {
	_, file, _, _ := runtime.Caller(0)

	return filepath.Join(filepath.Dir(file), "..", "..", "..", "..", "migrations")
}
