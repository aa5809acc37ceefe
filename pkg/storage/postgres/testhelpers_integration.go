//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SetupPostgresContainer starts a disposable PostgreSQL container, applies
// the schema, and returns a storage wired to it.
//
// Usage:
//
//	s, cleanup := SetupPostgresContainer(t)
//	defer cleanup()
//
// The cleanup function closes the connection and terminates the container
// with a fresh context, so a test-timeout-cancelled context never leaks
// the container.
func SetupPostgresContainer(t *testing.T) (*PostgresStorage, func()) {
	t.Helper()

	ctx := context.Background()

	if _, err := testcontainers.ProviderDocker.GetProvider(); err != nil {
		t.Skip("Docker not available, skipping integration tests")
	}

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("envlink_test"),
		tcpostgres.WithUsername("envlink"),
		tcpostgres.WithPassword("envlink_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	require.NoError(t, db.Ping())

	s := &PostgresStorage{
		conns: &ConnectionManager{
			primary: db,
			log:     logrus.WithField("component", "postgres-integration"),
		},
		log: logrus.WithField("component", "postgres-integration"),
	}
	require.NoError(t, s.EnsureSchema(ctx), "failed to apply schema")

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("warning: failed to close database: %v", err)
		}

		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	}
	return s, cleanup
}
