package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"flipscout/models"
)

// setupPostgres starts a throwaway PostgreSQL container. The test is skipped
// in -short mode or when no container runtime is available.
func setupPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")
	return dsn
}

func TestPostgresWriterAppend(t *testing.T) {
	dsn := setupPostgres(t)
	ctx := context.Background()

	w, err := NewPostgresWriter(ctx, dsn)
	require.NoError(t, err)
	defer w.Close()

	tbl := sampleTable([]string{"1 Main St", "500000", "3 comps @ $612.50/sqft"})
	require.NoError(t, w.Append(ctx, tbl))
	require.NoError(t, w.Append(ctx, sampleTable()))

	rows, err := w.Rows(ctx, models.TableForSale, tbl.Header)
	require.NoError(t, err)
	assert.Equal(t, tbl.Rows, rows)

	n, err := w.AppendCount(ctx, models.TableForSale)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPostgresWriterBadPassword(t *testing.T) {
	dsn := setupPostgres(t)
	ctx := context.Background()

	bad := dsn[:len("postgres://test:")] + "wrong" + dsn[len("postgres://test:test"):]
	_, err := NewPostgresWriter(ctx, bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
