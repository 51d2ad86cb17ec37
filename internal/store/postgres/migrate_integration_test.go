//go:build integration

package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_IsIdempotent(t *testing.T) {
	db := testDB(t)

	applied, err := db.Migrate(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, applied, "testDB already applied every migration")

	var count int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM schema_migrations`).Scan(&count))
	assert.GreaterOrEqual(t, count, 1)
}
