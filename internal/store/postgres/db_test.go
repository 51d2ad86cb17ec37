package postgres

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithStatementTimeout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		url       string
		timeoutMS int
		want      string
	}{
		{name: "disabled", url: "postgres://h/db", timeoutMS: 0, want: "postgres://h/db"},
		{name: "no query", url: "postgres://h/db", timeoutMS: 45000, want: "postgres://h/db?options=-c%20statement_timeout%3D45000"},
		{name: "existing query", url: "postgres://h/db?sslmode=disable", timeoutMS: 500, want: "postgres://h/db?sslmode=disable&options=-c%20statement_timeout%3D500"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, withStatementTimeout(tt.url, tt.timeoutMS))
		})
	}
}

func TestNew_RejectsStatementTimeoutOutOfRange(t *testing.T) {
	for _, ms := range []int{-1, statementTimeoutMaxMS + 1} {
		_, err := New(Config{URL: "postgres://unused", StatementTimeoutMS: ms})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "out of allowed range")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	ups, err := fs.Glob(embeddedMigrations, "migrations/*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)

	for _, up := range ups {
		down := up[:len(up)-len(".up.sql")] + ".down.sql"
		_, err := fs.Stat(embeddedMigrations, down)
		assert.NoError(t, err, "%s has no down migration", up)
	}

	content, err := fs.ReadFile(embeddedMigrations, "migrations/001_init.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(content), "CREATE TABLE IF NOT EXISTS listings")
	assert.Contains(t, string(content), "CREATE TABLE IF NOT EXISTS pattern_generations")
}
