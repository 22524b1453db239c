package postgres

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_Sequential(t *testing.T) {
	goose.SetBaseFS(migrations)
	t.Cleanup(func() { goose.SetBaseFS(nil) })

	ms, err := goose.CollectMigrations(migrationsDir, 0, goose.MaxVersion)
	require.NoError(t, err)
	require.Len(t, ms, 5)
	for i, m := range ms {
		assert.Equal(t, int64(i+1), m.Version, m.Source)
	}
}

func TestMigrations_UpAndDown(t *testing.T) {
	files, err := fs.Glob(migrations, migrationsDir+"/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, name := range files {
		body, err := fs.ReadFile(migrations, name)
		require.NoError(t, err)
		sql := string(body)
		assert.True(t, strings.HasPrefix(sql, "-- +goose Up\n"), name)
		assert.Contains(t, sql, "-- +goose Down\n", name)
		assert.Equal(t, strings.Count(sql, "-- +goose StatementBegin"), strings.Count(sql, "-- +goose StatementEnd"), name)
	}
}

func TestMigrations_IdempotencyKeyedPerUser(t *testing.T) {
	body, err := fs.ReadFile(migrations, migrationsDir+"/00004_system.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "PRIMARY KEY (user_id, idempotency_key)")
}
