package main

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nw-com/nw-patrol/utils/migration"
)

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Sub(migrationsFS, "migrations")
	require.NoError(t, err)

	migrations, err := migration.Load(files)
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	first := migrations[0]
	assert.Equal(t, 1, first.Version)
	assert.Equal(t, "create_user_profiles", first.Name)
	assert.Contains(t, first.UpSQL, "CREATE TABLE IF NOT EXISTS user_profiles")
	assert.Contains(t, first.DownSQL, "DROP TABLE IF EXISTS user_profiles")
}
