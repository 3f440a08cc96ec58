package db_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"submission-intake/internal/db"
	"submission-intake/internal/testenv"
)

func TestRunMigrations_Idempotent(t *testing.T) {
	conn := testenv.Postgres(t)

	// testenv already migrated once
	require.NoError(t, db.RunMigrations(conn))

	version, dirty, err := db.SchemaVersion(conn)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	for _, table := range []string{"submissions", "sessions"} {
		var exists bool
		err := conn.QueryRow(`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, table)
	}
}
