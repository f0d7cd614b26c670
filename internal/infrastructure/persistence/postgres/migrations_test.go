package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every migration must carry both directions: Migrate refuses an empty UpSQL
// and Rollback refuses an empty DownSQL, so a gap here would only surface in
// production maintenance.
func TestMigrationsAreReversible(t *testing.T) {
	migrations := GetMigrations()
	require.NotEmpty(t, migrations)

	prev := 0
	for _, m := range migrations {
		assert.Greater(t, m.Version, prev, "versions must be strictly increasing")
		assert.NotEmpty(t, m.Name)
		assert.NotEmpty(t, m.UpSQL, "migration %d has no up SQL", m.Version)
		assert.NotEmpty(t, m.DownSQL, "migration %d has no down SQL", m.Version)
		prev = m.Version
	}
}
