package postgresql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_OpenEntryUniqueness(t *testing.T) {
	schema, ok := migrations()[1]
	require.True(t, ok, "initial migration must exist")

	// One open dial queue entry per (campaign, lead) is enforced by the
	// database, not just by the admission code path.
	assert.Contains(t, schema, "CREATE UNIQUE INDEX idx_dial_queue_open_unique")
	assert.Contains(t, schema, "WHERE status IN ('pending', 'calling')")
}

func TestMigrations_LiveProgressUniqueness(t *testing.T) {
	schema := migrations()[1]

	assert.Contains(t, schema, "CREATE UNIQUE INDEX idx_progress_live_unique")
	assert.Contains(t, schema, "WHERE status IN ('active', 'paused')")
}

func TestMigrations_SequentialVersions(t *testing.T) {
	all := migrations()
	for v := 1; v <= len(all); v++ {
		assert.Contains(t, all, v)
	}
}
