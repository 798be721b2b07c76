package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rwamarket/internal/engine"
	"github.com/roach88/rwamarket/internal/testutil"
)

func TestOpen_CreatesMarketSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "market.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	require.NoError(t, err, "database file was not created")

	for _, table := range []string{"registry", "offerings", "rentals", "journal", "outbox"} {
		var name string
		err := s.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %q missing", table)
	}
}

func TestOpen_ReopenKeepsLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "market.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	rentScenario(t, s)
	require.NoError(t, s.Close())

	// Migrations are already applied; reopening must not touch the data.
	for i := 0; i < 2; i++ {
		s, err = Open(path)
		require.NoError(t, err, "reopen %d", i)
		require.NoError(t, s.Close())
	}

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	last, err := s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), last)

	rental, err := engine.GetRental(s.Reader(ctx), "1")
	require.NoError(t, err)
	assert.Equal(t, testutil.Renter, rental.Renter)
	assert.Equal(t, uint64(1030), rental.EndTime)
}

func TestOpen_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	version, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		assert.NoError(t, s.verifyPragma(tt.name, tt.expected))
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "market.db"))
	require.Error(t, err)
}

func TestOutbox_ForeignKeyToJournal(t *testing.T) {
	s := createTestStore(t)

	_, err := s.DB().Exec(`INSERT INTO outbox (id, seq, position, type, payload) VALUES ('x', 99, 0, 'bank_send', '{}')`)
	require.Error(t, err, "outbox rows must reference a journaled seq")
}
