package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rwamarket/internal/engine"
	"github.com/roach88/rwamarket/internal/ledger"
	"github.com/roach88/rwamarket/internal/testutil"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// applier applies commands with consecutive seqs and fixed request ids.
type applier struct {
	t   *testing.T
	s   *Store
	seq testutil.SeqSource
}

func newApplier(t *testing.T, s *Store) *applier {
	return &applier{t: t, s: s}
}

func (a *applier) apply(cmd ledger.Command) (engine.Result, error) {
	seq := a.seq.Next()
	return a.s.Apply(context.Background(), seq, "req-"+string(cmd.Op.Kind()), cmd)
}

func (a *applier) must(cmd ledger.Command) engine.Result {
	a.t.Helper()
	res, err := a.apply(cmd)
	require.NoError(a.t, err)
	return res
}

// rentScenario lists 100 units at 10earth (fee 2%) and rents them for 30s
// from t=1000.
func rentScenario(t *testing.T, s *Store) *applier {
	t.Helper()
	a := newApplier(t, s)
	a.must(testutil.Instantiate(2))
	a.must(testutil.List(testutil.Seller, 100, "10earth"))
	a.must(testutil.Rent(testutil.Renter, "1", 1000, 30, "300earth"))
	return a
}
