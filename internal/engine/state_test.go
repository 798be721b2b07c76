package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rwamarket/internal/ledger"
	"github.com/roach88/rwamarket/internal/testutil"
)

func TestApplyDoesNotMutateInput(t *testing.T) {
	s := market(t, 2)
	s, _ = mustApply(t, s, testutil.List(testutil.Seller, 100, "1000earth"))
	before := digest(t, s)

	next, _ := mustApply(t, s, testutil.Buy(testutil.Buyer, "1", "1000earth"))

	assert.Equal(t, before, digest(t, s), "the input state is untouched")
	assert.NotEqual(t, before, digest(t, next))

	_, ok, err := s.Offering("1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSnapshotDigestIsOrderIndependent(t *testing.T) {
	reg := ledger.Registry{RentalCounter: 2, Fee: ledger.FeePercent(2), Owner: testutil.Owner}
	rental := func(id string) ledger.Rental {
		return ledger.Rental{ID: id, OfferingID: "1", Renter: testutil.Renter, EndTime: 30, Amount: ledger.NewAmount(100)}
	}

	a, b := NewState(), NewState()
	require.NoError(t, a.SaveRegistry(reg))
	require.NoError(t, b.SaveRegistry(reg))
	require.NoError(t, a.SaveRental(rental("1")))
	require.NoError(t, a.SaveRental(rental("2")))
	require.NoError(t, b.SaveRental(rental("2")))
	require.NoError(t, b.SaveRental(rental("1")))

	assert.Equal(t, digest(t, a), digest(t, b))
}

func TestSnapshotDigestChangesWithState(t *testing.T) {
	s := market(t, 2)
	d1 := digest(t, s)
	s, _ = mustApply(t, s, testutil.List(testutil.Seller, 100, "1000earth"))
	assert.NotEqual(t, d1, digest(t, s))
}

func TestScanKeysUnlimited(t *testing.T) {
	m := map[string]int{"b": 1, "a": 2, "c": 3}
	assert.Equal(t, []string{"a", "b", "c"}, scanKeys(m, "", 0))
	assert.Equal(t, []string{"b", "c"}, scanKeys(m, "a", 0))
	assert.Equal(t, []string{"b"}, scanKeys(m, "a", 1))
	assert.Empty(t, scanKeys(m, "c", 0))
	assert.Empty(t, scanKeys(map[string]int{}, "", 5))
}
