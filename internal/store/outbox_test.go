package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rwamarket/internal/ledger"
	"github.com/roach88/rwamarket/internal/testutil"
)

func TestOutbox_PendingInDecisionOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	a := rentScenario(t, s)
	a.must(testutil.EndRental(testutil.Renter, "1", 1030))

	pending, err := s.PendingTransfers(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 3)

	assert.Equal(t, int64(3), pending[0].Seq)
	assert.Equal(t, 0, pending[0].Position)
	assert.Equal(t, ledger.BankSend{Recipient: testutil.Seller, Coin: ledger.NewCoin(294, "earth")}, pending[0].Transfer)

	assert.Equal(t, int64(3), pending[1].Seq)
	assert.Equal(t, 1, pending[1].Position)
	assert.Equal(t, ledger.AssetTransfer{Contract: testutil.Contract, Recipient: testutil.Renter, Amount: ledger.NewAmount(100)}, pending[1].Transfer)

	assert.Equal(t, int64(4), pending[2].Seq)
	assert.Equal(t, ledger.AssetTransfer{Contract: testutil.Contract, Recipient: testutil.Seller, Amount: ledger.NewAmount(100)}, pending[2].Transfer)

	for _, e := range pending {
		assert.Equal(t, StatusPending, e.Status)
		assert.Zero(t, e.Attempts)
		want, err := ledger.TransferID(e.Seq, e.Position, e.Transfer)
		require.NoError(t, err)
		assert.Equal(t, want, e.ID)
	}

	limited, err := s.PendingTransfers(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, pending[:2], limited)
}

func TestOutbox_PendingTransfersAfter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	a := rentScenario(t, s)
	a.must(testutil.EndRental(testutil.Renter, "1", 1030))

	pending, err := s.PendingTransfers(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 3)

	after, err := s.PendingTransfersAfter(ctx, 3, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, pending[1:], after)

	after, err = s.PendingTransfersAfter(ctx, 3, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, pending[2:], after)

	after, err = s.PendingTransfersAfter(ctx, 4, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, after)
}

func TestOutbox_MarkDispatched(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rentScenario(t, s)

	pending, err := s.PendingTransfers(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, s.MarkDispatched(ctx, pending[0].ID))

	got, err := s.Transfer(ctx, pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDispatched, got.Status)
	assert.Equal(t, 1, got.Attempts)

	err = s.MarkDispatched(ctx, pending[0].ID)
	assert.True(t, errors.Is(err, ErrNotPending))

	err = s.MarkDispatched(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotPending))

	remaining, err := s.PendingTransfers(ctx, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, pending[1].ID, remaining[0].ID)
}

func TestOutbox_RecordFailureUntilFailed(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rentScenario(t, s)

	pending, err := s.PendingTransfers(ctx, 1)
	require.NoError(t, err)
	id := pending[0].ID

	status, err := s.RecordFailure(ctx, id, errors.New("bank offline"), 3)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)

	status, err = s.RecordFailure(ctx, id, errors.New("bank offline"), 3)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)

	status, err = s.RecordFailure(ctx, id, errors.New("bank still offline"), 3)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status)

	got, err := s.Transfer(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, 3, got.Attempts)
	assert.Equal(t, "bank still offline", got.LastError)

	_, err = s.RecordFailure(ctx, id, errors.New("again"), 3)
	assert.True(t, errors.Is(err, ErrNotPending))
	assert.True(t, errors.Is(s.MarkDispatched(ctx, id), ErrNotPending))
}

func TestOutbox_RetryFailed(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rentScenario(t, s)

	pending, err := s.PendingTransfers(ctx, 0)
	require.NoError(t, err)
	for _, e := range pending {
		_, err := s.RecordFailure(ctx, e.ID, errors.New("down"), 1)
		require.NoError(t, err)
	}

	counts, err := s.OutboxCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[Status]int{StatusPending: 0, StatusDispatched: 0, StatusFailed: 2}, counts)

	n, err := s.RetryFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	retried, err := s.PendingTransfers(ctx, 0)
	require.NoError(t, err)
	require.Len(t, retried, 2)
	for _, e := range retried {
		assert.Zero(t, e.Attempts)
		assert.Equal(t, "down", e.LastError)
	}

	require.NoError(t, s.MarkDispatched(ctx, retried[0].ID))
	counts, err = s.OutboxCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[Status]int{StatusPending: 1, StatusDispatched: 1, StatusFailed: 0}, counts)
}

func TestOutbox_TransfersForSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	a := rentScenario(t, s)
	a.must(testutil.EndRental(testutil.Renter, "1", 1030))

	rent, err := s.TransfersForSeq(ctx, 3)
	require.NoError(t, err)
	require.Len(t, rent, 2)
	assert.Equal(t, 0, rent[0].Position)
	assert.Equal(t, 1, rent[1].Position)

	end, err := s.TransfersForSeq(ctx, 4)
	require.NoError(t, err)
	require.Len(t, end, 1)

	none, err := s.TransfersForSeq(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOutbox_TransferNotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Transfer(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestOutbox_WithdrawFeesGoesToOwner(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	a := rentScenario(t, s)
	a.must(testutil.Cmd(testutil.Owner, 0, ledger.WithdrawFees{Amount: ledger.NewAmount(6), Denom: "earth"}))

	all, err := s.Transfers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ledger.BankSend{Recipient: testutil.Owner, Coin: ledger.NewCoin(6, "earth")}, all[2].Transfer)
}
