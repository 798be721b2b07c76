package store

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rwamarket/internal/ledger"
	"github.com/roach88/rwamarket/internal/testutil"
)

// replayFixture journals a rental that is ended, a sale and a fee withdrawal.
func replayFixture(t *testing.T) *Store {
	t.Helper()
	s := createTestStore(t)
	a := rentScenario(t, s)
	a.must(testutil.EndRental(testutil.Renter, "1", 1030))
	a.must(testutil.List(testutil.Seller, 5, "20earth"))
	a.must(testutil.Buy(testutil.Buyer, "2", "25earth"))
	a.must(testutil.Cmd(testutil.Owner, 0, ledger.WithdrawFees{Amount: ledger.NewAmount(6), Denom: "earth"}))
	return s
}

func TestReplay_Empty(t *testing.T) {
	s := createTestStore(t)

	report, err := s.Replay(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Commands)
	assert.Zero(t, report.Transfers)
	assert.Zero(t, report.LastSeq)
	assert.NotEmpty(t, report.StateDigest)
}

func TestReplay_Matches(t *testing.T) {
	s := replayFixture(t)

	report, err := s.Replay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, report.Commands)
	assert.Equal(t, int64(7), report.LastSeq)
	// rent: 2, end: 1, buy: 2, withdraw fees: 1
	assert.Equal(t, 6, report.Transfers)

	digest, err := snapshot(t, s).Digest()
	require.NoError(t, err)
	assert.Equal(t, digest, report.StateDigest)
}

func TestReplay_IgnoresDispatchStatus(t *testing.T) {
	s := replayFixture(t)
	ctx := context.Background()

	pending, err := s.PendingTransfers(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, s.MarkDispatched(ctx, pending[0].ID))
	_, err = s.RecordFailure(ctx, pending[1].ID, errors.New("down"), 1)
	require.NoError(t, err)

	_, err = s.Replay(ctx)
	assert.NoError(t, err)
}

func TestReplay_DetectsTampering(t *testing.T) {
	tests := []struct {
		name   string
		tamper string
		args   []any
		want   string
	}{
		{
			name:   "offering amount",
			tamper: `INSERT INTO offerings (id, contract, amount, seller, price_denom, price_amount) VALUES ('9', 'rwa-token', '1', 'seller', 'earth', '1')`,
			want:   "state digest",
		},
		{
			name:   "registry fee",
			tamper: `UPDATE registry SET fee = '0.5'`,
			want:   "state digest",
		},
		{
			name:   "journaled events",
			tamper: `UPDATE journal SET events = '[]' WHERE seq = 2`,
			want:   "seq 2: events differ",
		},
		{
			name:   "journaled caller",
			tamper: `UPDATE journal SET caller = 'seller' WHERE seq = 3`,
			want:   "seq 3: journaled command rejected on replay",
		},
		{
			name:   "outbox payload",
			tamper: `UPDATE outbox SET payload = ? WHERE seq = 6 AND position = 0`,
			args: []any{string(mustEncodeTransfer(t, ledger.BankSend{
				Recipient: testutil.Stranger,
				Coin:      ledger.NewCoin(19, "earth"),
			}))},
			want: "outbox[3]",
		},
		{
			name:   "missing outbox row",
			tamper: `DELETE FROM outbox WHERE seq = 7`,
			want:   "outbox has 5 transfers, replay decided 6",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := replayFixture(t)
			_, err := s.DB().Exec(tt.tamper, tt.args...)
			require.NoError(t, err)

			_, err = s.Replay(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReplay_CollectsEveryMismatch(t *testing.T) {
	s := replayFixture(t)
	db := s.DB()

	_, err := db.Exec(`UPDATE journal SET events = '[]' WHERE seq = 1`)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE offerings SET amount = '1'`)
	require.NoError(t, err)
	_, err = db.Exec(`DELETE FROM outbox WHERE seq = 7`)
	require.NoError(t, err)

	_, err = s.Replay(context.Background())
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 3)
}

func mustEncodeTransfer(t *testing.T, tr ledger.Transfer) []byte {
	t.Helper()
	data, err := ledger.EncodeTransfer(tr)
	require.NoError(t, err)
	return data
}

func TestReplay_ConcurrentWriter(t *testing.T) {
	s := createTestStore(t)
	a := newApplier(t, s)
	a.must(testutil.Instantiate(2))
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		for i := 0; i < 50; i++ {
			if _, err := a.apply(testutil.List(testutil.Seller, 10, "10earth")); err != nil {
				done <- err
				return
			}
			if _, err := a.apply(testutil.Buy(testutil.Buyer, strconv.Itoa(i+1), "10earth")); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	for {
		_, err := s.Replay(ctx)
		require.NoError(t, err)
		select {
		case err := <-done:
			require.NoError(t, err)
			report, err := s.Replay(ctx)
			require.NoError(t, err)
			assert.Equal(t, 101, report.Commands)
			assert.Equal(t, 100, report.Transfers)
			return
		default:
		}
	}
}
