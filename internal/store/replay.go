package store

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/rwamarket/internal/engine"
	"github.com/roach88/rwamarket/internal/ledger"
)

// ReplayReport summarizes a successful replay.
type ReplayReport struct {
	Commands    int
	Transfers   int
	LastSeq     int64
	StateDigest string
}

// Replay re-applies the journal to an empty in-memory state with the pure
// reducer and verifies that it reproduces:
//   - every journaled command's acceptance and events
//   - the exact outbox sequence (ids, positions, payloads)
//   - the persisted registry, offerings and rentals
//
// All mismatches are collected into one multierror.
func (s *Store) Replay(ctx context.Context) (ReplayReport, error) {
	entries, persisted, current, err := s.replayInputs(ctx)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("replay: %w", err)
	}

	var (
		result   *multierror.Error
		state    = engine.NewState()
		expected []OutboxEntry
		report   ReplayReport
	)

	for _, e := range entries {
		next, res, err := engine.Apply(state, e.Command)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("seq %d: journaled command rejected on replay: %w", e.Seq, err))
			continue
		}
		state = next

		events := res.Events
		if events == nil {
			events = []ledger.Attribute{}
		}
		if !reflect.DeepEqual(events, e.Events) {
			result = multierror.Append(result, fmt.Errorf("seq %d: events differ: journaled %v, replayed %v", e.Seq, e.Events, events))
		}

		for i, t := range res.Transfers {
			id, err := ledger.TransferID(e.Seq, i, t)
			if err != nil {
				return ReplayReport{}, fmt.Errorf("replay seq %d: %w", e.Seq, err)
			}
			expected = append(expected, OutboxEntry{ID: id, Seq: e.Seq, Position: i, Transfer: t})
		}
		report.Commands++
		report.LastSeq = e.Seq
	}

	if len(expected) != len(persisted) {
		result = multierror.Append(result, fmt.Errorf("outbox has %d transfers, replay decided %d", len(persisted), len(expected)))
	}
	for i := 0; i < len(expected) && i < len(persisted); i++ {
		want, got := expected[i], persisted[i]
		if want.ID != got.ID || want.Seq != got.Seq || want.Position != got.Position || want.Transfer != got.Transfer {
			result = multierror.Append(result, fmt.Errorf("outbox[%d]: persisted %s (seq %d/%d %s), replayed %s (seq %d/%d %s)",
				i, got.ID, got.Seq, got.Position, got.Transfer, want.ID, want.Seq, want.Position, want.Transfer))
		}
	}
	report.Transfers = len(expected)

	replayed, err := engine.TakeSnapshot(state)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("replay: %w", err)
	}
	wantDigest, err := replayed.Digest()
	if err != nil {
		return ReplayReport{}, fmt.Errorf("replay: %w", err)
	}
	gotDigest, err := current.Digest()
	if err != nil {
		return ReplayReport{}, fmt.Errorf("replay: %w", err)
	}
	if wantDigest != gotDigest {
		result = multierror.Append(result, fmt.Errorf("state digest %s differs from replayed %s", gotDigest, wantDigest))
	}
	report.StateDigest = gotDigest

	return report, result.ErrorOrNil()
}

// replayInputs reads the journal, the outbox and the live state from one
// read transaction so a concurrent Apply cannot land between them.
func (s *Store) replayInputs(ctx context.Context) ([]JournalEntry, []OutboxEntry, engine.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, engine.Snapshot{}, fmt.Errorf("begin read: %w", err)
	}
	defer tx.Rollback()

	entries, err := readJournal(ctx, tx, 0, 0)
	if err != nil {
		return nil, nil, engine.Snapshot{}, err
	}
	persisted, err := queryOutbox(ctx, tx, `ORDER BY seq ASC, position ASC`)
	if err != nil {
		return nil, nil, engine.Snapshot{}, err
	}
	current, err := engine.TakeSnapshot(&tables{ctx: ctx, q: tx})
	if err != nil {
		return nil, nil, engine.Snapshot{}, err
	}
	return entries, persisted, current, nil
}
