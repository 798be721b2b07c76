package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/rwamarket/internal/ledger"
)

// JournalEntry is one accepted command.
type JournalEntry struct {
	Seq       int64
	RequestID string
	Command   ledger.Command
	Events    []ledger.Attribute
}

func writeJournal(ctx context.Context, q querier, seq int64, requestID string, cmd ledger.Command, events []ledger.Attribute) error {
	funds, err := ledger.MarshalCanonical(cmd.Funds.Strings())
	if err != nil {
		return fmt.Errorf("write journal: encode funds: %w", err)
	}
	op, err := ledger.EncodeOperation(cmd.Op)
	if err != nil {
		return fmt.Errorf("write journal: encode operation: %w", err)
	}
	if events == nil {
		events = []ledger.Attribute{}
	}
	evs, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("write journal: encode events: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO journal (seq, request_id, caller, funds, now, kind, operation, events)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, seq, requestID, string(cmd.Caller), string(funds), toDB(cmd.Now), string(cmd.Op.Kind()), string(op), string(evs))
	if err != nil {
		return fmt.Errorf("write journal seq %d: %w", seq, err)
	}
	return nil
}

// LastSeq returns the highest journaled seq, 0 for an empty journal.
// Used to resume engine.Clock after a restart.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM journal`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("read last seq: %w", err)
	}
	return seq.Int64, nil
}

// ReadJournal returns entries with seq > after in seq order. A non-positive
// limit returns all of them.
func (s *Store) ReadJournal(ctx context.Context, after int64, limit int) ([]JournalEntry, error) {
	return readJournal(ctx, s.db, after, limit)
}

func readJournal(ctx context.Context, q querier, after int64, limit int) ([]JournalEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT seq, request_id, caller, funds, now, operation, events
		FROM journal
		WHERE seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`, after, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	defer rows.Close()

	entries := []JournalEntry{}
	for rows.Next() {
		e, err := scanJournal(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

// ReadJournalEntry returns the entry journaled at seq.
func (s *Store) ReadJournalEntry(ctx context.Context, seq int64) (JournalEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, request_id, caller, funds, now, operation, events
		FROM journal WHERE seq = ?
	`, seq)
	e, err := scanJournal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return JournalEntry{}, fmt.Errorf("journal seq %d: %w", seq, ErrNotFound)
	}
	return e, err
}

func scanJournal(row interface{ Scan(...any) error }) (JournalEntry, error) {
	var (
		e                         JournalEntry
		caller, funds, op, events string
		now                       int64
	)
	if err := row.Scan(&e.Seq, &e.RequestID, &caller, &funds, &now, &op, &events); err != nil {
		return JournalEntry{}, fmt.Errorf("scan journal: %w", err)
	}

	var fundStrings []string
	if err := json.Unmarshal([]byte(funds), &fundStrings); err != nil {
		return JournalEntry{}, fmt.Errorf("decode journal seq %d funds: %w", e.Seq, err)
	}
	coins, err := ledger.ParseCoins(fundStrings)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("decode journal seq %d funds: %w", e.Seq, err)
	}
	operation, err := ledger.DecodeOperation([]byte(op))
	if err != nil {
		return JournalEntry{}, fmt.Errorf("decode journal seq %d operation: %w", e.Seq, err)
	}
	if err := json.Unmarshal([]byte(events), &e.Events); err != nil {
		return JournalEntry{}, fmt.Errorf("decode journal seq %d events: %w", e.Seq, err)
	}

	e.Command = ledger.Command{
		Caller: ledger.Identity(caller),
		Funds:  coins,
		Now:    fromDB(now),
		Op:     operation,
	}
	return e, nil
}
