package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/rwamarket/internal/ledger"
)

var (
	// ErrNotFound is returned when a journal entry or outbox row is missing.
	ErrNotFound = errors.New("not found")

	// ErrNotPending is returned when marking an outbox row that is no longer pending.
	ErrNotPending = errors.New("transfer is not pending")
)

// Status is the dispatch state of an outbox row.
type Status string

const (
	StatusPending    Status = "pending"
	StatusDispatched Status = "dispatched"
	StatusFailed     Status = "failed"
)

// OutboxEntry is one transfer instruction awaiting or past dispatch.
type OutboxEntry struct {
	ID        string
	Seq       int64
	Position  int
	Transfer  ledger.Transfer
	Status    Status
	Attempts  int
	LastError string
}

// enqueueTransfer stores the transfer emitted at position by command seq.
// The id is content-addressed, so replaying the journal derives it again.
func enqueueTransfer(ctx context.Context, q querier, seq int64, position int, t ledger.Transfer) error {
	id, err := ledger.TransferID(seq, position, t)
	if err != nil {
		return fmt.Errorf("enqueue transfer: %w", err)
	}
	payload, err := ledger.EncodeTransfer(t)
	if err != nil {
		return fmt.Errorf("enqueue transfer: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO outbox (id, seq, position, type, payload)
		VALUES (?, ?, ?, ?, ?)
	`, id, seq, position, string(t.Kind()), string(payload))
	if err != nil {
		return fmt.Errorf("enqueue transfer seq %d position %d: %w", seq, position, err)
	}
	return nil
}

const outboxColumns = `id, seq, position, payload, status, attempts, last_error`

func scanOutbox(row interface{ Scan(...any) error }) (OutboxEntry, error) {
	var (
		e       OutboxEntry
		payload string
		status  string
	)
	if err := row.Scan(&e.ID, &e.Seq, &e.Position, &payload, &status, &e.Attempts, &e.LastError); err != nil {
		return OutboxEntry{}, fmt.Errorf("scan outbox: %w", err)
	}
	t, err := ledger.DecodeTransfer([]byte(payload))
	if err != nil {
		return OutboxEntry{}, fmt.Errorf("decode transfer %s: %w", e.ID, err)
	}
	e.Transfer = t
	e.Status = Status(status)
	return e, nil
}

func queryOutbox(ctx context.Context, q querier, where string, args ...any) ([]OutboxEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+outboxColumns+`
		FROM outbox
		`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	entries := []OutboxEntry{}
	for rows.Next() {
		e, err := scanOutbox(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// PendingTransfers returns up to limit pending transfers in the order they
// were decided. A non-positive limit returns all of them.
func (s *Store) PendingTransfers(ctx context.Context, limit int) ([]OutboxEntry, error) {
	return s.PendingTransfersAfter(ctx, 0, -1, limit)
}

// PendingTransfersAfter is PendingTransfers restricted to rows decided after
// position of command seq.
func (s *Store) PendingTransfersAfter(ctx context.Context, seq int64, position int, limit int) ([]OutboxEntry, error) {
	return queryOutbox(ctx, s.db, `
		WHERE status = ? AND (seq > ? OR (seq = ? AND position > ?))
		ORDER BY seq ASC, position ASC
		LIMIT ?
	`, string(StatusPending), seq, seq, position, sqlLimit(limit))
}

// Transfers returns every outbox row in decision order.
func (s *Store) Transfers(ctx context.Context) ([]OutboxEntry, error) {
	return queryOutbox(ctx, s.db, `ORDER BY seq ASC, position ASC`)
}

// TransfersForSeq returns the rows decided by command seq in position order.
func (s *Store) TransfersForSeq(ctx context.Context, seq int64) ([]OutboxEntry, error) {
	return queryOutbox(ctx, s.db, `WHERE seq = ? ORDER BY position ASC`, seq)
}

// Transfer returns one outbox row.
func (s *Store) Transfer(ctx context.Context, id string) (OutboxEntry, error) {
	entries, err := queryOutbox(ctx, s.db, `WHERE id = ?`, id)
	if err != nil {
		return OutboxEntry{}, err
	}
	if len(entries) == 0 {
		return OutboxEntry{}, fmt.Errorf("transfer %s: %w", id, ErrNotFound)
	}
	return entries[0], nil
}

// MarkDispatched records a successful delivery of a pending transfer.
func (s *Store) MarkDispatched(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE outbox
		SET status = ?, attempts = attempts + 1, last_error = ''
		WHERE id = ? AND status = ?
	`, string(StatusDispatched), id, string(StatusPending))
	if err != nil {
		return fmt.Errorf("mark dispatched %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark dispatched %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("mark dispatched %s: %w", id, ErrNotPending)
	}
	return nil
}

// RecordFailure counts a failed delivery. The row stays pending until it
// has failed maxAttempts times, then becomes failed. Returns the new status.
func (s *Store) RecordFailure(ctx context.Context, id string, cause error, maxAttempts int) (Status, error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	var status string
	err := s.db.QueryRowContext(ctx, `
		UPDATE outbox
		SET attempts   = attempts + 1,
		    last_error = ?,
		    status     = CASE WHEN attempts + 1 >= ? THEN ? ELSE status END
		WHERE id = ? AND status = ?
		RETURNING status
	`, msg, maxAttempts, string(StatusFailed), id, string(StatusPending)).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("record failure %s: %w", id, ErrNotPending)
		}
		return "", fmt.Errorf("record failure %s: %w", id, err)
	}
	return Status(status), nil
}

// RetryFailed moves every failed transfer back to pending with a fresh
// attempt budget. Returns the number of rows reset.
func (s *Store) RetryFailed(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET status = ?, attempts = 0 WHERE status = ?
	`, string(StatusPending), string(StatusFailed))
	if err != nil {
		return 0, fmt.Errorf("retry failed transfers: %w", err)
	}
	return res.RowsAffected()
}

// OutboxCounts returns the number of rows per status. Every status is
// present in the map.
func (s *Store) OutboxCounts(ctx context.Context) (map[Status]int, error) {
	counts := map[Status]int{StatusPending: 0, StatusDispatched: 0, StatusFailed: 0}
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM outbox GROUP BY status ORDER BY status`)
	if err != nil {
		return nil, fmt.Errorf("count outbox: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan outbox count: %w", err)
		}
		counts[Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox counts: %w", err)
	}
	return counts, nil
}
