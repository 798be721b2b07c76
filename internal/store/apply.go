package store

import (
	"context"
	"fmt"

	"github.com/roach88/rwamarket/internal/engine"
	"github.com/roach88/rwamarket/internal/ledger"
)

var _ engine.Applier = (*Store)(nil)

// Apply executes cmd in one transaction together with its journal row and
// outbox rows. Implements engine.Applier.
//
// A *ledger.Error is returned unwrapped and nothing is committed. seq must
// be greater than every journaled seq; a reused seq fails the journal's
// primary key and rolls back.
func (s *Store) Apply(ctx context.Context, seq int64, requestID string, cmd ledger.Command) (engine.Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return engine.Result{}, fmt.Errorf("begin apply: %w", err)
	}
	defer tx.Rollback()

	res, err := engine.Execute(&tables{ctx: ctx, q: tx}, cmd)
	if err != nil {
		return engine.Result{}, err
	}

	if err := writeJournal(ctx, tx, seq, requestID, cmd, res.Events); err != nil {
		return engine.Result{}, err
	}
	for i, t := range res.Transfers {
		if err := enqueueTransfer(ctx, tx, seq, i, t); err != nil {
			return engine.Result{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return engine.Result{}, fmt.Errorf("commit apply seq %d: %w", seq, err)
	}
	return res, nil
}

// Query runs fn against a consistent read-only snapshot of the state.
func (s *Store) Query(ctx context.Context, fn func(engine.Reader) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin query: %w", err)
	}
	defer tx.Rollback()
	return fn(&tables{ctx: ctx, q: tx})
}
