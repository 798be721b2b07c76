package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/rwamarket/internal/ledger"
	"github.com/roach88/rwamarket/internal/metrics"
	"github.com/roach88/rwamarket/internal/store"
)

// Outbox is the store surface the dispatcher needs. *store.Store implements it.
type Outbox interface {
	PendingTransfersAfter(ctx context.Context, seq int64, position int, limit int) ([]store.OutboxEntry, error)
	MarkDispatched(ctx context.Context, id string) error
	RecordFailure(ctx context.Context, id string, cause error, maxAttempts int) (store.Status, error)
	OutboxCounts(ctx context.Context) (map[store.Status]int, error)
}

// Executor performs one transfer. It must be idempotent on id: a crash
// between a successful Execute and MarkDispatched redelivers the same id.
type Executor interface {
	Execute(ctx context.Context, id string, t ledger.Transfer) error
}

// Recorder receives delivery outcomes. *metrics.Metrics implements it.
type Recorder interface {
	ObserveDispatch(kind ledger.TransferKind, outcome string)
	SetOutboxDepth(status string, n int)
}

var (
	_ Outbox   = (*store.Store)(nil)
	_ Recorder = (*metrics.Metrics)(nil)
)

type nopRecorder struct{}

func (nopRecorder) ObserveDispatch(ledger.TransferKind, string) {}
func (nopRecorder) SetOutboxDepth(string, int)                  {}

// Stats summarizes one pass over the outbox.
type Stats struct {
	Delivered int
	Retrying  int
	Failed    int
}

// Total returns the number of transfers attempted.
func (s Stats) Total() int {
	return s.Delivered + s.Retrying + s.Failed
}

// Dispatcher drains the outbox into an Executor.
type Dispatcher struct {
	outbox Outbox
	exec   Executor
	cfg    config
}

// New creates a Dispatcher.
func New(outbox Outbox, exec Executor, opts ...Option) (*Dispatcher, error) {
	cfg, err := getOpts(opts)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{outbox: outbox, exec: exec, cfg: cfg}, nil
}

// RunOnce delivers up to one batch of pending transfers in decision order.
// Delivery failures are recorded on the rows, not returned; only store
// errors and context cancellation are.
func (d *Dispatcher) RunOnce(ctx context.Context) (Stats, error) {
	stats, _, err := d.pass(ctx, cursor{position: -1})
	return stats, err
}

// cursor is the (seq, position) of the last row a drain attempted.
type cursor struct {
	seq      int64
	position int
}

// pass attempts one batch of pending rows decided after c and returns the
// cursor of the last row it loaded. An unchanged cursor means nothing was
// pending past c.
func (d *Dispatcher) pass(ctx context.Context, c cursor) (Stats, cursor, error) {
	var stats Stats

	pending, err := d.outbox.PendingTransfersAfter(ctx, c.seq, c.position, d.cfg.batchSize)
	if err != nil {
		return stats, c, fmt.Errorf("load pending transfers: %w", err)
	}
	if len(pending) > 0 {
		last := pending[len(pending)-1]
		c = cursor{seq: last.Seq, position: last.Position}
	}

	for _, e := range pending {
		if err := ctx.Err(); err != nil {
			return stats, c, err
		}
		log := d.cfg.logger.With("transfer_id", e.ID, "seq", e.Seq, "position", e.Position, "type", string(e.Transfer.Kind()))

		execErr := d.exec.Execute(ctx, e.ID, e.Transfer)
		if execErr == nil {
			if err := d.outbox.MarkDispatched(ctx, e.ID); err != nil {
				return stats, c, fmt.Errorf("mark transfer %s dispatched: %w", e.ID, err)
			}
			stats.Delivered++
			d.cfg.recorder.ObserveDispatch(e.Transfer.Kind(), metrics.DispatchDelivered)
			log.Debug("transfer delivered", "transfer", e.Transfer.String())
			continue
		}
		if errors.Is(execErr, context.Canceled) && ctx.Err() != nil {
			return stats, c, ctx.Err()
		}

		status, err := d.outbox.RecordFailure(ctx, e.ID, execErr, d.cfg.maxAttempts)
		if err != nil {
			return stats, c, fmt.Errorf("record transfer %s failure: %w", e.ID, err)
		}
		if status == store.StatusFailed {
			stats.Failed++
			d.cfg.recorder.ObserveDispatch(e.Transfer.Kind(), metrics.DispatchFailed)
			log.Error("transfer failed permanently", "attempts", e.Attempts+1, "error", execErr)
			continue
		}
		stats.Retrying++
		d.cfg.recorder.ObserveDispatch(e.Transfer.Kind(), metrics.DispatchRetrying)
		log.Warn("transfer delivery failed", "attempts", e.Attempts+1, "error", execErr)
	}

	d.sampleDepth(ctx)
	return stats, c, nil
}

// Drain attempts every transfer pending when it starts, and any decided
// while it runs, exactly once each. Rows left retrying wait for the next
// Drain or Run pass. Used by the one-shot dispatch command and on serve
// shutdown.
func (d *Dispatcher) Drain(ctx context.Context) (Stats, error) {
	var total Stats
	c := cursor{position: -1}
	for {
		stats, next, err := d.pass(ctx, c)
		total.Delivered += stats.Delivered
		total.Retrying += stats.Retrying
		total.Failed += stats.Failed
		if err != nil {
			return total, err
		}
		if next == c {
			return total, nil
		}
		c = next
	}
}

// Run polls the outbox every interval until ctx is done. Store errors are
// logged and retried on the next tick.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.interval)
	defer ticker.Stop()

	for {
		stats, err := d.RunOnce(ctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			d.cfg.logger.Error("dispatch pass failed", "error", err)
		case stats.Total() > 0:
			d.cfg.logger.Info("dispatch pass",
				"delivered", stats.Delivered,
				"retrying", stats.Retrying,
				"failed", stats.Failed)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *Dispatcher) sampleDepth(ctx context.Context) {
	counts, err := d.outbox.OutboxCounts(ctx)
	if err != nil {
		d.cfg.logger.Warn("sample outbox depth", "error", err)
		return
	}
	for status, n := range counts {
		d.cfg.recorder.SetOutboxDepth(string(status), n)
	}
}
