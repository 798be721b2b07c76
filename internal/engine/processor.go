package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/rwamarket/internal/ledger"
)

// ErrProcessorStopped is returned by Submit once the Processor has stopped.
var ErrProcessorStopped = errors.New("processor stopped")

// Applier commits one command. The store implements it with a SQLite
// transaction that also journals the command and enqueues its transfers;
// Machine implements it in memory.
//
// A *ledger.Error return means the command was rejected and nothing was
// committed. Any other error is an infrastructure failure.
type Applier interface {
	Apply(ctx context.Context, seq int64, requestID string, cmd ledger.Command) (Result, error)
}

// Observer is notified of every processed command. internal/metrics
// implements it with Prometheus counters.
type Observer interface {
	ObserveCommand(kind ledger.OperationKind, res Result, err error)
}

// Outcome is an accepted command together with its stamps.
type Outcome struct {
	Seq       int64
	RequestID string
	Result    Result
}

// Processor serializes commands from many goroutines onto one Applier.
//
// Thread-safety model:
//   - Submit(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Stop(): safe from any goroutine
type Processor struct {
	applier  Applier
	clock    *Clock
	queue    *commandQueue
	ids      RequestIDGenerator
	observer Observer
	logger   *slog.Logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithClock resumes seq numbering from an existing clock.
func WithClock(c *Clock) ProcessorOption {
	return func(p *Processor) { p.clock = c }
}

// WithRequestIDs replaces the default UUIDv7 request id generator.
func WithRequestIDs(g RequestIDGenerator) ProcessorOption {
	return func(p *Processor) { p.ids = g }
}

// WithObserver registers an observer for processed commands.
func WithObserver(o Observer) ProcessorOption {
	return func(p *Processor) { p.observer = o }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) ProcessorOption {
	return func(p *Processor) { p.logger = l }
}

// NewProcessor creates a Processor applying commands to a.
func NewProcessor(a Applier, opts ...ProcessorOption) *Processor {
	p := &Processor{
		applier: a,
		clock:   NewClock(),
		queue:   newCommandQueue(),
		ids:     UUIDv7Generator{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit queues cmd and waits until Run has applied it or ctx is done.
// A rejected command returns its *ledger.Error.
func (p *Processor) Submit(ctx context.Context, cmd ledger.Command) (Outcome, error) {
	s := submission{cmd: cmd, reply: make(chan reply, 1)}
	if !p.queue.Enqueue(s) {
		return Outcome{}, ErrProcessorStopped
	}
	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case r := <-s.reply:
		return r.outcome, r.err
	}
}

// Run applies queued commands one at a time until ctx is cancelled or Stop
// is called. Submissions still queued at shutdown fail with
// ErrProcessorStopped.
//
// A rejected command or an applier failure is reported to its submitter and
// processing continues with the next command.
func (p *Processor) Run(ctx context.Context) error {
	p.logger.Info("processor starting", "seq", p.clock.Current())

	for {
		s, ok := p.queue.TryDequeue()
		if ok {
			s.reply <- p.process(ctx, s.cmd)
			continue
		}

		select {
		case <-ctx.Done():
			p.logger.Info("processor stopping: context cancelled")
			p.drain()
			return ctx.Err()

		case <-p.queue.Wait():
			// the signal channel is closed by Stop
			if p.queue.Len() == 0 && p.stopped() {
				p.logger.Info("processor stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue, failing queued submissions, and makes Run return.
func (p *Processor) Stop() {
	p.drain()
}

func (p *Processor) drain() {
	for _, s := range p.queue.Close() {
		s.reply <- reply{err: ErrProcessorStopped}
	}
}

func (p *Processor) stopped() bool {
	select {
	case _, open := <-p.queue.Wait():
		return !open
	default:
		return false
	}
}

// process applies one command. Called only from the Run goroutine.
func (p *Processor) process(ctx context.Context, cmd ledger.Command) reply {
	seq := p.clock.Next()
	requestID := p.ids.Generate()
	kind := ledger.OperationKind("unknown")
	if cmd.Op != nil {
		kind = cmd.Op.Kind()
	}

	res, err := p.applier.Apply(ctx, seq, requestID, cmd)
	if p.observer != nil {
		p.observer.ObserveCommand(kind, res, err)
	}

	switch {
	case err == nil:
		p.logger.Info("command accepted",
			"seq", seq,
			"request_id", requestID,
			"kind", kind,
			"caller", cmd.Caller,
			"transfers", len(res.Transfers),
		)
		return reply{outcome: Outcome{Seq: seq, RequestID: requestID, Result: res}}
	case ledger.IsRejection(err):
		p.logger.Info("command rejected",
			"seq", seq,
			"request_id", requestID,
			"kind", kind,
			"caller", cmd.Caller,
			"code", ledger.CodeOf(err),
			"error", err,
		)
		return reply{err: err}
	default:
		p.logger.Error("command failed",
			"seq", seq,
			"request_id", requestID,
			"kind", kind,
			"caller", cmd.Caller,
			"error", err,
		)
		return reply{err: fmt.Errorf("apply %s (seq %d): %w", kind, seq, err)}
	}
}
