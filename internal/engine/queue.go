package engine

import (
	"sync"

	"github.com/roach88/rwamarket/internal/ledger"
)

// submission is one queued command plus where to deliver its outcome.
type submission struct {
	cmd   ledger.Command
	reply chan reply // buffered, size 1
}

type reply struct {
	outcome Outcome
	err     error
}

// commandQueue is a thread-safe FIFO of submissions.
//
// Enqueue may be called from any goroutine (request handlers, the serve
// reader) while the Processor's Run loop dequeues. The signal channel lets
// Run wait for work and for context cancellation in the same select.
type commandQueue struct {
	mu     sync.Mutex
	items  []submission
	closed bool
	signal chan struct{} // buffered, size 1
}

func newCommandQueue() *commandQueue {
	return &commandQueue{
		items:  make([]submission, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a submission to the back of the queue.
// Returns false if the queue is closed.
func (q *commandQueue) Enqueue(s submission) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, s)

	// buffer of 1 coalesces signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front submission without blocking.
func (q *commandQueue) TryDequeue() (submission, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return submission{}, false
	}

	s := q.items[0]
	q.items[0] = submission{} // release the reply channel for GC

	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}

	return s, true
}

// Wait returns a channel that signals when submissions may be available.
// It is closed by Close.
func (q *commandQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *commandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting submissions and returns whatever was still queued.
func (q *commandQueue) Close() []submission {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.signal)
	rest := q.items
	q.items = nil
	return rest
}
