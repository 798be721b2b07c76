package engine

import (
	"context"
	"sync"

	"github.com/roach88/rwamarket/internal/ledger"
)

// Entry is one accepted command as recorded by Machine.
type Entry struct {
	Seq       int64
	RequestID string
	Command   ledger.Command
	Result    Result
}

// Machine is an in-memory Applier: a State plus the log of accepted
// commands. It backs the harness and tests that do not need SQLite.
type Machine struct {
	mu      sync.RWMutex
	state   *State
	entries []Entry
}

// NewMachine returns a Machine starting from an empty state.
func NewMachine() *Machine {
	return &Machine{state: NewState()}
}

// Apply implements Applier.
func (m *Machine) Apply(_ context.Context, seq int64, requestID string, cmd ledger.Command) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, res, err := Apply(m.state, cmd)
	if err != nil {
		return Result{}, err
	}
	m.state = next
	m.entries = append(m.entries, Entry{Seq: seq, RequestID: requestID, Command: cmd, Result: res})
	return res, nil
}

// State returns a copy of the current state, safe to query while the
// Machine keeps applying commands.
func (m *Machine) State() *State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone()
}

// Entries returns the accepted commands in seq order.
func (m *Machine) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}
