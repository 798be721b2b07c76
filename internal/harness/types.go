package harness

import (
	"github.com/roach88/rwamarket/internal/engine"
	"github.com/roach88/rwamarket/internal/ledger"
)

// Outcome of an accepted step.
const OutcomeAccepted = "accepted"

// TraceEvent is one executed step.
type TraceEvent struct {
	Seq       int64
	Phase     string // "setup" or "flow"
	Command   ledger.Command
	Outcome   string // OutcomeAccepted or the rejection's error code
	Events    []ledger.Attribute
	Transfers []ledger.Transfer
}

// Accepted reports whether the step was accepted.
func (e TraceEvent) Accepted() bool {
	return e.Outcome == OutcomeAccepted
}

// Fields returns the canonical representation of the event.
func (e TraceEvent) Fields() map[string]any {
	events := make([]any, len(e.Events))
	for i, a := range e.Events {
		events[i] = map[string]any{"key": a.Key, "value": a.Value}
	}
	transfers := make([]any, len(e.Transfers))
	for i, t := range e.Transfers {
		transfers[i] = t.Fields()
	}
	return map[string]any{
		"seq":       e.Seq,
		"phase":     e.Phase,
		"command":   e.Command.Fields(),
		"outcome":   e.Outcome,
		"events":    events,
		"transfers": transfers,
	}
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool

	// Trace contains every setup and flow step in seq order.
	Trace []TraceEvent

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string

	// State is the final marketplace state.
	State *engine.State
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an executed step.
func (r *Result) AddTrace(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}
