package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/rwamarket/internal/engine"
	"github.com/roach88/rwamarket/internal/ledger"
)

// Harness is the test execution engine. It runs scenarios against an
// in-memory engine.Machine with a deterministic clock and request ids.
type Harness struct {
	machine *engine.Machine
	clock   *engine.Clock
	ids     engine.RequestIDGenerator
	logger  *slog.Logger
}

// Option configures a harness run.
type Option func(*Harness)

// WithLogger logs each executed step. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs on a fresh state. Setup steps must be accepted; a
// rejected setup step fails the run with an error. Flow steps are checked
// against their expect clauses, then the assertions are evaluated.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		machine: engine.NewMachine(),
		clock:   engine.NewClock(),
		ids:     &engine.SequenceGenerator{Prefix: scenario.Name},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Setup {
		ev, err := h.execute(ctx, "setup", step)
		if err != nil {
			return nil, fmt.Errorf("setup step %d: %w", i, err)
		}
		result.AddTrace(ev)
		if !ev.Accepted() {
			return nil, fmt.Errorf("setup step %d (%s): rejected with %s", i, step.Op, ev.Outcome)
		}
	}

	for i, step := range scenario.Flow {
		ev, err := h.execute(ctx, "flow", step)
		if err != nil {
			return nil, fmt.Errorf("flow step %d: %w", i, err)
		}
		result.AddTrace(ev)
		for _, msg := range checkExpect(step, ev) {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Op, msg))
		}
	}

	result.State = h.machine.State()
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

// execute applies one step. Rejections are recorded in the event; only
// malformed steps and infrastructure failures are returned as errors.
func (h *Harness) execute(ctx context.Context, phase string, step Step) (TraceEvent, error) {
	cmd, err := step.Command()
	if err != nil {
		return TraceEvent{}, err
	}

	seq := h.clock.Next()
	ev := TraceEvent{
		Seq:       seq,
		Phase:     phase,
		Command:   cmd,
		Events:    []ledger.Attribute{},
		Transfers: []ledger.Transfer{},
	}

	res, err := h.machine.Apply(ctx, seq, h.ids.Generate(), cmd)
	switch {
	case err == nil:
		ev.Outcome = OutcomeAccepted
		if res.Events != nil {
			ev.Events = res.Events
		}
		if res.Transfers != nil {
			ev.Transfers = res.Transfers
		}
	case ledger.IsRejection(err):
		ev.Outcome = string(ledger.CodeOf(err))
	default:
		return TraceEvent{}, err
	}

	h.logger.Info("step executed",
		"phase", phase,
		"seq", seq,
		"op", step.Op,
		"caller", step.Caller,
		"outcome", ev.Outcome,
	)
	return ev, nil
}

// checkExpect compares an executed step with its expect clause.
func checkExpect(step Step, ev TraceEvent) []string {
	want := step.Expect
	if want == nil {
		want = &ExpectClause{}
	}

	var errs []string
	if want.Error != "" {
		if ev.Outcome != want.Error {
			errs = append(errs, fmt.Sprintf("expected error %s, got %s", want.Error, ev.Outcome))
		}
		return errs
	}
	if !ev.Accepted() {
		return append(errs, fmt.Sprintf("expected acceptance, got %s", ev.Outcome))
	}

	if !matchEvents(ev.Events, want.Events) {
		errs = append(errs, fmt.Sprintf("events %s do not contain %s", formatEvents(ev.Events), formatMap(want.Events)))
	}
	if want.Transfers != nil {
		got := make([]map[string]string, len(ev.Transfers))
		for i, t := range ev.Transfers {
			got[i] = transferStrings(t)
		}
		if !slices.EqualFunc(got, want.Transfers, func(a, b map[string]string) bool { return maps.Equal(a, b) }) {
			errs = append(errs, fmt.Sprintf("transfers %v, expected %v", got, want.Transfers))
		}
	}
	return errs
}

// transferStrings flattens a transfer's canonical fields, all of which are
// strings.
func transferStrings(t ledger.Transfer) map[string]string {
	out := map[string]string{}
	for k, v := range t.Fields() {
		out[k] = fmt.Sprint(v)
	}
	return out
}

// matchEvents reports whether every expected key has the expected value.
func matchEvents(events []ledger.Attribute, want map[string]string) bool {
	for k, v := range want {
		found := false
		for _, a := range events {
			if a.Key == k && a.Value == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func formatEvents(events []ledger.Attribute) string {
	parts := make([]string, len(events))
	for i, a := range events {
		parts[i] = a.Key + "=" + a.Value
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func formatMap(m map[string]string) string {
	keys := slices.Sorted(maps.Keys(m))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return "[" + strings.Join(parts, " ") + "]"
}
