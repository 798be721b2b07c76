package harness

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/rwamarket/internal/engine"
	"github.com/roach88/rwamarket/internal/ledger"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s by %s: %s\n", ev.Seq, ev.Command.Op.Kind(), ev.Command.Caller, ev.Outcome)
		}
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion against the result and returns
// the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertTransferCount:
			err = assertTransferCount(result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(result.State, a)
		case AssertQuery:
			err = assertQuery(result.State, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// assertTraceContains checks for an accepted step with the op whose events
// contain the expected attributes.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if ev.Accepted() && string(ev.Command.Op.Kind()) == a.Op && matchEvents(ev.Events, a.Events) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("accepted %s with events %s", a.Op, formatMap(a.Events)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that accepted ops appear in the specified order.
// Ops don't need to be consecutive; each expected op matches the next
// accepted occurrence after the previous match.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next < len(a.Ops) && ev.Accepted() && string(ev.Command.Op.Kind()) == a.Ops[next] {
			next++
		}
	}
	if next < len(a.Ops) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("accepted ops in order: %v", a.Ops),
			Actual:   fmt.Sprintf("no accepted %s after %v", a.Ops[next], a.Ops[:next]),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceCount checks that the op was accepted exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Accepted() && string(ev.Command.Op.Kind()) == a.Op {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d accepted %s", a.Count, a.Op),
			Actual:   fmt.Sprintf("%d accepted", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTransferCount checks the total number of decided transfers.
func assertTransferCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		count += len(ev.Transfers)
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTransferCount,
			Expected: fmt.Sprintf("%d transfers", a.Count),
			Actual:   fmt.Sprintf("%d transfers", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState looks up one record and compares its fields (subset
// semantics), or checks that it is absent.
func assertFinalState(state *engine.State, a Assertion) error {
	record, found, err := lookupRecord(state, a.Table, a.Where["id"])
	if err != nil {
		return err
	}

	desc := a.Table
	if id := a.Where["id"]; id != "" {
		desc = fmt.Sprintf("%s id=%s", a.Table, id)
	}
	if a.Absent {
		if found {
			return &AssertionError{Type: AssertFinalState, Expected: desc + " absent", Actual: "record present: " + formatMap(record)}
		}
		return nil
	}
	if !found {
		return &AssertionError{Type: AssertFinalState, Expected: desc + " present", Actual: "record not found"}
	}
	return compareFields(AssertFinalState, desc, record, a.Expect)
}

func lookupRecord(state *engine.State, table, id string) (map[string]string, bool, error) {
	switch table {
	case "registry":
		reg, ok, err := state.Registry()
		if err != nil || !ok {
			return nil, ok, err
		}
		return registryFields(reg), true, nil
	case "offerings":
		off, ok, err := state.Offering(id)
		if err != nil || !ok {
			return nil, ok, err
		}
		return offerFields(ledger.NewOffer(id, off)), true, nil
	case "rentals":
		r, ok, err := state.Rental(id)
		if err != nil || !ok {
			return nil, ok, err
		}
		return rentalFields(r.ID, r.OfferingID, r.Renter, r.StartTime, r.EndTime, r.Amount), true, nil
	default:
		return nil, false, fmt.Errorf("unknown table %q", table)
	}
}

// assertQuery runs a read query and compares its result.
func assertQuery(state *engine.State, a Assertion) error {
	desc := "query " + a.Query
	got, ids, err := runQuery(state, a)

	if a.Error != "" {
		if code := string(ledger.CodeOf(err)); code != a.Error {
			return &AssertionError{Type: AssertQuery, Expected: fmt.Sprintf("%s fails with %s", desc, a.Error), Actual: fmt.Sprintf("error %v", err)}
		}
		return nil
	}
	if err != nil {
		return &AssertionError{Type: AssertQuery, Expected: desc + " succeeds", Actual: err.Error()}
	}

	if a.IDs != nil && !slices.Equal(ids, a.IDs) {
		return &AssertionError{Type: AssertQuery, Expected: fmt.Sprintf("%s ids %v", desc, a.IDs), Actual: fmt.Sprintf("ids %v", ids)}
	}
	return compareFields(AssertQuery, desc, got, a.Expect)
}

func runQuery(state *engine.State, a Assertion) (map[string]string, []string, error) {
	startAfter := fmt.Sprint(valueOr(a.Args, "start_after", ""))
	limit, err := strconv.Atoi(fmt.Sprint(valueOr(a.Args, "limit", 0)))
	if err != nil {
		return nil, nil, fmt.Errorf("limit: %w", err)
	}

	switch a.Query {
	case "count":
		n, err := engine.Count(state)
		return map[string]string{"count": strconv.FormatUint(n, 10)}, nil, err
	case "fee":
		fee, err := engine.CurrentFee(state)
		return map[string]string{"fee": fee.String()}, nil, err
	case "owner":
		owner, err := engine.Owner(state)
		return map[string]string{"owner": string(owner)}, nil, err
	case "offers":
		offers, err := engine.AllOffers(state, startAfter, limit)
		ids := make([]string, len(offers))
		for i, o := range offers {
			ids[i] = o.ID
		}
		return map[string]string{"len": strconv.Itoa(len(ids))}, ids, err
	case "rentals":
		rentals, err := engine.AllRentals(state, startAfter, limit)
		ids := make([]string, len(rentals))
		for i, r := range rentals {
			ids[i] = r.ID
		}
		return map[string]string{"len": strconv.Itoa(len(ids))}, ids, err
	case "rental":
		info, err := engine.GetRental(state, fmt.Sprint(valueOr(a.Args, "id", "")))
		if err != nil {
			return nil, nil, err
		}
		return rentalFields(info.ID, info.OfferingID, info.Renter, info.StartTime, info.EndTime, info.Amount), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown query %q", a.Query)
	}
}

func valueOr(m map[string]interface{}, key string, def interface{}) interface{} {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

func compareFields(kind, desc string, got, want map[string]string) error {
	for _, key := range slices.Sorted(maps.Keys(want)) {
		actual, ok := got[key]
		if !ok {
			return &AssertionError{Type: kind, Expected: fmt.Sprintf("%s field %q", desc, key), Actual: "field not present in " + formatMap(got)}
		}
		if actual != want[key] {
			return &AssertionError{Type: kind, Expected: fmt.Sprintf("%s %s = %s", desc, key, want[key]), Actual: fmt.Sprintf("%s = %s", key, actual)}
		}
	}
	return nil
}

func registryFields(reg ledger.Registry) map[string]string {
	return map[string]string{
		"offering_counter": strconv.FormatUint(reg.OfferingCounter, 10),
		"rental_counter":   strconv.FormatUint(reg.RentalCounter, 10),
		"fee":              reg.Fee.String(),
		"owner":            string(reg.Owner),
	}
}

func offerFields(o ledger.Offer) map[string]string {
	return map[string]string{
		"id":         o.ID,
		"contract":   string(o.Contract),
		"seller":     string(o.Seller),
		"amount":     o.Amount.String(),
		"list_price": o.ListPrice.String(),
	}
}

func rentalFields(id, offeringID string, renter ledger.Identity, start, end uint64, amount ledger.Amount) map[string]string {
	return map[string]string{
		"id":          id,
		"offering_id": offeringID,
		"renter":      string(renter),
		"start_time":  strconv.FormatUint(start, 10),
		"end_time":    strconv.FormatUint(end, 10),
		"amount":      amount.String(),
	}
}
