package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rentedResult runs the rent_and_end scenario and returns its result for
// assertions to inspect.
func rentedResult(t *testing.T) *Result {
	t.Helper()
	result, err := Run(loadTestScenario(t, "rent_and_end"))
	require.NoError(t, err)
	return result
}

func TestAssertTraceContains(t *testing.T) {
	result := rentedResult(t)

	err := assertTraceContains(result.Trace, Assertion{
		Type:   AssertTraceContains,
		Op:     "rent_rwa",
		Events: map[string]string{"fee_amount": "6"},
	})
	assert.NoError(t, err)

	err = assertTraceContains(result.Trace, Assertion{
		Type:   AssertTraceContains,
		Op:     "rent_rwa",
		Events: map[string]string{"fee_amount": "7"},
	})
	require.Error(t, err)
	assertErr, ok := err.(*AssertionError)
	require.True(t, ok)
	assert.Equal(t, AssertTraceContains, assertErr.Type)
	assert.Contains(t, assertErr.Expected, "fee_amount=7")
	assert.Equal(t, "not found in trace", assertErr.Actual)
}

func TestAssertTraceContains_IgnoresRejections(t *testing.T) {
	result := rentedResult(t)

	err := assertTraceContains(result.Trace, Assertion{Type: AssertTraceContains, Op: "clawback"})
	assert.Error(t, err)
}

func TestAssertTraceOrder(t *testing.T) {
	result := rentedResult(t)

	assert.NoError(t, assertTraceOrder(result.Trace, Assertion{Ops: []string{"instantiate", "list", "rent_rwa", "end_rental"}}))
	assert.NoError(t, assertTraceOrder(result.Trace, Assertion{Ops: []string{"instantiate", "end_rental"}}))

	err := assertTraceOrder(result.Trace, Assertion{Ops: []string{"end_rental", "rent_rwa"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no accepted rent_rwa after [end_rental]")
}

func TestAssertTraceCount(t *testing.T) {
	result := rentedResult(t)

	assert.NoError(t, assertTraceCount(result.Trace, Assertion{Op: "end_rental", Count: 1}))
	assert.NoError(t, assertTraceCount(result.Trace, Assertion{Op: "clawback", Count: 0}))

	err := assertTraceCount(result.Trace, Assertion{Op: "end_rental", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Actual: 1 accepted")
}

func TestAssertTransferCount(t *testing.T) {
	result := rentedResult(t)

	assert.NoError(t, assertTransferCount(result.Trace, Assertion{Count: 3}))
	assert.Error(t, assertTransferCount(result.Trace, Assertion{Count: 2}))
}

func TestAssertFinalState(t *testing.T) {
	result := rentedResult(t)

	tests := []struct {
		name    string
		a       Assertion
		wantErr string
	}{
		{
			name: "registry fields",
			a:    Assertion{Table: "registry", Expect: map[string]string{"owner": "owner", "fee": "0.02"}},
		},
		{
			name: "offering present",
			a:    Assertion{Table: "offerings", Where: map[string]string{"id": "1"}, Expect: map[string]string{"list_price": "10earth"}},
		},
		{
			name: "rental absent",
			a:    Assertion{Table: "rentals", Where: map[string]string{"id": "1"}, Absent: true},
		},
		{
			name:    "offering not absent",
			a:       Assertion{Table: "offerings", Where: map[string]string{"id": "1"}, Absent: true},
			wantErr: "record present",
		},
		{
			name:    "rental missing",
			a:       Assertion{Table: "rentals", Where: map[string]string{"id": "1"}, Expect: map[string]string{"renter": "renter"}},
			wantErr: "record not found",
		},
		{
			name:    "wrong value",
			a:       Assertion{Table: "registry", Expect: map[string]string{"fee": "0.03"}},
			wantErr: "fee = 0.02",
		},
		{
			name:    "unknown field",
			a:       Assertion{Table: "registry", Expect: map[string]string{"balance": "1"}},
			wantErr: "field not present",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalState(result.State, tt.a)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertQuery(t *testing.T) {
	result, err := Run(loadTestScenario(t, "rental_query"))
	require.NoError(t, err)

	assert.NoError(t, assertQuery(result.State, Assertion{Query: "owner", Expect: map[string]string{"owner": "owner"}}))
	assert.NoError(t, assertQuery(result.State, Assertion{Query: "rental", Args: map[string]interface{}{"id": "404"}, Error: "RENTAL_NOT_FOUND"}))

	err = assertQuery(result.State, Assertion{Query: "rental", Args: map[string]interface{}{"id": "404"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "succeeds")

	err = assertQuery(result.State, Assertion{Query: "offers", IDs: []string{"42"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ids [42]")

	err = assertQuery(result.State, Assertion{Query: "offers", Args: map[string]interface{}{"limit": "many"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit")
}

func TestEvaluateAssertions_CollectsFailures(t *testing.T) {
	result := rentedResult(t)

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTransferCount, Count: 3},
		{Type: AssertTraceCount, Op: "buy", Count: 1},
		{Type: "bogus"},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "assertions[1]")
	assert.Contains(t, errs[1], `assertions[2]: unknown assertion type "bogus"`)
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	result := rentedResult(t)

	err := assertTraceCount(result.Trace, Assertion{Op: "buy", Count: 1})
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "Full trace:")
	assert.Contains(t, msg, "[4] end_rental by renter: RENTAL_NOT_EXPIRED")
	assert.Contains(t, msg, "[6] clawback by seller: RENTAL_NOT_FOUND")
}
