// Package harness runs marketplace scenarios against the pure reducer and
// checks the resulting trace.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: buy_with_fee
//	description: "Buying pays the seller list price minus the fee"
//	setup:
//	  - op: instantiate
//	    caller: owner
//	    args: { fee: "0.02" }
//	  - op: list
//	    caller: rwa-token
//	    args:
//	      sender: seller
//	      amount: "100"
//	      msg: { list_price: { denom: earth, amount: "1000" } }
//	flow:
//	  - op: buy
//	    caller: buyer
//	    funds: ["1000earth"]
//	    args: { offering_id: "1" }
//	    expect:
//	      events: { action: buy_rwa }
//	      transfers:
//	        - { type: bank_send, recipient: seller, denom: earth, amount: "980" }
//	assertions:
//	  - type: final_state
//	    table: offerings
//	    where: { id: "1" }
//	    absent: true
//
// Step args are the operation's JSON fields; amounts and fees are quoted
// strings. A step without expect must be accepted. expect.error names the
// error code a step must be rejected with.
//
// # Assertion Types
//
//   - trace_contains: an accepted step with the op and a subset of its events
//   - trace_order: accepted ops appear in the given order
//   - trace_count: an op was accepted exactly count times
//   - transfer_count: the trace decided exactly count transfers
//   - final_state: a registry, offerings or rentals record matches expect
//     (subset), or is absent
//   - query: a read query (count, fee, owner, offers, rentals, rental)
//     returns the expected ids, fields or error
//
// # Deterministic Testing
//
// Every step consumes one seq from engine.Clock, accepted or not, and gets a
// request id from engine.SequenceGenerator. The trace is serialized as
// canonical JSON, so identical scenarios produce byte-identical golden files.
package harness
