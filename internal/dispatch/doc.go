// Package dispatch executes the transfer instructions the engine decided.
//
// The engine never moves value. Accepted commands leave Transfer rows in the
// store's outbox; a Dispatcher drains them in decision order and hands each
// one to an Executor, which talks to whatever actually moves native coins
// and custodied assets. Each row is marked dispatched on success. Failures
// are counted, and a row that fails max-attempts times is parked as failed
// until an operator retries it.
package dispatch
