// Package engine implements the marketplace TransactionEngine.
//
// The engine is a pure function of (state, command) to (new state, transfer
// instructions, events). It never reads a wall clock, never performs I/O of
// its own and never executes transfers; it only decides what must move and
// returns that decision for a dispatcher to carry out.
//
// ARCHITECTURE:
//
// Tables:
// Execute works against the Tables interface. The in-memory State and the
// SQLite store's transaction both implement it, so the exact same rules run
// in tests, in replay and in production.
//
// All-or-nothing:
// Every check runs before the first write. A rejected command returns a
// *ledger.Error and leaves Tables untouched; Apply additionally works on a
// clone so a rejected command cannot leak partial state.
//
// Single-Writer Processor:
// Commands submitted from many goroutines are serialized through a FIFO
// queue and applied one at a time by Processor.Run. Each command is stamped
// with a strictly increasing seq from Clock.Next(), which also keys the
// journal and the outbox.
//
// Determinism:
// Offerings and rentals are scanned in ascending byte order of their ids.
// Current time comes from Command.Now, so replaying the journal reproduces
// every expiry decision.
package engine
