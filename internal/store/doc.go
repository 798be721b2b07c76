// Package store provides SQLite-backed persistence for the marketplace.
//
// The persisted layout is one scalar registry row, a string-keyed offerings
// table and a string-keyed rentals table. Alongside it the store keeps:
//   - journal: every accepted command, keyed by its logical seq
//   - outbox: every transfer instruction those commands decided, with a
//     content-addressed id and a dispatch status
//
// # Atomicity
//
// Apply runs engine.Execute inside one SQLite transaction and writes the
// journal row and the outbox rows in that same transaction. State never
// commits without its instructions and no instruction exists without its
// state change. A rejected command rolls back and leaves no trace.
//
// # Determinism
//
//   - Ordering uses seq and ids, NEVER timestamps
//   - Scans use ORDER BY id COLLATE BINARY
//   - Replay re-derives state and outbox from the journal and compares
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Schema changes are golang-migrate migrations embedded from migrations/.
package store
