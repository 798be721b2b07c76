// Package ledger provides the value types shared by every other package of
// the RWA marketplace: identities, amounts, fee fractions, coins, the
// registry/offering/rental records, the operation sum type, outbound transfer
// instructions and the error taxonomy.
//
// This package contains types and pure helpers only. All other internal
// packages import ledger; ledger imports nothing internal.
//
// Key design constraints:
//   - NO floats anywhere. Amounts are unsigned integers bounded at 2^128-1,
//     fees are exact decimal fractions.
//   - Time is a caller-supplied number of seconds, never a wall-clock read.
//   - All JSON tags use snake_case; amounts and fees travel as decimal strings.
package ledger
