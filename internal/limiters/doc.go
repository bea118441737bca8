// Package limiters holds the verification lockout policy.
//
// # Limiters
//
//   - [LockoutGuard] locks a principal for a fixed duration once a pending
//     challenge collects too many wrong codes.
//
// # Architecture boundaries
//
// Lockout records live in the state store through internal/stores, so every
// engine sharing a store sees the same lock. Thresholds come from
// LockoutConfig supplied at construction time.
//
// # What this package must NOT do
//
//   - Import goMFA or internal/flows.
//   - Make policy decisions beyond counting and locking. Flow functions decide
//     which failures count.
package limiters
