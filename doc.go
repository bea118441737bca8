// Package goMFA provides a multi-factor authentication engine backed by
// field-level envelope encryption.
//
// Principals enroll TOTP, SMS, email and backup-code factors through [Engine];
// verification applies a per-principal lockout policy and trusted devices let
// callers skip the second factor for a bounded window. Factor secrets and
// contacts are sealed with [secret.Cipher] before they reach the [store.Store].
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build]. Mutating operations for the same
// principal are serialized.
//
// # Architecture boundaries
//
// goMFA is the public surface. It exposes [Engine], [Builder], [Config] and
// value types (FactorInfo, TOTPSetup, TrustedDevice, etc.). Flow
// orchestration, record encoding, lockout bookkeeping and per-key locking live
// under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Return secrets, codes or contacts after the call that created them.
//   - Put secret material into errors, logs or audit events.
//   - Cache factor or challenge state across calls; the Store is the single
//     source of truth.
//   - Run background timers for expiry. Challenges and lockouts are evaluated
//     when they are used.
package goMFA
