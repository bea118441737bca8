// Package internal contains helpers that are private to goMFA, currently
// secure random generation for one-time codes.
//
// # Sub-packages
//
//   - audit: async event dispatch primitives
//   - config: mfactl settings from TOML and environment
//   - flows: pure-function orchestrators for every Engine operation
//   - keylock: per-principal mutual exclusion
//   - limiters: the verification lockout guard
//   - logger: zerolog wrapper
//   - stores: typed, versioned MFA records over store.Store
//
// # What this package must NOT do
//
//   - Export types that appear in the public goMFA API.
//   - Be imported by any package outside the goMFA module.
package internal
