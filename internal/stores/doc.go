// Package stores provides typed, versioned records for MFA state on top of a
// store.Store.
//
// # Design
//
// Each record kind has its own codec. Factor lists and trusted device ledgers
// are JSON documents carrying a "v" schema field. Pending challenges and
// lockout records are small fixed binary layouts led by a version byte.
// Decoding rejects unknown versions rather than guessing.
//
// # Architecture boundaries
//
// This package owns encoding and the mapping of backend failures to
// [ErrBackend]. It does NOT decide expiry, compare codes, or hold locks; the
// flow functions in internal/flows and the Engine do.
//
// # What this package must NOT do
//
//   - Import goMFA or any sibling internal package.
//   - Cache records between calls.
//   - Include record contents in returned errors.
package stores
