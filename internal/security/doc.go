// Package security derives the engine's security posture report from its
// configuration.
//
// # What this package must NOT do
//
//   - Read secrets or master key material. Inputs are settings only.
package security
