// Package secret provides authenticated field encryption for data at rest.
//
// A [Cipher] derives a fresh AES-256 key for every envelope with
// PBKDF2-HMAC-SHA256 over the master key and a random salt, seals the
// plaintext with AES-GCM, and returns a self-describing [Envelope]. The
// envelope JSON layout is stable and must keep decoding for data that is
// already stored.
//
// # Architecture boundaries
//
// secret is a leaf package. It knows nothing about principals, factors or
// stores; callers decide what to protect. Key derivation is CPU bound and runs
// on a bounded pool shared by all callers of one Cipher.
//
// # What this package must NOT do
//
//   - Return errors that carry plaintext, key material or derived keys.
//   - Decrypt an envelope whose version is newer than [SupportedVersion].
//   - Mutate an Envelope after it has been returned.
package secret
