// Package flows contains the orchestrators behind every Engine operation.
//
// Each flow function (RunEnrollTOTP, RunVerify, RunTrustDevice, etc.) accepts
// a typed dependency struct of plain functions and returns results without
// side effects beyond those dependencies. Tests drive the flows with
// in-memory fakes; the Engine only wires and serializes.
//
// # Architecture boundaries
//
// Flows coordinate the state repository, the secret cipher, the lockout
// guard, code delivery, audit and metrics. They do NOT own any of these
// resources; ownership stays with the Engine. Per-principal serialization
// is also the Engine's job, flows assume they run under the principal lock.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goMFA (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency functions.
//   - Put codes, secrets or contacts into returned errors or audit metadata.
package flows
