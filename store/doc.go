// Package store defines the persistence boundary of the MFA engine.
//
// Every piece of MFA state is addressed by a principal ID and a [Kind]. The
// engine reads and writes opaque byte documents through [Store] and never
// caches them between calls, so a Store implementation is the single source
// of truth.
//
// # Implementations
//
//   - store/memory: process-local maps, for tests and single-node setups.
//   - store/redisstore: go-redis backed, with a distributed [Locker].
//   - store/sqlstore: database/sql backed (PostgreSQL through pgx, SQLite).
//
// # What this package must NOT do
//
//   - Interpret document contents. Encoding belongs to the engine.
//   - Expire records on its own. Expiry is evaluated by the engine at use.
package store
