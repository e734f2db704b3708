// Package store provides SQLite-backed storage and execution for compiled
// query plans.
//
// The store keeps two tables:
//   - plans: the compiled SQL and parameters of each named query, keyed by
//     name and stamped with the model fingerprint
//   - runs: one record per execution of a saved plan
//
// # Identity and Ordering
//
// Plan and run IDs are UUIDv7 strings from an injectable IDGenerator.
// Every write is stamped with a revision from a logical Clock, never a
// timestamp, and listings are ordered by revision then id COLLATE BINARY
// so that repeated runs produce identical output.
//
// Saving a plan whose fingerprint matches the stored one is a no-op.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
